// Package sqlite provides the durable implementation of driven.DocumentStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. All tenants share one database; every
// row carries a tenant_id and every query filters on it.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// Chunk embeddings are stored as little-endian float32 blobs so the in-memory
// indices can be rebuilt at startup without calling the embedder again.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha/data/rag.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite

// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - DocumentStore: Durable, tenant-scoped document and chunk persistence
//   - IndexFactory: Creates a private LexicalIndex and VectorIndex per tenant
//   - EmbeddingService: Turns chunk and query text into vectors
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - Extractor: Converts uploaded bytes to plain text. Without it only text ingestion works.
//   - AnswerGenerator: Produces an answer from ranked passages. Without it Ask is disabled.
//   - EventSink: Records query and ingestion events. Without it events are dropped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

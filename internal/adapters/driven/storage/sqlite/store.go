package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Store is a SQLite-backed document store shared by all tenants.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha/data/rag.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "rag.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite has a single writer; one connection avoids BUSY on lock upgrades.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const chunkColumns = `id, document_id, tenant_id, position, content, start_offset, end_offset, page, section, seq, embedding`

// CreateDocument stores a document and all of its chunks in one transaction.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM documents WHERE tenant_id = ? AND name = ?", doc.Tenant, doc.Name).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("document %q: %w", doc.Name, domain.ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, name, text_length, status, metadata, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Tenant, doc.Name, doc.TextLength, string(doc.Status), string(metadataJSON), doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, doc.Tenant, c.Index, c.Content,
			c.StartOffset, c.EndOffset, c.Page, c.Section, int64(c.Seq), float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SetStatus updates the processing status of a document.
func (s *documentStore) SetStatus(ctx context.Context, tenant, name string, status domain.DocumentStatus) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET status = ? WHERE tenant_id = ? AND name = ?", string(status), tenant, name)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return requireAffected(res)
}

// GetDocument retrieves a document by name.
func (s *documentStore) GetDocument(ctx context.Context, tenant, name string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, text_length, status, metadata, uploaded_at
		FROM documents WHERE tenant_id = ? AND name = ?
	`, tenant, name)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	ids, err := s.chunkIDs(ctx, tenant, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.ChunkIDs = ids[doc.ID]
	return doc, nil
}

// GetChunks retrieves all chunks of a document in position order.
func (s *documentStore) GetChunks(ctx context.Context, tenant, name string) ([]domain.Chunk, error) {
	doc, err := s.GetDocument(ctx, tenant, name)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks WHERE tenant_id = ? AND document_id = ?
		ORDER BY position
	`, tenant, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows, map[string]string{doc.ID: doc.Name})
}

// DeleteDocument removes a document and its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, tenant, name string) error {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM documents WHERE tenant_id = ? AND name = ?", tenant, name)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

// ListDocuments returns the tenant's documents in upload order.
func (s *documentStore) ListDocuments(ctx context.Context, tenant string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, text_length, status, metadata, uploaded_at
		FROM documents WHERE tenant_id = ?
		ORDER BY uploaded_at, name
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	ids, err := s.chunkIDs(ctx, tenant, "")
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].ChunkIDs = ids[docs[i].ID]
	}
	return docs, nil
}

// ListChunks returns every chunk of the tenant in insertion order.
func (s *documentStore) ListChunks(ctx context.Context, tenant string) ([]domain.Chunk, error) {
	names := make(map[string]string)
	nameRows, err := s.store.db.QueryContext(ctx, "SELECT id, name FROM documents WHERE tenant_id = ?", tenant)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	for nameRows.Next() {
		var id, name string
		if err := nameRows.Scan(&id, &name); err != nil {
			nameRows.Close()
			return nil, fmt.Errorf("scanning document name: %w", err)
		}
		names[id] = name
	}
	nameRows.Close()
	if err := nameRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks WHERE tenant_id = ?
		ORDER BY seq
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows, names)
}

// DeleteTenant removes everything stored for a tenant.
func (s *documentStore) DeleteTenant(ctx context.Context, tenant string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE tenant_id = ?", tenant)
	if err != nil {
		return 0, fmt.Errorf("deleting tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted documents: %w", err)
	}
	return int(n), nil
}

// ListTenants returns every tenant with at least one document.
func (s *documentStore) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT DISTINCT tenant_id FROM documents ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}
	return tenants, nil
}

// chunkIDs maps document ID to its chunk IDs in position order.
// An empty documentID loads the whole tenant.
func (s *documentStore) chunkIDs(ctx context.Context, tenant, documentID string) (map[string][]string, error) {
	query := "SELECT document_id, id FROM chunks WHERE tenant_id = ?"
	args := []any{tenant}
	if documentID != "" {
		query += " AND document_id = ?"
		args = append(args, documentID)
	}
	query += " ORDER BY document_id, position"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string][]string)
	for rows.Next() {
		var docID, id string
		if err := rows.Scan(&docID, &id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids[docID] = append(ids[docID], id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// ==================== Helpers ====================

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var metadataJSON sql.NullString

	if err := row.Scan(&doc.ID, &doc.Tenant, &doc.Name, &doc.TextLength, &status,
		&metadataJSON, &doc.UploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &doc, nil
}

// collectChunks scans chunk rows, filling DocumentName from names.
func collectChunks(rows *sql.Rows, names map[string]string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var seq int64
		var embeddingBlob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Tenant, &c.Index, &c.Content,
			&c.StartOffset, &c.EndOffset, &c.Page, &c.Section, &seq, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Seq = uint64(seq)
		c.Embedding = bytesToFloat32Slice(embeddingBlob)
		c.DocumentName = names[c.DocumentID]
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// requireAffected maps "no row changed" to domain.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

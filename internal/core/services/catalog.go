package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// ChunkObserver receives chunk mutations published by a Catalog.
// Observers are called synchronously; an error aborts the mutation.
type ChunkObserver interface {
	ChunksAdded(ctx context.Context, chunks []domain.Chunk) error
	ChunksRemoved(ctx context.Context, chunkIDs []string) error
}

// Catalog is one tenant's view of the document store.
//
// It caches documents and chunk text so queries can hydrate hits without
// touching the store, and it keeps the indices in step with the store by
// publishing every mutation to its observers before returning.
// Catalog is not safe for concurrent use; the owning Partition locks it.
type Catalog struct {
	tenant    string
	store     driven.DocumentStore
	observers []ChunkObserver

	documents map[string]*domain.Document // by name
	chunks    map[string]domain.Chunk     // by chunk ID, embeddings dropped
}

// NewCatalog creates an empty catalog for tenant.
func NewCatalog(tenant string, store driven.DocumentStore, observers ...ChunkObserver) *Catalog {
	return &Catalog{
		tenant:    tenant,
		store:     store,
		observers: observers,
		documents: make(map[string]*domain.Document),
		chunks:    make(map[string]domain.Chunk),
	}
}

// Load fills the cache from the store and returns the stored chunks,
// embeddings included, in insertion order.
// Documents left pending by an interrupted ingestion are purged.
func (c *Catalog) Load(ctx context.Context) ([]domain.Chunk, error) {
	docs, err := c.store.ListDocuments(ctx, c.tenant)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	c.documents = make(map[string]*domain.Document, len(docs))
	c.chunks = make(map[string]domain.Chunk)

	for i := range docs {
		doc := docs[i]
		if doc.Status != domain.StatusReady {
			logger.Warn("Purging %s document %q of tenant %s", doc.Status, doc.Name, c.tenant)
			if err := c.store.DeleteDocument(ctx, c.tenant, doc.Name); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("purge document %q: %w", doc.Name, err)
			}
			continue
		}
		c.documents[doc.Name] = &doc
	}

	stored, err := c.store.ListChunks(ctx, c.tenant)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	chunks := stored[:0]
	for _, chunk := range stored {
		if _, ok := c.documents[chunk.DocumentName]; !ok {
			continue
		}
		chunks = append(chunks, chunk)
		c.remember(chunk)
	}
	return chunks, nil
}

// Create stores doc and its chunks, publishes them to every observer and
// marks the document ready. On failure everything already written is
// rolled back and the document does not exist.
func (c *Catalog) Create(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if _, exists := c.documents[doc.Name]; exists {
		return fmt.Errorf("document %q: %w", doc.Name, domain.ErrConflict)
	}

	doc.Status = domain.StatusPending
	if err := c.store.CreateDocument(ctx, doc, chunks); err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	ids := chunkIDs(chunks)
	for i, obs := range c.observers {
		if err := obs.ChunksAdded(ctx, chunks); err != nil {
			c.rollback(ctx, doc, ids, c.observers[:i+1])
			return fmt.Errorf("index chunks: %w", err)
		}
	}

	if err := c.store.SetStatus(ctx, c.tenant, doc.Name, domain.StatusReady); err != nil {
		c.rollback(ctx, doc, ids, c.observers)
		return fmt.Errorf("mark ready: %w", err)
	}

	doc.Status = domain.StatusReady
	stored := *doc
	c.documents[doc.Name] = &stored
	for _, chunk := range chunks {
		c.remember(chunk)
	}
	return nil
}

// rollback undoes a partial Create. It ignores cancellation of ctx so a
// cancelled ingestion still cleans up.
func (c *Catalog) rollback(ctx context.Context, doc *domain.Document, ids []string, observers []ChunkObserver) {
	ctx = context.WithoutCancel(ctx)
	for _, obs := range observers {
		if err := obs.ChunksRemoved(ctx, ids); err != nil {
			logger.Error(err, "rollback: removing chunks of %q from index", doc.Name)
		}
	}
	if err := c.store.DeleteDocument(ctx, c.tenant, doc.Name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error(err, "rollback: deleting document %q", doc.Name)
	}
}

// Delete removes a document from the store and purges its chunks from
// every observer. Retrying after a partial failure is safe.
func (c *Catalog) Delete(ctx context.Context, name string) (*domain.Document, error) {
	doc, ok := c.documents[name]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
	}

	if err := c.store.DeleteDocument(ctx, c.tenant, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	for _, obs := range c.observers {
		if err := obs.ChunksRemoved(ctx, doc.ChunkIDs); err != nil {
			return nil, fmt.Errorf("unindex chunks: %w", err)
		}
	}

	for _, id := range doc.ChunkIDs {
		delete(c.chunks, id)
	}
	delete(c.documents, name)
	return doc, nil
}

// Forget drops the cache without touching the store.
func (c *Catalog) Forget() {
	c.documents = make(map[string]*domain.Document)
	c.chunks = make(map[string]domain.Chunk)
}

// Has reports whether a document with name exists.
func (c *Catalog) Has(name string) bool {
	_, ok := c.documents[name]
	return ok
}

// Document returns a copy of the named document.
func (c *Catalog) Document(name string) (domain.Document, bool) {
	doc, ok := c.documents[name]
	if !ok {
		return domain.Document{}, false
	}
	return *doc, true
}

// Documents returns every document in upload order.
func (c *Catalog) Documents() []domain.Document {
	docs := make([]domain.Document, 0, len(c.documents))
	for _, doc := range c.documents {
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
		return docs[i].Name < docs[j].Name
	})
	return docs
}

// Chunks returns a document's chunks in position order.
func (c *Catalog) Chunks(name string) ([]domain.Chunk, error) {
	doc, ok := c.documents[name]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
	}
	chunks := make([]domain.Chunk, 0, len(doc.ChunkIDs))
	for _, id := range doc.ChunkIDs {
		if chunk, ok := c.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// Resolve returns the cached chunk for id. Only chunks of ready
// documents are known to the catalog.
func (c *Catalog) Resolve(id string) (domain.Chunk, bool) {
	chunk, ok := c.chunks[id]
	return chunk, ok
}

// DocumentCount returns the number of ready documents.
func (c *Catalog) DocumentCount() int {
	return len(c.documents)
}

// ChunkCount returns the number of chunks across all documents.
func (c *Catalog) ChunkCount() int {
	return len(c.chunks)
}

func (c *Catalog) remember(chunk domain.Chunk) {
	chunk.Embedding = nil
	c.chunks[chunk.ID] = chunk
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].ID
	}
	return ids
}

// ==================== Index Observers ====================

// lexicalObserver keeps a keyword index in step with the catalog.
type lexicalObserver struct {
	index driven.LexicalIndex
}

func (o lexicalObserver) ChunksAdded(ctx context.Context, chunks []domain.Chunk) error {
	return o.index.Index(ctx, chunks)
}

func (o lexicalObserver) ChunksRemoved(ctx context.Context, chunkIDs []string) error {
	return o.index.Remove(ctx, chunkIDs)
}

// vectorObserver keeps a vector index in step with the catalog.
// A failed batch removes the vectors it already added.
type vectorObserver struct {
	index driven.VectorIndex
}

func (o vectorObserver) ChunksAdded(ctx context.Context, chunks []domain.Chunk) error {
	for i := range chunks {
		if err := o.index.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
			_ = o.index.Remove(ctx, chunkIDs(chunks[:i]))
			return fmt.Errorf("chunk %d: %w", chunks[i].Index, err)
		}
	}
	return nil
}

func (o vectorObserver) ChunksRemoved(ctx context.Context, chunkIDs []string) error {
	return o.index.Remove(ctx, chunkIDs)
}

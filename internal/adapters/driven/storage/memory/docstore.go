package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Data lives only as long as the process.
type DocumentStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData
}

type tenantData struct {
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk // keyed by document name
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		tenants: make(map[string]*tenantData),
	}
}

// CreateDocument stores a document and its chunks.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[doc.Tenant]
	if !ok {
		t = &tenantData{
			documents: make(map[string]domain.Document),
			chunks:    make(map[string][]domain.Chunk),
		}
		s.tenants[doc.Tenant] = t
	}
	if _, exists := t.documents[doc.Name]; exists {
		return fmt.Errorf("document %q: %w", doc.Name, domain.ErrConflict)
	}

	t.documents[doc.Name] = copyDocument(*doc)
	t.chunks[doc.Name] = slices.Clone(chunks)
	return nil
}

// SetStatus updates the processing status of a document.
func (s *DocumentStore) SetStatus(_ context.Context, tenant, name string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return domain.ErrNotFound
	}
	doc, ok := t.documents[name]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	t.documents[name] = doc
	return nil
}

// GetDocument retrieves a document by name.
func (s *DocumentStore) GetDocument(_ context.Context, tenant, name string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc, ok := t.documents[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc = copyDocument(doc)
	return &doc, nil
}

// GetChunks retrieves all chunks for a document.
func (s *DocumentStore) GetChunks(_ context.Context, tenant, name string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, ok := t.documents[name]; !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(t.chunks[name]), nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, tenant, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := t.documents[name]; !ok {
		return domain.ErrNotFound
	}
	delete(t.documents, name)
	delete(t.chunks, name)
	if len(t.documents) == 0 {
		delete(s.tenants, tenant)
	}
	return nil
}

// ListDocuments returns the tenant's documents in upload order.
func (s *DocumentStore) ListDocuments(_ context.Context, tenant string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return nil, nil
	}
	docs := make([]domain.Document, 0, len(t.documents))
	for _, doc := range t.documents {
		docs = append(docs, copyDocument(doc))
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
		return docs[i].Name < docs[j].Name
	})
	return docs, nil
}

// ListChunks returns every chunk of the tenant ordered by sequence.
func (s *DocumentStore) ListChunks(_ context.Context, tenant string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return nil, nil
	}
	var chunks []domain.Chunk
	for _, cs := range t.chunks {
		chunks = append(chunks, cs...)
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Seq < chunks[j].Seq
	})
	return chunks, nil
}

// DeleteTenant removes everything stored for a tenant.
func (s *DocumentStore) DeleteTenant(_ context.Context, tenant string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return 0, nil
	}
	delete(s.tenants, tenant)
	return len(t.documents), nil
}

// ListTenants returns every tenant with at least one document, sorted.
func (s *DocumentStore) ListTenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.tenants)), nil
}

func copyDocument(doc domain.Document) domain.Document {
	doc.ChunkIDs = slices.Clone(doc.ChunkIDs)
	doc.Metadata = maps.Clone(doc.Metadata)
	return doc
}

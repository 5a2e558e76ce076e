package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentStore persists documents and their chunks, scoped by tenant.
// Every method takes the tenant explicitly; no call may ever return data
// belonging to another tenant.
type DocumentStore interface {
	// CreateDocument stores a document and all of its chunks in one step.
	// Returns domain.ErrConflict if the tenant already has a document with that name.
	CreateDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// SetStatus updates the processing status of a document.
	SetStatus(ctx context.Context, tenant, name string, status domain.DocumentStatus) error

	// GetDocument retrieves a document by name.
	GetDocument(ctx context.Context, tenant, name string) (*domain.Document, error)

	// GetChunks retrieves all chunks of a document in position order.
	GetChunks(ctx context.Context, tenant, name string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	// Returns domain.ErrNotFound if the document does not exist.
	DeleteDocument(ctx context.Context, tenant, name string) error

	// ListDocuments returns the tenant's documents in upload order.
	ListDocuments(ctx context.Context, tenant string) ([]domain.Document, error)

	// ListChunks returns every chunk of the tenant in insertion order.
	ListChunks(ctx context.Context, tenant string) ([]domain.Chunk, error)

	// DeleteTenant removes everything stored for a tenant and returns
	// the number of documents removed.
	DeleteTenant(ctx context.Context, tenant string) (int, error)

	// ListTenants returns every tenant that has at least one document.
	ListTenants(ctx context.Context) ([]string, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentService manages the documents of a tenant.
type DocumentService interface {
	// Ingest chunks, embeds and indexes text under a tenant-unique name.
	// On failure nothing is stored and the returned summary has status failed.
	Ingest(ctx context.Context, tenant, name, text string, metadata map[string]string) (*domain.DocumentSummary, error)

	// IngestFile extracts plain text from data and ingests it.
	IngestFile(ctx context.Context, tenant, name string, data []byte, mimeType string) (*domain.DocumentSummary, error)

	// Delete removes a document, its chunks and all index entries.
	Delete(ctx context.Context, tenant, name string) error

	// List returns summaries of the tenant's documents.
	List(ctx context.Context, tenant string) ([]domain.DocumentSummary, error)

	// GetChunks returns a document's chunks in position order.
	GetChunks(ctx context.Context, tenant, name string) ([]domain.Chunk, error)
}

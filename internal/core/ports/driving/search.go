package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SearchService answers questions from a tenant's documents.
type SearchService interface {
	// Query returns ranked, cited passages. A tenant without ready
	// documents gets an empty response, not an error.
	Query(ctx context.Context, tenant, question string, opts domain.QueryOptions) (*domain.QueryResponse, error)

	// Ask retrieves passages and hands them to the answer generator.
	// Returns domain.ErrLLMUnavailable when no generator is configured.
	Ask(ctx context.Context, tenant, question string, opts domain.QueryOptions) (*domain.Answer, error)
}

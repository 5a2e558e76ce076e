package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// TenantService administers whole tenant collections.
type TenantService interface {
	// Wipe destroys every document and index of a tenant.
	Wipe(ctx context.Context, tenant string) error

	// Stats reports collection and index sizes.
	Stats(ctx context.Context, tenant string) (*domain.TenantStats, error)

	// Rebuild discards the tenant's indices and rebuilds them from stored chunks.
	Rebuild(ctx context.Context, tenant string) error

	// Tenants lists tenants known to the store.
	Tenants(ctx context.Context) ([]string, error)
}

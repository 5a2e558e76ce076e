package services

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure TenantService implements the interface.
var _ driving.TenantService = (*TenantService)(nil)

// TenantService manages whole tenant collections.
type TenantService struct {
	registry *TenantRegistry
}

// NewTenantService creates a new tenant service.
func NewTenantService(registry *TenantRegistry) *TenantService {
	return &TenantService{registry: registry}
}

// Wipe destroys every document and index of a tenant.
func (s *TenantService) Wipe(ctx context.Context, tenant string) error {
	n, err := s.registry.Wipe(ctx, tenant)
	if err != nil {
		return err
	}
	logger.Info("Wiped tenant %s: %d documents", tenant, n)
	return nil
}

// Stats reports collection and index sizes.
func (s *TenantService) Stats(ctx context.Context, tenant string) (*domain.TenantStats, error) {
	p, err := s.registry.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}

	p.viewMu.RLock()
	defer p.viewMu.RUnlock()

	stats := &domain.TenantStats{Tenant: tenant}
	if p.closed {
		return stats, nil
	}
	stats.Documents = p.catalog.DocumentCount()
	stats.Chunks = p.catalog.ChunkCount()
	stats.Terms = p.lexical.Terms()
	stats.Vectors = p.vectors.Len()
	stats.Dimensions = p.vectors.Dimensions()
	return stats, nil
}

// Rebuild discards the tenant's indices and rebuilds them from stored chunks.
func (s *TenantService) Rebuild(ctx context.Context, tenant string) error {
	return s.registry.Rebuild(ctx, tenant)
}

// Tenants lists tenants known to the store.
func (s *TenantService) Tenants(ctx context.Context) ([]string, error) {
	return s.registry.Tenants(ctx)
}

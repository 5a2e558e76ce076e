package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response *domain.QueryResponse
	answer   *domain.Answer
	err      error

	gotTenant string
	gotOpts   domain.QueryOptions
}

func (m *mockSearchService) Query(
	_ context.Context,
	tenant, _ string,
	opts domain.QueryOptions,
) (*domain.QueryResponse, error) {
	m.gotTenant, m.gotOpts = tenant, opts
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.QueryResponse{Mode: opts.Mode}, nil
	}
	return m.response, nil
}

func (m *mockSearchService) Ask(
	_ context.Context,
	tenant, _ string,
	opts domain.QueryOptions,
) (*domain.Answer, error) {
	m.gotTenant, m.gotOpts = tenant, opts
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.DocumentSummary
	chunks    []domain.Chunk
	err       error

	gotTenant string
	gotName   string
	gotText   string
}

func (m *mockDocumentService) Ingest(
	_ context.Context,
	tenant, name, text string,
	_ map[string]string,
) (*domain.DocumentSummary, error) {
	m.gotTenant, m.gotName, m.gotText = tenant, name, text
	if m.err != nil {
		return nil, m.err
	}
	return &domain.DocumentSummary{ID: "doc-1", Name: name, Status: domain.StatusReady, ChunkCount: 2, TextLength: len(text)}, nil
}

func (m *mockDocumentService) IngestFile(
	ctx context.Context,
	tenant, name string,
	data []byte,
	_ string,
) (*domain.DocumentSummary, error) {
	return m.Ingest(ctx, tenant, name, string(data), nil)
}

func (m *mockDocumentService) Delete(_ context.Context, tenant, name string) error {
	m.gotTenant, m.gotName = tenant, name
	return m.err
}

func (m *mockDocumentService) List(_ context.Context, tenant string) ([]domain.DocumentSummary, error) {
	m.gotTenant = tenant
	return m.documents, m.err
}

func (m *mockDocumentService) GetChunks(_ context.Context, tenant, name string) ([]domain.Chunk, error) {
	m.gotTenant, m.gotName = tenant, name
	return m.chunks, m.err
}

// mockTenantService is a mock implementation of driving.TenantService.
type mockTenantService struct {
	stats *domain.TenantStats
	err   error
}

func (m *mockTenantService) Wipe(_ context.Context, _ string) error { return m.err }

func (m *mockTenantService) Stats(_ context.Context, _ string) (*domain.TenantStats, error) {
	return m.stats, m.err
}

func (m *mockTenantService) Rebuild(_ context.Context, _ string) error { return m.err }

func (m *mockTenantService) Tenants(_ context.Context) ([]string, error) { return nil, m.err }

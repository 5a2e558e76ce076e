package mcp

import (
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers queries. Required.
	Search driving.SearchService

	// Document manages documents. Without it the ingest, list and
	// delete tools and the document resources are not offered.
	Document driving.DocumentService

	// Tenant reports collection statistics. Optional.
	Tenant driving.TenantService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

// Options configures the server.
type Options struct {
	// Tenant is the collection every tool operates on. The MCP client
	// cannot choose another tenant.
	Tenant string
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Tenant) == "" {
		return ErrMissingTenant
	}
	return nil
}

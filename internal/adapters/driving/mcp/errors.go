// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants query, ingest and manage one tenant's documents.
package mcp

import "errors"

var (
	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")

	// ErrMissingTenant is returned when the server is not bound to a tenant.
	ErrMissingTenant = errors.New("mcp: tenant is required")
)

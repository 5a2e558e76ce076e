package normalisers

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/docx"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/html"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.Extractor = (*Registry)(nil)

// extensionTypes covers extensions the system MIME database often lacks.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".htm":      "text/html",
	".html":     "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     docx.MIMEType,
}

// Registry routes extraction to the normaliser registered for a MIME type.
type Registry struct {
	byType map[string]driven.Extractor
}

// NewRegistry creates a registry of the given extractors.
// A later extractor replaces an earlier one for the same MIME type.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{byType: make(map[string]driven.Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Default returns a registry of the built-in normalisers.
func Default() *Registry {
	return NewRegistry(plaintext.New(), markdown.New(), html.New(), docx.New())
}

// Register adds e for every MIME type it supports.
func (r *Registry) Register(e driven.Extractor) {
	for _, t := range e.SupportedMIMETypes() {
		r.byType[t] = e
	}
}

// Extract returns the plain text of data using the normaliser for mimeType.
// MIME parameters such as charset are ignored.
func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	mediaType := baseType(mimeType)
	e, ok := r.byType[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedType, mimeType)
	}
	return e.Extract(ctx, data, mediaType)
}

// SupportedMIMETypes returns every registered MIME type in sorted order.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Supports reports whether a normaliser is registered for mimeType.
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.byType[baseType(mimeType)]
	return ok
}

// DetectMIMEType guesses the MIME type of an upload from its file name,
// falling back to sniffing the content.
func DetectMIMEType(name string, data []byte) string {
	if t := TypeByExtension(name); t != "" {
		return t
	}
	return baseType(http.DetectContentType(data))
}

// TypeByExtension returns the MIME type implied by the extension of name,
// or "" when the extension is missing or unknown.
func TypeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return baseType(t)
	}
	return ""
}

func baseType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

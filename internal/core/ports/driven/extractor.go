package driven

import "context"

// Extractor converts uploaded bytes into plain text.
// Rich formats (PDF, DOCX) are handled by external collaborators.
type Extractor interface {
	// Extract returns the plain text of data.
	// Returns domain.ErrUnsupportedType for MIME types it cannot handle.
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)

	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string
}

package domain

import "time"

// DocumentStatus is the processing state of a document.
type DocumentStatus string

const (
	// StatusPending means chunks are being written to the indices.
	StatusPending DocumentStatus = "pending"

	// StatusReady means both indices accepted every chunk.
	StatusReady DocumentStatus = "ready"

	// StatusFailed means ingestion was aborted. Failed documents are never stored.
	StatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is a known value.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

// Document is an uploaded text owned by exactly one tenant.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Tenant is the owner of the document.
	Tenant string

	// Name is unique within the tenant (typically the file name).
	Name string

	// TextLength is the length in bytes of the extracted text.
	TextLength int

	// Status is the processing state.
	Status DocumentStatus

	// ChunkIDs lists the document's chunks in position order.
	ChunkIDs []string

	// Metadata contains arbitrary key-value pairs such as mime type or file size.
	Metadata map[string]string

	// UploadedAt is when the document was ingested.
	UploadedAt time.Time
}

// Summary returns the listing view of the document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		Name:       d.Name,
		Status:     d.Status,
		ChunkCount: len(d.ChunkIDs),
		TextLength: d.TextLength,
		UploadedAt: d.UploadedAt,
		Metadata:   d.Metadata,
	}
}

// Chunk is an immutable slice of a document's text.
// It is the unit of indexing and retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// DocumentName is the tenant-unique name of the parent Document.
	DocumentName string

	// Tenant is the owner of the parent Document.
	Tenant string

	// Index is the ordinal position within the document.
	Index int

	// Content is the text content of this chunk.
	Content string

	// StartOffset is the byte offset of the first character in the source text.
	StartOffset int

	// EndOffset is the byte offset one past the last character in the source text.
	EndOffset int

	// Page is the page number the chunk starts on, or 0 when unknown.
	Page int

	// Section is the nearest preceding heading, if any.
	Section string

	// Seq is the tenant-wide insertion sequence, used as the final ranking tie-break.
	Seq uint64

	// Embedding is the vector representation for semantic search.
	Embedding []float32
}

// DocumentSummary is the listing view of a document.
type DocumentSummary struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     DocumentStatus    `json:"status"`
	ChunkCount int               `json:"chunk_count"`
	TextLength int               `json:"text_length"`
	UploadedAt time.Time         `json:"uploaded_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TenantStats reports the size of a tenant's collection.
type TenantStats struct {
	Tenant     string `json:"tenant"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Terms      int    `json:"terms"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
}

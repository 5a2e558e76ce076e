package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// Chunker splits extracted text into overlapping passages.
// Implementations must be pure and safe for concurrent use.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunk returns the passages of text in order. Empty text yields no chunks.
	// Returned chunks carry IDs, positions and offsets but no document fields.
	Chunk(text string) []domain.Chunk
}

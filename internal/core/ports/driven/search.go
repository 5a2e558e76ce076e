package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// LexicalIndex provides keyword search over one tenant's chunks.
// Implementations are not required to be safe for concurrent mutation;
// callers serialise writes and may run searches concurrently.
type LexicalIndex interface {
	// Index adds chunks to the index.
	Index(ctx context.Context, chunks []domain.Chunk) error

	// Remove deletes chunks from the index. Unknown IDs are ignored.
	Remove(ctx context.Context, chunkIDs []string) error

	// Search performs a keyword search and returns matching chunk IDs with scores,
	// best first. A query with no known terms returns no hits.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// Len returns the number of indexed chunks.
	Len() int

	// Terms returns the number of distinct terms.
	Terms() int

	// Reset empties the index.
	Reset()
}

// SearchHit represents a keyword search result.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the BM25 relevance score.
	Score float64
}

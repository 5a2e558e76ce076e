package driven

import "context"

// VectorIndex provides semantic similarity search over one tenant's chunks.
// The concurrency contract matches LexicalIndex.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID.
	// The first vector fixes the index dimension.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Remove deletes vectors from the index. Unknown IDs are ignored.
	Remove(ctx context.Context, chunkIDs []string) error

	// Search finds the k nearest neighbours to the query vector,
	// sorted by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimensions returns the vector size, or 0 while the index is empty.
	Dimensions() int

	// Reset empties the index.
	Reset()
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the raw cosine similarity in [-1, 1].
	Similarity float64
}

// IndexFactory creates the private indices of a tenant.
type IndexFactory interface {
	// NewLexicalIndex returns an empty keyword index.
	NewLexicalIndex() LexicalIndex

	// NewVectorIndex returns an empty vector index.
	NewVectorIndex() VectorIndex
}

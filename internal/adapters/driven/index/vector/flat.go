// Package vector provides an exact (brute-force) cosine similarity index.
//
// Vectors are L2-normalised on insert so a search is one dot product per
// stored vector. Results are exact, which makes recall trivially monotone in k.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	vec   []float32
	order uint64
}

// Index stores one tenant's chunk embeddings.
type Index struct {
	mu      sync.RWMutex
	dims    int
	entries map[string]entry
	next    uint64
}

// New creates an empty index. The first Add fixes its dimension.
func New() *Index {
	return &Index{entries: make(map[string]entry)}
}

// Add inserts or replaces the vector of a chunk.
func (x *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for chunk %s", domain.ErrValidation, chunkID)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dims != 0 && len(embedding) != x.dims {
		return fmt.Errorf("%w: embedding has %d dimensions, index has %d",
			domain.ErrValidation, len(embedding), x.dims)
	}
	vec, err := normalise(embedding)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", chunkID, err)
	}

	x.dims = len(embedding)
	x.entries[chunkID] = entry{vec: vec, order: x.next}
	x.next++
	return nil
}

// Remove deletes vectors. Unknown IDs are ignored.
func (x *Index) Remove(_ context.Context, chunkIDs []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range chunkIDs {
		delete(x.entries, id)
	}
	if len(x.entries) == 0 {
		x.dims = 0
	}
	return nil
}

// Search returns the k most similar chunks. A k of zero or less returns all.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		return nil, nil
	}
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrValidation, len(query), x.dims)
	}
	q, err := normalise(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	type scored struct {
		hit   driven.VectorHit
		order uint64
	}
	all := make([]scored, 0, len(x.entries))
	for id, e := range x.entries {
		all = append(all, scored{
			hit:   driven.VectorHit{ChunkID: id, Similarity: dot(q, e.vec)},
			order: e.order,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].hit.Similarity != all[b].hit.Similarity {
			return all[a].hit.Similarity > all[b].hit.Similarity
		}
		return all[a].order < all[b].order
	})

	if k > 0 && len(all) > k {
		all = all[:k]
	}
	hits := make([]driven.VectorHit, len(all))
	for i := range all {
		hits[i] = all[i].hit
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Dimensions returns the vector size, or 0 while the index is empty.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dims
}

// Reset empties the index.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[string]entry)
	x.dims = 0
	x.next = 0
}

// normalise returns a unit-length copy of v.
func normalise(v []float32) ([]float32, error) {
	var sum float64
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("%w: embedding contains NaN or Inf", domain.ErrValidation)
		}
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: zero-length embedding", domain.ErrValidation)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out, nil
}

// dot returns the cosine of two unit vectors, clamped to [-1, 1].
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, sum))
}

package vector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestIndex_Search_SortedBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Add(ctx, "same", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "near", []float32{1, 1, 0}))
	require.NoError(t, idx.Add(ctx, "orthogonal", []float32{0, 0, 1}))
	require.NoError(t, idx.Add(ctx, "opposite", []float32{-2, 0, 0}))

	hits, err := idx.Search(ctx, []float32{3, 0, 0}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	assert.Equal(t, "same", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "near", hits[1].ChunkID)
	assert.InDelta(t, 1/math.Sqrt2, hits[1].Similarity, 1e-6)
	assert.Equal(t, "orthogonal", hits[2].ChunkID)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-6)
	assert.Equal(t, "opposite", hits[3].ChunkID)
	assert.InDelta(t, -1.0, hits[3].Similarity, 1e-6)
}

func TestIndex_Search_RecallMonotoneInK(t *testing.T) {
	ctx := context.Background()
	idx := New()
	vectors := map[string][]float32{
		"a": {1, 0.1}, "b": {0.9, 0.5}, "c": {0.2, 1}, "d": {-1, 0.3}, "e": {0.5, 0.5},
	}
	for id, v := range vectors {
		require.NoError(t, idx.Add(ctx, id, v))
	}

	previous := []string{}
	for k := 1; k <= 5; k++ {
		hits, err := idx.Search(ctx, []float32{1, 0}, k)
		require.NoError(t, err)
		require.Len(t, hits, k)
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ChunkID
		}
		assert.Equal(t, previous, ids[:len(previous)], "k=%d must extend k-1", k)
		previous = ids
	}
}

func TestIndex_Search_TiesBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Add(ctx, "second", []float32{0, 1}))
	require.NoError(t, idx.Add(ctx, "first", []float32{0, 2}))

	hits, err := idx.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, "second", hits[0].ChunkID)
	assert.Equal(t, "first", hits[1].ChunkID)
}

func TestIndex_Add_Validation(t *testing.T) {
	ctx := context.Background()
	idx := New()

	assert.ErrorIs(t, idx.Add(ctx, "empty", nil), domain.ErrValidation)
	assert.ErrorIs(t, idx.Add(ctx, "zero", []float32{0, 0}), domain.ErrValidation)
	assert.ErrorIs(t, idx.Add(ctx, "nan", []float32{float32(math.NaN()), 1}), domain.ErrValidation)

	require.NoError(t, idx.Add(ctx, "ok", []float32{1, 2}))
	assert.Equal(t, 2, idx.Dimensions())
	assert.ErrorIs(t, idx.Add(ctx, "wrong", []float32{1, 2, 3}), domain.ErrValidation)
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_Search_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 2}))

	_, err := idx.Search(ctx, []float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIndex_Search_Empty(t *testing.T) {
	hits, err := New().Search(context.Background(), []float32{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Remove(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "c2", []float32{0, 1}))

	require.NoError(t, idx.Remove(ctx, []string{"c1", "missing"}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ChunkID)

	// Emptying the index releases the dimension.
	require.NoError(t, idx.Remove(ctx, []string{"c2"}))
	assert.Equal(t, 0, idx.Dimensions())
	require.NoError(t, idx.Add(ctx, "c3", []float32{1, 2, 3}))
}

func TestIndex_Reset(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))
	idx.Reset()
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimensions())
}

package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("retrieval.alpha", 0.6))
	require.NoError(t, store.Set("retrieval.alpha", 0.4))

	val, ok := store.Get("retrieval.alpha")
	assert.True(t, ok)
	assert.Equal(t, 0.4, val)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("embedding.provider", "ollama")
	_ = store.Set("chunking.chunk_size", 800)
	_ = store.Set("chunking.chunk_overlap", int64(100))
	_ = store.Set("retrieval.widen_factor", float64(4.9))
	_ = store.Set("retrieval.alpha", 0.25)
	_ = store.Set("watch.recursive", true)
	_ = store.Set("watch.extensions", []any{".txt", 7, ".md"})

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 800, store.GetInt("chunking.chunk_size"))
	assert.Equal(t, 100, store.GetInt("chunking.chunk_overlap"))
	assert.Equal(t, 4, store.GetInt("retrieval.widen_factor"))
	assert.Equal(t, 0.25, store.GetFloat("retrieval.alpha"))
	assert.Equal(t, 800.0, store.GetFloat("chunking.chunk_size"))
	assert.Equal(t, 100.0, store.GetFloat("chunking.chunk_overlap"))
	assert.True(t, store.GetBool("watch.recursive"))
	assert.Equal(t, []string{".txt", ".md"}, store.GetStringSlice("watch.extensions"))
}

func TestConfigStore_MissingAndWrongTypes(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("text", "value")
	_ = store.Set("number", 3)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	assert.Empty(t, store.GetString("missing"))
	assert.Empty(t, store.GetString("number"))
	assert.Zero(t, store.GetInt("text"))
	assert.Zero(t, store.GetFloat("text"))
	assert.False(t, store.GetBool("text"))
	assert.Nil(t, store.GetStringSlice("number"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, MemoryPath, store.Path())
}

func TestNewConfigStoreFrom_CopiesValues(t *testing.T) {
	seed := map[string]any{"retrieval.alpha": 0.7}
	store := NewConfigStoreFrom(seed)

	seed["retrieval.alpha"] = 0.1
	require.NoError(t, store.Set("retrieval.top_k", 8))

	assert.Equal(t, 0.7, store.GetFloat("retrieval.alpha"))
	assert.Equal(t, 8, store.GetInt("retrieval.top_k"))
	assert.NotContains(t, seed, "retrieval.top_k")
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("retrieval.top_k", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("retrieval.top_k")
		}()
	}
	wg.Wait()

	_, ok := store.Get("retrieval.top_k")
	assert.True(t, ok)
}

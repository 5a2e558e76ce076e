package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func newTestSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)
	svc.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return svc, store
}

func TestSettingsService_Engine_Defaults(t *testing.T) {
	svc, _ := newTestSettings(nil)

	cfg, err := svc.Engine()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEngineConfig(), cfg)
}

func TestSettingsService_Engine_FromStore(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("chunking.chunk_size", int64(600))
	_ = store.Set("chunking.chunk_overlap", 60)
	_ = store.Set("retrieval.alpha", int64(1))
	_ = store.Set("retrieval.document_cap", 2)
	_ = store.Set("retrieval.top_k", 8)
	_ = store.Set("embedding.provider", "Ollama")
	_ = store.Set("embedding.model", "nomic-embed-text")
	_ = store.Set("embedding.timeout", "45s")
	_ = store.Set("llm.provider", "ollama")
	_ = store.Set("storage.data_dir", "/srv/rag")

	cfg, err := svc.Engine()

	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Chunking.ChunkSize)
	assert.Equal(t, 60, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 1.0, cfg.Retrieval.Alpha)
	assert.Equal(t, 2, cfg.Retrieval.DocumentCap)
	assert.Equal(t, 8, cfg.Retrieval.DefaultK)
	assert.Equal(t, domain.AIProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 45*time.Second, cfg.EmbedTimeout)
	assert.True(t, cfg.LLM.IsConfigured())
	assert.Equal(t, "/srv/rag", cfg.DataDir)
	assert.Zero(t, cfg.Retrieval.MinSimilarity)
}

func TestSettingsService_Engine_MinSimilarityFollowsProvider(t *testing.T) {
	t.Run("hashing default", func(t *testing.T) {
		svc, _ := newTestSettings(nil)
		cfg, err := svc.Engine()
		require.NoError(t, err)
		assert.Equal(t, domain.HashingMinSimilarity, cfg.Retrieval.MinSimilarity)
	})

	t.Run("explicit zero kept", func(t *testing.T) {
		svc, store := newTestSettings(nil)
		_ = store.Set("retrieval.min_similarity", 0.0)
		cfg, err := svc.Engine()
		require.NoError(t, err)
		assert.Zero(t, cfg.Retrieval.MinSimilarity)
	})

	t.Run("explicit value with another provider", func(t *testing.T) {
		svc, store := newTestSettings(nil)
		_ = store.Set("embedding.provider", "ollama")
		_ = store.Set("retrieval.min_similarity", 0.3)
		cfg, err := svc.Engine()
		require.NoError(t, err)
		assert.Equal(t, 0.3, cfg.Retrieval.MinSimilarity)
	})
}

func TestSettingsService_Engine_EnvironmentOverridesStore(t *testing.T) {
	svc, store := newTestSettings(map[string]string{
		"SERCHA_RETRIEVAL_ALPHA":   "0.8",
		"SERCHA_STORAGE_DATA_DIR":  "/tmp/override",
		"SERCHA_EMBEDDING_TIMEOUT": "5s",
	})
	_ = store.Set("retrieval.alpha", 0.2)

	cfg, err := svc.Engine()

	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Retrieval.Alpha)
	assert.Equal(t, "/tmp/override", cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.EmbedTimeout)
}

func TestSettingsService_Engine_OpenAIKeyFromEnvironment(t *testing.T) {
	svc, store := newTestSettings(map[string]string{"OPENAI_API_KEY": "sk-env"})
	_ = store.Set("embedding.provider", "openai")

	cfg, err := svc.Engine()

	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
}

func TestSettingsService_Engine_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		env  map[string]string
	}{
		{name: "overlap not below size", key: "chunking.chunk_overlap", val: 1000},
		{name: "alpha out of range", key: "retrieval.alpha", val: 1.5},
		{name: "wrong type", key: "retrieval.top_k", val: "many"},
		{name: "fractional integer", key: "retrieval.top_k", val: 2.5},
		{name: "openai without key", key: "embedding.provider", val: "openai"},
		{name: "bad env value", env: map[string]string{"SERCHA_RETRIEVAL_DOCUMENT_CAP": "three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestSettings(tt.env)
			if tt.key != "" {
				_ = store.Set(tt.key, tt.val)
			}

			_, err := svc.Engine()

			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestSettingsService_Set(t *testing.T) {
	svc, store := newTestSettings(nil)

	require.NoError(t, svc.Set("retrieval.alpha", "0.3"))
	require.NoError(t, svc.Set("retrieval.top_k", "7"))
	require.NoError(t, svc.Set("embedding.timeout", "1m"))

	assert.Equal(t, 0.3, store.GetFloat("retrieval.alpha"))
	assert.Equal(t, 7, store.GetInt("retrieval.top_k"))
	assert.Equal(t, "1m0s", store.GetString("embedding.timeout"))

	cfg, err := svc.Engine()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.EmbedTimeout)
}

func TestSettingsService_Set_RejectsInvalid(t *testing.T) {
	svc, store := newTestSettings(nil)

	assert.ErrorIs(t, svc.Set("retrieval.colour", "blue"), domain.ErrValidation)
	assert.ErrorIs(t, svc.Set("retrieval.alpha", "high"), domain.ErrValidation)
	assert.ErrorIs(t, svc.Set("chunking.chunk_overlap", "2000"), domain.ErrValidation)

	_, ok := store.Get("chunking.chunk_overlap")
	assert.False(t, ok, "invalid value must not be stored")
}

func TestSettingsService_KeysAndPath(t *testing.T) {
	svc, _ := newTestSettings(nil)

	keys := svc.Keys()
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "retrieval.alpha")
	assert.Contains(t, keys, "embedding.requests_per_second")
	assert.Equal(t, ":memory:", svc.Path())
	assert.Equal(t, "SERCHA_LLM_MODEL", svc.EnvVar("llm.model"))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SERCHA_RETRIEVAL_MIN_SIMILARITY", EnvName("retrieval.min_similarity"))
	assert.Equal(t, "SERCHA_EMBEDDING_API_KEY", EnvName("embedding.api_key"))
}

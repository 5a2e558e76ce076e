package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestNewEmbedder(t *testing.T) {
	t.Run("hashing", func(t *testing.T) {
		e, err := newEmbedder(domain.EmbeddingSettings{Provider: domain.AIProviderHashing, Dimensions: 64})
		require.NoError(t, err)
		assert.Equal(t, 64, e.Dimensions())
	})

	t.Run("disabled", func(t *testing.T) {
		e, err := newEmbedder(domain.EmbeddingSettings{})
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("openai without key", func(t *testing.T) {
		_, err := newEmbedder(domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI})
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := newEmbedder(domain.EmbeddingSettings{Provider: "cohere"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestBuild_InMemory(t *testing.T) {
	t.Setenv("SERCHA_AMQP_URL", "")

	app, err := build(domain.DefaultEngineConfig())
	require.NoError(t, err)
	defer app.close()

	ctx := context.Background()
	_, err = app.documents.Ingest(ctx, "acme", "returns.txt",
		"Refunds are issued within thirty days of purchase.", nil)
	require.NoError(t, err)

	resp, err := app.search.Query(ctx, "acme", "refunds", domain.QueryOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "returns.txt", resp.Results[0].Citation.DocumentName)

	rec := httptest.NewRecorder()
	app.metrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sercha_rag_ingests_total")
}

func TestBuild_DefaultStackPolicyScenario(t *testing.T) {
	t.Setenv("SERCHA_AMQP_URL", "")

	app, err := build(domain.DefaultEngineConfig())
	require.NoError(t, err)
	defer app.close()

	ctx := context.Background()
	_, err = app.documents.Ingest(ctx, "T1", "policy.txt",
		"Refunds are processed within 30 days. Contact support for help.", nil)
	require.NoError(t, err)

	resp, err := app.search.Query(ctx, "T1", "refund window", domain.QueryOptions{K: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "policy.txt", resp.Results[0].Citation.DocumentName)
	assert.Greater(t, resp.Results[0].Score, 0.0)

	unrelated := []string{
		"unrelated topic xyz",
		"weather forecast tomorrow",
		"banana smoothie recipe",
		"quantum physics lecture",
	}
	for _, mode := range []domain.SearchMode{domain.SearchModeHybrid, domain.SearchModeSemantic} {
		for _, q := range unrelated {
			resp, err := app.search.Query(ctx, "T1", q, domain.QueryOptions{Mode: mode, K: 5})
			require.NoError(t, err)
			assert.Empty(t, resp.Results, "%q in %s mode", q, mode)
		}
	}

	require.NoError(t, app.documents.Delete(ctx, "T1", "policy.txt"))
	resp, err = app.search.Query(ctx, "T1", "refund window", domain.QueryOptions{K: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestBuild_SQLite(t *testing.T) {
	cfg := domain.DefaultEngineConfig()
	cfg.DataDir = t.TempDir()

	app, err := build(cfg)
	require.NoError(t, err)
	app.close()
}

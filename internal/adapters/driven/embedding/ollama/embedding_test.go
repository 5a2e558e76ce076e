package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/embed with vectors derived from input length.
func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{Model: req.Model}
		for _, text := range req.Input {
			vec := make([]float64, dims)
			vec[0] = float64(len(text))
			vec[dims-1] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, 768, s.Dimensions())
	assert.Equal(t, DefaultTimeout, s.client.Timeout)
}

func TestEmbeddingService_Embed(t *testing.T) {
	srv := fakeOllama(t, 4)
	s := NewEmbeddingService(Config{BaseURL: srv.URL + "/", Model: "custom-model"})
	assert.Zero(t, s.Dimensions(), "unknown model has no dimension until first call")

	vec, err := s.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0, 0, 1}, vec)
	assert.Equal(t, 4, s.Dimensions())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	srv := fakeOllama(t, 3)
	s := NewEmbeddingService(Config{BaseURL: srv.URL, Model: "custom-model"})

	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "abc"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(3), vecs[1][0])

	empty, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbeddingService_DimensionMismatch(t *testing.T) {
	srv := fakeOllama(t, 3)
	s := NewEmbeddingService(Config{BaseURL: srv.URL, Dimensions: 8})

	_, err := s.Embed(context.Background(), "hello")

	assert.ErrorContains(t, err, "returned 3 dimensions, configured 8")
}

func TestEmbeddingService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model \"missing\" not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL, Model: "missing"})
	_, err := s.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestEmbeddingService_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL})
	_, err := s.Embed(context.Background(), "hello")

	assert.ErrorContains(t, err, "expected 1 embeddings, got 0")
}

func TestEmbeddingService_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Embed(ctx, "hello")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbeddingService_Ping(t *testing.T) {
	srv := fakeOllama(t, 2)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})
	assert.NoError(t, s.Ping(context.Background()))

	down := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	assert.Error(t, down.Ping(context.Background()))
	assert.NoError(t, down.Close())
}

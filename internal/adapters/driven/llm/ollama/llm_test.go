package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var testSources = []domain.QueryResult{
	{
		Content:  "Refunds are issued within 30 days.",
		Citation: domain.Citation{DocumentName: "policy.pdf", Page: 2},
	},
	{
		Content:  "Contact support@example.com for help.",
		Citation: domain.Citation{DocumentName: "faq.md", Section: "Support"},
	},
}

func TestNewAnswerGenerator_Defaults(t *testing.T) {
	g := NewAnswerGenerator(Config{})

	assert.Equal(t, DefaultModel, g.ModelName())
	assert.Equal(t, DefaultBaseURL, g.baseURL)
	assert.Equal(t, DefaultTemperature, g.temperature)
	assert.Equal(t, DefaultTimeout, g.client.Timeout)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("How long do refunds take?", testSources)

	assert.Contains(t, prompt, "[Source: policy.pdf, page 2]\nRefunds are issued within 30 days.")
	assert.Contains(t, prompt, `[Source: faq.md, section "Support"]`)
	assert.Contains(t, prompt, "QUESTION: How long do refunds take?")
	assert.True(t, strings.HasSuffix(prompt, "ANSWER:"))
}

func TestAnswer(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "  Within 30 days [Source: policy.pdf, page 2]\n"},
			Done:    true,
		})
	}))
	defer srv.Close()

	g := NewAnswerGenerator(Config{BaseURL: srv.URL, Model: "mistral", Temperature: 0.4})
	answer, err := g.Answer(context.Background(), "How long do refunds take?", testSources)

	require.NoError(t, err)
	assert.Equal(t, "Within 30 days [Source: policy.pdf, page 2]", answer)
	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Refunds are issued")
	assert.Equal(t, 0.4, got.Options.Temperature)
}

func TestAnswer_NoSourcesSkipsModel(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	answer, err := NewAnswerGenerator(Config{BaseURL: srv.URL}).Answer(context.Background(), "anything?", nil)

	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, answer)
	assert.Zero(t, calls.Load())
}

func TestAnswer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewAnswerGenerator(Config{BaseURL: srv.URL}).Answer(context.Background(), "q", testSources)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	assert.NoError(t, NewAnswerGenerator(Config{BaseURL: srv.URL}).Ping(context.Background()))
}

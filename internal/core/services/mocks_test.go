package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/index"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/analysis"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// testVocabulary lists the stems the vocabulary embedder knows about.
// The last dimension marks text with no known word.
var testVocabulary = []string{
	"refund", "window", "day", "support", "contact", "help",
	"ship", "delivery", "order", "cancel", "warranty", "repair",
	"invoice", "payment", "card", "account", "password", "login",
	"holiday", "leave", "salary", "bonus", "travel", "expense",
}

// vocabEmbedder is a deterministic bag-of-words embedder over testVocabulary.
// Unrelated texts have zero cosine similarity.
type vocabEmbedder struct {
	failOn string        // Embed fails for text containing this substring
	delay  atomic.Int64 // nanoseconds Embed sleeps, honouring ctx
	calls  atomic.Int64
}

func (e *vocabEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if d := time.Duration(e.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedder exploded")
	}

	vec := make([]float32, len(testVocabulary)+1)
	known := false
	for _, tok := range analysis.Tokenize(text) {
		for i, word := range testVocabulary {
			if tok == word {
				vec[i]++
				known = true
			}
		}
	}
	if !known {
		vec[len(testVocabulary)] = 1
	}
	return vec, nil
}

func (e *vocabEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *vocabEmbedder) Dimensions() int              { return len(testVocabulary) + 1 }
func (e *vocabEmbedder) ModelName() string            { return "vocab-test" }
func (e *vocabEmbedder) Ping(_ context.Context) error { return nil }
func (e *vocabEmbedder) Close() error                 { return nil }

// faultyIndexes wraps the real index factory and injects search failures.
// addErr makes vector inserts fail.
type faultyIndexes struct {
	index.Factory
	lexicalErr error
	vectorErr  error
	addErr     error
}

func (f *faultyIndexes) NewLexicalIndex() driven.LexicalIndex {
	return &faultyLexical{LexicalIndex: f.Factory.NewLexicalIndex(), owner: f}
}

func (f *faultyIndexes) NewVectorIndex() driven.VectorIndex {
	return &faultyVectors{VectorIndex: f.Factory.NewVectorIndex(), owner: f}
}

type faultyLexical struct {
	driven.LexicalIndex
	owner *faultyIndexes
}

func (l *faultyLexical) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	if l.owner.lexicalErr != nil {
		return nil, l.owner.lexicalErr
	}
	return l.LexicalIndex.Search(ctx, query, limit)
}

type faultyVectors struct {
	driven.VectorIndex
	owner *faultyIndexes
}

func (v *faultyVectors) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if v.owner.vectorErr != nil {
		return nil, v.owner.vectorErr
	}
	return v.VectorIndex.Search(ctx, query, k)
}

func (v *faultyVectors) Add(ctx context.Context, id string, vec []float32) error {
	if v.owner.addErr != nil {
		return v.owner.addErr
	}
	return v.VectorIndex.Add(ctx, id, vec)
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu      sync.Mutex
	queries []domain.QueryEvent
	ingests []domain.IngestEvent
}

func (r *recordingSink) RecordQuery(_ context.Context, event domain.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, event)
}

func (r *recordingSink) RecordIngest(_ context.Context, event domain.IngestEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingests = append(r.ingests, event)
}

// stubAnswerer echoes the number of sources it was given.
type stubAnswerer struct {
	question string
	sources  []domain.QueryResult
}

func (a *stubAnswerer) Answer(_ context.Context, question string, sources []domain.QueryResult) (string, error) {
	a.question = question
	a.sources = sources
	if len(sources) == 0 {
		return "I don't know.", nil
	}
	return "See " + sources[0].Citation.DocumentName, nil
}

func (a *stubAnswerer) ModelName() string { return "stub-llm" }

// --- Test environment ---

type testEnv struct {
	store    *memory.DocumentStore
	indexes  *faultyIndexes
	registry *TenantRegistry
	embedder *vocabEmbedder
	events   *recordingSink
	docs     *DocumentService
	search   *SearchService
	tenants  *TenantService
}

type envOption func(*domain.EngineConfig)

func withChunkSize(size, overlap int) envOption {
	return func(c *domain.EngineConfig) {
		c.Chunking.ChunkSize = size
		c.Chunking.ChunkOverlap = overlap
	}
}

func withEmbedTimeout(d time.Duration) envOption {
	return func(c *domain.EngineConfig) { c.EmbedTimeout = d }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := domain.DefaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	require.NoError(t, cfg.Validate())

	proc, err := chunker.New(chunker.WithConfig(cfg.Chunking))
	require.NoError(t, err)

	env := &testEnv{
		store:    memory.NewDocumentStore(),
		indexes:  &faultyIndexes{},
		embedder: &vocabEmbedder{},
		events:   &recordingSink{},
	}
	env.registry = NewTenantRegistry(env.store, env.indexes)
	env.docs = NewDocumentService(env.registry, proc, env.embedder, cfg.EmbedTimeout)
	env.docs.SetEventSink(env.events)
	env.search = NewSearchService(env.registry, env.embedder, cfg.Retrieval, cfg.EmbedTimeout)
	env.search.SetEventSink(env.events)
	env.tenants = NewTenantService(env.registry)
	return env
}

func (e *testEnv) ingest(t *testing.T, tenant, name, text string) *domain.DocumentSummary {
	t.Helper()
	summary, err := e.docs.Ingest(context.Background(), tenant, name, text, nil)
	require.NoError(t, err)
	return summary
}

func (e *testEnv) query(t *testing.T, tenant, question string, mode domain.SearchMode, k int) *domain.QueryResponse {
	t.Helper()
	resp, err := e.search.Query(context.Background(), tenant, question, domain.QueryOptions{Mode: mode, K: k})
	require.NoError(t, err)
	return resp
}

func documentNames(results []domain.QueryResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Citation.DocumentName
	}
	return names
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

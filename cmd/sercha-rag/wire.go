package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/index"
	ollamallm "github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/telemetry"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/telemetry/metrics"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/telemetry/rabbitmq"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// application holds the wired core services and everything that must be
// released on exit.
type application struct {
	documents *services.DocumentService
	search    *services.SearchService
	tenants   *services.TenantService
	metrics   http.Handler

	closers []io.Closer
}

// build wires the driven adapters into the core services.
func build(cfg domain.EngineConfig) (*application, error) {
	app := &application{}

	store, err := app.openStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	registry := services.NewTenantRegistry(store, index.Factory{})

	chunks, err := chunker.New(chunker.WithConfig(cfg.Chunking))
	if err != nil {
		app.close()
		return nil, fmt.Errorf("configuring chunker: %w", err)
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		app.close()
		return nil, err
	}
	if embedder != nil {
		app.closers = append(app.closers, embedder)
		logger.Debug("embedder: %s (%d dims)", embedder.ModelName(), embedder.Dimensions())
	}

	sink, handler := app.newEventSink()
	app.metrics = handler

	app.documents = services.NewDocumentService(registry, chunks, embedder, cfg.EmbedTimeout)
	app.documents.SetExtractor(normalisers.Default())
	app.documents.SetEventSink(sink)

	app.search = services.NewSearchService(registry, embedder, cfg.Retrieval, cfg.EmbedTimeout)
	app.search.SetEventSink(sink)
	if cfg.LLM.IsConfigured() {
		app.search.SetAnswerGenerator(ollamallm.NewAnswerGenerator(ollamallm.Config{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		}))
	}

	app.tenants = services.NewTenantService(registry)
	return app, nil
}

// openStore returns the SQLite store when a data directory is set and an
// in-memory store otherwise.
func (a *application) openStore(dataDir string) (driven.DocumentStore, error) {
	if dataDir == "" {
		logger.Debug("storage: in memory")
		return memory.NewDocumentStore(), nil
	}
	db, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.closers = append(a.closers, db)
	logger.Debug("storage: %s", db.Path())
	return db.DocumentStore(), nil
}

// newEmbedder builds the configured embedding service. An empty provider
// disables embeddings, which leaves queries keyword-only.
func newEmbedder(s domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	var embedder driven.EmbeddingService
	switch s.Provider {
	case "":
		return nil, nil
	case domain.AIProviderHashing:
		embedder = hashing.NewEmbeddingService(hashing.Config{Dimensions: s.Dimensions})
	case domain.AIProviderOllama:
		embedder = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		})
	case domain.AIProviderOpenAI:
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring openai embeddings: %w", err)
		}
		embedder = svc
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrValidation, s.Provider)
	}
	return ratelimit.Wrap(embedder, s.RequestsPerSecond), nil
}

// newEventSink fans events out to the log, Prometheus and, when
// SERCHA_AMQP_URL is set, a RabbitMQ queue.
func (a *application) newEventSink() (driven.EventSink, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sinks := []driven.EventSink{telemetry.LogSink{}, metrics.New(reg)}

	if url := os.Getenv("SERCHA_AMQP_URL"); url != "" {
		pub, err := rabbitmq.Dial(url, rabbitmq.Config{Queue: os.Getenv("SERCHA_AMQP_QUEUE")})
		if err != nil {
			logger.Warn("event publishing disabled: %v", err)
		} else {
			sinks = append(sinks, pub)
			a.closers = append(a.closers, pub)
		}
	}

	return telemetry.NewMulti(sinks...), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// close releases resources in reverse order of acquisition.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("closing: %v", err)
		}
	}
}

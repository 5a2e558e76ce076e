// Package metrics records query and ingestion events as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.EventSink = (*Sink)(nil)

// Namespace prefixes every metric name.
const Namespace = "sercha_rag"

// Status label values.
const (
	statusOK    = "ok"
	statusError = "error"
)

// Sink holds the Prometheus collectors for engine events.
// Tenants are not used as labels so cardinality stays bounded.
type Sink struct {
	// Query metrics
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	QueryResults    prometheus.Histogram
	DegradedQueries *prometheus.CounterVec

	// Ingestion metrics
	IngestsTotal   *prometheus.CounterVec
	IngestDuration prometheus.Histogram
	ChunksIndexed  prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg uses the default Prometheus registry.
func New(reg prometheus.Registerer) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Sink{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by search mode and status",
			},
			[]string{"mode", "status"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of queries in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		QueryResults: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "query_results",
				Help:      "Number of results returned per query",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		DegradedQueries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "degraded_queries_total",
				Help:      "Queries answered with a fallback retrieval path",
			},
			[]string{"mode"},
		),
		IngestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ingests_total",
				Help:      "Total number of ingestion attempts by status",
			},
			[]string{"status"},
		),
		IngestDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Duration of ingestion in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		ChunksIndexed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "chunks_indexed_total",
				Help:      "Total number of chunks committed to the indices",
			},
		),
	}
}

// RecordQuery updates query metrics.
func (s *Sink) RecordQuery(_ context.Context, event domain.QueryEvent) {
	mode := string(event.Mode)
	status := statusOK
	if event.Err != nil {
		status = statusError
	}

	s.QueriesTotal.WithLabelValues(mode, status).Inc()
	s.QueryDuration.WithLabelValues(mode).Observe(event.Latency.Seconds())
	if event.Err != nil {
		return
	}
	s.QueryResults.Observe(float64(event.ResultCount))
	if len(event.Warnings) > 0 {
		s.DegradedQueries.WithLabelValues(mode).Inc()
	}
}

// RecordIngest updates ingestion metrics.
func (s *Sink) RecordIngest(_ context.Context, event domain.IngestEvent) {
	if !event.Success {
		s.IngestsTotal.WithLabelValues(statusError).Inc()
		return
	}
	s.IngestsTotal.WithLabelValues(statusOK).Inc()
	s.IngestDuration.Observe(event.Latency.Seconds())
	s.ChunksIndexed.Add(float64(event.ChunkCount))
}

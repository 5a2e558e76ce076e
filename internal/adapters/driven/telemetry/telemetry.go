// Package telemetry provides event sinks for query and ingestion analytics.
//
// Sinks in this package are composable: Multi fans an event out to several
// backends and LogSink writes events to the structured logger. Backends
// with their own dependencies live in subpackages (metrics, rabbitmq).
package telemetry

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure sinks implement the interface.
var (
	_ driven.EventSink = Multi(nil)
	_ driven.EventSink = LogSink{}
)

// Multi forwards every event to each sink in order.
type Multi []driven.EventSink

// NewMulti returns a sink over the non-nil sinks given.
func NewMulti(sinks ...driven.EventSink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// RecordQuery forwards the event to every sink.
func (m Multi) RecordQuery(ctx context.Context, event domain.QueryEvent) {
	for _, s := range m {
		s.RecordQuery(ctx, event)
	}
}

// RecordIngest forwards the event to every sink.
func (m Multi) RecordIngest(ctx context.Context, event domain.IngestEvent) {
	for _, s := range m {
		s.RecordIngest(ctx, event)
	}
}

// LogSink writes events to the package logger at debug level, or error
// level when the event carries a failure.
type LogSink struct{}

// RecordQuery logs a query event.
func (LogSink) RecordQuery(_ context.Context, event domain.QueryEvent) {
	zl := logger.Logger()
	e := zl.Debug()
	if event.Err != nil {
		e = zl.Error().Err(event.Err)
	}
	e.Str("tenant", event.Tenant).
		Str("mode", string(event.Mode)).
		Dur("latency", event.Latency).
		Int("results", event.ResultCount).
		Strs("warnings", event.Warnings).
		Msg("query")
}

// RecordIngest logs an ingestion event.
func (LogSink) RecordIngest(_ context.Context, event domain.IngestEvent) {
	zl := logger.Logger()
	e := zl.Debug()
	if !event.Success {
		e = zl.Error().Err(event.Err)
	}
	e.Str("tenant", event.Tenant).
		Str("document", event.Document).
		Int("chunks", event.ChunkCount).
		Dur("latency", event.Latency).
		Msg("ingest")
}

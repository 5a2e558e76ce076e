package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EventSink receives analytics events. Recording must not block the caller
// for long and failures are the sink's concern; the engine never retries.
type EventSink interface {
	// RecordQuery records one completed query.
	RecordQuery(ctx context.Context, event domain.QueryEvent)

	// RecordIngest records one ingestion attempt.
	RecordIngest(ctx context.Context, event domain.IngestEvent)
}

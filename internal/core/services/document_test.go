package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const policyText = "Refunds are processed within 30 days. Contact support for help."

func TestDocumentService_Ingest(t *testing.T) {
	env := newTestEnv(t)

	summary := env.ingest(t, "T1", "policy.txt", policyText)

	assert.Equal(t, "policy.txt", summary.Name)
	assert.Equal(t, domain.StatusReady, summary.Status)
	assert.Equal(t, 1, summary.ChunkCount)
	assert.Equal(t, len(policyText), summary.TextLength)
	assert.NotEmpty(t, summary.ID)

	stored, err := env.store.GetDocument(context.Background(), "T1", "policy.txt")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)

	require.Len(t, env.events.ingests, 1)
	assert.True(t, env.events.ingests[0].Success)
	assert.Equal(t, 1, env.events.ingests[0].ChunkCount)
}

func TestDocumentService_Ingest_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.docs.Ingest(ctx, "", "a.txt", "text", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	summary, err := env.docs.Ingest(ctx, "T1", "  ", "text", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.StatusFailed, summary.Status)
}

func TestDocumentService_Ingest_Conflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.ingest(t, "T1", "policy.txt", policyText)
	calls := env.embedder.calls.Load()

	summary, err := env.docs.Ingest(ctx, "T1", "policy.txt", "other text", nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.StatusFailed, summary.Status)
	assert.Equal(t, calls, env.embedder.calls.Load(), "conflict must be detected before embedding")

	// Delete then create is the update path.
	require.NoError(t, env.docs.Delete(ctx, "T1", "policy.txt"))
	env.ingest(t, "T1", "policy.txt", "other text")
}

func TestDocumentService_Ingest_EmptyText(t *testing.T) {
	env := newTestEnv(t)

	summary := env.ingest(t, "T1", "blank.txt", "   \n\t ")

	assert.Equal(t, domain.StatusReady, summary.Status)
	assert.Zero(t, summary.ChunkCount)

	resp := env.query(t, "T1", "refund", domain.SearchModeHybrid, 5)
	assert.Empty(t, resp.Results)
}

func TestDocumentService_Ingest_EmbeddingFailureLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t, withChunkSize(100, 20))
	ctx := context.Background()

	env.embedder.failOn = "EXPLODE"
	text := strings.Repeat("Refunds take thirty days to process. ", 5) + "EXPLODE here. " +
		strings.Repeat("Contact support for help. ", 5)

	summary, err := env.docs.Ingest(ctx, "T1", "bad.txt", text, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Equal(t, domain.StatusFailed, summary.Status)

	_, err = env.store.GetDocument(ctx, "T1", "bad.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	docs, err := env.docs.List(ctx, "T1")
	require.NoError(t, err)
	assert.Empty(t, docs)

	stats, err := env.tenants.Stats(ctx, "T1")
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
	assert.Zero(t, stats.Vectors)
	assert.Zero(t, stats.Terms)

	require.Len(t, env.events.ingests, 1)
	assert.False(t, env.events.ingests[0].Success)
	assert.ErrorIs(t, env.events.ingests[0].Err, domain.ErrEmbedding)

	// A retry starts from scratch and succeeds once the embedder recovers.
	env.embedder.failOn = ""
	env.ingest(t, "T1", "bad.txt", text)
}

func TestDocumentService_Ingest_EmbeddingTimeout(t *testing.T) {
	env := newTestEnv(t, withEmbedTimeout(20*time.Millisecond))
	ctx := context.Background()

	env.ingest(t, "T1", "keep.txt", "Holiday leave is twenty days.")
	env.embedder.delay.Store(int64(time.Second))

	_, err := env.docs.Ingest(ctx, "T1", "slow.txt", policyText, nil)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	env.embedder.delay.Store(0)
	docs, err := env.docs.List(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep.txt", docs[0].Name)
}

func TestDocumentService_Ingest_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.delay.Store(int64(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := env.docs.Ingest(ctx, "T1", "policy.txt", policyText, nil)
	require.Error(t, err)

	env.embedder.delay.Store(0)
	_, err = env.store.GetDocument(context.Background(), "T1", "policy.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.ingest(t, "T1", "policy.txt", policyText)
	require.NoError(t, env.docs.Delete(ctx, "T1", "policy.txt"))

	err := env.docs.Delete(ctx, "T1", "policy.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.docs.GetChunks(ctx, "T1", "policy.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stats, err := env.tenants.Stats(ctx, "T1")
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.Vectors)
}

func TestDocumentService_ListAndChunks(t *testing.T) {
	env := newTestEnv(t, withChunkSize(60, 10))
	ctx := context.Background()

	text := "# Refunds\nRefunds are processed within 30 days.\n\n# Shipping\nOrders ship in two days."
	env.ingest(t, "T1", "policy.md", text)
	env.ingest(t, "T1", "hr.txt", "Holiday leave is twenty days.")

	docs, err := env.docs.List(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "policy.md", docs[0].Name)
	assert.Equal(t, "hr.txt", docs[1].Name)

	chunks, err := env.docs.GetChunks(ctx, "T1", "policy.md")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "policy.md", c.DocumentName)
		assert.Equal(t, text[c.StartOffset:c.EndOffset], c.Content)
		assert.Nil(t, c.Embedding)
	}
	assert.Equal(t, "Refunds", chunks[0].Section)

	empty, err := env.docs.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDocumentService_IngestFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.docs.IngestFile(ctx, "T1", "a.txt", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	env.docs.SetExtractor(upperExtractor{})
	summary, err := env.docs.IngestFile(ctx, "T1", "a.txt", []byte(policyText), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", summary.Metadata["mime_type"])
	assert.Equal(t, fmt.Sprint(len(policyText)), summary.Metadata["size_bytes"])

	_, err = env.docs.IngestFile(ctx, "T1", "b.pdf", []byte("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

// upperExtractor accepts text/plain only.
type upperExtractor struct{}

func (upperExtractor) Extract(_ context.Context, data []byte, mimeType string) (string, error) {
	if mimeType != "text/plain" {
		return "", domain.ErrUnsupportedType
	}
	return string(data), nil
}

func (upperExtractor) SupportedMIMETypes() []string { return []string{"text/plain"} }

func TestDocumentService_ConcurrentIngestAcrossTenants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for tenant := 0; tenant < 4; tenant++ {
		for doc := 0; doc < 10; doc++ {
			wg.Add(1)
			go func(tenant, doc int) {
				defer wg.Done()
				_, err := env.docs.Ingest(ctx, fmt.Sprintf("T%d", tenant), fmt.Sprintf("doc-%d.txt", doc),
					fmt.Sprintf("Invoice %d payment by card.", doc), nil)
				errs <- err
			}(tenant, doc)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for tenant := 0; tenant < 4; tenant++ {
		stats, err := env.tenants.Stats(ctx, fmt.Sprintf("T%d", tenant))
		require.NoError(t, err)
		assert.Equal(t, 10, stats.Documents)
		assert.Equal(t, 10, stats.Chunks)
		assert.Equal(t, 10, stats.Vectors)
	}
}

func TestDocumentService_SequenceIsMonotonic(t *testing.T) {
	env := newTestEnv(t, withChunkSize(40, 5))
	ctx := context.Background()

	env.ingest(t, "T1", "a.txt", strings.Repeat("Order delivery ships fast. ", 4))
	env.ingest(t, "T1", "b.txt", strings.Repeat("Cancel order anytime today. ", 4))

	chunks, err := env.store.ListChunks(ctx, "T1")
	require.NoError(t, err)
	seen := map[uint64]bool{}
	for i, c := range chunks {
		assert.False(t, seen[c.Seq], "duplicate seq %d", c.Seq)
		seen[c.Seq] = true
		if i > 0 {
			assert.Greater(t, c.Seq, chunks[i-1].Seq)
		}
	}
}

package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService ingests and removes documents of a tenant.
type DocumentService struct {
	registry     *TenantRegistry
	chunker      driven.Chunker
	embedder     driven.EmbeddingService
	embedTimeout time.Duration
	extractor    driven.Extractor
	events       driven.EventSink
}

// NewDocumentService creates a new document service.
// A zero embedTimeout uses domain.DefaultEmbedTimeout.
func NewDocumentService(
	registry *TenantRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	embedTimeout time.Duration,
) *DocumentService {
	if embedTimeout <= 0 {
		embedTimeout = domain.DefaultEmbedTimeout
	}
	return &DocumentService{
		registry:     registry,
		chunker:      chunker,
		embedder:     embedder,
		embedTimeout: embedTimeout,
	}
}

// SetExtractor sets the text extractor used by IngestFile.
func (s *DocumentService) SetExtractor(extractor driven.Extractor) {
	s.extractor = extractor
}

// SetEventSink sets the collaborator that records ingestion events.
func (s *DocumentService) SetEventSink(sink driven.EventSink) {
	s.events = sink
}

// Ingest runs the ingestion pipeline: chunk, embed every chunk, then
// commit the document and its chunks to the store and both indices.
//
// The tenant's write lock is held throughout so two ingestions never
// interleave; queries keep running until the short commit step. Any
// failure, including an embedder timeout or cancellation of ctx, leaves
// no trace of the document.
func (s *DocumentService) Ingest(
	ctx context.Context, tenant, name, text string, metadata map[string]string,
) (*domain.DocumentSummary, error) {
	start := time.Now()
	summary := &domain.DocumentSummary{Name: name, Status: domain.StatusFailed, TextLength: len(text), Metadata: metadata}

	chunkCount, err := s.ingest(ctx, tenant, name, text, metadata, summary)
	s.recordIngest(ctx, domain.IngestEvent{
		Tenant:     tenant,
		Document:   name,
		ChunkCount: chunkCount,
		Success:    err == nil,
		Err:        err,
		Latency:    time.Since(start),
		At:         start,
	})
	if err != nil {
		logger.Warn("Ingestion of %q for tenant %s failed: %v", name, tenant, err)
		return summary, err
	}
	return summary, nil
}

//nolint:gocyclo // Pipeline orchestration with sequential steps
func (s *DocumentService) ingest(
	ctx context.Context, tenant, name, text string, metadata map[string]string, summary *domain.DocumentSummary,
) (int, error) {
	logger.Section("Ingestion")
	logger.Debug("Tenant: %s, document: %q, %d bytes", tenant, name, len(text))

	if err := validateTenant(tenant); err != nil {
		return 0, err
	}
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: document name is required", domain.ErrValidation)
	}
	if s.embedder == nil {
		return 0, fmt.Errorf("ingest: %w", domain.ErrEmbeddingUnavailable)
	}

	// 1. SERIALISE WRITERS
	p, unlock, err := s.registry.lockWrite(ctx, tenant)
	if err != nil {
		return 0, err
	}
	defer unlock()

	// 2. REJECT DUPLICATES before paying for embeddings
	p.viewMu.RLock()
	exists := p.catalog.Has(name)
	p.viewMu.RUnlock()
	if exists {
		return 0, fmt.Errorf("document %q: %w", name, domain.ErrConflict)
	}

	// 3. CHUNK
	chunks := s.chunker.Chunk(text)
	logger.Debug("Chunker %s produced %d chunks", s.chunker.Name(), len(chunks))

	doc := &domain.Document{
		ID:         uuid.New().String(),
		Tenant:     tenant,
		Name:       name,
		TextLength: len(text),
		Status:     domain.StatusPending,
		ChunkIDs:   make([]string, len(chunks)),
		Metadata:   metadata,
		UploadedAt: time.Now().UTC(),
	}

	// 4. EMBED (the only step that waits on the network)
	for i := range chunks {
		embedding, err := embedText(ctx, s.embedder, s.embedTimeout, chunks[i].Content)
		if err != nil {
			return len(chunks), fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks[i].Embedding = embedding
		chunks[i].DocumentID = doc.ID
		chunks[i].DocumentName = name
		chunks[i].Tenant = tenant
		chunks[i].Seq = p.nextSeq + uint64(i)
		doc.ChunkIDs[i] = chunks[i].ID
	}
	if err := ctx.Err(); err != nil {
		return len(chunks), err
	}

	// 5. COMMIT to store and indices
	p.viewMu.Lock()
	err = p.catalog.Create(ctx, doc, chunks)
	if err == nil {
		p.nextSeq += uint64(len(chunks))
	}
	p.viewMu.Unlock()
	if err != nil {
		return len(chunks), fmt.Errorf("ingest %q: %w", name, err)
	}

	*summary = doc.Summary()
	logger.Info("Ingested %q for tenant %s: %d chunks", name, tenant, len(chunks))
	return len(chunks), nil
}

// IngestFile extracts plain text from data and ingests it.
func (s *DocumentService) IngestFile(
	ctx context.Context, tenant, name string, data []byte, mimeType string,
) (*domain.DocumentSummary, error) {
	failed := &domain.DocumentSummary{Name: name, Status: domain.StatusFailed}
	if s.extractor == nil {
		return failed, fmt.Errorf("%w: no extractor configured", domain.ErrUnsupportedType)
	}

	text, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		s.recordIngest(ctx, domain.IngestEvent{Tenant: tenant, Document: name, Err: err, At: time.Now()})
		return failed, fmt.Errorf("extract %q: %w", name, err)
	}

	metadata := map[string]string{
		"mime_type":  mimeType,
		"size_bytes": strconv.Itoa(len(data)),
	}
	return s.Ingest(ctx, tenant, name, text, metadata)
}

// Delete removes a document. Once Delete returns, no query or listing
// started afterwards can see the document.
func (s *DocumentService) Delete(ctx context.Context, tenant, name string) error {
	p, unlock, err := s.registry.lockWrite(ctx, tenant)
	if err != nil {
		return err
	}
	defer unlock()

	p.viewMu.Lock()
	defer p.viewMu.Unlock()

	doc, err := p.catalog.Delete(ctx, name)
	if err != nil {
		return err
	}
	logger.Info("Deleted %q for tenant %s: %d chunks", name, tenant, len(doc.ChunkIDs))
	return nil
}

// List returns summaries of the tenant's documents in upload order.
func (s *DocumentService) List(ctx context.Context, tenant string) ([]domain.DocumentSummary, error) {
	p, err := s.registry.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}

	p.viewMu.RLock()
	defer p.viewMu.RUnlock()

	summaries := []domain.DocumentSummary{}
	if p.closed {
		return summaries, nil
	}
	for _, doc := range p.catalog.Documents() {
		summaries = append(summaries, doc.Summary())
	}
	return summaries, nil
}

// GetChunks returns a document's chunks in position order.
func (s *DocumentService) GetChunks(ctx context.Context, tenant, name string) ([]domain.Chunk, error) {
	p, err := s.registry.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}

	p.viewMu.RLock()
	defer p.viewMu.RUnlock()

	if p.closed {
		return nil, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
	}
	return p.catalog.Chunks(name)
}

func (s *DocumentService) recordIngest(ctx context.Context, event domain.IngestEvent) {
	if s.events != nil {
		s.events.RecordIngest(ctx, event)
	}
}

// embedText calls the embedder once with its own deadline.
// Failures and timeouts are reported as domain.ErrEmbedding.
func embedText(
	ctx context.Context, embedder driven.EmbeddingService, timeout time.Duration, text string,
) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		embedding []float32
		err       error
	}
	done := make(chan result, 1)
	go func() {
		embedding, err := embedder.Embed(embedCtx, text)
		done <- result{embedding, err}
	}()

	var embedding []float32
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, r.err)
		}
		embedding = r.embedding
	case <-embedCtx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, embedCtx.Err())
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", domain.ErrEmbedding)
	}
	return embedding, nil
}

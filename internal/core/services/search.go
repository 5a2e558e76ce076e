package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Warnings attached to a degraded query.
const (
	warnSemanticFallback = "semantic search unavailable, results are keyword-only"
	warnLexicalFallback  = "keyword search unavailable, results are semantic-only"
)

// SearchService plans and executes hybrid queries over one tenant.
type SearchService struct {
	registry     *TenantRegistry
	embedder     driven.EmbeddingService
	embedTimeout time.Duration
	cfg          domain.RetrievalConfig
	answerer     driven.AnswerGenerator
	events       driven.EventSink
}

// NewSearchService creates a new search service.
// The embedder is optional; without it every query is keyword-only.
func NewSearchService(
	registry *TenantRegistry,
	embedder driven.EmbeddingService,
	cfg domain.RetrievalConfig,
	embedTimeout time.Duration,
) *SearchService {
	if embedTimeout <= 0 {
		embedTimeout = domain.DefaultEmbedTimeout
	}
	return &SearchService{
		registry:     registry,
		embedder:     embedder,
		embedTimeout: embedTimeout,
		cfg:          cfg,
	}
}

// SetAnswerGenerator sets the LLM collaborator used by Ask.
func (s *SearchService) SetAnswerGenerator(answerer driven.AnswerGenerator) {
	s.answerer = answerer
}

// SetEventSink sets the collaborator that records query events.
func (s *SearchService) SetEventSink(sink driven.EventSink) {
	s.events = sink
}

// Query returns the top k passages for question.
//
// The query embedding is computed before any lock is taken. Both indices
// are then searched under the tenant's read lock, so a query sees either
// all or none of a concurrent mutation.
func (s *SearchService) Query(
	ctx context.Context, tenant, question string, opts domain.QueryOptions,
) (*domain.QueryResponse, error) {
	start := time.Now()
	resp, err := s.query(ctx, tenant, question, opts)

	event := domain.QueryEvent{Tenant: tenant, Mode: opts.Mode, Latency: time.Since(start), Err: err, At: start}
	if resp != nil {
		event.Mode = resp.Mode
		event.ResultCount = len(resp.Results)
		event.Warnings = resp.Warnings
	}
	if s.events != nil {
		s.events.RecordQuery(ctx, event)
	}

	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return resp, nil
}

//nolint:gocognit,gocyclo // Mode selection and degradation are one decision table
func (s *SearchService) query(
	ctx context.Context, tenant, question string, opts domain.QueryOptions,
) (*domain.QueryResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Tenant: %s, query: %q", tenant, question)

	mode := opts.Mode
	if mode == "" {
		mode = domain.SearchModeHybrid
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown search mode %q", domain.ErrValidation, mode)
	}
	k := opts.K
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", domain.ErrValidation, k)
	}
	if k == 0 {
		k = s.cfg.DefaultK
	}
	if err := validateTenant(tenant); err != nil {
		return nil, err
	}

	resp := &domain.QueryResponse{Mode: mode, Results: []domain.QueryResult{}}
	question = strings.TrimSpace(question)
	if question == "" {
		logger.Debug("Empty query, returning no results")
		return resp, nil
	}

	p, err := s.registry.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}

	pool := s.cfg.CandidatePool(k)
	logger.Debug("Mode: %s, k: %d, candidate pool: %d", mode.Description(), k, pool)

	var queryVec []float32
	if mode.UsesVectors() {
		queryVec, err = s.embedQuery(ctx, question)
		if err != nil {
			logger.Warn("Query embedding failed, using keyword search: %v", err)
			resp.Mode = domain.SearchModeLexical
			resp.Warnings = append(resp.Warnings, warnSemanticFallback)
		}
	}

	p.viewMu.RLock()
	defer p.viewMu.RUnlock()

	if p.closed || p.catalog.DocumentCount() == 0 {
		logger.Debug("Tenant %s has no ready documents", tenant)
		return resp, nil
	}

	lexHits, vecHits, err := s.search(ctx, p, resp, question, queryVec, pool)
	if err != nil {
		return nil, err
	}

	cands := s.score(p, resp.Mode, lexHits, vecHits)
	rank(cands)
	cands = capPerDocument(cands, k, s.cfg.DocumentCap)
	logger.Debug("Ranked %d candidates, returning %d", len(lexHits)+len(vecHits), len(cands))

	for _, c := range cands {
		resp.Results = append(resp.Results, toResult(c))
	}
	return resp, nil
}

// search runs the index lookups for the effective mode and degrades to
// the other index when one fails. resp.Mode and resp.Warnings are updated
// to describe what actually ran. Callers must hold p.viewMu.
func (s *SearchService) search(
	ctx context.Context, p *Partition, resp *domain.QueryResponse, question string, queryVec []float32, pool int,
) ([]driven.SearchHit, []driven.VectorHit, error) {
	var (
		lexHits        []driven.SearchHit
		vecHits        []driven.VectorHit
		lexErr, vecErr error
	)

	lexical := func(ctx context.Context) {
		lexHits, lexErr = p.lexical.Search(ctx, question, pool)
		if lexErr != nil {
			lexErr = fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, lexErr)
		}
	}
	semantic := func(ctx context.Context) {
		vecHits, vecErr = p.vectors.Search(ctx, queryVec, pool)
		if vecErr != nil {
			vecErr = fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, vecErr)
			return
		}
		vecHits = s.aboveFloor(vecHits)
	}

	switch resp.Mode {
	case domain.SearchModeLexical:
		lexical(ctx)
		if lexErr != nil {
			return nil, nil, lexErr
		}

	case domain.SearchModeSemantic:
		semantic(ctx)
		if vecErr != nil {
			logger.Warn("Vector search failed, using keyword search: %v", vecErr)
			resp.Mode = domain.SearchModeLexical
			resp.Warnings = append(resp.Warnings, warnSemanticFallback)
			lexical(ctx)
			if lexErr != nil {
				return nil, nil, lexErr
			}
		}

	case domain.SearchModeHybrid:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			lexical(gctx)
			return nil
		})
		g.Go(func() error {
			semantic(gctx)
			return nil
		})
		_ = g.Wait()

		switch {
		case lexErr != nil && vecErr != nil:
			return nil, nil, fmt.Errorf("%w; %w", lexErr, vecErr)
		case vecErr != nil:
			logger.Warn("Vector search failed, using keyword search: %v", vecErr)
			resp.Mode = domain.SearchModeLexical
			resp.Warnings = append(resp.Warnings, warnSemanticFallback)
			vecHits = nil
		case lexErr != nil:
			logger.Warn("Keyword search failed, using semantic search: %v", lexErr)
			resp.Mode = domain.SearchModeSemantic
			resp.Warnings = append(resp.Warnings, warnLexicalFallback)
			lexHits = nil
		}
	}

	logger.Debug("Keyword hits: %d, vector hits: %d", len(lexHits), len(vecHits))
	return lexHits, vecHits, nil
}

// aboveFloor drops vector hits whose similarity does not exceed the
// configured floor, so unrelated chunks are not returned as matches.
func (s *SearchService) aboveFloor(hits []driven.VectorHit) []driven.VectorHit {
	kept := hits[:0]
	for _, h := range hits {
		if h.Similarity > s.cfg.MinSimilarity {
			kept = append(kept, h)
		}
	}
	return kept
}

// score hydrates hits from the catalog and computes sub-scores for mode.
// Hits whose chunk is unknown to the catalog are skipped.
func (s *SearchService) score(
	p *Partition, mode domain.SearchMode, lexHits []driven.SearchHit, vecHits []driven.VectorHit,
) []candidate {
	var scores map[string]fusedScore
	switch mode {
	case domain.SearchModeLexical:
		scores = make(map[string]fusedScore, len(lexHits))
		for id, v := range byTop(lexHits) {
			scores[id] = fusedScore{lexical: v, score: v}
		}
	case domain.SearchModeSemantic:
		scores = make(map[string]fusedScore, len(vecHits))
		for id, v := range cosineToUnit(vecHits) {
			scores[id] = fusedScore{semantic: v, score: v}
		}
	default:
		lexical := make(map[string]float64, len(lexHits))
		for _, h := range lexHits {
			lexical[h.ChunkID] = h.Score
		}
		scores = fuse(minMax(lexical), minMax(cosineToUnit(vecHits)), s.cfg.Alpha)
	}

	cands := make([]candidate, 0, len(scores))
	for id, sc := range scores {
		chunk, ok := p.catalog.Resolve(id)
		if !ok {
			continue
		}
		cands = append(cands, candidate{chunk: chunk, lexical: sc.lexical, semantic: sc.semantic, score: sc.score})
	}
	return cands
}

// embedQuery embeds the question, honouring the embed timeout.
func (s *SearchService) embedQuery(ctx context.Context, question string) ([]float32, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	return embedText(ctx, s.embedder, s.embedTimeout, question)
}

// Ask retrieves passages for question and asks the answer generator to
// respond from them alone. An empty retrieval is passed through; the
// generator decides how to answer without context.
func (s *SearchService) Ask(
	ctx context.Context, tenant, question string, opts domain.QueryOptions,
) (*domain.Answer, error) {
	if s.answerer == nil {
		return nil, domain.ErrLLMUnavailable
	}

	resp, err := s.Query(ctx, tenant, question, opts)
	if err != nil {
		return nil, err
	}

	logger.Section("Answer Generation")
	logger.Debug("Model: %s, sources: %d", s.answerer.ModelName(), len(resp.Results))

	text, err := s.answerer.Answer(ctx, question, resp.Results)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	return &domain.Answer{Text: text, Sources: resp.Results}, nil
}

func toResult(c candidate) domain.QueryResult {
	return domain.QueryResult{
		Chunk:         c.chunk,
		Content:       c.chunk.Content,
		Score:         c.score,
		LexicalScore:  c.lexical,
		SemanticScore: c.semantic,
		Citation: domain.Citation{
			DocumentName: c.chunk.DocumentName,
			ChunkIndex:   c.chunk.Index,
			Page:         c.chunk.Page,
			Section:      c.chunk.Section,
			StartOffset:  c.chunk.StartOffset,
			EndOffset:    c.chunk.EndOffset,
		},
	}
}

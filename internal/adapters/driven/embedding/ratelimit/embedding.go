// Package ratelimit throttles calls to a remote embedding service.
//
// Hosted embedders enforce request quotas. Wrapping the service in a
// token bucket spreads a large ingestion over time instead of failing it
// half way with quota errors.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService decorates another embedding service with a token bucket.
// Each Embed consumes one token; EmbedBatch consumes one token per request
// since the wrapped service sends the batch at once.
type EmbeddingService struct {
	next   driven.EmbeddingService
	bucket *rate.Limiter
}

// New wraps next so that at most requestsPerSecond calls are made on
// average, with bursts of up to burst calls. A burst below 1 means 1.
func New(next driven.EmbeddingService, requestsPerSecond float64, burst int) *EmbeddingService {
	if burst < 1 {
		burst = 1
	}
	return &EmbeddingService{
		next:   next,
		bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wrap returns next unchanged when requestsPerSecond is not positive.
func Wrap(next driven.EmbeddingService, requestsPerSecond float64) driven.EmbeddingService {
	if requestsPerSecond <= 0 {
		return next
	}
	return New(next, requestsPerSecond, 1)
}

// Embed waits for a token and then embeds text.
// A context that ends while waiting returns its error without calling through.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.next.Embed(ctx, text)
}

// EmbedBatch waits for a token and then embeds texts in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.next.EmbedBatch(ctx, texts)
}

func (s *EmbeddingService) wait(ctx context.Context) error {
	if err := s.bucket.Wait(ctx); err != nil {
		// rate.Limiter reports a deadline it cannot meet before it expires
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limit: %w", context.DeadlineExceeded)
	}
	return nil
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.next.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.next.ModelName()
}

// Ping checks the wrapped service without consuming a token.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close releases the wrapped service.
func (s *EmbeddingService) Close() error {
	return s.next.Close()
}

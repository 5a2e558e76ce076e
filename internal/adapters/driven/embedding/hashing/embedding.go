// Package hashing provides a deterministic, offline embedding service.
//
// Text is analysed with the same pipeline as the keyword index, then every
// term, adjacent term pair and character trigram is hashed to a signed
// coordinate (the "hashing trick"). Texts sharing vocabulary or word
// fragments point in similar directions; unrelated texts are close to
// orthogonal. No model, network or state is involved, so identical input
// always yields an identical vector.
package hashing

import (
	"context"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/custodia-labs/sercha-rag/internal/analysis"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 1024
	ModelName         = "feature-hashing-v1"
)

// Feature weights. Whole terms dominate; trigrams let inflections and
// compounds that the plural stemmer misses still overlap.
const (
	termWeight    = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// Config holds configuration for the hashing embedding service.
type Config struct {
	// Dimensions is the vector size (default: 1024).
	Dimensions int
}

// EmbeddingService embeds text by feature hashing. It is safe for concurrent use.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a new hashing embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: cfg.Dimensions}
}

// Embed returns the L2-normalised feature vector of text.
// The result is never the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.embed(text), nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.embed(text)
	}
	return out, nil
}

// feature is a hashed term, bigram or trigram and its occurrence count.
type feature struct {
	weight float64
	count  int
}

func (s *EmbeddingService) embed(text string) []float32 {
	features := make(map[string]*feature)
	add := func(key string, weight float64) {
		if f, ok := features[key]; ok {
			f.count++
			return
		}
		features[key] = &feature{weight: weight, count: 1}
	}

	tokens := analysis.Tokenize(text)
	for i, tok := range tokens {
		add("t:"+tok, termWeight)
		if i > 0 {
			add("b:"+tokens[i-1]+" "+tok, bigramWeight)
		}
		for _, tri := range trigrams(tok) {
			add("c:"+tri, trigramWeight)
		}
	}

	// Text made only of stopwords or punctuation still needs a direction.
	if len(features) == 0 {
		add("raw:"+strings.ToLower(strings.TrimSpace(text)), termWeight)
	}

	// Sorted keys fix the summation order, so colliding features add up
	// to the same bits on every call.
	vec := make([]float64, s.dimensions)
	for _, key := range slices.Sorted(maps.Keys(features)) {
		f := features[key]
		h := xxhash.Sum64String(key)
		idx := int(h % uint64(s.dimensions))
		sign := 1.0
		if h>>63 == 1 {
			sign = -1
		}
		// Sublinear frequency keeps repeated words from dominating
		vec[idx] += sign * f.weight * (1 + math.Log(float64(f.count)))
	}

	return normalise(vec)
}

// trigrams returns the padded character trigrams of a term.
func trigrams(term string) []string {
	runes := []rune("^" + term + "$")
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// normalise scales v to unit length. Colliding features that cancel out
// exactly fall back to a unit basis vector.
func normalise(v []float64) []float32 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, len(v))
	if sum == 0 {
		out[0] = 1
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds; there is nothing to reach.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

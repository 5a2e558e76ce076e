package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// Default engine settings.
const (
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200
	DefaultAlpha         = 0.5
	DefaultDocumentCap   = 3
	DefaultTopK          = 5
	DefaultMinCandidates = 20
	DefaultWidenFactor   = 3
	DefaultEmbedTimeout  = 30 * time.Second
)

// HashingMinSimilarity is the similarity floor for the hashing embedder.
// Shared trigrams and hash collisions give unrelated texts a small
// positive cosine, well below what one shared term produces.
const HashingMinSimilarity = 0.05

// AIProvider identifies an embedding or LLM service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderHashing is the built-in deterministic feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHashing, AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// MinSimilarity returns the default similarity floor for embeddings from p.
func (p AIProvider) MinSimilarity() float64 {
	if p == AIProviderHashing {
		return HashingMinSimilarity
	}
	return 0
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHashing:
		return "Feature hashing (built-in, offline)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size. Zero means the provider default.
	Dimensions int

	// RequestsPerSecond throttles embedder calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds answer generator configuration.
// Only Ollama is supported; an empty provider disables answer generation.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
}

// IsConfigured returns true if an answer generator is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider == AIProviderOllama
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// ChunkOverlap is the number of bytes shared by consecutive chunks.
	ChunkOverlap int

	// BoundaryTolerance is how far back from the hard limit a boundary
	// hint is accepted. Zero means ChunkSize/5.
	BoundaryTolerance int

	// BoundaryHints are extra preferred split positions (byte offsets).
	BoundaryHints []int
}

// Tolerance returns the effective boundary window.
func (c ChunkingConfig) Tolerance() int {
	if c.BoundaryTolerance > 0 {
		return c.BoundaryTolerance
	}
	return c.ChunkSize / 5
}

// Validate reports malformed chunking settings.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrValidation, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrValidation, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrValidation, c.ChunkOverlap, c.ChunkSize)
	}
	if c.BoundaryTolerance < 0 || c.BoundaryTolerance > c.ChunkSize {
		return fmt.Errorf("%w: boundary tolerance %d out of range", ErrValidation, c.BoundaryTolerance)
	}
	return nil
}

// RetrievalConfig configures the query planner.
type RetrievalConfig struct {
	// Alpha weights the lexical sub-score in hybrid fusion.
	Alpha float64

	// DocumentCap limits how many results one document may supply.
	DocumentCap int

	// DefaultK is used when a query does not specify k.
	DefaultK int

	// MinCandidates is the lower bound of the widened candidate pool.
	MinCandidates int

	// WidenFactor multiplies k to size the candidate pool.
	WidenFactor int

	// MinSimilarity is the raw cosine a vector hit must exceed to count as a match.
	// Unless set explicitly it follows the embedding provider.
	MinSimilarity float64
}

// CandidatePool returns the widened pool size for k.
func (c RetrievalConfig) CandidatePool(k int) int {
	return max(k*c.WidenFactor, c.MinCandidates)
}

// Validate reports malformed retrieval settings.
func (c RetrievalConfig) Validate() error {
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be within [0,1], got %g", ErrValidation, c.Alpha)
	}
	if c.DocumentCap < 1 {
		return fmt.Errorf("%w: document cap must be at least 1, got %d", ErrValidation, c.DocumentCap)
	}
	if c.DefaultK < 1 {
		return fmt.Errorf("%w: default k must be at least 1, got %d", ErrValidation, c.DefaultK)
	}
	if c.MinCandidates < 1 || c.WidenFactor < 1 {
		return fmt.Errorf("%w: candidate pool settings must be positive", ErrValidation)
	}
	if c.MinSimilarity < -1 || c.MinSimilarity >= 1 {
		return fmt.Errorf("%w: min similarity must be within [-1,1), got %g", ErrValidation, c.MinSimilarity)
	}
	return nil
}

// EngineConfig is the complete, validated configuration of the retrieval engine.
type EngineConfig struct {
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig

	// EmbedTimeout bounds each embedder call.
	EmbedTimeout time.Duration

	// DataDir holds the SQLite database. Empty keeps everything in memory.
	DataDir string

	Embedding EmbeddingSettings
	LLM       LLMSettings
}

// DefaultEngineConfig returns the configuration used when nothing is set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Chunking: ChunkingConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			Alpha:         DefaultAlpha,
			DocumentCap:   DefaultDocumentCap,
			DefaultK:      DefaultTopK,
			MinCandidates: DefaultMinCandidates,
			WidenFactor:   DefaultWidenFactor,
			MinSimilarity: AIProviderHashing.MinSimilarity(),
		},
		EmbedTimeout: DefaultEmbedTimeout,
		Embedding: EmbeddingSettings{
			Provider: AIProviderHashing,
		},
	}
}

// Validate reports the first invalid setting.
func (c EngineConfig) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("%w: embed timeout must be positive", ErrValidation)
	}
	if c.Embedding.Provider != "" && !c.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not usable", ErrValidation, c.Embedding.Provider)
	}
	return nil
}

package services

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// envPrefix prefixes environment overrides, e.g. SERCHA_RETRIEVAL_ALPHA.
const envPrefix = "SERCHA_"

// envOpenAIKey is honoured when no embedding API key is configured.
//
//nolint:gosec // G101: environment variable name, not a credential.
const envOpenAIKey = "OPENAI_API_KEY"

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindDuration
)

// setting describes one configurable key and where it lands in the config.
type setting struct {
	kind  settingKind
	apply func(cfg *domain.EngineConfig, v any)
}

func str(f func(*domain.EngineConfig, string)) setting {
	return setting{kindString, func(c *domain.EngineConfig, v any) { f(c, v.(string)) }}
}

func integer(f func(*domain.EngineConfig, int)) setting {
	return setting{kindInt, func(c *domain.EngineConfig, v any) { f(c, v.(int)) }}
}

func float(f func(*domain.EngineConfig, float64)) setting {
	return setting{kindFloat, func(c *domain.EngineConfig, v any) { f(c, v.(float64)) }}
}

func duration(f func(*domain.EngineConfig, time.Duration)) setting {
	return setting{kindDuration, func(c *domain.EngineConfig, v any) { f(c, v.(time.Duration)) }}
}

// keyMinSimilarity defaults per embedding provider when unset.
const keyMinSimilarity = "retrieval.min_similarity"

// engineSettings maps config keys onto domain.EngineConfig.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
var engineSettings = map[string]setting{
	"chunking.chunk_size":         integer(func(c *domain.EngineConfig, v int) { c.Chunking.ChunkSize = v }),
	"chunking.chunk_overlap":      integer(func(c *domain.EngineConfig, v int) { c.Chunking.ChunkOverlap = v }),
	"chunking.boundary_tolerance": integer(func(c *domain.EngineConfig, v int) { c.Chunking.BoundaryTolerance = v }),

	"retrieval.alpha":          float(func(c *domain.EngineConfig, v float64) { c.Retrieval.Alpha = v }),
	"retrieval.document_cap":   integer(func(c *domain.EngineConfig, v int) { c.Retrieval.DocumentCap = v }),
	"retrieval.top_k":          integer(func(c *domain.EngineConfig, v int) { c.Retrieval.DefaultK = v }),
	"retrieval.min_candidates": integer(func(c *domain.EngineConfig, v int) { c.Retrieval.MinCandidates = v }),
	"retrieval.widen_factor":   integer(func(c *domain.EngineConfig, v int) { c.Retrieval.WidenFactor = v }),
	keyMinSimilarity:           float(func(c *domain.EngineConfig, v float64) { c.Retrieval.MinSimilarity = v }),

	"embedding.provider": str(func(c *domain.EngineConfig, v string) {
		c.Embedding.Provider = domain.AIProvider(strings.ToLower(v))
	}),
	"embedding.model":               str(func(c *domain.EngineConfig, v string) { c.Embedding.Model = v }),
	"embedding.base_url":            str(func(c *domain.EngineConfig, v string) { c.Embedding.BaseURL = v }),
	"embedding.api_key":             str(func(c *domain.EngineConfig, v string) { c.Embedding.APIKey = v }),
	"embedding.dimensions":          integer(func(c *domain.EngineConfig, v int) { c.Embedding.Dimensions = v }),
	"embedding.requests_per_second": float(func(c *domain.EngineConfig, v float64) { c.Embedding.RequestsPerSecond = v }),
	"embedding.timeout":             duration(func(c *domain.EngineConfig, v time.Duration) { c.EmbedTimeout = v }),

	"llm.provider": str(func(c *domain.EngineConfig, v string) {
		c.LLM.Provider = domain.AIProvider(strings.ToLower(v))
	}),
	"llm.model":    str(func(c *domain.EngineConfig, v string) { c.LLM.Model = v }),
	"llm.base_url": str(func(c *domain.EngineConfig, v string) { c.LLM.BaseURL = v }),

	"storage.data_dir": str(func(c *domain.EngineConfig, v string) { c.DataDir = v }),
}

// SettingsService resolves the engine configuration from a ConfigStore
// and the process environment.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Engine returns the resolved and validated engine configuration.
func (s *SettingsService) Engine() (domain.EngineConfig, error) {
	cfg := domain.DefaultEngineConfig()
	explicit := make(map[string]bool)

	for _, key := range s.Keys() {
		st := engineSettings[key]

		if raw, ok := s.configStore.Get(key); ok {
			v, err := convert(st.kind, raw)
			if err != nil {
				return cfg, fmt.Errorf("%s: %w", key, err)
			}
			st.apply(&cfg, v)
			explicit[key] = true
		}

		if raw, ok := s.lookupEnv(EnvName(key)); ok && raw != "" {
			v, err := convert(st.kind, raw)
			if err != nil {
				return cfg, fmt.Errorf("%s: %w", EnvName(key), err)
			}
			logger.Debug("Config %s overridden by environment", key)
			st.apply(&cfg, v)
			explicit[key] = true
		}
	}

	if !explicit[keyMinSimilarity] {
		cfg.Retrieval.MinSimilarity = cfg.Embedding.Provider.MinSimilarity()
	}

	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == domain.AIProviderOpenAI {
		if key, ok := s.lookupEnv(envOpenAIKey); ok {
			cfg.Embedding.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", s.configStore.Path(), err)
	}
	return cfg, nil
}

// Set parses value for key, checks the configuration it produces and
// persists it. An invalid value is not stored.
func (s *SettingsService) Set(key, value string) error {
	st, ok := engineSettings[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrValidation, key)
	}

	v, err := convert(st.kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	cfg, err := s.Engine()
	if err != nil {
		return err
	}
	st.apply(&cfg, v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Durations are stored in their text form, e.g. "45s"
	stored := v
	if d, ok := v.(time.Duration); ok {
		stored = d.String()
	}
	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the configurable keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(engineSettings))
	for k := range engineSettings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Path returns the location of the config file.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// EnvVar returns the environment variable that overrides key.
func (s *SettingsService) EnvVar(key string) string {
	return EnvName(key)
}

// convert coerces a decoded config value or a string from the command
// line or environment into the Go type of kind.
//
//nolint:gocyclo // One case per kind and source type
func convert(kind settingKind, raw any) (any, error) {
	switch kind {
	case kindString:
		if v, ok := raw.(string); ok {
			return strings.TrimSpace(v), nil
		}

	case kindInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", domain.ErrValidation, v)
			}
			return n, nil
		}

	case kindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", domain.ErrValidation, v)
			}
			return f, nil
		}

	case kindDuration:
		switch v := raw.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a duration", domain.ErrValidation, v)
			}
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: unexpected value %v (%T)", domain.ErrValidation, raw, raw)
}

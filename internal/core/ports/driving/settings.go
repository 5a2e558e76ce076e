package driving

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// SettingsService resolves and edits the engine configuration.
type SettingsService interface {
	// Engine returns the validated configuration: defaults, overridden by
	// the config file, overridden by SERCHA_* environment variables.
	Engine() (domain.EngineConfig, error)

	// Set parses value for a known key, validates the resulting
	// configuration and persists it.
	Set(key, value string) error

	// Keys lists the configurable keys in sorted order.
	Keys() []string

	// Path returns the location of the config file.
	Path() string

	// EnvVar returns the environment variable that overrides key.
	EnvVar(key string) string
}

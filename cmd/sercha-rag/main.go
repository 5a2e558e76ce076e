// Command sercha-rag is a multi-tenant hybrid retrieval engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("loading .env: %v", err)
	}

	configStore, err := openConfigStore()
	if err != nil {
		return err
	}
	settings := services.NewSettingsService(configStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)

	cfg, err := settings.Engine()
	if err != nil {
		// Let the settings commands run so a bad value can be fixed.
		logger.Error(err, "invalid configuration, using defaults")
		cfg = domain.DefaultEngineConfig()
	}

	app, err := build(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	cli.SetServices(cli.Services{
		Document: app.documents,
		Search:   app.search,
		Tenant:   app.tenants,
		Settings: settings,
		Metrics:  app.metrics,
	})

	return cli.ExecuteContext(ctx)
}

// openConfigStore opens SERCHA_CONFIG, else config.toml under SERCHA_HOME
// or ~/.sercha. An explicit path must open; the default location falls back
// to an in-memory store so a read-only home does not stop the engine.
func openConfigStore() (driven.ConfigStore, error) {
	if path := os.Getenv("SERCHA_CONFIG"); path != "" {
		store, err := file.OpenConfigStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		return store, nil
	}
	store, err := file.NewConfigStore(os.Getenv("SERCHA_HOME"))
	if err != nil {
		logger.Warn("config file unavailable, settings will not persist: %v", err)
		return memory.NewConfigStore(), nil
	}
	return store, nil
}

// Package cli provides the cobra command tree for the sercha-rag binary.
//
// Commands talk to the core only through driving ports, which main wires
// in with SetServices before calling Execute.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// DefaultTenant is used when neither --tenant nor SERCHA_TENANT is set.
const DefaultTenant = "default"

// version is set by SetVersion from build flags.
var version = "dev"

// Global flags.
var (
	verbose    bool
	jsonOutput bool
	tenantFlag string
)

// Services injected by main.
var (
	documentService driving.DocumentService
	searchService   driving.SearchService
	tenantService   driving.TenantService
	settingsService driving.SettingsService
	metricsHandler  http.Handler
)

// Services groups the driving ports the commands use.
type Services struct {
	Document driving.DocumentService
	Search   driving.SearchService
	Tenant   driving.TenantService
	Settings driving.SettingsService

	// Metrics serves Prometheus metrics beside the MCP HTTP endpoint. Optional.
	Metrics http.Handler
}

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Multi-tenant hybrid document retrieval",
	Long: `sercha-rag ingests plain text documents into per-tenant collections and
answers questions with ranked, cited passages.

Retrieval combines keyword (BM25) and semantic (embedding) search. Every
command operates on one tenant, chosen with --tenant or SERCHA_TENANT.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVarP(&tenantFlag, "tenant", "t", envOr("SERCHA_TENANT", DefaultTenant), "tenant collection to operate on")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices injects the core services.
func SetServices(s Services) {
	documentService = s.Document
	searchService = s.Search
	tenantService = s.Tenant
	settingsService = s.Settings
	metricsHandler = s.Metrics
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context, so commands such
// as watch and mcp serve stop when it is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// currentTenant returns the tenant selected for this invocation.
func currentTenant() (string, error) {
	t := strings.TrimSpace(tenantFlag)
	if t == "" {
		return "", fmt.Errorf("%w: tenant must not be empty", domain.ErrValidation)
	}
	return t, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

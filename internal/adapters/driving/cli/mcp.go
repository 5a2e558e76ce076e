package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server is bound to the tenant selected with --tenant; assistants
cannot reach other tenants. By default it communicates over stdio.

Use --port to serve HTTP instead. The MCP endpoint is then /mcp and,
when metrics are enabled, Prometheus metrics are served at /metrics.
In stdio mode use --metrics-addr to expose metrics separately.

Examples:
  # Stdio mode (default, for desktop assistants)
  sercha-rag mcp serve --tenant acme

  # HTTP mode
  sercha-rag mcp serve --tenant acme --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "sercha": {
        "command": "/path/to/sercha-rag",
        "args": ["mcp", "serve", "--tenant", "acme"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address in stdio mode, e.g. :9090")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("getting metrics-addr flag: %w", err)
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	ports := &mcp.Ports{
		Search:   searchService,
		Document: documentService,
		Tenant:   tenantService,
	}

	server, err := mcp.NewServer(ports, mcp.Options{Tenant: tenant})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if port > 0 {
		extra := map[string]http.Handler{}
		if metricsHandler != nil {
			extra["/metrics"] = metricsHandler
		}
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s/mcp\n", addr)
		return server.RunHTTP(ctx, addr, extra)
	}

	if metricsAddr != "" && metricsHandler != nil {
		go serveMetrics(ctx, metricsAddr, metricsHandler)
	}
	return server.Run(ctx)
}

// serveMetrics runs a metrics-only HTTP server until ctx is done.
func serveMetrics(ctx context.Context, addr string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(err, "metrics server on %s", addr)
	}
}

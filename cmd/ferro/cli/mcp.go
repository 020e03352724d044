package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	fmcp "github.com/ferrostack/ferro/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the synchronized
catalog as tools and resources for AI agents like Claude. Supports stdio
(default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with Claude Desktop or other MCP clients.`,
		Example: `  ferro mcp                             # stdio mode (for Claude Desktop)
  ferro mcp --transport http --port 3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	models, routes, closeSource, err := buildRegistries(cfg)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	defer closeSource()

	orch, closeCache, err := buildOrchestrator(cfg, models, routes, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	ctx := context.Background()
	orch.Restore(ctx)

	// Populate the snapshot so discovery tools have data before the first
	// explicit ferro_sync call.
	if _, err := orch.Sync(ctx); err != nil {
		logger.Warn("initial sync failed, catalog starts empty", "error", err)
	}

	mcpSrv := fmcp.NewMCPServer(orch, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}

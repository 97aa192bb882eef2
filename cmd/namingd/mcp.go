package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/fyrsmithlabs/namingd/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools on stdin/stdout",
		Long: `Serve the resolve_name, search_catalog, similar_morphemes and
request_field tools over the MCP stdio transport.

Logs go to stderr; stdout carries the protocol. The index is not rebuilt
in this mode; run "namingd resync" or a server with resync_on_start for that.

Example agent configuration:
  {"command": "namingd", "args": ["mcp", "--config", "/etc/namingd.yaml"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runMCP(ctx, opts)
		},
	}
}

func runMCP(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := loadConfig(opts.configPath, os.Stderr)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	if err := a.standards.Bootstrap(ctx, false); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	srv, err := mcpserver.NewServer(&mcpserver.Config{
		Name:    "namingd",
		Version: version,
		Logger:  logger,
	}, a.registry)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

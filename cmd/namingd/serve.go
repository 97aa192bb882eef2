package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/namingd/internal/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the namingd HTTP server.

On startup the index collections are created, the vocabulary is seeded
from the catalog and, when mirror.resync_on_start is set, both
collections are rebuilt. SIGINT or SIGTERM triggers a graceful shutdown.

Examples:
  namingd serve
  NAMINGD_SERVER_HTTP_PORT=9090 namingd serve --config namingd.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

// runServe blocks until ctx is cancelled or the listener fails.
func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := loadConfig(opts.configPath, os.Stdout)
	if err != nil {
		return err
	}

	logger.Info("starting namingd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider))

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	if err := a.standards.Bootstrap(ctx, cfg.Mirror.ResyncOnStart); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if err := a.watchDictionary(ctx); err != nil {
		logger.Warn("dictionary watch disabled", zap.Error(err))
	}

	srv, err := httpserver.NewServer(a.registry, logger, &httpserver.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		BodyLimit:  cfg.Server.BodyLimit,
		RateLimit:  cfg.Server.RateLimit,
		RateBurst:  cfg.Server.RateBurst,
		AdminToken: cfg.Auth.AdminToken.Value(),
	})
	if err != nil {
		return err
	}
	if !cfg.Auth.AdminToken.IsSet() {
		logger.Warn("auth.admin_token is not set; admin API is unauthenticated and bulk clear routes are disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

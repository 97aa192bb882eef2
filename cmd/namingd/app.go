package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/config"
	"github.com/fyrsmithlabs/namingd/internal/embeddings"
	"github.com/fyrsmithlabs/namingd/internal/events"
	"github.com/fyrsmithlabs/namingd/internal/logging"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/resolver"
	"github.com/fyrsmithlabs/namingd/internal/search"
	"github.com/fyrsmithlabs/namingd/internal/services"
	"github.com/fyrsmithlabs/namingd/internal/standards"
	"github.com/fyrsmithlabs/namingd/internal/telemetry"
	"github.com/fyrsmithlabs/namingd/internal/vectorstore"
	"github.com/fyrsmithlabs/namingd/internal/vocabulary"
)

// app holds every long-lived dependency of a namingd process.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     *catalog.GormStore
	gateway   *embeddings.Gateway
	index     vectorstore.Index
	publisher events.Publisher
	vocab     *vocabulary.Vocabulary
	mirror    *mirror.Mirror
	standards *standards.Service
	registry  services.Registry

	closers []func() error
}

// loadConfig reads configuration and builds the process logger writing to w.
func loadConfig(path string, w io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	l, err := logging.NewLoggerTo(&cfg.Logging, w)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l.Underlying(), nil
}

// newApp connects to the catalog, the embedding provider, the vector index
// and the event bus, then wires the services on top. A nil provider is
// built from cfg.Embeddings.
//
// On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, provider embeddings.Provider) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.telemetry, err = telemetry.New(ctx, &cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		return a.telemetry.Shutdown(context.Background())
	})

	a.store, err = catalog.Open(catalog.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN.Value(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Duration(),
		AutoMigrate:     cfg.Database.AutoMigrate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	if provider == nil {
		provider, err = embeddings.NewProvider(embeddings.ProviderConfig{
			Provider:  cfg.Embeddings.Provider,
			Model:     cfg.Embeddings.Model,
			Dimension: cfg.Embeddings.Dimension,
			BaseURL:   cfg.Embeddings.BaseURL,
			APIKey:    cfg.Embeddings.APIKey.Value(),
			CacheDir:  cfg.Embeddings.CacheDir,
			Timeout:   cfg.Embeddings.Timeout.Duration(),
			BatchSize: cfg.Embeddings.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding provider: %w", err)
		}
	}
	a.gateway, err = embeddings.NewGateway(provider,
		embeddings.WithLogger(logger),
		embeddings.WithModelName(cfg.Embeddings.Model),
	)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.gateway.Close)

	a.index, err = vectorstore.NewIndex(cfg.VectorStore, a.gateway.Dimension(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	a.closers = append(a.closers, a.index.Close)

	a.publisher = newPublisher(cfg.Events, logger)
	a.closers = append(a.closers, a.publisher.Close)

	a.mirror = mirror.New(a.index, a.store, a.gateway,
		mirror.WithPageSize(cfg.Mirror.PageSize),
		mirror.WithPublisher(a.publisher),
		mirror.WithLogger(logger),
	)

	a.vocab = vocabulary.New()
	if cfg.Vocabulary.DictFile != "" {
		n, err := a.vocab.LoadFile(cfg.Vocabulary.DictFile)
		if err != nil {
			return nil, err
		}
		logger.Info("dictionary loaded", zap.String("path", cfg.Vocabulary.DictFile), zap.Int("terms", n))
	} else {
		n, err := a.vocab.LoadBuiltin()
		if err != nil {
			return nil, err
		}
		logger.Info("builtin dictionary loaded", zap.Int("terms", n))
	}

	a.standards = standards.NewService(a.store, a.mirror, a.vocab,
		standards.WithCatalogWeight(cfg.Vocabulary.CatalogWeight),
		standards.WithLogger(logger),
	)
	a.registry = services.NewRegistry(services.Options{
		Standards: a.standards,
		Resolver:  resolver.New(a.vocab, a.store, logger),
		Search: search.NewRouter(a.store, a.mirror, a.gateway,
			search.WithLexicalLimit(cfg.Search.LexicalLimit),
			search.WithSemanticK(cfg.Search.SemanticK),
			search.WithLogger(logger),
		),
		Mirror:  a.mirror,
		Catalog: a.store,
	})
	return a, nil
}

// newPublisher connects to NATS when events are enabled. A broker that is
// down at startup disables events rather than the process.
func newPublisher(cfg config.EventsConfig, logger *zap.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NopPublisher{}
	}
	p, err := events.NewNATSPublisher(cfg.URL, cfg.SubjectPrefix, logger)
	if err != nil {
		logger.Warn("event publishing disabled", zap.String("url", cfg.URL), zap.Error(err))
		return events.NopPublisher{}
	}
	return p
}

// watchDictionary reloads the dictionary file on change until ctx is done.
func (a *app) watchDictionary(ctx context.Context) error {
	if !a.cfg.Vocabulary.Watch || a.cfg.Vocabulary.DictFile == "" {
		return nil
	}
	return a.vocab.Watch(ctx, a.cfg.Vocabulary.DictFile, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

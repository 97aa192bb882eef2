package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Gateway serializes access to a single embedding provider.
//
// At most one provider call is in flight process-wide. Waiters are served
// first come, first served, and a batch holds the gateway exactly once for
// all of its texts. The gateway is released when the provider call returns,
// including on error or panic.
type Gateway struct {
	provider Provider
	model    string
	sem      *semaphore.Weighted
	metrics  *Metrics
	logger   *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithModelName labels metrics with the model name.
func WithModelName(name string) GatewayOption {
	return func(g *Gateway) { g.model = name }
}

// NewGateway wraps provider. The provider's Dimension must be positive.
func NewGateway(provider Provider, opts ...GatewayOption) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidConfig)
	}
	if provider.Dimension() <= 0 {
		return nil, fmt.Errorf("%w: provider dimension must be positive", ErrInvalidConfig)
	}
	g := &Gateway{
		provider: provider,
		sem:      semaphore.NewWeighted(1),
		model:    "unknown",
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil, g.logger)
	}
	return g, nil
}

// Dimension is the width of every vector the gateway returns.
func (g *Gateway) Dimension() int {
	return g.provider.Dimension()
}

// EmbedBatch embeds texts in one provider call. The result has the same
// length and order as texts.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text %d is blank", ErrEmptyInput, i)
		}
	}

	var vectors [][]float32
	err := g.withLock(ctx, "embed_documents", len(texts), func() error {
		var err error
		vectors, err = g.provider.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := g.checkWidth(v); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vectors, nil
}

// Embed embeds a single query text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	var vector []float32
	err := g.withLock(ctx, "embed_query", 1, func() error {
		var err error
		vector, err = g.provider.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := g.checkWidth(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// Close releases the provider.
func (g *Gateway) Close() error {
	return g.provider.Close()
}

func (g *Gateway) withLock(ctx context.Context, op string, n int, call func() error) (err error) {
	queued := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	g.metrics.RecordWait(ctx, time.Since(queued))

	start := time.Now()
	defer func() {
		g.metrics.RecordGeneration(ctx, g.model, op, time.Since(start), n, err)
	}()

	err = call()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	g.logger.Warn("embedding call failed", zap.String("operation", op), zap.Int("texts", n), zap.Error(err))
	if errors.Is(err, ErrEmbeddingFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
}

func (g *Gateway) checkWidth(v []float32) error {
	if len(v) != g.provider.Dimension() {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrEmbeddingFailed, ErrDimensionMismatch, len(v), g.provider.Dimension())
	}
	return nil
}

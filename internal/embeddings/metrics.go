package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/namingd/internal/embeddings"

var (
	latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	batchBuckets   = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500}
)

// Metrics are the gateway instruments. A nil instrument is skipped, so a
// meter that rejects one does not disable the others.
type Metrics struct {
	duration  metric.Float64Histogram
	wait      metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics registers the instruments on meter. A nil meter means the
// global one.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	check := func(name string, err error) {
		if err != nil {
			logger.Warn("embedding instrument not registered", zap.String("instrument", name), zap.Error(err))
		}
	}

	var m Metrics
	var err error
	m.duration, err = meter.Float64Histogram("namingd.embedding.duration_seconds",
		metric.WithDescription("Provider call latency per model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	check("duration_seconds", err)

	m.wait, err = meter.Float64Histogram("namingd.embedding.wait_seconds",
		metric.WithDescription("Time a caller queued for a gateway slot"),
		metric.WithUnit("s"))
	check("wait_seconds", err)

	m.batchSize, err = meter.Int64Histogram("namingd.embedding.batch_size",
		metric.WithDescription("Texts sent per provider call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(batchBuckets...))
	check("batch_size", err)

	m.errors, err = meter.Int64Counter("namingd.embedding.errors_total",
		metric.WithDescription("Failed provider calls per model and operation"),
		metric.WithUnit("{error}"))
	check("errors_total", err)
	return &m
}

func (m *Metrics) RecordWait(ctx context.Context, d time.Duration) {
	if m.wait != nil {
		m.wait.Record(ctx, d.Seconds())
	}
}

// RecordGeneration records one provider call of batch texts.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, d time.Duration, batch int, err error) {
	set := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("model", model),
		attribute.String("operation", operation),
	))
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), set)
	}
	if m.batchSize != nil && batch > 0 {
		m.batchSize.Record(ctx, int64(batch), set)
	}
	if m.errors != nil && err != nil {
		m.errors.Add(ctx, 1, set)
	}
}

package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Telemetry installs OTLP tracer and meter providers as the otel globals.
//
// An exporter that cannot be created does not stop the process: that
// signal stays on the no-op global and Degraded reports true.
type Telemetry struct {
	config   *Config
	logger   *zap.Logger
	shutdown []func(context.Context) error
	degraded bool
}

// New validates cfg and, when telemetry is enabled, starts exporting.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{config: cfg, logger: logger}
	if !cfg.Enabled {
		return t, nil
	}

	res := serviceResource(cfg)
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.degrade("traces", err)
	} else {
		otel.SetTracerProvider(tp)
		t.shutdown = append(t.shutdown, tp.Shutdown)
	}
	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.degrade("metrics", err)
	} else {
		otel.SetMeterProvider(mp)
		t.shutdown = append(t.shutdown, mp.Shutdown)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("telemetry exporting",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
		zap.Bool("degraded", t.degraded))
	return t, nil
}

// Degraded reports whether a signal failed to start.
func (t *Telemetry) Degraded() bool {
	return t != nil && t.degraded
}

// Shutdown flushes pending spans and metrics. Without a deadline on ctx it
// waits at most the configured shutdown_timeout.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || len(t.shutdown) == 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config.ShutdownWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownWait)
		defer cancel()
	}
	var errs []error
	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) degrade(signal string, err error) {
	t.degraded = true
	t.logger.Warn("telemetry signal disabled", zap.String("signal", signal), zap.Error(err))
}

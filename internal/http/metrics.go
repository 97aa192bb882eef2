package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/namingd/internal/http"

// HTTPMetrics records request counts, latency and in-flight requests.
type HTTPMetrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	partial  metric.Int64Counter
}

// NewHTTPMetrics creates HTTPMetrics on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(instrumentationName), logger)
}

func newHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HTTPMetrics{meter: meter, logger: logger}

	var err error
	m.requests, err = meter.Int64Counter(
		"namingd.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status class."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"namingd.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.inFlight, err = meter.Int64UpDownCounter(
		"namingd.http.active_requests",
		metric.WithDescription("Requests currently being served."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	m.partial, err = meter.Int64Counter(
		"namingd.http.partial_mutations_total",
		metric.WithDescription("Admin mutations answered with X-Mirror-Sync: partial."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create partial mutation counter", zap.Error(err))
	}
	return m
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				// The error handler has not run yet.
				status = statusFor(err)
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := attribute.String("route", normalizePath(c.Path()))
			method := attribute.String("method", c.Request().Method)

			if m.requests != nil {
				m.requests.Add(ctx, 1, metric.WithAttributes(method, route, attribute.String("status", statusClass(status))))
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(method, route))
			}
			if m.partial != nil && c.Response().Header().Get(HeaderMirrorSync) != "" {
				m.partial.Add(ctx, 1, metric.WithAttributes(route))
			}
			return err
		}
	}
}

// normalizePath returns the route template echo matched, so every
// /api/admin/morphemes/:id request shares one label value. Unmatched
// requests share another.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		code = http.StatusInternalServerError
	}
	return strconv.Itoa(code/100) + "xx"
}

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(instrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/api/admin/morphemes/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})
	e.DELETE("/api/admin/morphemes/:id", func(c echo.Context) error {
		c.Response().Header().Set(HeaderMirrorSync, "partial")
		return c.NoContent(http.StatusOK)
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/morphemes/1"},
		{http.MethodGet, "/api/admin/morphemes/2"},
		{http.MethodDelete, "/api/admin/morphemes/3"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			switch md.Name {
			case "namingd.http.requests_total":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
					route, _ := dp.Attributes.Value("route")
					assert.Equal(t, "/api/admin/morphemes/:id", route.AsString())
				}
				assert.Equal(t, int64(3), total)
			case "namingd.http.request_duration_seconds":
				hist, ok := md.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				var count uint64
				for _, dp := range hist.DataPoints {
					count += dp.Count
				}
				assert.Equal(t, uint64(3), count)
			case "namingd.http.partial_mutations_total":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["namingd.http.requests_total"])
	assert.True(t, found["namingd.http.request_duration_seconds"])
	assert.True(t, found["namingd.http.partial_mutations_total"])
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unmatched", normalizePath(""))
	assert.Equal(t, "/api/admin/composites/:id", normalizePath("/api/admin/composites/:id"))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusCreated))
	assert.Equal(t, "5xx", statusClass(http.StatusServiceUnavailable))
	assert.Equal(t, "5xx", statusClass(0))
}

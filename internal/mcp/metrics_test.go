package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/embeddings"
	"github.com/fyrsmithlabs/namingd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestMetrics_Track(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), zap.NewNop())
	ctx := context.Background()

	m.track(ctx, "resolve_name")(nil)
	m.track(ctx, "resolve_name")(fmt.Errorf("x: %w", catalog.ErrValidation))
	pending := m.track(ctx, "search_catalog")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["namingd.mcp.tool.invocations_total"])
	assert.Equal(t, int64(1), sums["namingd.mcp.tool.errors_total"])
	assert.Equal(t, int64(1), sums["namingd.mcp.tool.active_requests"])
	pending(nil)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", catalog.ErrValidation), "validation_error"},
		{fmt.Errorf("x: %w", catalog.ErrNotFound), "not_found"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("x: %w", embeddings.ErrEmbeddingFailed), "embedding_error"},
		{fmt.Errorf("x: %w", catalog.ErrStoreUnavailable), "storage_error"},
		{fmt.Errorf("x: %w", vectorstore.ErrConnectionFailed), "storage_error"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err))
	}
}

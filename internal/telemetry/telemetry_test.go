package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, false},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"bad rate", func(c *Config) { c.Enabled = true; c.SampleRate = 2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.False(t, tel.Degraded())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestCollectorFor(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Endpoint = "https://otel:4318"
	cfg.Protocol = "http/protobuf"
	assert.Equal(t, collector{addr: "otel:4318", http: true, insecure: true}, collectorFor(cfg))

	cfg.Endpoint = "otel:4317"
	cfg.Protocol = "grpc"
	cfg.Insecure = false
	assert.Equal(t, collector{addr: "otel:4317"}, collectorFor(cfg))
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()
	_, span := tt.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attribute.String("collection", "morphemes"))
	span.End()

	attrs, ok := tt.SpanAttributes("op")
	require.True(t, ok)
	assert.Equal(t, "morphemes", attrs["collection"])
	_, ok = tt.SpanAttributes("missing")
	assert.False(t, ok)

	counter, err := tt.Meter("test").Int64Counter("ops")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	rm, err := tt.Collect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, MetricNames(rm), "ops")
}

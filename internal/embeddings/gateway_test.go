package embeddings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/namingd/internal/embeddings/mock"
	"github.com/fyrsmithlabs/namingd/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, p *mock.Provider) *Gateway {
	t.Helper()
	g, err := NewGateway(p)
	require.NoError(t, err)
	return g
}

func TestNewGateway_Validation(t *testing.T) {
	_, err := NewGateway(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewGateway(mock.New(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGateway_EmbedBatch(t *testing.T) {
	p := mock.New(16)
	g := newTestGateway(t, p)

	texts := []string{"价格", "日期", "价格 日期"}
	vectors, err := g.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Len(t, v, 16)
		assert.Equal(t, mock.Vector(texts[i], 16), v)
	}
	assert.Equal(t, 1, p.Calls(), "one provider call per batch")
}

func TestGateway_InputValidation(t *testing.T) {
	g := newTestGateway(t, mock.New(8))

	_, err := g.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = g.EmbedBatch(context.Background(), []string{"ok", "  "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = g.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestGateway_ProviderFailure(t *testing.T) {
	p := mock.New(8)
	p.Err = errors.New("onnx runtime exploded")
	g := newTestGateway(t, p)

	_, err := g.Embed(context.Background(), "价格")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	_, err = g.EmbedBatch(context.Background(), []string{"价格"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestGateway_ShapeChecks(t *testing.T) {
	p := mock.New(8)
	g := newTestGateway(t, p)

	p.EmbedQueryFunc = func(context.Context, string) ([]float32, error) {
		return make([]float32, 4), nil
	}
	_, err := g.Embed(context.Background(), "价格")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	p.EmbedDocumentsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{make([]float32, 8)}, nil
	}
	_, err = g.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestGateway_MutualExclusion(t *testing.T) {
	p := mock.New(8)
	p.EmbedQueryFunc = func(_ context.Context, text string) ([]float32, error) {
		time.Sleep(2 * time.Millisecond)
		return mock.Vector(text, 8), nil
	}
	g := newTestGateway(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Embed(context.Background(), "价格")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, p.Calls())
	assert.Equal(t, 1, p.MaxConcurrent())
}

func TestGateway_CancelWhileQueued(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p := mock.New(8)
	p.EmbedQueryFunc = func(_ context.Context, text string) ([]float32, error) {
		close(started)
		<-release
		return mock.Vector(text, 8), nil
	}
	g := newTestGateway(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := g.Embed(context.Background(), "holder")
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Embed(ctx, "waiter")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Calls(), "queued caller never reached the provider")

	close(release)
	require.NoError(t, <-done)

	// The gateway is free again after the holder finishes.
	p.EmbedQueryFunc = nil
	_, err = g.Embed(context.Background(), "after")
	assert.NoError(t, err)
}

func TestGateway_ReleasesOnPanic(t *testing.T) {
	p := mock.New(8)
	p.EmbedQueryFunc = func(context.Context, string) ([]float32, error) {
		panic("boom")
	}
	g := newTestGateway(t, p)

	assert.Panics(t, func() { _, _ = g.Embed(context.Background(), "x") })

	p.EmbedQueryFunc = nil
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := g.Embed(ctx, "x")
	assert.NoError(t, err)
}

func TestGateway_RecordsMetrics(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	p := mock.New(8)
	g, err := NewGateway(p, WithMetrics(NewMetrics(tel.Meter("test"), nil)), WithModelName("mock"))
	require.NoError(t, err)

	_, err = g.EmbedBatch(context.Background(), []string{"价格", "日期"})
	require.NoError(t, err)

	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)
	names := telemetry.MetricNames(rm)
	assert.Contains(t, names, "namingd.embedding.duration_seconds")
	assert.Contains(t, names, "namingd.embedding.batch_size")
	assert.Contains(t, names, "namingd.embedding.wait_seconds")
}

func TestGateway_Close(t *testing.T) {
	p := mock.New(8)
	g := newTestGateway(t, p)
	require.NoError(t, g.Close())
	assert.True(t, p.Closed())
}

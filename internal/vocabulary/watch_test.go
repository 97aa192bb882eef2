package vocabulary

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.dict")
	require.NoError(t, os.WriteFile(path, []byte("价格 10\n"), 0o644))

	v := New()
	_, err := v.LoadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, v.Watch(ctx, path, zap.NewNop()))

	require.NoError(t, os.WriteFile(path, []byte("价格 10\n客单价 50\n"), 0o644))

	assert.Eventually(t, func() bool {
		return v.Has("客单价")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := New().Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "user.dict"), nil)
	assert.Error(t, err)
}

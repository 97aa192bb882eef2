//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable means the binary was built with CGO_ENABLED=0,
// which leaves out the ONNX runtime. Use the tei or openai provider.
var ErrFastEmbedNotAvailable = errors.New("fastembed: unavailable in a non-cgo build")

// FastEmbedConfig mirrors the cgo build so configuration code compiles.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

// FastEmbedProvider cannot be constructed in this build.
type FastEmbedProvider struct{}

func NewFastEmbedProvider(FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) Dimension() int { return 0 }
func (*FastEmbedProvider) Close() error   { return nil }

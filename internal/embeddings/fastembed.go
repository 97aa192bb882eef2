//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// DefaultFastEmbedModel handles Chinese catalog text.
const DefaultFastEmbedModel = "BAAI/bge-small-zh-v1.5"

// FastEmbedConfig configures the local ONNX provider. Zero values pick
// DefaultFastEmbedModel, ./local_cache, 512 tokens and batches of 256.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

// FastEmbedProvider runs a BGE or MiniLM model in-process.
type FastEmbedProvider struct {
	mu        sync.RWMutex
	flag      *fastembed.FlagEmbedding
	dimension int
	batchSize int
}

// fastEmbedModel maps a Hugging Face id, or fastembed's own "fast-" alias,
// to the library constant.
func fastEmbedModel(name string) (fastembed.EmbeddingModel, bool) {
	switch strings.TrimPrefix(name, "fast-") {
	case "BAAI/bge-small-zh-v1.5", "bge-small-zh-v1.5":
		return fastembed.BGESmallZH, true
	case "BAAI/bge-small-en-v1.5", "bge-small-en-v1.5":
		return fastembed.BGESmallENV15, true
	case "BAAI/bge-base-en-v1.5", "bge-base-en-v1.5":
		return fastembed.BGEBaseENV15, true
	case "sentence-transformers/all-MiniLM-L6-v2", "all-MiniLM-L6-v2":
		return fastembed.AllMiniLML6V2, true
	}
	return "", false
}

// NewFastEmbedProvider loads the model, downloading it into CacheDir the
// first time.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultFastEmbedModel
	}
	model, ok := fastEmbedModel(cfg.Model)
	dimension, known := FastEmbedDimension(cfg.Model)
	if !ok || !known {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrInvalidConfig, cfg.Model)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(".", "local_cache")
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 512
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}

	quiet := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrInvalidConfig, cfg.Model, err)
	}
	return &FastEmbedProvider{flag: flag, dimension: dimension, batchSize: cfg.BatchSize}, nil
}

// model returns the loaded session with the read lock held; callers must
// release it.
func (p *FastEmbedProvider) model(ctx context.Context) (*fastembed.FlagEmbedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	if p.flag == nil {
		p.mu.RUnlock()
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}
	return p.flag, nil
}

// EmbedDocuments uses the passage prompt.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrEmptyInput)
	}
	m, err := p.model(ctx)
	if err != nil {
		return nil, err
	}
	defer p.mu.RUnlock()

	vectors, err := m.PassageEmbed(texts, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery uses the query prompt.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmptyInput)
	}
	m, err := p.model(ctx)
	if err != nil {
		return nil, err
	}
	defer p.mu.RUnlock()

	vector, err := m.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

func (p *FastEmbedProvider) Dimension() int { return p.dimension }

// Close frees the ONNX session. Later calls fail with ErrEmbeddingFailed.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flag == nil {
		return nil
	}
	err := p.flag.Destroy()
	p.flag = nil
	return err
}

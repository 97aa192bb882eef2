package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("namingd.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go index.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the index
	// in memory only.
	Path string

	// Compress enables gzip compression for persisted files.
	Compress bool

	// VectorSize is the width every collection uses. It must match the
	// embedding gateway's dimension.
	VectorSize int
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemIndex implements Index using chromem-go.
//
// chromem always performs exact (brute force) cosine search, which is
// adequate for catalogs of a few hundred thousand rows.
type ChromemIndex struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// mu serializes collection lifecycle (create, clear) against data
	// operations, which hold it shared.
	mu sync.RWMutex
}

var _ Index = (*ChromemIndex)(nil)

// NewChromemIndex opens an in-memory or persistent chromem database.
func NewChromemIndex(config ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db: %w", ErrConnectionFailed, err)
		}
		config.Path = path
	}

	logger.Info("chromem index initialized",
		zap.String("path", config.Path),
		zap.Bool("persistent", config.Path != ""),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemIndex{db: db, config: config, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc is handed to chromem so it never falls back to its default
// OpenAI embedder. Vectors are always supplied by the caller.
func embeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem index does not embed text")
}

func (s *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	c := s.db.GetCollection(name, embeddingFunc)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *ChromemIndex) EnsureCollection(ctx context.Context, name string, dims int) error {
	_, span := chromemTracer.Start(ctx, "ChromemIndex.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("vector_size", dims))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dims != s.config.VectorSize {
		return fmt.Errorf("%w: collection %s wants %d, index configured for %d",
			ErrDimensionMismatch, name, dims, s.config.VectorSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db.GetCollection(name, embeddingFunc) != nil {
		return nil
	}
	_, err := s.db.CreateCollection(name, map[string]string{"dims": strconv.Itoa(dims)}, embeddingFunc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.logger.Info("created chromem collection", zap.String("collection", name), zap.Int("vector_size", dims))
	return nil
}

func (s *ChromemIndex) CollectionExists(_ context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.GetCollection(name, embeddingFunc) != nil, nil
}

func (s *ChromemIndex) Upsert(ctx context.Context, name string, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, s.config.VectorSize); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        strconv.FormatInt(r.ID, 10),
			Content:   r.Payload.Name,
			Metadata:  map[string]string{"name": r.Payload.Name, "label": r.Payload.Label},
			Embedding: r.Vector,
		}
	}
	// Concurrency of 1 since embeddings are precomputed.
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting into %s: %w", name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

func (s *ChromemIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("k", k))

	k, err := clampK(k)
	if err != nil {
		return nil, err
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= document count.
	n := c.Count()
	if n == 0 {
		return []Hit{}, nil
	}
	results, err := c.QueryEmbedding(ctx, vector, min(k, n), nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			s.logger.Warn("skipping document with non-numeric id", zap.String("collection", name), zap.String("id", r.ID))
			continue
		}
		hits = append(hits, Hit{ID: id, Name: r.Metadata["name"], Label: r.Metadata["label"], Score: r.Similarity})
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

func (s *ChromemIndex) Lookup(ctx context.Context, name string, id int64) (Payload, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return Payload{}, false, err
	}
	doc, err := c.GetByID(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		// chromem only fails GetByID for unknown ids.
		return Payload{}, false, nil
	}
	return Payload{Name: doc.Metadata["name"], Label: doc.Metadata["label"]}, true, nil
}

func (s *ChromemIndex) Delete(ctx context.Context, name string, ids ...int64) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}

	present := make([]string, 0, len(ids))
	for _, id := range ids {
		key := strconv.FormatInt(id, 10)
		if _, err := c.GetByID(ctx, key); err == nil {
			present = append(present, key)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := c.Delete(ctx, nil, nil, present...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteAll drops and recreates the collection.
func (s *ChromemIndex) DeleteAll(ctx context.Context, name string) error {
	_, span := chromemTracer.Start(ctx, "ChromemIndex.DeleteAll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db.GetCollection(name, embeddingFunc) == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err := s.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clearing %s: %w", name, err)
	}
	meta := map[string]string{"dims": strconv.Itoa(s.config.VectorSize)}
	if _, err := s.db.CreateCollection(name, meta, embeddingFunc); err != nil {
		span.RecordError(err)
		return fmt.Errorf("recreating %s: %w", name, err)
	}
	s.logger.Info("cleared chromem collection", zap.String("collection", name))
	return nil
}

func (s *ChromemIndex) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// IDs runs an exhaustive query over the whole collection; chromem has no
// listing call. The query vector only has to be non-zero.
func (s *ChromemIndex) IDs(ctx context.Context, name string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	axis := make([]float32, s.config.VectorSize)
	axis[0] = 1
	results, err := c.QueryEmbedding(ctx, axis, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", name, err)
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		if id, err := strconv.ParseInt(r.ID, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemIndex) Close() error {
	s.logger.Info("chromem index closed")
	return nil
}

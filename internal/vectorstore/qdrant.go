package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("namingd.vectorstore.qdrant")

const (
	defaultQdrantMessageSize = 50 << 20
	qdrantDialCheckTimeout   = 5 * time.Second

	payloadName  = "name"
	payloadLabel = "label"
)

// QdrantConfig configures the gRPC client. Port is the gRPC port (6334),
// not the REST one.
type QdrantConfig struct {
	Host           string
	Port           int
	UseTLS         bool
	APIKey         string
	MaxMessageSize int
}

func (c QdrantConfig) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: qdrant host is empty", ErrInvalidConfig)
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("%w: qdrant port %d out of range", ErrInvalidConfig, c.Port)
	}
	return nil
}

func (c QdrantConfig) messageSize() int {
	if c.MaxMessageSize > 0 {
		return c.MaxMessageSize
	}
	return defaultQdrantMessageSize
}

// QdrantIndex stores mirror records as Qdrant points keyed by catalog row
// id. Every write waits until it is applied, so a Search issued afterwards
// sees it.
type QdrantIndex struct {
	client *qdrant.Client
	logger *zap.Logger
	widths sync.Map // collection -> int
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex dials Qdrant and fails unless the server answers a
// health check.
func NewQdrantIndex(cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant connection is not encrypted", zap.String("host", cfg.Host))
	}

	size := cfg.messageSize()
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(size),
			grpc.MaxCallSendMsgSize(size),
		)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), qdrantDialCheckTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: qdrant %s:%d: %w", ErrConnectionFailed, cfg.Host, cfg.Port, err)
	}

	logger.Info("qdrant index ready", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return &QdrantIndex{client: client, logger: logger}, nil
}

func (s *QdrantIndex) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// begin opens a span for op on collection and validates the name. The
// returned end func records err on the span and wraps it with context.
func (s *QdrantIndex) begin(ctx context.Context, op, collection string, attrs ...attribute.KeyValue) (context.Context, func(error) error, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex."+op,
		trace.WithAttributes(append(attrs, attribute.String("collection", collection))...))
	end := func(err error) error {
		defer span.End()
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return fmt.Errorf("%s %s: %w", op, collection, ErrCollectionNotFound)
		}
		return fmt.Errorf("%s %s: %w", op, collection, err)
	}
	if err := ValidateCollectionName(collection); err != nil {
		span.End()
		return ctx, nil, err
	}
	return ctx, end, nil
}

func (s *QdrantIndex) EnsureCollection(ctx context.Context, name string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	ctx, end, err := s.begin(ctx, "EnsureCollection", name, attribute.Int("vector_size", dims))
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return end(err)
	}
	if exists {
		have, err := s.width(ctx, name)
		if err != nil {
			return end(err)
		}
		if have != dims {
			return end(fmt.Errorf("%w: collection has %d, want %d", ErrDimensionMismatch, have, dims))
		}
		return end(nil)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return end(err)
	}
	s.widths.Store(name, dims)
	s.logger.Info("qdrant collection created", zap.String("collection", name), zap.Int("vector_size", dims))
	return end(nil)
}

// width returns the vector size of collection, asking the server once.
func (s *QdrantIndex) width(ctx context.Context, collection string) (int, error) {
	if v, ok := s.widths.Load(collection); ok {
		return v.(int), nil
	}
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0, err
	}
	n := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	s.widths.Store(collection, n)
	return n, nil
}

func (s *QdrantIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, end, err := s.begin(ctx, "CollectionExists", name)
	if err != nil {
		return false, err
	}
	ok, err := s.client.CollectionExists(ctx, name)
	return ok, end(err)
}

func (s *QdrantIndex) Upsert(ctx context.Context, name string, records []Record) error {
	ctx, end, err := s.begin(ctx, "Upsert", name, attribute.Int("record_count", len(records)))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return end(nil)
	}
	dims, err := s.width(ctx, name)
	if err != nil {
		return end(err)
	}
	if err := validateRecords(records, dims); err != nil {
		return end(err)
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadName:  r.Payload.Name,
				payloadLabel: r.Payload.Label,
			}),
		})
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	return end(err)
}

func (s *QdrantIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	k, err := clampK(k)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrDimensionMismatch)
	}
	ctx, end, err := s.begin(ctx, "Search", name, attribute.Int("k", k))
	if err != nil {
		return nil, err
	}

	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, end(err)
	}
	hits := make([]Hit, 0, len(scored))
	for _, p := range scored {
		pl := payloadOf(p.GetPayload())
		hits = append(hits, Hit{ID: int64(p.GetId().GetNum()), Name: pl.Name, Label: pl.Label, Score: p.GetScore()})
	}
	return hits, end(nil)
}

func (s *QdrantIndex) Lookup(ctx context.Context, name string, id int64) (Payload, bool, error) {
	ctx, end, err := s.begin(ctx, "Lookup", name, attribute.Int64("id", id))
	if err != nil {
		return Payload{}, false, err
	}
	got, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil || len(got) == 0 {
		return Payload{}, false, end(err)
	}
	return payloadOf(got[0].GetPayload()), true, end(nil)
}

func (s *QdrantIndex) Delete(ctx context.Context, name string, ids ...int64) error {
	ctx, end, err := s.begin(ctx, "Delete", name, attribute.Int("id_count", len(ids)))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return end(nil)
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDNum(uint64(id)))
	}
	return end(s.deletePoints(ctx, name, qdrant.NewPointsSelector(pointIDs...)))
}

// DeleteAll matches every point with an empty filter. The collection and
// its vector config stay.
func (s *QdrantIndex) DeleteAll(ctx context.Context, name string) error {
	ctx, end, err := s.begin(ctx, "DeleteAll", name)
	if err != nil {
		return err
	}
	return end(s.deletePoints(ctx, name, qdrant.NewPointsSelectorFilter(&qdrant.Filter{})))
}

func (s *QdrantIndex) deletePoints(ctx context.Context, name string, sel *qdrant.PointsSelector) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         sel,
	})
	return err
}

func (s *QdrantIndex) Count(ctx context.Context, name string) (int, error) {
	ctx, end, err := s.begin(ctx, "Count", name)
	if err != nil {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: qdrant.PtrOf(true)})
	return int(n), end(err)
}

const scrollPage = 1024

// IDs scrolls the collection without payloads or vectors.
func (s *QdrantIndex) IDs(ctx context.Context, name string) ([]int64, error) {
	ctx, end, err := s.begin(ctx, "IDs", name)
	if err != nil {
		return nil, err
	}
	var ids []int64
	var offset *qdrant.PointId
	for {
		points, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPage)),
			WithPayload:    qdrant.NewWithPayload(false),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, end(err)
		}
		for _, p := range points {
			ids = append(ids, int64(p.GetId().GetNum()))
		}
		if next == nil || len(points) == 0 {
			return ids, end(nil)
		}
		offset = next
	}
}

func payloadOf(m map[string]*qdrant.Value) Payload {
	return Payload{Name: m[payloadName].GetStringValue(), Label: m[payloadLabel].GetStringValue()}
}

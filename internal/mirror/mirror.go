// Package mirror keeps the similarity index consistent with the catalog.
//
// The catalog is authoritative. The index is a derived copy that is
// updated after each catalog write, on the same call path and without
// retries. When an update fails the row is reported as drift, and
// BulkResync is the repair path that rebuilds a collection from scratch.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/events"
	"github.com/fyrsmithlabs/namingd/internal/vectorstore"
	"go.uber.org/zap"
)

// Collection names. They are disjoint: an id in one says nothing about
// the other.
const (
	Morphemes  = "morphemes"
	Composites = "composites"
)

// Collections lists every mirrored collection.
var Collections = []string{Morphemes, Composites}

// DefaultPageSize is the number of rows embedded per gateway call during resync.
const DefaultPageSize = 256

var (
	// ErrUnknownCollection is returned for a collection other than Morphemes or Composites.
	ErrUnknownCollection = fmt.Errorf("%w: unknown collection", catalog.ErrValidation)

	// ErrPartialSync marks a catalog change the index did not receive.
	ErrPartialSync = errors.New("similarity index not updated")
)

// Status is the outcome of a per-row sync.
type Status string

const (
	// StatusCommitted: the index reflects the catalog row.
	StatusCommitted Status = "committed"
	// StatusPartial: the catalog row was read but the index write failed.
	StatusPartial Status = "partial"
	// StatusFailed: the catalog row could not be read.
	StatusFailed Status = "failed"
)

// SyncResult reports one Sync call.
type SyncResult struct {
	Collection string `json:"collection"`
	ID         int64  `json:"id"`
	Status     Status `json:"status"`
	Deleted    bool   `json:"deleted,omitempty"`
	Err        error  `json:"-"`
}

// Embedder computes vectors. *embeddings.Gateway satisfies it.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Mirror maintains the morphemes and composites collections.
type Mirror struct {
	index     vectorstore.Index
	store     catalog.Store
	embedder  Embedder
	publisher events.Publisher
	logger    *zap.Logger
	pageSize  int
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithPageSize sets the resync page size.
func WithPageSize(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithPublisher sets the drift and resync event sink.
func WithPublisher(p events.Publisher) Option {
	return func(m *Mirror) { m.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

// New returns a Mirror over index, fed from store through embedder.
func New(index vectorstore.Index, store catalog.Store, embedder Embedder, opts ...Option) *Mirror {
	m := &Mirror{
		index:    index,
		store:    store,
		embedder: embedder,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.publisher == nil {
		m.publisher = events.NopPublisher{}
	}
	return m
}

// ValidateCollection rejects anything but Morphemes and Composites.
func ValidateCollection(collection string) error {
	switch collection {
	case Morphemes, Composites:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
}

// Dimension is the vector width of both collections.
func (m *Mirror) Dimension() int {
	return m.embedder.Dimension()
}

// EnsureCollections creates both collections if missing, sized to the
// embedder's dimension.
func (m *Mirror) EnsureCollections(ctx context.Context) error {
	for _, c := range Collections {
		if err := m.index.EnsureCollection(ctx, c, m.embedder.Dimension()); err != nil {
			return fmt.Errorf("ensuring collection %s: %w", c, err)
		}
	}
	return nil
}

// Upsert writes one record. Collection, vector width and payload are
// validated before the index is touched.
func (m *Mirror) Upsert(ctx context.Context, collection string, id int64, vector []float32, payload vectorstore.Payload) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if len(vector) != m.embedder.Dimension() {
		return fmt.Errorf("%w: got %d, want %d", vectorstore.ErrDimensionMismatch, len(vector), m.embedder.Dimension())
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	return m.index.Upsert(ctx, collection, []vectorstore.Record{{ID: id, Vector: vector, Payload: payload}})
}

// Delete removes id. Deleting an absent id succeeds.
func (m *Mirror) Delete(ctx context.Context, collection string, id int64) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	return m.index.Delete(ctx, collection, id)
}

// DeleteAll empties collection.
func (m *Mirror) DeleteAll(ctx context.Context, collection string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	return m.index.DeleteAll(ctx, collection)
}

// Search returns up to k nearest records to vector.
func (m *Mirror) Search(ctx context.Context, collection string, vector []float32, k int) ([]vectorstore.Hit, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	return m.index.Search(ctx, collection, vector, k)
}

// Lookup returns the payload stored for id.
func (m *Mirror) Lookup(ctx context.Context, collection string, id int64) (vectorstore.Payload, bool, error) {
	if err := ValidateCollection(collection); err != nil {
		return vectorstore.Payload{}, false, err
	}
	return m.index.Lookup(ctx, collection, id)
}

// item is one row ready to embed.
type item struct {
	id      int64
	text    string
	payload vectorstore.Payload
}

func morphemeItem(mo *catalog.Morpheme) item {
	return item{id: mo.ID, text: mo.EmbeddingText(), payload: vectorstore.Payload{Name: mo.Name, Label: mo.Abbr}}
}

func compositeItem(c *catalog.CompositeEntity) item {
	return item{id: c.ID, text: c.EmbeddingText(), payload: vectorstore.Payload{Name: c.Name, Label: c.EnName}}
}

// UpsertMorphemes embeds ms in one gateway call and writes them.
func (m *Mirror) UpsertMorphemes(ctx context.Context, ms []catalog.Morpheme) error {
	items := make([]item, len(ms))
	for i := range ms {
		items[i] = morphemeItem(&ms[i])
	}
	_, err := m.embedAndUpsert(ctx, Morphemes, items, false)
	return err
}

// UpsertComposites embeds cs in one gateway call and writes them.
func (m *Mirror) UpsertComposites(ctx context.Context, cs []catalog.CompositeEntity) error {
	items := make([]item, len(cs))
	for i := range cs {
		items[i] = compositeItem(&cs[i])
	}
	_, err := m.embedAndUpsert(ctx, Composites, items, false)
	return err
}

// embedAndUpsert embeds items with a single EmbedBatch call, upserts the
// result and returns the ids written. With skipInvalid, rows whose payload
// or text fails validation are logged and left out; otherwise the first
// such row fails the call.
func (m *Mirror) embedAndUpsert(ctx context.Context, collection string, items []item, skipInvalid bool) ([]int64, error) {
	valid := items[:0:0]
	for _, it := range items {
		err := it.payload.Validate()
		if err == nil && strings.TrimSpace(it.text) == "" {
			err = fmt.Errorf("%w: empty embedding text", vectorstore.ErrInvalidPayload)
		}
		if err != nil {
			if !skipInvalid {
				return nil, fmt.Errorf("%s %d: %w", collection, it.id, err)
			}
			m.logger.Warn("skipping row with invalid payload",
				zap.String("collection", collection), zap.Int64("id", it.id), zap.Error(err))
			continue
		}
		valid = append(valid, it)
	}
	if len(valid) == 0 {
		return nil, nil
	}

	texts := make([]string, len(valid))
	for i, it := range valid {
		texts[i] = it.text
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	records := make([]vectorstore.Record, len(valid))
	ids := make([]int64, len(valid))
	for i, it := range valid {
		records[i] = vectorstore.Record{ID: it.id, Vector: vectors[i], Payload: it.payload}
		ids[i] = it.id
	}
	if err := m.index.Upsert(ctx, collection, records); err != nil {
		return nil, err
	}
	return ids, nil
}

// Sync re-reads one catalog row and makes the index agree with it: a
// present row is embedded and upserted, an absent row is deleted.
//
// A partial result is counted as drift and published as an event.
func (m *Mirror) Sync(ctx context.Context, collection string, id int64) SyncResult {
	res := SyncResult{Collection: collection, ID: id}
	if err := ValidateCollection(collection); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	var it *item
	var readErr error
	switch collection {
	case Morphemes:
		var mo *catalog.Morpheme
		if mo, readErr = m.store.GetMorpheme(ctx, id); readErr == nil {
			v := morphemeItem(mo)
			it = &v
		}
	case Composites:
		var c *catalog.CompositeEntity
		if c, readErr = m.store.GetComposite(ctx, id); readErr == nil {
			v := compositeItem(c)
			it = &v
		}
	}

	var writeErr error
	switch {
	case errors.Is(readErr, catalog.ErrNotFound):
		res.Deleted = true
		writeErr = m.index.Delete(ctx, collection, id)
	case readErr != nil:
		res.Status, res.Err = StatusFailed, readErr
		SyncTotal.WithLabelValues(collection, string(res.Status)).Inc()
		m.logger.Warn("mirror sync could not read catalog row",
			zap.String("collection", collection), zap.Int64("id", id), zap.Error(readErr))
		return res
	default:
		_, writeErr = m.embedAndUpsert(ctx, collection, []item{*it}, false)
	}

	if writeErr != nil {
		res.Status = StatusPartial
		res.Err = fmt.Errorf("%w: %w", ErrPartialSync, writeErr)
		m.ReportDrift(ctx, collection, id, writeErr)
	} else {
		res.Status = StatusCommitted
	}
	SyncTotal.WithLabelValues(collection, string(res.Status)).Inc()
	return res
}

// ReportDrift records that a catalog change to id was not mirrored.
// Event delivery failures are logged and otherwise ignored.
func (m *Mirror) ReportDrift(ctx context.Context, collection string, id int64, cause error) {
	DriftTotal.WithLabelValues(collection).Inc()
	m.logger.Warn("similarity index drift",
		zap.String("collection", collection), zap.Int64("id", id), zap.Error(cause))

	e := events.New(events.TypeMirrorDrift, collection)
	e.EntityID = id
	if cause != nil {
		e.Detail = cause.Error()
	}
	// The caller's context may already be cancelled; the event should still go out.
	if err := m.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Warn("failed to publish drift event", zap.String("collection", collection), zap.Error(err))
	}
}

// BulkResync rebuilds collection from every catalog row, embedding one
// page per gateway call, and returns the number of records written. Rows
// with an invalid payload are skipped and logged.
//
// Records are overwritten in place and only ids the catalog no longer has
// are deleted at the end, so a resync that fails part way leaves the
// earlier records searchable.
func (m *Mirror) BulkResync(ctx context.Context, collection string) (int, error) {
	if err := ValidateCollection(collection); err != nil {
		return 0, err
	}
	start := time.Now()
	m.logger.Info("bulk resync started", zap.String("collection", collection), zap.Int("page_size", m.pageSize))

	seen := make(map[int64]struct{})
	write := func(items []item) error {
		ids, err := m.embedAndUpsert(ctx, collection, items, true)
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		return err
	}

	var err error
	switch collection {
	case Morphemes:
		err = m.store.EachMorpheme(ctx, m.pageSize, func(page []catalog.Morpheme) error {
			items := make([]item, len(page))
			for i := range page {
				items[i] = morphemeItem(&page[i])
			}
			return write(items)
		})
	case Composites:
		err = m.store.EachComposite(ctx, m.pageSize, func(page []catalog.CompositeEntity) error {
			items := make([]item, len(page))
			for i := range page {
				items[i] = compositeItem(&page[i])
			}
			return write(items)
		})
	}
	if err == nil {
		err = m.pruneStale(ctx, collection, seen)
	}
	count := len(seen)
	if err != nil {
		m.logger.Error("bulk resync failed",
			zap.String("collection", collection), zap.Int("synced", count), zap.Error(err))
		return count, fmt.Errorf("resync %s: %w", collection, err)
	}

	elapsed := time.Since(start)
	ResyncRecords.WithLabelValues(collection).Set(float64(count))
	ResyncDuration.WithLabelValues(collection).Observe(elapsed.Seconds())
	m.logger.Info("bulk resync completed",
		zap.String("collection", collection), zap.Int("synced", count), zap.Duration("elapsed", elapsed))

	e := events.New(events.TypeMirrorResynced, collection)
	e.Count = count
	if err := m.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Warn("failed to publish resync event", zap.String("collection", collection), zap.Error(err))
	}
	return count, nil
}

// pruneStale deletes indexed ids that are not in keep.
func (m *Mirror) pruneStale(ctx context.Context, collection string, keep map[int64]struct{}) error {
	ids, err := m.index.IDs(ctx, collection)
	if err != nil {
		return fmt.Errorf("listing indexed ids: %w", err)
	}
	var stale []int64
	for _, id := range ids {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	m.logger.Info("removing stale records", zap.String("collection", collection), zap.Int("count", len(stale)))
	if err := m.index.Delete(ctx, collection, stale...); err != nil {
		return fmt.Errorf("removing stale records: %w", err)
	}
	return nil
}

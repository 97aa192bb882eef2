// Package standards applies catalog mutations and keeps the segmentation
// vocabulary and the similarity index in step with them.
//
// Every mutation commits to the catalog first. The vocabulary is updated
// next, then the index. An index failure does not undo the catalog write;
// it is returned as a partial MutationResult and reported as drift.
package standards

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/vocabulary"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Listing bounds.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

// Vocabulary is the runtime dictionary layer. *vocabulary.Vocabulary satisfies it.
type Vocabulary interface {
	AddTerm(term string, weight float64) error
	RemoveTerm(term string) bool
}

// Service owns catalog mutations.
type Service struct {
	store  catalog.Store
	mirror *mirror.Mirror
	vocab  Vocabulary
	weight float64
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCatalogWeight sets the vocabulary weight of morpheme names.
func WithCatalogWeight(w float64) Option {
	return func(s *Service) {
		if w > 0 {
			s.weight = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service.
func NewService(store catalog.Store, m *mirror.Mirror, vocab Vocabulary, opts ...Option) *Service {
	s := &Service{
		store:  store,
		mirror: m,
		vocab:  vocab,
		weight: vocabulary.CatalogWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// mirrored turns the outcome of an index write into a MutationResult for
// a committed catalog change.
func (s *Service) mirrored(ctx context.Context, collection string, id int64, err error) MutationResult {
	res := MutationResult{CatalogCommitted: true}
	if err != nil {
		s.mirror.ReportDrift(ctx, collection, id, err)
		res.Err = fmt.Errorf("%w: %w", mirror.ErrPartialSync, err)
	} else {
		res.MirrorCommitted = true
	}
	mirror.SyncTotal.WithLabelValues(collection, string(res.Status())).Inc()
	return res
}

func (s *Service) addTerm(name string) {
	if err := s.vocab.AddTerm(name, s.weight); err != nil {
		s.logger.Warn("vocabulary rejected morpheme name", zap.String("name", name), zap.Error(err))
	}
}

// SeedVocabulary adds every morpheme name to the vocabulary and returns
// how many were added.
func (s *Service) SeedVocabulary(ctx context.Context) (int, error) {
	n := 0
	err := s.store.EachMorpheme(ctx, mirror.DefaultPageSize, func(page []catalog.Morpheme) error {
		for i := range page {
			if err := s.vocab.AddTerm(page[i].Name, s.weight); err != nil {
				s.logger.Warn("skipping morpheme name", zap.String("name", page[i].Name), zap.Error(err))
				continue
			}
			n++
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("seeding vocabulary: %w", err)
	}
	s.logger.Info("vocabulary seeded from catalog", zap.Int("terms", n))
	return n, nil
}

// Bootstrap prepares a fresh process: it creates the index collections,
// seeds the vocabulary and, when resync is set, rebuilds both collections
// concurrently.
func (s *Service) Bootstrap(ctx context.Context, resync bool) error {
	if err := s.mirror.EnsureCollections(ctx); err != nil {
		return err
	}
	if _, err := s.SeedVocabulary(ctx); err != nil {
		return err
	}
	if !resync {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range mirror.Collections {
		g.Go(func() error {
			_, err := s.mirror.BulkResync(gctx, c)
			return err
		})
	}
	return g.Wait()
}

// Resync rebuilds one collection from the catalog.
func (s *Service) Resync(ctx context.Context, collection string) (int, error) {
	return s.mirror.BulkResync(ctx, collection)
}

// Sync re-mirrors one row.
func (s *Service) Sync(ctx context.Context, collection string, id int64) mirror.SyncResult {
	return s.mirror.Sync(ctx, collection, id)
}

// GetMorpheme returns one morpheme.
func (s *Service) GetMorpheme(ctx context.Context, id int64) (*catalog.Morpheme, error) {
	return s.store.GetMorpheme(ctx, id)
}

// ListMorphemes returns a page of morphemes, newest first.
func (s *Service) ListMorphemes(ctx context.Context, offset, limit int) (Page[catalog.Morpheme], error) {
	offset, limit = pageBounds(offset, limit)
	items, total, err := s.store.ListMorphemes(ctx, offset, limit)
	if err != nil {
		return Page[catalog.Morpheme]{}, err
	}
	return Page[catalog.Morpheme]{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// CreateMorpheme validates and inserts m, then adds its name to the
// vocabulary and its record to the index.
func (s *Service) CreateMorpheme(ctx context.Context, m *catalog.Morpheme) (MutationResult, error) {
	if err := ValidateMorpheme(m); err != nil {
		return MutationResult{}, err
	}
	if err := s.store.CreateMorpheme(ctx, m); err != nil {
		return MutationResult{}, err
	}
	s.addTerm(m.Name)
	err := s.mirror.UpsertMorphemes(ctx, []catalog.Morpheme{*m})
	return s.mirrored(ctx, mirror.Morphemes, m.ID, err), nil
}

// CreateMorphemes inserts ms in one transaction and mirrors them with a
// single embedding batch. A validation error in any row rejects them all.
func (s *Service) CreateMorphemes(ctx context.Context, ms []catalog.Morpheme) (MutationResult, error) {
	if len(ms) == 0 {
		return MutationResult{}, invalid("no morphemes to import")
	}
	var errs []error
	seen := make(map[string]int, len(ms))
	for i := range ms {
		if err := ValidateMorpheme(&ms[i]); err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		name := strings.TrimSpace(ms[i].Name)
		if prev, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, invalid("name %q repeats row %d", name, prev)))
			continue
		}
		seen[name] = i + 1
	}
	if err := errors.Join(errs...); err != nil {
		return MutationResult{}, err
	}

	if err := s.store.CreateMorphemes(ctx, ms); err != nil {
		return MutationResult{}, err
	}
	for i := range ms {
		s.addTerm(ms[i].Name)
	}
	err := s.mirror.UpsertMorphemes(ctx, ms)
	if err != nil {
		err = fmt.Errorf("batch of %d morphemes: %w", len(ms), err)
	}
	return s.mirrored(ctx, mirror.Morphemes, 0, err), nil
}

// UpdateMorpheme replaces the row with m.ID. A rename retracts the old
// name from the vocabulary.
func (s *Service) UpdateMorpheme(ctx context.Context, m *catalog.Morpheme) (MutationResult, error) {
	if m.ID <= 0 {
		return MutationResult{}, invalid("id is required")
	}
	if err := ValidateMorpheme(m); err != nil {
		return MutationResult{}, err
	}
	prev, err := s.store.UpdateMorpheme(ctx, m)
	if err != nil {
		return MutationResult{}, err
	}
	if prev.Name != m.Name {
		s.vocab.RemoveTerm(prev.Name)
	}
	s.addTerm(m.Name)
	err = s.mirror.UpsertMorphemes(ctx, []catalog.Morpheme{*m})
	return s.mirrored(ctx, mirror.Morphemes, m.ID, err), nil
}

// DeleteMorpheme removes a morpheme from the catalog, the vocabulary and
// the index. Composites that reference it keep the stale id.
func (s *Service) DeleteMorpheme(ctx context.Context, id int64) (MutationResult, error) {
	deleted, err := s.store.DeleteMorpheme(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	s.vocab.RemoveTerm(deleted.Name)
	err = s.mirror.Delete(ctx, mirror.Morphemes, id)
	return s.mirrored(ctx, mirror.Morphemes, id, err), nil
}

// ClearMorphemes deletes every morpheme and returns how many were removed.
func (s *Service) ClearMorphemes(ctx context.Context) (MutationResult, int, error) {
	names, err := s.store.DeleteAllMorphemes(ctx)
	if err != nil {
		return MutationResult{}, 0, err
	}
	for _, name := range names {
		s.vocab.RemoveTerm(name)
	}
	s.logger.Info("cleared morphemes", zap.Int("count", len(names)))
	err = s.mirror.DeleteAll(ctx, mirror.Morphemes)
	return s.mirrored(ctx, mirror.Morphemes, 0, err), len(names), nil
}

// GetComposite returns one composite.
func (s *Service) GetComposite(ctx context.Context, id int64) (*catalog.CompositeEntity, error) {
	return s.store.GetComposite(ctx, id)
}

// CompositeDetails is a composite with its morphemes in composition order.
type CompositeDetails struct {
	catalog.CompositeEntity
	Morphemes []catalog.Morpheme `json:"morphemes"`
}

// CompositeDetails returns the composite with id and the morphemes it is
// built from. Ids that no longer resolve are left out.
func (s *Service) CompositeDetails(ctx context.Context, id int64) (*CompositeDetails, error) {
	c, err := s.store.GetComposite(ctx, id)
	if err != nil {
		return nil, err
	}
	ms, err := s.store.MorphemesByIDs(ctx, c.CompositionIDs)
	if err != nil {
		return nil, err
	}
	return &CompositeDetails{CompositeEntity: *c, Morphemes: ms}, nil
}

// ListComposites returns a page of composites, newest first.
func (s *Service) ListComposites(ctx context.Context, offset, limit int) (Page[catalog.CompositeEntity], error) {
	offset, limit = pageBounds(offset, limit)
	items, total, err := s.store.ListComposites(ctx, offset, limit)
	if err != nil {
		return Page[catalog.CompositeEntity]{}, err
	}
	return Page[catalog.CompositeEntity]{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// checkComposition fails with catalog.ErrValidation when an id in ids has
// no morpheme.
func (s *Service) checkComposition(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.store.MorphemesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(found))
	for _, m := range found {
		known[m.ID] = true
	}
	var missing []int64
	for _, id := range ids {
		if !known[id] && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return invalid("unknown morpheme ids %v", missing)
	}
	return nil
}

// CreateComposite validates and inserts c, then mirrors it.
func (s *Service) CreateComposite(ctx context.Context, c *catalog.CompositeEntity) (MutationResult, error) {
	if err := ValidateComposite(c); err != nil {
		return MutationResult{}, err
	}
	if err := s.checkComposition(ctx, c.CompositionIDs); err != nil {
		return MutationResult{}, err
	}
	if err := s.store.CreateComposite(ctx, c); err != nil {
		return MutationResult{}, err
	}
	err := s.mirror.UpsertComposites(ctx, []catalog.CompositeEntity{*c})
	return s.mirrored(ctx, mirror.Composites, c.ID, err), nil
}

// UpdateComposite replaces the row with c.ID and mirrors it.
func (s *Service) UpdateComposite(ctx context.Context, c *catalog.CompositeEntity) (MutationResult, error) {
	if c.ID <= 0 {
		return MutationResult{}, invalid("id is required")
	}
	if err := ValidateComposite(c); err != nil {
		return MutationResult{}, err
	}
	if err := s.checkComposition(ctx, c.CompositionIDs); err != nil {
		return MutationResult{}, err
	}
	if err := s.store.UpdateComposite(ctx, c); err != nil {
		return MutationResult{}, err
	}
	err := s.mirror.UpsertComposites(ctx, []catalog.CompositeEntity{*c})
	return s.mirrored(ctx, mirror.Composites, c.ID, err), nil
}

// DeleteComposite removes a composite from the catalog and the index.
func (s *Service) DeleteComposite(ctx context.Context, id int64) (MutationResult, error) {
	if err := s.store.DeleteComposite(ctx, id); err != nil {
		return MutationResult{}, err
	}
	err := s.mirror.Delete(ctx, mirror.Composites, id)
	return s.mirrored(ctx, mirror.Composites, id, err), nil
}

// ClearComposites deletes every composite and returns how many were removed.
func (s *Service) ClearComposites(ctx context.Context) (MutationResult, int, error) {
	n, err := s.store.DeleteAllComposites(ctx)
	if err != nil {
		return MutationResult{}, 0, err
	}
	s.logger.Info("cleared composites", zap.Int64("count", n))
	err = s.mirror.DeleteAll(ctx, mirror.Composites)
	return s.mirrored(ctx, mirror.Composites, 0, err), int(n), nil
}

// SubmitFieldRequest records a request for a missing standard field.
func (s *Service) SubmitFieldRequest(ctx context.Context, name, note string) (*catalog.FieldRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	r := &catalog.FieldRequest{Name: name, Note: strings.TrimSpace(note)}
	if err := s.store.CreateFieldRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListFieldRequests returns up to limit requests, optionally only open ones.
func (s *Service) ListFieldRequests(ctx context.Context, openOnly bool, limit int) ([]catalog.FieldRequest, error) {
	_, limit = pageBounds(0, limit)
	return s.store.ListFieldRequests(ctx, openOnly, limit)
}

// CompleteFieldRequest marks a request done.
func (s *Service) CompleteFieldRequest(ctx context.Context, id int64) error {
	return s.store.CompleteFieldRequest(ctx, id)
}

// CountOpenFieldRequests returns how many requests are not done.
func (s *Service) CountOpenFieldRequests(ctx context.Context) (int64, error) {
	return s.store.CountOpenFieldRequests(ctx)
}

func pageBounds(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return offset, limit
}

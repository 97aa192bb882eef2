// Package search routes catalog queries through two tiers.
//
// Tier 1 is a bounded, case-insensitive substring match in the catalog.
// Only when it finds nothing does Tier 2 embed the query and ask the
// similarity index for the nearest records. A Tier 2 failure degrades to
// an empty result instead of failing the request.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("namingd.search")

// Defaults for the two tiers.
const (
	DefaultLexicalLimit = 10
	DefaultSemanticK    = 5
)

// Tier identifies which strategy produced a result.
type Tier int

const (
	TierLexical  Tier = 1
	TierSemantic Tier = 2
)

func (t Tier) String() string {
	switch t {
	case TierLexical:
		return "lexical"
	case TierSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Hit is one search result. Score is set for semantic hits only.
type Hit struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Label    string  `json:"label"`
	Synonyms string  `json:"synonyms,omitempty"`
	Score    float32 `json:"score,omitempty"`
}

// Result is the outcome of a search.
type Result struct {
	Query      string `json:"query"`
	Collection string `json:"collection"`
	Tier       Tier   `json:"tier"`
	Hits       []Hit  `json:"hits"`

	// Degraded is set when Tier 2 was needed but failed; Cause says why.
	Degraded bool   `json:"degraded,omitempty"`
	Cause    string `json:"cause,omitempty"`
}

// Catalog is the Tier 1 source. catalog.Store satisfies it.
type Catalog interface {
	SearchMorphemes(ctx context.Context, query string, limit int) ([]catalog.Morpheme, error)
	SearchComposites(ctx context.Context, query string, limit int) ([]catalog.CompositeEntity, error)
}

// Index is the Tier 2 source. *mirror.Mirror satisfies it.
type Index interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]vectorstore.Hit, error)
}

// Embedder embeds the query. *embeddings.Gateway satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Router runs the tiered search.
type Router struct {
	catalog      Catalog
	index        Index
	embedder     Embedder
	lexicalLimit int
	semanticK    int
	logger       *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLexicalLimit bounds Tier 1 results.
func WithLexicalLimit(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.lexicalLimit = n
		}
	}
}

// WithSemanticK sets how many nearest records Tier 2 returns.
func WithSemanticK(k int) Option {
	return func(r *Router) {
		if k > 0 {
			r.semanticK = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// NewRouter returns a Router.
func NewRouter(cat Catalog, index Index, embedder Embedder, opts ...Option) *Router {
	r := &Router{
		catalog:      cat,
		index:        index,
		embedder:     embedder,
		lexicalLimit: DefaultLexicalLimit,
		semanticK:    DefaultSemanticK,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

func validate(query, collection string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query cannot be empty", catalog.ErrValidation)
	}
	if err := mirror.ValidateCollection(collection); err != nil {
		return "", err
	}
	return query, nil
}

// Search runs Tier 1 and, if it is empty, Tier 2.
//
// A Tier 1 store failure is returned as an error. A Tier 2 failure yields
// a Result with no hits and Degraded set.
func (r *Router) Search(ctx context.Context, query, collection string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Router.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	query, err := validate(query, collection)
	if err != nil {
		return nil, err
	}

	hits, err := r.lexical(ctx, query, collection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(hits) > 0 {
		span.SetAttributes(attribute.Int("tier", int(TierLexical)), attribute.Int("hits", len(hits)))
		return &Result{Query: query, Collection: collection, Tier: TierLexical, Hits: hits}, nil
	}

	res := &Result{Query: query, Collection: collection, Tier: TierSemantic, Hits: []Hit{}}
	hits, err = r.semantic(ctx, query, collection)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("semantic search degraded",
			zap.String("collection", collection), zap.String("query", query), zap.Error(err))
		res.Degraded = true
		res.Cause = err.Error()
		return res, nil
	}
	res.Hits = hits
	span.SetAttributes(attribute.Int("tier", int(TierSemantic)), attribute.Int("hits", len(hits)))
	return res, nil
}

// Semantic runs Tier 2 alone. Unlike Search, failures are returned.
func (r *Router) Semantic(ctx context.Context, query, collection string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Router.Semantic")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	query, err := validate(query, collection)
	if err != nil {
		return nil, err
	}
	hits, err := r.semantic(ctx, query, collection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Result{Query: query, Collection: collection, Tier: TierSemantic, Hits: hits}, nil
}

func (r *Router) lexical(ctx context.Context, query, collection string) ([]Hit, error) {
	var hits []Hit
	switch collection {
	case mirror.Morphemes:
		ms, err := r.catalog.SearchMorphemes(ctx, query, r.lexicalLimit)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			hits = append(hits, Hit{ID: m.ID, Name: m.Name, Label: m.Abbr, Synonyms: m.Synonyms})
		}
	case mirror.Composites:
		cs, err := r.catalog.SearchComposites(ctx, query, r.lexicalLimit)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			hits = append(hits, Hit{ID: c.ID, Name: c.Name, Label: c.EnName, Synonyms: c.Synonyms})
		}
	}
	return hits, nil
}

func (r *Router) semantic(ctx context.Context, query, collection string) ([]Hit, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	found, err := r.index.Search(ctx, collection, vector, r.semanticK)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	hits := make([]Hit, len(found))
	for i, h := range found {
		hits[i] = Hit{ID: h.ID, Name: h.Name, Label: h.Label, Score: h.Score}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int { return cmp.Compare(b.Score, a.Score) })
	if len(hits) > r.semanticK {
		hits = hits[:r.semanticK]
	}
	return hits, nil
}

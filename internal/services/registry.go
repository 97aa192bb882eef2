package services

import (
	"context"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/resolver"
	"github.com/fyrsmithlabs/namingd/internal/search"
	"github.com/fyrsmithlabs/namingd/internal/standards"
)

// Resolver turns a phrase into an identifier.
type Resolver interface {
	Resolve(ctx context.Context, phrase string) (*resolver.Resolution, error)
}

// Searcher runs catalog queries.
type Searcher interface {
	Search(ctx context.Context, query, collection string) (*search.Result, error)
	Semantic(ctx context.Context, query, collection string) (*search.Result, error)
}

// Registry provides access to all namingd services.
type Registry interface {
	Standards() *standards.Service
	Resolver() Resolver
	Search() Searcher
	Mirror() *mirror.Mirror
	Catalog() catalog.Store
}

// Options configures the registry with service instances.
type Options struct {
	Standards *standards.Service
	Resolver  Resolver
	Search    Searcher
	Mirror    *mirror.Mirror
	Catalog   catalog.Store
}

type registry struct {
	standards *standards.Service
	resolver  Resolver
	search    Searcher
	mirror    *mirror.Mirror
	catalog   catalog.Store
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		standards: opts.Standards,
		resolver:  opts.Resolver,
		search:    opts.Search,
		mirror:    opts.Mirror,
		catalog:   opts.Catalog,
	}
}

func (r *registry) Standards() *standards.Service { return r.standards }
func (r *registry) Resolver() Resolver            { return r.resolver }
func (r *registry) Search() Searcher              { return r.search }
func (r *registry) Mirror() *mirror.Mirror        { return r.mirror }
func (r *registry) Catalog() catalog.Store        { return r.catalog }

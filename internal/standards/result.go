package standards

import "github.com/fyrsmithlabs/namingd/internal/mirror"

// MutationResult reports the two phases of a catalog mutation. The catalog
// write happens first; the similarity index update follows on the same
// call path and may fail independently.
type MutationResult struct {
	CatalogCommitted bool `json:"catalog_committed"`
	MirrorCommitted  bool `json:"mirror_committed"`

	// Err explains a mirror failure. It wraps mirror.ErrPartialSync.
	Err error `json:"-"`
}

// Status folds the two phases into committed, partial or failed.
func (r MutationResult) Status() mirror.Status {
	switch {
	case !r.CatalogCommitted:
		return mirror.StatusFailed
	case !r.MirrorCommitted:
		return mirror.StatusPartial
	default:
		return mirror.StatusCommitted
	}
}

// Page is one page of a listing.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

package http

import (
	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/standards"
)

// HeaderMirrorSync is set to "partial" when a mutation reached the catalog
// but not the similarity index.
const HeaderMirrorSync = "X-Mirror-Sync"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Catalog string `json:"catalog"`
}

// MorphemeRequest is the body for creating or updating a morpheme.
type MorphemeRequest struct {
	Name     string `json:"name"`
	Abbr     string `json:"abbr"`
	FullName string `json:"full_name"`
	Synonyms string `json:"synonyms"`
	Remark   string `json:"remark"`
}

func (r MorphemeRequest) morpheme(id int64) *catalog.Morpheme {
	return &catalog.Morpheme{
		ID:       id,
		Name:     r.Name,
		Abbr:     r.Abbr,
		FullName: r.FullName,
		Synonyms: r.Synonyms,
		Remark:   r.Remark,
	}
}

// CompositeRequest is the body for creating or updating a composite.
// IsStandard defaults to true.
type CompositeRequest struct {
	Name           string  `json:"name"`
	EnName         string  `json:"en_name"`
	CompositionIDs []int64 `json:"composition_ids"`
	DataType       string  `json:"data_type"`
	Synonyms       string  `json:"synonyms"`
	IsStandard     *bool   `json:"is_standard"`
}

func (r CompositeRequest) composite(id int64) *catalog.CompositeEntity {
	isStandard := true
	if r.IsStandard != nil {
		isStandard = *r.IsStandard
	}
	return &catalog.CompositeEntity{
		ID:             id,
		Name:           r.Name,
		EnName:         r.EnName,
		CompositionIDs: r.CompositionIDs,
		DataType:       r.DataType,
		Synonyms:       r.Synonyms,
		IsStandard:     isStandard,
	}
}

// FieldRequestBody is the body for POST /api/public/field-requests.
type FieldRequestBody struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

// MutationResponse reports a catalog mutation and whether the similarity
// index followed it.
type MutationResponse struct {
	Data        any           `json:"data,omitempty"`
	Deleted     *int          `json:"deleted,omitempty"`
	MirrorSync  mirror.Status `json:"mirror_sync"`
	MirrorError string        `json:"mirror_error,omitempty"`
}

func mutationResponse(res standards.MutationResult, data any) MutationResponse {
	resp := MutationResponse{Data: data, MirrorSync: res.Status()}
	if res.Err != nil {
		resp.MirrorError = res.Err.Error()
	}
	return resp
}

// ResyncResponse is the response body for POST /api/admin/resync/:collection.
type ResyncResponse struct {
	Collection string `json:"collection"`
	Synced     int    `json:"synced"`
}

// CountResponse carries a single count.
type CountResponse struct {
	Count int64 `json:"count"`
}

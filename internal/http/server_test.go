package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/catalog/catalogtest"
	"github.com/fyrsmithlabs/namingd/internal/embeddings"
	"github.com/fyrsmithlabs/namingd/internal/embeddings/mock"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/resolver"
	"github.com/fyrsmithlabs/namingd/internal/search"
	"github.com/fyrsmithlabs/namingd/internal/services"
	"github.com/fyrsmithlabs/namingd/internal/standards"
	"github.com/fyrsmithlabs/namingd/internal/vectorstore"
	"github.com/fyrsmithlabs/namingd/internal/vocabulary"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testDims = 64

const testToken = "s3cret"

func withAdminToken(c *Config) { c.AdminToken = testToken }

var bearer = []string{echo.HeaderAuthorization, "Bearer " + testToken}


type testEnv struct {
	server   *Server
	store    *catalog.GormStore
	provider *mock.Provider
	svc      *standards.Service
}

func setupTestServer(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := catalogtest.New(t)
	index, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{VectorSize: testDims}, logger)
	require.NoError(t, err)
	provider := mock.New(testDims)
	gw, err := embeddings.NewGateway(provider)
	require.NoError(t, err)
	vocab := vocabulary.New()

	m := mirror.New(index, store, gw, mirror.WithLogger(logger))
	svc := standards.NewService(store, m, vocab, standards.WithLogger(logger))
	require.NoError(t, svc.Bootstrap(context.Background(), false))

	reg := services.NewRegistry(services.Options{
		Standards: svc,
		Resolver:  resolver.New(vocab, store, logger),
		Search:    search.NewRouter(store, m, gw, search.WithLogger(logger)),
		Mirror:    m,
		Catalog:   store,
	})

	cfg := &Config{Host: "localhost", Port: 8080}
	for _, fn := range mutate {
		fn(cfg)
	}
	server, err := NewServer(reg, logger, cfg)
	require.NoError(t, err)
	return &testEnv{server: server, store: store, provider: provider, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) seed(t *testing.T) []catalog.Morpheme {
	t.Helper()
	ms := catalogtest.Standard()
	_, err := e.svc.CreateMorphemes(context.Background(), ms)
	require.NoError(t, err)
	return ms
}

func TestNewServer(t *testing.T) {
	t.Run("returns error when registry is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "registry cannot be nil")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(services.NewRegistry(services.Options{}), nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(services.NewRegistry(services.Options{}), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.NotNil(t, server.Handler())
	})
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	require.NoError(t, env.store.Close())
	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
}

func TestHandleMetrics(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "namingd_mirror_sync_total")
}

func TestHandleSearch(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	t.Run("lexical hit", func(t *testing.T) {
		before := env.provider.Calls()
		rec := env.do(t, http.MethodGet, "/api/public/search?collection=morphemes&q="+"价格", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[search.Result](t, rec)
		assert.Equal(t, search.TierLexical, res.Tier)
		require.NotEmpty(t, res.Hits)
		assert.Equal(t, "PRC", res.Hits[0].Label)
		assert.Equal(t, before, env.provider.Calls(), "tier 1 hits never embed")
	})

	t.Run("semantic fallback", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/public/search?collection=morphemes&q="+"格价", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[search.Result](t, rec)
		assert.Equal(t, search.TierSemantic, res.Tier)
		assert.LessOrEqual(t, len(res.Hits), search.DefaultSemanticK)
	})

	t.Run("defaults to composites", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/public/search?q=x", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mirror.Composites, decode[search.Result](t, rec).Collection)
	})

	t.Run("degrades when embedding fails", func(t *testing.T) {
		env.provider.Err = errors.New("model not loaded")
		defer func() { env.provider.Err = nil }()

		rec := env.do(t, http.MethodGet, "/api/public/search?collection=morphemes&q="+"格价", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[search.Result](t, rec)
		assert.True(t, res.Degraded)
		assert.Empty(t, res.Hits)
	})

	t.Run("validation", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/public/search?q=", nil).Code)
		rec := env.do(t, http.MethodGet, "/api/public/search?q=x&collection=fields", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, decode[ErrorResponse](t, rec).RequestID)
	})
}

func TestHandleSimilarMorphemes(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/api/public/similar-morphemes?q="+"价格", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[search.Result](t, rec)
	assert.Equal(t, search.TierSemantic, res.Tier, "similar-morphemes never uses the lexical tier")
	labels := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		labels[i] = h.Label
	}
	assert.Contains(t, labels, "PRC")

	env.provider.Err = errors.New("model not loaded")
	rec = env.do(t, http.MethodGet, "/api/public/similar-morphemes?q="+"价格", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	env := setupTestServer(t, withAdminToken)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/admin/morphemes", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		env.do(t, http.MethodGet, "/api/admin/morphemes", nil, echo.HeaderAuthorization, "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK,
		env.do(t, http.MethodGet, "/api/admin/morphemes", nil, echo.HeaderAuthorization, "Bearer s3cret").Code)

	// Public routes need no token.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/public/search?q=x", nil).Code)
}

func TestRateLimit(t *testing.T) {
	env := setupTestServer(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/public/search?q=x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodGet, "/api/public/search?q=x", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/morphemes", nil).Code, "admin routes are not limited")
}

func TestMorphemeLifecycle(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/admin/morphemes", MorphemeRequest{Name: "价格", Abbr: "PRC", Synonyms: "单价, 售价"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get(HeaderMirrorSync))
	resp := decode[struct {
		Data       catalog.Morpheme `json:"data"`
		MirrorSync mirror.Status    `json:"mirror_sync"`
	}](t, rec)
	assert.Equal(t, mirror.StatusCommitted, resp.MirrorSync)
	assert.Equal(t, "单价 售价", resp.Data.Synonyms)
	id := resp.Data.ID
	require.NotZero(t, id)

	rec = env.do(t, http.MethodPost, "/api/admin/morphemes", MorphemeRequest{Name: "价格", Abbr: "PRICE"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/morphemes", MorphemeRequest{Name: "日期", Abbr: "D T"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "abbr")

	rec = env.do(t, http.MethodPost, "/api/admin/morphemes", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/morphemes/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PRC", decode[catalog.Morpheme](t, rec).Abbr)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/morphemes/%d", id), MorphemeRequest{Name: "价格", Abbr: "PRICE"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/suggest?q="+"价格", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PRICE", decode[resolver.Resolution](t, rec).Identifier)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/morphemes/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mirror.StatusCommitted, decode[MutationResponse](t, rec).MirrorSync)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/morphemes/%d", id), nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/admin/morphemes/999", MorphemeRequest{Name: "x", Abbr: "X"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/admin/morphemes/abc", nil).Code)
}

func TestMorphemePartialSync(t *testing.T) {
	env := setupTestServer(t)
	env.provider.Err = errors.New("model not loaded")

	rec := env.do(t, http.MethodPost, "/api/admin/morphemes", MorphemeRequest{Name: "价格", Abbr: "PRC"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "partial", rec.Header().Get(HeaderMirrorSync))
	resp := decode[MutationResponse](t, rec)
	assert.Equal(t, mirror.StatusPartial, resp.MirrorSync)
	assert.NotEmpty(t, resp.MirrorError)

	n, err := env.store.CountMorphemes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "catalog keeps the row")

	// Repair the single row.
	env.provider.Err = nil
	page, err := env.svc.ListMorphemes(context.Background(), 0, 1)
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/sync/morphemes/%d", page.Items[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mirror.StatusCommitted, decode[mirror.SyncResult](t, rec).Status)
}

func TestMorphemeBatchAndClear(t *testing.T) {
	env := setupTestServer(t, withAdminToken)

	rec := env.do(t, http.MethodPost, "/api/admin/morphemes/batch", []MorphemeRequest{
		{Name: "价格", Abbr: "PRC"},
		{Name: "日期", Abbr: "DT"},
		{Name: "客户", Abbr: "CUST"},
	}, bearer...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, env.provider.Calls(), "batch import embeds once")

	rec = env.do(t, http.MethodGet, "/api/admin/morphemes?limit=2", nil, bearer...)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[standards.Page[catalog.Morpheme]](t, rec)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/admin/morphemes?limit=x", nil, bearer...).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/admin/morphemes/batch", MorphemeRequest{Name: "a"}, bearer...).Code)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, "/api/admin/morphemes", nil).Code)
	rec = env.do(t, http.MethodDelete, "/api/admin/morphemes", nil, bearer...)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MutationResponse](t, rec)
	require.NotNil(t, resp.Deleted)
	assert.Equal(t, 3, *resp.Deleted)
}

func TestCompositeLifecycle(t *testing.T) {
	env := setupTestServer(t)
	ms := env.seed(t)

	rec := env.do(t, http.MethodPost, "/api/admin/composites", CompositeRequest{
		Name: "价格日期", EnName: "PRC_DT", CompositionIDs: []int64{ms[0].ID, 999},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/composites", CompositeRequest{
		Name: "价格日期", EnName: "PRC_DT", CompositionIDs: []int64{ms[0].ID, ms[1].ID}, Synonyms: "定价日",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Data catalog.CompositeEntity `json:"data"`
	}](t, rec).Data
	assert.True(t, created.IsStandard, "is_standard defaults to true")

	path := fmt.Sprintf("/api/admin/composites/%d", created.ID)
	rec = env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[standards.CompositeDetails](t, rec)
	require.Len(t, details.Morphemes, 2)
	assert.Equal(t, "PRC", details.Morphemes[0].Abbr)

	rec = env.do(t, http.MethodGet, "/api/public/search?q="+"定价", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[search.Result](t, rec)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "PRC_DT", res.Hits[0].Label)

	notStandard := false
	rec = env.do(t, http.MethodPut, path, CompositeRequest{Name: "价格日期", EnName: "PRICE_DATE", IsStandard: &notStandard})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, path, nil)
	details = decode[standards.CompositeDetails](t, rec)
	assert.Equal(t, "PRICE_DATE", details.EnName)
	assert.False(t, details.IsStandard)

	rec = env.do(t, http.MethodGet, "/api/admin/composites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[standards.Page[catalog.CompositeEntity]](t, rec).Total)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil).Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/composites", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "bulk clear needs a token")
}

func TestBulkClearRequiresToken(t *testing.T) {
	t.Run("not registered without a token", func(t *testing.T) {
		env := setupTestServer(t)
		env.seed(t)

		for _, path := range []string{"/api/admin/morphemes", "/api/admin/composites"} {
			rec := env.do(t, http.MethodDelete, path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
		}
		n, err := env.store.CountMorphemes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(len(catalogtest.Standard())), n, "catalog untouched")

		// Reads stay open.
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/morphemes", nil).Code)
	})

	t.Run("available with a token", func(t *testing.T) {
		env := setupTestServer(t, withAdminToken)
		env.seed(t)

		rec := env.do(t, http.MethodDelete, "/api/admin/composites", nil, bearer...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, *decode[MutationResponse](t, rec).Deleted)

		rec = env.do(t, http.MethodDelete, "/api/admin/morphemes", nil, bearer...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, len(catalogtest.Standard()), *decode[MutationResponse](t, rec).Deleted)
	})
}

func TestHandleResync(t *testing.T) {
	env := setupTestServer(t)
	catalogtest.Morphemes(t, env.store, catalogtest.Standard()...)

	rec := env.do(t, http.MethodPost, "/api/admin/resync/morphemes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ResyncResponse{Collection: "morphemes", Synced: 4}, decode[ResyncResponse](t, rec))

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/admin/resync/fields", nil).Code)

	env.provider.Err = errors.New("model not loaded")
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/admin/resync/morphemes", nil).Code)
}

func TestFieldRequests(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/public/field-requests", FieldRequestBody{}).Code)

	rec := env.do(t, http.MethodPost, "/api/public/field-requests", FieldRequestBody{Name: "退货原因", Note: "returns"})
	require.Equal(t, http.StatusCreated, rec.Code)
	fr := decode[catalog.FieldRequest](t, rec)

	rec = env.do(t, http.MethodGet, "/api/admin/field-requests/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[CountResponse](t, rec).Count)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/field-requests/%d/complete", fr.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/field-requests?open=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]catalog.FieldRequest](t, rec))

	rec = env.do(t, http.MethodGet, "/api/admin/field-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.FieldRequest](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/admin/field-requests?open=maybe", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/admin/field-requests/999/complete", nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", catalog.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", catalog.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", catalog.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", catalog.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", embeddings.ErrEmbeddingFailed), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", vectorstore.ErrConnectionFailed), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

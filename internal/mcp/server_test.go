package mcp

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const dims = 64

type testEnv struct {
	session  *mcp.ClientSession
	store    *catalog.GormStore
	provider *mock.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store := catalogtest.New(t)
	index, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{VectorSize: dims}, logger)
	require.NoError(t, err)
	provider := mock.New(dims)
	gw, err := embeddings.NewGateway(provider)
	require.NoError(t, err)
	vocab := vocabulary.New()
	m := mirror.New(index, store, gw, mirror.WithLogger(logger))
	svc := standards.NewService(store, m, vocab, standards.WithLogger(logger))
	require.NoError(t, svc.Bootstrap(ctx, false))
	_, err = svc.CreateMorphemes(ctx, catalogtest.Standard())
	require.NoError(t, err)

	reg := services.NewRegistry(services.Options{
		Standards: svc,
		Resolver:  resolver.New(vocab, store, logger),
		Search:    search.NewRouter(store, m, gw),
		Mirror:    m,
		Catalog:   store,
	})
	server, err := NewServer(&Config{Name: "namingd-test", Version: "test", Logger: logger}, reg)
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &testEnv{session: cs, store: store, provider: provider}
}

func (e *testEnv) call(t *testing.T, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	return res
}

func structured[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.ErrorContains(t, err, "registry is required")

	_, err = NewServer(nil, services.NewRegistry(services.Options{}))
	assert.ErrorContains(t, err, "services are required")
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"resolve_name", "search_catalog", "similar_morphemes", "request_field"}, names)
}

func TestResolveName(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "resolve_name", map[string]any{"phrase": "客户价格"})
	require.False(t, res.IsError, text(t, res))
	out := structured[resolveNameOutput](t, res)
	assert.Equal(t, "CUST_PRC", out.Identifier)
	assert.True(t, out.Complete)
	assert.Empty(t, out.Missing)
	assert.Contains(t, text(t, res), "CUST_PRC")

	res = env.call(t, "resolve_name", map[string]any{"phrase": "客户猫"})
	require.False(t, res.IsError)
	out = structured[resolveNameOutput](t, res)
	assert.False(t, out.Complete)
	assert.Equal(t, []string{"猫"}, out.Missing)
	assert.Equal(t, "CUST_[猫]", out.Identifier)
	assert.Contains(t, text(t, res), "missing")

	res = env.call(t, "resolve_name", map[string]any{"phrase": "  "})
	assert.True(t, res.IsError)
}

func TestSearchCatalog(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "search_catalog", map[string]any{"query": "顾客", "collection": "morphemes"})
	require.False(t, res.IsError, text(t, res))
	out := structured[searchOutput](t, res)
	assert.Equal(t, "lexical", out.Tier)
	require.Len(t, out.Hits, 1)
	assert.Equal(t, "CUST", out.Hits[0].Label)

	res = env.call(t, "search_catalog", map[string]any{"query": "格价", "collection": "morphemes"})
	require.False(t, res.IsError)
	out = structured[searchOutput](t, res)
	assert.Equal(t, "semantic", out.Tier)
	assert.NotEmpty(t, out.Hits)

	res = env.call(t, "search_catalog", map[string]any{"query": "价格"})
	require.False(t, res.IsError)
	assert.Empty(t, structured[searchOutput](t, res).Hits, "no composites yet")

	res = env.call(t, "search_catalog", map[string]any{"query": "价格", "collection": "fields"})
	assert.True(t, res.IsError)
}

func TestSimilarMorphemes(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "similar_morphemes", map[string]any{"word": "日期"})
	require.False(t, res.IsError, text(t, res))
	out := structured[searchOutput](t, res)
	assert.Equal(t, "semantic", out.Tier)
	require.NotEmpty(t, out.Hits)
	assert.LessOrEqual(t, len(out.Hits), search.DefaultSemanticK)

	env.provider.Err = errors.New("model not loaded")
	res = env.call(t, "similar_morphemes", map[string]any{"word": "日期"})
	assert.True(t, res.IsError)
}

func TestRequestField(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "request_field", map[string]any{"name": "退货原因", "note": "returns flow"})
	require.False(t, res.IsError, text(t, res))
	assert.NotZero(t, structured[requestFieldOutput](t, res).ID)

	n, err := env.store.CountOpenFieldRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res = env.call(t, "request_field", map[string]any{"name": ""})
	assert.True(t, res.IsError)
}

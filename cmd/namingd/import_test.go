package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
)

const seedTOML = `
[[morpheme]]
name = "客户"
abbr = "CUST"
full_name = "customer"
synonyms = "顾客, 用户"

[[morpheme]]
name = "价格"
abbr = "PRC"

[[composite]]
name = "客户价格"
morphemes = ["客户", "价格"]

[[composite]]
name = "价格"
en_name = "PRICE"
morphemes = ["价格"]
is_standard = false
`

func TestLoadSeed(t *testing.T) {
	seed, err := loadSeed(writeFile(t, "seed.toml", seedTOML))
	require.NoError(t, err)
	require.Len(t, seed.Morphemes, 2)
	require.Len(t, seed.Composites, 2)
	assert.Equal(t, "顾客, 用户", seed.Morphemes[0].Synonyms)
	assert.Equal(t, []string{"客户", "价格"}, seed.Composites[0].Morphemes)
	require.NotNil(t, seed.Composites[1].IsStandard)
	assert.False(t, *seed.Composites[1].IsStandard)
}

func TestLoadSeed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "[[morpheme]]\nname = \"价格\"\nabbrev = \"PRC\"\n"},
		{"empty", "# nothing\n"},
		{"malformed", "[[morpheme]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSeed(writeFile(t, "seed.toml", tt.content))
			assert.Error(t, err)
		})
	}
	_, err := loadSeed("/nonexistent/seed.toml")
	assert.Error(t, err)
}

func TestImportSeed(t *testing.T) {
	a, provider := newTestApp(t)
	ctx := context.Background()
	seed, err := loadSeed(writeFile(t, "seed.toml", seedTOML))
	require.NoError(t, err)

	sum, err := importSeed(ctx, a, seed)
	require.NoError(t, err)
	assert.Equal(t, importSummary{Morphemes: 2, Composites: 2}, sum)
	assert.Equal(t, 3, provider.Calls(), "one batch for morphemes, one call per composite")

	page, err := a.standards.ListComposites(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	byName := map[string]catalog.CompositeEntity{}
	for _, c := range page.Items {
		byName[c.Name] = c
	}
	assert.Equal(t, "CUST_PRC", byName["客户价格"].EnName)
	assert.True(t, byName["客户价格"].IsStandard)
	assert.Equal(t, "PRICE", byName["价格"].EnName)
	assert.False(t, byName["价格"].IsStandard)

	n, err := a.index.Count(ctx, mirror.Composites)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := a.registry.Resolver().Resolve(ctx, "客户价格")
	require.NoError(t, err)
	assert.Equal(t, "CUST_PRC", res.Identifier)

	sum, err = importSeed(ctx, a, seed)
	require.NoError(t, err)
	assert.Equal(t, importSummary{SkippedMorphemes: 2, SkippedComposite: 2}, sum)
}

func TestImportSeed_UnknownMorpheme(t *testing.T) {
	a, _ := newTestApp(t)
	seed := &seedFile{
		Morphemes:  []seedMorpheme{{Name: "价格", Abbr: "PRC"}},
		Composites: []seedComposite{{Name: "价格日期", Morphemes: []string{"价格", "日期"}}},
	}

	sum, err := importSeed(context.Background(), a, seed)
	assert.ErrorIs(t, err, catalog.ErrValidation)
	assert.ErrorContains(t, err, "日期")
	assert.Equal(t, 1, sum.Morphemes)
	assert.Zero(t, sum.Composites)
}

func TestImportSeed_InvalidMorphemeRejectsBatch(t *testing.T) {
	a, _ := newTestApp(t)
	seed := &seedFile{Morphemes: []seedMorpheme{
		{Name: "价格", Abbr: "PRC"},
		{Name: "日期", Abbr: "1DT"},
	}}

	_, err := importSeed(context.Background(), a, seed)
	assert.ErrorIs(t, err, catalog.ErrValidation)

	n, err := a.store.CountMorphemes(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltin(t *testing.T) {
	v := New()
	n, err := v.LoadBuiltin()
	require.NoError(t, err)
	assert.Greater(t, n, 100000)
	assert.True(t, v.Has("猫咪"))
	assert.True(t, v.Has("价格"))

	assert.Equal(t, []string{"价格", "猫咪"}, v.Segment("价格猫咪"))
	assert.Equal(t, []string{"客户", "编号"}, v.Segment("客户编号"))
}

func TestLoadBuiltin_CatalogTermsOverride(t *testing.T) {
	v := New()
	_, err := v.LoadBuiltin()
	require.NoError(t, err)
	require.NoError(t, v.AddTerm("价格", CatalogWeight))

	assert.Equal(t, []string{"价格", "猫咪"}, v.Segment("价格猫咪"))

	// Retracting the override falls back to the builtin weight.
	assert.True(t, v.RemoveTerm("价格"))
	assert.True(t, v.Has("价格"))
	assert.Equal(t, []string{"价格", "猫咪"}, v.Segment("价格猫咪"))
}

func TestLoadBuiltin_SharedBaseIsNotMutated(t *testing.T) {
	a, b := New(), New()
	_, err := a.LoadBuiltin()
	require.NoError(t, err)
	_, err = b.LoadBuiltin()
	require.NoError(t, err)

	require.NoError(t, a.AddTerm("术语猫咪", CatalogWeight))
	assert.True(t, a.Has("术语猫咪"))
	assert.False(t, b.Has("术语猫咪"))
	assert.Equal(t, b.Len()+1, a.Len())
}

// Package catalogtest provides a throwaway sqlite-backed catalog for tests.
package catalogtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// New opens a migrated sqlite catalog in a temp directory. It is closed
// when the test ends.
func New(t testing.TB) *catalog.GormStore {
	t.Helper()
	store, err := catalog.Open(catalog.Config{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "catalog.db") + "?_busy_timeout=5000",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Morphemes inserts ms in order and returns them with ids assigned.
func Morphemes(t testing.TB, store catalog.Store, ms ...catalog.Morpheme) []catalog.Morpheme {
	t.Helper()
	for i := range ms {
		require.NoError(t, store.CreateMorpheme(context.Background(), &ms[i]))
	}
	return ms
}

// Composites inserts cs in order and returns them with ids assigned.
func Composites(t testing.TB, store catalog.Store, cs ...catalog.CompositeEntity) []catalog.CompositeEntity {
	t.Helper()
	for i := range cs {
		require.NoError(t, store.CreateComposite(context.Background(), &cs[i]))
	}
	return cs
}

// Standard returns a small set of morphemes used across tests:
// 价格/PRC, 日期/DT, 客户/CUST (synonym 顾客) and 费率/RATE (synonyms 费 价格).
func Standard() []catalog.Morpheme {
	return []catalog.Morpheme{
		{Name: "价格", Abbr: "PRC", FullName: "price"},
		{Name: "日期", Abbr: "DT", FullName: "date", Synonyms: "日子"},
		{Name: "客户", Abbr: "CUST", FullName: "customer", Synonyms: "顾客, 用户"},
		{Name: "费率", Abbr: "RATE", FullName: "rate", Synonyms: "费 价格"},
	}
}

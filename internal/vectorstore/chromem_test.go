package vectorstore

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/namingd/internal/config"
	"github.com/fyrsmithlabs/namingd/internal/embeddings/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testDims = 64

func newTestIndex(t *testing.T) *ChromemIndex {
	t.Helper()
	idx, err := NewChromemIndex(ChromemConfig{VectorSize: testDims}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, idx.EnsureCollection(context.Background(), "morphemes", testDims))
	return idx
}

func record(id int64, name, label string) Record {
	return Record{ID: id, Vector: mock.Vector(name, testDims), Payload: Payload{Name: name, Label: label}}
}

func TestChromemIndex_UpsertThenSearchSameVector(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{
		record(1, "价格", "PRC"),
		record(2, "日期", "DT"),
		record(3, "客户编号", "CUST_NO"),
	}))

	hits, err := idx.Search(ctx, "morphemes", mock.Vector("日期", testDims), 5)
	require.NoError(t, err)
	require.Len(t, hits, 3, "k is capped at collection size")
	assert.Equal(t, int64(2), hits[0].ID)
	assert.Equal(t, "DT", hits[0].Label)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestChromemIndex_UpsertReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{record(1, "价格", "PRC")}))
	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{record(1, "单价", "UPRC")}))

	n, err := idx.Count(ctx, "morphemes")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, ok, err := idx.Lookup(ctx, "morphemes", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Payload{Name: "单价", Label: "UPRC"}, p)
}

func TestChromemIndex_DeleteIsIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{record(1, "价格", "PRC"), record(2, "日期", "DT")}))
	require.NoError(t, idx.Delete(ctx, "morphemes", 1))
	require.NoError(t, idx.Delete(ctx, "morphemes", 1, 99))

	_, ok, err := idx.Lookup(ctx, "morphemes", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	hits, err := idx.Search(ctx, "morphemes", mock.Vector("价格", testDims), 5)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, int64(1), h.ID)
	}
}

func TestChromemIndex_IDs(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	ids, err := idx.IDs(ctx, "morphemes")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{
		record(1, "价格", "PRC"),
		record(5, "日期", "DT"),
		record(9, "客户", "CUST"),
	}))
	ids, err = idx.IDs(ctx, "morphemes")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 5, 9}, ids)

	_, err = idx.IDs(ctx, "composites")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemIndex_DeleteAll(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{record(1, "价格", "PRC"), record(2, "日期", "DT")}))
	require.NoError(t, idx.DeleteAll(ctx, "morphemes"))

	n, err := idx.Count(ctx, "morphemes")
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := idx.Search(ctx, "morphemes", mock.Vector("价格", testDims), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{record(3, "客户", "CUST")}), "collection survives clearing")
}

func TestChromemIndex_Validation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		records []Record
		wantErr error
	}{
		{"empty name", []Record{{ID: 1, Vector: mock.Vector("x", testDims), Payload: Payload{Label: "X"}}}, ErrInvalidPayload},
		{"empty label", []Record{{ID: 1, Vector: mock.Vector("x", testDims), Payload: Payload{Name: "x"}}}, ErrInvalidPayload},
		{"short vector", []Record{{ID: 1, Vector: make([]float32, 3), Payload: Payload{Name: "x", Label: "X"}}}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, idx.Upsert(ctx, "morphemes", tt.records), tt.wantErr)
		})
	}

	_, err := idx.Search(ctx, "morphemes", make([]float32, 3), 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Search(ctx, "morphemes", mock.Vector("x", testDims), 0)
	assert.Error(t, err)

	err = idx.Upsert(ctx, "composites", []Record{record(1, "价格", "PRC")})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	assert.ErrorIs(t, idx.EnsureCollection(ctx, "../etc", testDims), ErrInvalidCollectionName)
	assert.ErrorIs(t, idx.EnsureCollection(ctx, "composites", testDims+1), ErrDimensionMismatch)
}

func TestChromemIndex_EnsureCollectionIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "morphemes", []Record{record(1, "价格", "PRC")}))
	require.NoError(t, idx.EnsureCollection(ctx, "morphemes", testDims))

	n, err := idx.Count(ctx, "morphemes")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := idx.CollectionExists(ctx, "composites")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChromemIndex_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := NewChromemIndex(ChromemConfig{Path: dir, VectorSize: testDims}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, idx.EnsureCollection(ctx, "composites", testDims))
	require.NoError(t, idx.Upsert(ctx, "composites", []Record{record(7, "价格日期", "PRC_DT")}))
	require.NoError(t, idx.Close())

	reopened, err := NewChromemIndex(ChromemConfig{Path: dir, VectorSize: testDims}, zaptest.NewLogger(t))
	require.NoError(t, err)
	p, ok, err := reopened.Lookup(ctx, "composites", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "PRC_DT", p.Label)
}

func TestNewIndex(t *testing.T) {
	idx, err := NewIndex(config.VectorStoreConfig{Provider: "chromem"}, testDims, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &ChromemIndex{}, idx)

	_, err = NewIndex(config.VectorStoreConfig{Provider: "faiss"}, testDims, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPayload_Validate(t *testing.T) {
	long := make([]rune, MaxPayloadLen+1)
	for i := range long {
		long[i] = '价'
	}
	assert.NoError(t, Payload{Name: "价格", Label: "PRC"}.Validate())
	assert.ErrorIs(t, Payload{Name: string(long), Label: "PRC"}.Validate(), ErrInvalidPayload)
}

func TestValidateCollectionName(t *testing.T) {
	for _, name := range []string{"morphemes", "composites", "a_1"} {
		assert.NoError(t, ValidateCollectionName(name), name)
	}
	for _, name := range []string{"", "Morphemes", "a-b", "a b", "../x"} {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}

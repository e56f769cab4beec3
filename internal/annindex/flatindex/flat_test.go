package flatindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thebtf/vectordb/internal/annindex"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

func TestBasicInsertSearch(t *testing.T) {
	idx, err := New(3, annindex.MetricCosine)
	require.NoError(t, err)

	ctx := context.Background()
	records := []annindex.Record{
		{ID: "v1", Vector: []float32{1, 0, 0}, Metadata: models.Metadata{"cat": "A"}},
		{ID: "v2", Vector: []float32{0, 1, 0}, Metadata: models.Metadata{"cat": "B"}},
		{ID: "v3", Vector: []float32{0, 0, 1}, Metadata: models.Metadata{"cat": "A"}},
	}
	require.NoError(t, idx.Build(ctx, records))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "v1", results[0].ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestFilteredSearch(t *testing.T) {
	idx, err := New(3, annindex.MetricCosine)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, []annindex.Record{
		{ID: "v1", Vector: []float32{1, 0, 0}, Metadata: models.Metadata{"cat": "A"}},
		{ID: "v2", Vector: []float32{0, 1, 0}, Metadata: models.Metadata{"cat": "B"}},
		{ID: "v3", Vector: []float32{0, 0, 1}, Metadata: models.Metadata{"cat": "A"}},
	}))

	filter := func(m models.Metadata) bool { return m["cat"] == "A" }
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, filter)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "v1", results[0].ID)
	require.Equal(t, "v3", results[1].ID)
}

func TestAddDimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	idx, err := New(3, annindex.MetricCosine)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, annindex.Record{ID: "v1", Vector: []float32{1, 0, 0}}))

	err = idx.Add(ctx, annindex.Record{ID: "v2", Vector: []float32{1, 0}})
	require.ErrorIs(t, err, vdberrors.ErrDimensionMismatch)
	require.Equal(t, 1, idx.Stats().VectorCount)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	idx, err := New(3, annindex.MetricCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Remove(context.Background(), "missing"))
}

func TestSerializeRoundTrip(t *testing.T) {
	idx, err := New(3, annindex.MetricL2)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, []annindex.Record{
		{ID: "a", Vector: []float32{1, 2, 3}, Metadata: models.Metadata{"x": 1.0}},
		{ID: "b", Vector: []float32{4, 5, 6}},
	}))

	data, err := idx.Serialize()
	require.NoError(t, err)

	idx2, err := New(3, annindex.MetricL2)
	require.NoError(t, err)
	require.NoError(t, idx2.Deserialize(data))
	require.Equal(t, 2, idx2.Stats().VectorCount)
}

func TestDeserializeCorruptedFailsWithoutMutating(t *testing.T) {
	idx, err := New(3, annindex.MetricL2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), annindex.Record{ID: "a", Vector: []float32{1, 2, 3}}))

	err = idx.Deserialize([]byte("garbage"))
	require.ErrorIs(t, err, vdberrors.ErrIndexCorrupted)
	require.Equal(t, 1, idx.Stats().VectorCount)
}

func TestDeserializeDimensionMismatch(t *testing.T) {
	src, err := New(4, annindex.MetricCosine)
	require.NoError(t, err)
	require.NoError(t, src.Add(context.Background(), annindex.Record{ID: "a", Vector: []float32{1, 0, 0, 0}}))
	data, err := src.Serialize()
	require.NoError(t, err)

	dst, err := New(3, annindex.MetricCosine)
	require.NoError(t, err)
	err = dst.Deserialize(data)
	require.ErrorIs(t, err, vdberrors.ErrDimensionMismatch)
	require.Equal(t, 0, dst.Stats().VectorCount)
}

var _ annindex.Index = (*Index)(nil)

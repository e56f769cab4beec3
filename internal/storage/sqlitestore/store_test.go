package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thebtf/vectordb/internal/storage"
	"github.com/thebtf/vectordb/pkg/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectordb.sqlite")
	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	rec := &models.VectorRecord{ID: "a", Vector: []float32{1, 2, 3}, Metadata: models.Metadata{"k": "v"}, Timestamp: 42}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, rec.Vector, got.Vector)
	require.Equal(t, "v", got.Metadata["k"])
	require.EqualValues(t, 42, got.Timestamp)
}

func TestPutIsUpsert(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &models.VectorRecord{ID: "a", Vector: []float32{1}, Timestamp: 1}))
	require.NoError(t, s.Put(ctx, &models.VectorRecord{ID: "a", Vector: []float32{2}, Timestamp: 2}))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []float32{2}, got.Vector)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := openTemp(t)
	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteReportsExistence(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &models.VectorRecord{ID: "a", Vector: []float32{1}}))

	existed, err := s.Delete(ctx, "a")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestGetAllAndScan(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.PutBatch(ctx, []*models.VectorRecord{
		{ID: "a", Vector: []float32{1}, Timestamp: 1},
		{ID: "b", Vector: []float32{2}, Timestamp: 2},
	}))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestClearEmptiesStore(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &models.VectorRecord{ID: "a", Vector: []float32{1}}))
	require.NoError(t, s.Clear(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

var _ storage.Storage = (*Store)(nil)

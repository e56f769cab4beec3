package boltstore

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
	path := filepath.Join(t.TempDir(), "vectordb.bolt")
	s, err := Open(path)
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

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := openTemp(t)
	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPutBatchAndCount(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	recs := []*models.VectorRecord{
		{ID: "a", Vector: []float32{1}},
		{ID: "b", Vector: []float32{2}},
	}
	require.NoError(t, s.PutBatch(ctx, recs))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
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

func TestScanVisitsAllAndCanAbort(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.PutBatch(ctx, []*models.VectorRecord{
		{ID: "a", Vector: []float32{1}},
		{ID: "b", Vector: []float32{2}},
		{ID: "c", Vector: []float32{3}},
	}))

	var seen []string
	err := s.Scan(ctx, func(r *models.VectorRecord) error {
		seen = append(seen, r.ID)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)

	sentinel := require.New(t)
	abortErr := &abortError{}
	err = s.Scan(ctx, func(r *models.VectorRecord) error { return abortErr })
	sentinel.ErrorIs(err, abortErr)
}

type abortError struct{}

func (*abortError) Error() string { return "abort" }

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

package coalescer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thebtf/vectordb/internal/storage/boltstore"
	"github.com/thebtf/vectordb/pkg/models"
)

func newTestStore(t *testing.T) *boltstore.Store {
	t.Helper()
	s, err := boltstore.Open(t.TempDir() + "/test.bolt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutUpdatesIndexBeforeFlush(t *testing.T) {
	store := newTestStore(t)
	var indexed int32

	c := New(store, Config{
		MaxBatchSize:  100,
		FlushInterval: time.Hour, // never fires on its own within the test
		OnIndexPut: func(ctx context.Context, r *models.VectorRecord) error {
			atomic.AddInt32(&indexed, 1)
			return nil
		},
	})

	rec := &models.VectorRecord{ID: "a", Vector: []float32{1, 2, 3}}
	require.NoError(t, c.Put(context.Background(), rec))

	require.EqualValues(t, 1, atomic.LoadInt32(&indexed))

	// durable write hasn't landed yet — it's deferred.
	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, c.Flush(context.Background()))
	got, err = store.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestFlushTriggersOnBatchSize(t *testing.T) {
	store := newTestStore(t)
	c := New(store, Config{MaxBatchSize: 3, FlushInterval: time.Hour})

	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		require.NoError(t, c.Put(context.Background(), &models.VectorRecord{ID: id, Vector: []float32{1}}))
	}

	require.Eventually(t, func() bool {
		n, err := store.Count(context.Background())
		return err == nil && n == 3
	}, time.Second, 5*time.Millisecond)
}

func TestFlushTriggersOnTimer(t *testing.T) {
	store := newTestStore(t)
	c := New(store, Config{MaxBatchSize: 1000, FlushInterval: 20 * time.Millisecond})

	require.NoError(t, c.Put(context.Background(), &models.VectorRecord{ID: "a", Vector: []float32{1}}))

	require.Eventually(t, func() bool {
		n, err := store.Count(context.Background())
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPutThenDeleteSameIDResolvesToDelete(t *testing.T) {
	store := newTestStore(t)
	c := New(store, Config{MaxBatchSize: 1000, FlushInterval: time.Hour})

	require.NoError(t, c.Put(context.Background(), &models.VectorRecord{ID: "a", Vector: []float32{1}}))
	require.NoError(t, c.Delete(context.Background(), "a"))
	require.NoError(t, c.Flush(context.Background()))

	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestConcurrentPutsAllFlushExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	c := New(store, Config{MaxBatchSize: 8, FlushInterval: 50 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a'+i%26)) + string(rune('0'+i/26))
			_ = c.Put(context.Background(), &models.VectorRecord{ID: id, Vector: []float32{float32(i)}})
		}(i)
	}
	wg.Wait()
	require.NoError(t, c.Flush(context.Background()))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 50, n)
}

// flakyStore fails PutBatch on demand, for exercising flush-failure paths.
type flakyStore struct {
	*boltstore.Store
	failPuts atomic.Bool
}

func (s *flakyStore) PutBatch(ctx context.Context, rs []*models.VectorRecord) error {
	if s.failPuts.Load() {
		return errors.New("disk full")
	}
	return s.Store.PutBatch(ctx, rs)
}

func TestFailedBackgroundFlushSurfacesOnNextFlush(t *testing.T) {
	fs := &flakyStore{Store: newTestStore(t)}
	c := New(fs, Config{MaxBatchSize: 1, FlushInterval: time.Hour})
	fs.failPuts.Store(true)

	// batch size 1 triggers an immediate background flush, which fails
	require.NoError(t, c.Put(context.Background(), &models.VectorRecord{ID: "a", Vector: []float32{1}}))

	err := c.Flush(context.Background())
	require.ErrorContains(t, err, "disk full")

	// the failure is reported once, then the coalescer works again
	fs.failPuts.Store(false)
	require.NoError(t, c.Flush(context.Background()))
	require.NoError(t, c.Put(context.Background(), &models.VectorRecord{ID: "b", Vector: []float32{2}}))
	require.NoError(t, c.Close(context.Background()))
}

func TestCloseFlushesRemaining(t *testing.T) {
	store := newTestStore(t)
	c := New(store, Config{MaxBatchSize: 1000, FlushInterval: time.Hour})
	require.NoError(t, c.Put(context.Background(), &models.VectorRecord{ID: "a", Vector: []float32{1}}))
	require.NoError(t, c.Close(context.Background()))

	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, got)
}

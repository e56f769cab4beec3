package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheComputesOnceAndCaches(t *testing.T) {
	c := NewEmbeddingCache(10, 0)
	var calls int32

	compute := func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{1, 2, 3}, nil
	}

	emb, err := c.GetOrCompute(context.Background(), "hello", compute)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, emb)

	emb, err = c.GetOrCompute(context.Background(), "hello", compute)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, emb)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	require.EqualValues(t, 1, c.Stats().Hits)
}

func TestEmbeddingCacheConcurrentCallsDeduped(t *testing.T) {
	c := NewEmbeddingCache(10, 0)
	var calls int32

	compute := func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return []float32{9}, nil
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			_, _ = c.GetOrCompute(context.Background(), "same text", compute)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEmbeddingCacheTTLExpiry(t *testing.T) {
	c := NewEmbeddingCache(10, 5*time.Millisecond)
	var calls int32
	compute := func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{1}, nil
	}

	_, err := c.GetOrCompute(context.Background(), "x", compute)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.GetOrCompute(context.Background(), "x", compute)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestEmbeddingCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewEmbeddingCache(2, 0)
	compute := func(val float32) ComputeFunc {
		return func(ctx context.Context, text string) ([]float32, error) {
			return []float32{val}, nil
		}
	}

	_, err := c.GetOrCompute(context.Background(), "a", compute(1))
	require.NoError(t, err)
	_, err = c.GetOrCompute(context.Background(), "b", compute(2))
	require.NoError(t, err)
	// touch "a" so "b" is least recently used
	_, err = c.GetOrCompute(context.Background(), "a", compute(1))
	require.NoError(t, err)
	_, err = c.GetOrCompute(context.Background(), "c", compute(3))
	require.NoError(t, err)

	require.EqualValues(t, 2, c.Stats().Entries)
	require.EqualValues(t, 1, c.Stats().Evictions)
}

func TestEmbeddingCacheInvalidateAndClear(t *testing.T) {
	c := NewEmbeddingCache(10, 0)
	compute := func(ctx context.Context, text string) ([]float32, error) { return []float32{1}, nil }

	_, err := c.GetOrCompute(context.Background(), "a", compute)
	require.NoError(t, err)
	c.Invalidate("a")
	require.Zero(t, c.Stats().Entries)

	_, err = c.GetOrCompute(context.Background(), "b", compute)
	require.NoError(t, err)
	c.Clear()
	require.Zero(t, c.Stats().Entries)
}

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thebtf/vectordb/pkg/models"
)

func TestVectorCachePutGet(t *testing.T) {
	c := NewVectorCache(10_000)
	rec := &models.VectorRecord{ID: "a", Vector: []float32{1, 2, 3}, Metadata: models.Metadata{"k": "v"}}
	c.Put(rec)

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, rec.Vector, got.Vector)

	// mutating the returned clone must not affect the cached copy
	got.Vector[0] = 99
	got2, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, float32(1), got2.Vector[0])
}

func TestVectorCacheMiss(t *testing.T) {
	c := NewVectorCache(10_000)
	_, ok := c.Get("missing")
	require.False(t, ok)
	require.EqualValues(t, 1, c.Stats().Misses)
}

func TestVectorCacheEvictsLeastRecentlyUsed(t *testing.T) {
	rec := func(id string) *models.VectorRecord {
		return &models.VectorRecord{ID: id, Vector: make([]float32, 10)}
	}
	size := EstimateSize(rec("x"))
	c := NewVectorCache(size * 2)

	c.Put(rec("a"))
	c.Put(rec("b"))
	// touch "a" so "b" becomes the least recently used
	_, _ = c.Get("a")
	c.Put(rec("c"))

	_, ok := c.Get("b")
	require.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestVectorCacheOversizedRecordNotCached(t *testing.T) {
	c := NewVectorCache(10)
	rec := &models.VectorRecord{ID: "huge", Vector: make([]float32, 1000)}
	c.Put(rec)

	_, ok := c.Get("huge")
	require.False(t, ok)
	require.Zero(t, c.Stats().Entries)
}

func TestVectorCacheDeleteAndClear(t *testing.T) {
	c := NewVectorCache(10_000)
	c.Put(&models.VectorRecord{ID: "a", Vector: []float32{1}})
	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)

	c.Put(&models.VectorRecord{ID: "b", Vector: []float32{1}})
	c.Clear()
	require.Zero(t, c.Stats().Entries)
}

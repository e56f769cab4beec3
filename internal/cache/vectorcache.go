// Package cache implements the two caching capabilities this module sits
// on top of durable storage: a byte-bounded VectorCache and an
// entry-bounded, TTL-aware EmbeddingCache. Both are backed by a
// container/list LRU so recency, not randomness, drives eviction.
package cache

import (
	"container/list"
	"sync"

	"github.com/thebtf/vectordb/pkg/models"
)

// vectorCacheOverhead approximates the bookkeeping cost (list node, map
// entry, id string header) charged against every cached record in addition
// to its vector and metadata payload.
const vectorCacheOverhead = 100

// EstimateSize reports the approximate byte footprint of caching r, per
// the formula this module commits to: 4 bytes per vector dimension plus
// twice the JSON-encoded metadata size plus a fixed overhead.
func EstimateSize(r *models.VectorRecord) int64 {
	return int64(len(r.Vector))*4 + 2*int64(estimateMetadataJSONSize(r.Metadata)) + vectorCacheOverhead
}

func estimateMetadataJSONSize(m models.Metadata) int {
	if len(m) == 0 {
		return 2 // "{}"
	}
	size := 2
	for k, v := range m {
		size += len(k) + 4 // quotes + colon + comma
		size += estimateJSONValueSize(v)
	}
	return size
}

func estimateJSONValueSize(v any) int {
	switch val := v.(type) {
	case string:
		return len(val) + 2
	case float64, float32, int, int64, int32, bool:
		return 8
	case []any:
		size := 2
		for _, item := range val {
			size += estimateJSONValueSize(item) + 1
		}
		return size
	case map[string]any:
		return estimateMetadataJSONSize(models.Metadata(val))
	case nil:
		return 4
	default:
		return 16
	}
}

type vectorCacheEntry struct {
	id     string
	record *models.VectorRecord
	size   int64
}

// Strategy selects how Put decides whether a written record is worth
// pinning in the hot cache. Storage itself is never optional — skipping it
// would break the index/storage agreement invariant — so Strategy only
// governs eagerness of the cache copy.
type Strategy int

const (
	// StrategyAlways caches every record Put gives it (default).
	StrategyAlways Strategy = iota
	// StrategyOnDemand skips caching on the write path; a record only
	// enters the cache once Promote is called for it, typically after a
	// read has already paid the cost of fetching it from Storage.
	StrategyOnDemand
)

// VectorCache is a byte-bounded, least-recently-used cache of
// *models.VectorRecord, keyed by id. A single record too large to ever fit
// the budget is simply not cached.
type VectorCache struct {
	mu         sync.Mutex
	maxBytes   int64
	strategy   Strategy
	usedBytes  int64
	ll         *list.List
	index      map[string]*list.Element
	hits       int64
	misses     int64
	evictions  int64
}

// NewVectorCache constructs a VectorCache bounded by maxBytes, caching
// every record written to it (StrategyAlways).
func NewVectorCache(maxBytes int64) *VectorCache {
	return NewVectorCacheStrategy(maxBytes, StrategyAlways)
}

// NewVectorCacheStrategy constructs a VectorCache bounded by maxBytes
// under the given caching strategy.
func NewVectorCacheStrategy(maxBytes int64, strategy Strategy) *VectorCache {
	return &VectorCache{
		maxBytes: maxBytes,
		strategy: strategy,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Get returns the cached record (a clone, safe for the caller to mutate)
// and bumps its recency, or reports a miss.
func (c *VectorCache) Get(id string) (*models.VectorRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[id]
	if !ok {
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return el.Value.(*vectorCacheEntry).record.Clone(), true
}

// Put inserts or replaces a record. Oversized records (bigger than the
// entire budget) are rejected rather than cached. Under StrategyOnDemand,
// Put only refreshes an already-cached entry; it never admits a new one —
// callers needing that must go through Promote.
func (c *VectorCache) Put(r *models.VectorRecord) {
	c.mu.Lock()
	_, cached := c.index[r.ID]
	onDemandMiss := c.strategy == StrategyOnDemand && !cached
	c.mu.Unlock()
	if onDemandMiss {
		return
	}
	c.put(r)
}

// Promote unconditionally inserts r into the cache regardless of
// Strategy, for callers (typically a search-path Storage hydration) that
// have already paid the cost of fetching the record and want it pinned
// for subsequent reads.
func (c *VectorCache) Promote(r *models.VectorRecord) {
	c.put(r)
}

func (c *VectorCache) put(r *models.VectorRecord) {
	size := EstimateSize(r)
	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxBytes {
		if el, ok := c.index[r.ID]; ok {
			c.removeElement(el)
		}
		return
	}

	if el, ok := c.index[r.ID]; ok {
		old := el.Value.(*vectorCacheEntry)
		c.usedBytes -= old.size
		old.record = r.Clone()
		old.size = size
		c.usedBytes += size
		c.ll.MoveToFront(el)
	} else {
		entry := &vectorCacheEntry{id: r.ID, record: r.Clone(), size: size}
		el := c.ll.PushFront(entry)
		c.index[r.ID] = el
		c.usedBytes += size
	}

	for c.usedBytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
		c.evictions++
	}
}

func (c *VectorCache) removeElement(el *list.Element) {
	entry := el.Value.(*vectorCacheEntry)
	c.ll.Remove(el)
	delete(c.index, entry.id)
	c.usedBytes -= entry.size
}

// Delete removes a record if present; a miss is a no-op.
func (c *VectorCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[id]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache.
func (c *VectorCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.index = make(map[string]*list.Element)
	c.usedBytes = 0
}

// Stats reports current size and hit/miss counters.
type VectorCacheStats struct {
	Entries   int
	UsedBytes int64
	MaxBytes  int64
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *VectorCache) Stats() VectorCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return VectorCacheStats{
		Entries:   len(c.index),
		UsedBytes: c.usedBytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

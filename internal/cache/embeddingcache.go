package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces an embedding for text. EmbeddingCache calls it at
// most once per distinct text among any set of concurrent callers.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

type embeddingEntry struct {
	key       [32]byte
	embedding []float32
	storedAt  time.Time
}

// EmbeddingCache is an entry-count-bounded LRU cache of text embeddings,
// with optional TTL expiry and singleflight-deduplicated computation.
type EmbeddingCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration // zero disables expiry
	ll         *list.List
	index      map[[32]byte]*list.Element
	group      singleflight.Group

	hits      int64
	misses    int64
	evictions int64
}

// NewEmbeddingCache constructs a cache holding at most maxEntries
// embeddings. ttl <= 0 disables time-based expiry.
func NewEmbeddingCache(maxEntries int, ttl time.Duration) *EmbeddingCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &EmbeddingCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		ll:         list.New(),
		index:      make(map[[32]byte]*list.Element),
	}
}

func fingerprint(text string) [32]byte {
	return blake2b.Sum256([]byte(text))
}

func (c *EmbeddingCache) lookup(key [32]byte) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*embeddingEntry)
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		c.removeElement(el)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return entry.embedding, true
}

func (c *EmbeddingCache) store(key [32]byte, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		entry := el.Value.(*embeddingEntry)
		entry.embedding = embedding
		entry.storedAt = time.Now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&embeddingEntry{key: key, embedding: embedding, storedAt: time.Now()})
	c.index[key] = el

	for len(c.index) > c.maxEntries {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
		c.evictions++
	}
}

func (c *EmbeddingCache) removeElement(el *list.Element) {
	entry := el.Value.(*embeddingEntry)
	c.ll.Remove(el)
	delete(c.index, entry.key)
}

// GetOrCompute returns the cached embedding for text, computing it via
// compute on a miss. Concurrent callers for the same text share a single
// in-flight computation.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text string, compute ComputeFunc) ([]float32, error) {
	key := fingerprint(text)

	if emb, ok := c.lookup(key); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return emb, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	result, err, _ := c.group.Do(string(key[:]), func() (any, error) {
		if emb, ok := c.lookup(key); ok {
			return emb, nil
		}
		emb, err := compute(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(key, emb)
		return emb, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// Invalidate removes any cached embedding for text.
func (c *EmbeddingCache) Invalidate(text string) {
	key := fingerprint(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.index = make(map[[32]byte]*list.Element)
}

// EmbeddingCacheStats reports current size and hit/miss counters.
type EmbeddingCacheStats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *EmbeddingCache) Stats() EmbeddingCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return EmbeddingCacheStats{
		Entries:   len(c.index),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Package flatindex implements annindex.Index as an exact, brute-force
// in-memory index. It is the default backend this module ships: the ANN
// algorithm is a plug-in, and exhaustive scoring is a valid (if unscaled)
// implementation of that contract.
package flatindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/vectordb/internal/annindex"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// magic tags the head of every serialized payload so a corrupted or
// unrelated blob is rejected before json.Unmarshal ever runs on it.
var magic = []byte("VDBFLAT1")

type entry struct {
	id       string
	vector   []float32 // L2-normalized already, for cosine metric
	metadata models.Metadata
	seq      int64 // insertion order, kept across Serialize/Deserialize
}

// Index is a brute-force annindex.Index over D-dimensional vectors under a
// fixed metric.
type Index struct {
	mu          sync.RWMutex
	dims        int
	metric      annindex.Metric
	byID        map[string]*entry
	seqCounter  int64
	lastUpdated time.Time
}

// New constructs an empty flat index for the given dimensionality/metric.
func New(dims int, metric annindex.Metric) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("flatindex: dimensions must be positive, got %d", dims)
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("flatindex: unsupported metric %q", metric)
	}
	return &Index{
		dims:        dims,
		metric:      metric,
		byID:        make(map[string]*entry),
		lastUpdated: time.Now(),
	}, nil
}

func (idx *Index) prepareVector(v []float32) ([]float32, error) {
	if len(v) != idx.dims {
		return nil, fmt.Errorf("%w: expected %d, got %d", vdberrors.ErrDimensionMismatch, idx.dims, len(v))
	}
	out := make([]float32, len(v))
	copy(out, v)
	if idx.metric == annindex.MetricCosine {
		normalize(out)
	}
	return out, nil
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// Build discards prior state and inserts records in one pass. Empty input
// yields an empty index.
func (idx *Index) Build(ctx context.Context, records []annindex.Record) error {
	prepared := make([]*entry, len(records))
	for i, r := range records {
		vec, err := idx.prepareVector(r.Vector)
		if err != nil {
			return err
		}
		prepared[i] = &entry{id: r.ID, vector: vec, metadata: r.Metadata.Clone()}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byID = make(map[string]*entry, len(prepared))
	idx.seqCounter = 0
	for _, e := range prepared {
		idx.seqCounter++
		e.seq = idx.seqCounter
		idx.byID[e.id] = e
	}
	idx.lastUpdated = time.Now()
	return nil
}

// Add inserts or replaces a single record. A wrong-dimension vector leaves
// the index unchanged.
func (idx *Index) Add(ctx context.Context, record annindex.Record) error {
	vec, err := idx.prepareVector(record.Vector)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.seqCounter++
	idx.byID[record.ID] = &entry{id: record.ID, vector: vec, metadata: record.Metadata.Clone(), seq: idx.seqCounter}
	idx.lastUpdated = time.Now()
	return nil
}

// AddBatch validates every record's dimension before mutating, so a single
// bad vector in the batch leaves the index entirely unchanged.
func (idx *Index) AddBatch(ctx context.Context, records []annindex.Record) error {
	if len(records) == 0 {
		return nil
	}
	prepared := make([]*entry, len(records))
	for i, r := range records {
		vec, err := idx.prepareVector(r.Vector)
		if err != nil {
			return err
		}
		prepared[i] = &entry{id: r.ID, vector: vec, metadata: r.Metadata.Clone()}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range prepared {
		idx.seqCounter++
		e.seq = idx.seqCounter
		idx.byID[e.id] = e
	}
	idx.lastUpdated = time.Now()
	return nil
}

// Remove deletes by id; removing an absent id is a no-op.
func (idx *Index) Remove(ctx context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byID[id]; !ok {
		return nil
	}
	delete(idx.byID, id)
	idx.lastUpdated = time.Now()
	return nil
}

// Search scores query against every stored vector, applies filter, and
// returns the top k ordered by Score (descending for cosine/dot, ascending
// for l2), ties broken by ascending id.
func (idx *Index) Search(ctx context.Context, query []float32, k int, filter annindex.FilterFunc) ([]annindex.Result, error) {
	if len(query) != idx.dims {
		return nil, fmt.Errorf("%w: expected %d, got %d", vdberrors.ErrDimensionMismatch, idx.dims, len(query))
	}
	if k <= 0 {
		return []annindex.Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if idx.metric == annindex.MetricCosine {
		normalize(q)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		annindex.Result
		seq int64
	}
	all := make([]scored, 0, len(idx.byID))
	for _, e := range idx.byID {
		if filter != nil && !filter(e.metadata) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		all = append(all, scored{
			Result: annindex.Result{ID: e.id, Score: idx.score(q, e.vector), Metadata: e.metadata},
			seq:    e.seq,
		})
	}

	ascending := idx.metric == annindex.MetricL2
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			if ascending {
				return all[i].Score < all[j].Score
			}
			return all[i].Score > all[j].Score
		}
		return all[i].ID < all[j].ID
	})

	if k > len(all) {
		k = len(all)
	}
	out := make([]annindex.Result, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].Result
		out[i].Metadata = out[i].Metadata.Clone()
	}
	return out, nil
}

func (idx *Index) score(a, b []float32) float32 {
	switch idx.metric {
	case annindex.MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	case annindex.MetricDot:
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return float32(sum)
	default: // cosine: both sides pre-normalized, so dot product is the cosine.
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		if sum > 1 {
			sum = 1
		} else if sum < -1 {
			sum = -1
		}
		return float32(sum)
	}
}

type serializedEntry struct {
	ID       string          `json:"id"`
	Vector   []float32       `json:"vector"`
	Metadata models.Metadata `json:"metadata"`
	Seq      int64           `json:"seq"`
}

type serializedIndex struct {
	Dims    int               `json:"dims"`
	Metric  annindex.Metric   `json:"metric"`
	Entries []serializedEntry `json:"entries"`
}

// Serialize captures current membership and dimensions as an opaque byte
// string: a fixed magic header followed by a JSON payload.
func (idx *Index) Serialize() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	payload := serializedIndex{Dims: idx.dims, Metric: idx.metric, Entries: make([]serializedEntry, 0, len(idx.byID))}
	for _, e := range idx.byID {
		payload.Entries = append(payload.Entries, serializedEntry{ID: e.id, Vector: e.vector, Metadata: e.metadata, Seq: e.seq})
	}
	sort.Slice(payload.Entries, func(i, j int) bool { return payload.Entries[i].Seq < payload.Entries[j].Seq })

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("flatindex: marshal: %w", err)
	}
	return append(append([]byte{}, magic...), body...), nil
}

// Deserialize restores state from Serialize's output. On malformed input it
// fails with ErrIndexCorrupted; on a dimension disagreement it fails with
// ErrDimensionMismatch. Both leave the index unchanged.
func (idx *Index) Deserialize(data []byte) error {
	if len(data) < len(magic) || string(data[:len(magic)]) != string(magic) {
		return fmt.Errorf("%w: missing header", vdberrors.ErrIndexCorrupted)
	}

	var payload serializedIndex
	if err := json.Unmarshal(data[len(magic):], &payload); err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrIndexCorrupted, err)
	}
	if payload.Dims != idx.dims {
		return fmt.Errorf("%w: index configured for %d, serialized for %d", vdberrors.ErrDimensionMismatch, idx.dims, payload.Dims)
	}

	byID := make(map[string]*entry, len(payload.Entries))
	var maxSeq int64
	for _, e := range payload.Entries {
		if len(e.Vector) != idx.dims {
			return fmt.Errorf("%w: entry %q has %d dims", vdberrors.ErrIndexCorrupted, e.ID, len(e.Vector))
		}
		byID[e.ID] = &entry{id: e.ID, vector: e.Vector, metadata: e.Metadata, seq: e.Seq}
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byID = byID
	idx.seqCounter = maxSeq
	idx.lastUpdated = time.Now()
	return nil
}

// Stats reports current size/membership/memory information.
func (idx *Index) Stats() annindex.Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var mem int64
	for _, e := range idx.byID {
		mem += int64(len(e.vector)) * 4
		for k, v := range e.metadata {
			mem += int64(len(k)) + estimateValueSize(v)
		}
	}
	return annindex.Stats{
		VectorCount: len(idx.byID),
		Dimensions:  idx.dims,
		MemoryUsage: mem,
		LastUpdated: idx.lastUpdated,
	}
}

// Clear discards all membership, keeping dims/metric configuration intact.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byID = make(map[string]*entry)
	idx.seqCounter = 0
	idx.lastUpdated = time.Now()
	return nil
}

func estimateValueSize(v any) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val))
	case float64, float32, int, int64, int32, bool:
		return 8
	case []any:
		var size int64
		for _, item := range val {
			size += estimateValueSize(item)
		}
		return size
	case map[string]any:
		var size int64
		for k, item := range val {
			size += int64(len(k)) + estimateValueSize(item)
		}
		return size
	default:
		return 16
	}
}

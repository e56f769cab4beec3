// Package annindex defines the approximate-nearest-neighbor index
// capability. Concrete backends (flatindex, and any future HNSW/IVF
// plug-in) implement Index; the coordinator depends only on this contract.
package annindex

import (
	"context"
	"time"

	"github.com/thebtf/vectordb/pkg/models"
)

// Metric identifies the distance/similarity function an index was built
// with. All vectors added or queried must already be comparable under it.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricDot    Metric = "dot"
)

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricDot:
		return true
	default:
		return false
	}
}

// Record is the minimal shape Index needs for add/build: an id, its vector,
// and the metadata a filter can be evaluated against.
type Record struct {
	ID       string
	Vector   []float32
	Metadata models.Metadata
}

// Result is one ranked hit from Search.
type Result struct {
	ID       string
	Score    float32
	Metadata models.Metadata
}

// FilterFunc evaluates a candidate's metadata, returning true to keep it.
// A nil FilterFunc keeps everything.
type FilterFunc func(metadata models.Metadata) bool

// Stats summarizes the current index state.
type Stats struct {
	VectorCount int
	Dimensions  int
	MemoryUsage int64
	LastUpdated time.Time
}

// Index is the approximate-nearest-neighbor capability contract.
type Index interface {
	// Build performs bulk construction, discarding any prior state. An
	// empty input yields an empty index.
	Build(ctx context.Context, records []Record) error

	// Add inserts a single record. Wrong-dimension vectors fail with
	// ErrDimensionMismatch and leave the index unchanged.
	Add(ctx context.Context, record Record) error

	// AddBatch inserts many records; it validates every record's
	// dimension before mutating so a single bad vector leaves the index
	// unchanged (all-or-none, matching Storage.putBatch's atomicity).
	AddBatch(ctx context.Context, records []Record) error

	// Remove deletes by id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	// Search returns up to k results ordered by Score (descending for
	// cosine/dot, ascending for l2), ties broken by id ascending. If
	// filter is non-nil it is evaluated per candidate and non-matching
	// results are dropped before truncation to k.
	Search(ctx context.Context, query []float32, k int, filter FilterFunc) ([]Result, error)

	// Serialize captures current membership and dimensions as an opaque
	// byte string.
	Serialize() ([]byte, error)

	// Deserialize restores state from Serialize's output. It fails with
	// ErrIndexCorrupted on malformed input and ErrDimensionMismatch when
	// the serialized dimensionality disagrees with the index's
	// configured dimensionality — in both cases the index is left
	// unchanged.
	Deserialize(data []byte) error

	// Stats reports current size/membership/memory information.
	Stats() Stats

	// Clear discards all membership, keeping configuration (dimensions,
	// metric) intact.
	Clear() error
}

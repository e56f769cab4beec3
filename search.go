package vectordb

import (
	"context"

	"github.com/thebtf/vectordb/internal/filterexpr"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// SearchQuery is the caller-supplied top-k request. At least one of Vector
// or Text must be set; when both are, Vector is used and Text is ignored.
// K defaults to 10 when <= 0. IncludeVectors, when
// true, hydrates each result's full vector (VectorCache, falling back to
// Storage on a miss).
type SearchQuery struct {
	Vector         []float32
	Text           string
	K              int
	Filter         *models.QueryFilter
	IncludeVectors bool
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata models.Metadata
	Vector   []float32 // set only when SearchQuery.IncludeVectors is true
}

// Search resolves q's query vector, delegates ranking to the AnnIndex
// under q.Filter, and optionally hydrates full vectors. It is safe to call
// concurrently with other Search calls and with a quiescent writer.
func (db *DB) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if err := db.requireInitialized(); err != nil {
		return nil, err
	}
	if len(q.Vector) == 0 && q.Text == "" {
		return nil, vdberrors.ErrInvalidQuery
	}

	vector, _, err := db.resolveVector(ctx, q.Vector, q.Text)
	if err != nil {
		return nil, vdberrors.WrapUnlessTyped(vdberrors.ErrSearchError, "search", err)
	}

	k := q.K
	if k <= 0 {
		k = 10
	}

	filterFn, err := filterexpr.Compile(q.Filter)
	if err != nil {
		return nil, err
	}

	hits, err := db.index.Search(ctx, vector, k, filterFn)
	if err != nil {
		return nil, vdberrors.WrapUnlessTyped(vdberrors.ErrSearchError, "search", err)
	}

	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{ID: h.ID, Score: h.Score, Metadata: h.Metadata}
		if q.IncludeVectors {
			vec, err := db.hydrateVector(ctx, h.ID)
			if err != nil {
				return nil, vdberrors.WrapUnlessTyped(vdberrors.ErrSearchError, "search", err)
			}
			out[i].Vector = vec
		}
	}
	return out, nil
}

// hydrateVector fetches a result's full vector via fetchRecord (VectorCache
// first, Storage on a miss, promoting a Storage hit into the cache).
func (db *DB) hydrateVector(ctx context.Context, id string) ([]float32, error) {
	r, err := db.fetchRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return r.Vector, nil
}

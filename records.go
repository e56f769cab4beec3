package vectordb

import (
	"context"
	"fmt"

	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// fetchRecord resolves a record by id the same way every read-path
// operation (Update, Delete, search-time hydration) must: VectorCache
// first, Storage on a miss. Update always warms the cache, and Insert does
// under StrategyAlways, so a record whose durable write is still sitting in
// the BatchCoalescer's queue is usually found in the cache. When neither
// the cache nor Storage has it and writes are still queued (the record was
// evicted, or never admitted under StrategyOnDemand), the queue is drained
// and Storage is read again. A Storage hit promotes the record into the
// cache.
func (db *DB) fetchRecord(ctx context.Context, id string) (*models.VectorRecord, error) {
	if r, ok := db.vectorCache.Get(id); ok {
		return r, nil
	}
	r, err := db.storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vdberrors.ErrStorageError, err)
	}
	if r == nil && db.coalescer.PendingCount() > 0 {
		if err := db.coalescer.Flush(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", vdberrors.ErrStorageError, err)
		}
		if r, err = db.storage.Get(ctx, id); err != nil {
			return nil, fmt.Errorf("%w: %v", vdberrors.ErrStorageError, err)
		}
	}
	if r == nil {
		return nil, nil
	}
	db.vectorCache.Promote(r)
	return r, nil
}

package vectordb

import (
	"context"
	"time"

	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// Delete removes id, returning whether it previously existed. It reports
// existence via fetchRecord: VectorCache, then Storage, draining the
// BatchCoalescer and reading Storage again only when both miss while
// writes are still queued, so a just-inserted record the cache did not
// keep is still reported as existing. The AnnIndex removal and
// VectorCache eviction happen before Delete returns, satisfying the "search
// after delete resolves does not observe the deleted record" ordering rule.
func (db *DB) Delete(ctx context.Context, id string) (bool, error) {
	if err := db.requireInitialized(); err != nil {
		return false, err
	}

	existed, err := db.existedBeforeDelete(ctx, id)
	if err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrDeleteError, "delete", err)
	}

	db.vectorCache.Delete(id)
	if err := db.coalescer.Delete(ctx, id); err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrDeleteError, "delete", err)
	}
	return existed, nil
}

// existedBeforeDelete reports whether id was present just before Delete
// acts on it, via fetchRecord so a record still sitting in the
// BatchCoalescer's pending queue is found too.
func (db *DB) existedBeforeDelete(ctx context.Context, id string) (bool, error) {
	r, err := db.fetchRecord(ctx, id)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// UpdateData is the caller-supplied partial update for Update. A nil value
// in Metadata deletes that key from the stored metadata. If Vector or Text
// is set the record's vector is regenerated; otherwise it is left as-is.
type UpdateData struct {
	Vector   []float32
	Text     string
	Metadata models.Metadata
}

// Update is a read-modify-write against Storage directly (bypassing the
// BatchCoalescer, so the rewrite is durable before Update returns), then
// keeps the AnnIndex and VectorCache in step by removing and re-adding the
// record. It returns false if id is absent and leaves all state unchanged.
func (db *DB) Update(ctx context.Context, id string, patch UpdateData) (bool, error) {
	if err := db.requireInitialized(); err != nil {
		return false, err
	}

	// A coalesced insert of this id may still be queued; it must land before
	// the direct rewrite below, or its deferred durable put would overwrite
	// this update when the batch flushes.
	if err := db.coalescer.Flush(ctx); err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrUpdateError, "update", err)
	}

	existing, err := db.fetchRecord(ctx, id)
	if err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrUpdateError, "update", err)
	}
	if existing == nil {
		return false, nil
	}

	vector := existing.Vector
	var genVersion string
	if len(patch.Vector) > 0 || patch.Text != "" {
		v, version, err := db.resolveVector(ctx, patch.Vector, patch.Text)
		if err != nil {
			return false, vdberrors.WrapUnlessTyped(vdberrors.ErrUpdateError, "update", err)
		}
		vector = v
		genVersion = version
	}

	// meta["timestamp"] (insertion time) is set once at Insert and never
	// touched here; only the top-level Timestamp (last-mutation time)
	// advances on Update.
	meta := mergeMetadata(existing.Metadata, sanitizeMetadata(patch.Metadata))
	if patch.Text != "" {
		meta["content"] = patch.Text
	}
	if genVersion != "" {
		meta["embeddingVersion"] = genVersion
	}
	now := time.Now().UnixMilli()

	updated := &models.VectorRecord{ID: id, Vector: vector, Metadata: meta, Timestamp: now}

	if err := db.storage.Put(ctx, updated); err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrUpdateError, "update", err)
	}
	if err := db.index.Remove(ctx, id); err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrUpdateError, "update", err)
	}
	if err := db.index.Add(ctx, toIndexRecord(updated)); err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrUpdateError, "update", err)
	}
	db.vectorCache.Promote(updated)

	return true, nil
}

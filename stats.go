package vectordb

import (
	"context"
	"errors"

	"github.com/thebtf/vectordb/internal/annindex"
	"github.com/thebtf/vectordb/internal/cache"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// Stats is a health/observability snapshot across every subsystem,
// purely additive and off the insert/search path.
type Stats struct {
	RecordCount      int64
	Index            annindex.Stats
	VectorCache      cache.VectorCacheStats
	EmbeddingCache   cache.EmbeddingCacheStats
	PendingWrites    int
	EmbeddingVersion string
}

// Stats reports current size, per-cache hit/miss counters, and AnnIndex
// stats. Safe to call concurrently with Search.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	if err := db.requireInitialized(); err != nil {
		return Stats{}, err
	}
	count, err := db.storage.Count(ctx)
	if err != nil {
		return Stats{}, vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "stats", err)
	}

	db.genMu.Lock()
	var version string
	if db.generator != nil {
		version = generatorVersion(db.generator)
	}
	db.genMu.Unlock()

	return Stats{
		RecordCount:      count,
		Index:            db.index.Stats(),
		VectorCache:      db.vectorCache.Stats(),
		EmbeddingCache:   db.embeddingCache.Stats(),
		PendingWrites:    db.coalescer.PendingCount(),
		EmbeddingVersion: version,
	}, nil
}

// errFoundStale aborts a StreamProcess scan early once one stale record is
// found; NeedsReindex only needs to know whether any exist.
var errFoundStale = errors.New("vectordb: stale record found")

// staleVersion reports whether r's embeddingVersion stamp disagrees with
// current (a non-empty generator version this DB is actually running).
func staleVersion(r *models.VectorRecord, current string) bool {
	if current == "" {
		return false
	}
	v, ok := r.Metadata["embeddingVersion"]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s != current
}

// NeedsReindex reports whether any stored record carries an
// "embeddingVersion" metadata stamp (see buildRecord) that disagrees with
// the currently loaded generator's version — a record embedded by a model
// this DB no longer runs. Records with no stamp (raw vectors, or inserted
// before a generator was ever loaded) are never considered stale.
func (db *DB) NeedsReindex(ctx context.Context) (bool, error) {
	if err := db.requireInitialized(); err != nil {
		return false, err
	}
	db.genMu.Lock()
	gen := db.generator
	db.genMu.Unlock()
	if gen == nil {
		return false, nil
	}
	current := generatorVersion(gen)

	err := db.loader.StreamProcess(ctx, func(r *models.VectorRecord) error {
		if staleVersion(r, current) {
			return errFoundStale
		}
		return nil
	})
	if errors.Is(err, errFoundStale) {
		return true, nil
	}
	if err != nil {
		return false, vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "needsReindex", err)
	}
	return false, nil
}

// RebuildStaleVectors re-embeds every record whose embeddingVersion stamp
// disagrees with the currently loaded generator and whose original text
// ("content" metadata) is still available, via Update — so each
// re-embedded record goes through the same Storage/AnnIndex/VectorCache
// update path as a caller-initiated Update would. It returns the number of
// records re-embedded.
func (db *DB) RebuildStaleVectors(ctx context.Context) (int, error) {
	if err := db.requireInitialized(); err != nil {
		return 0, err
	}
	db.genMu.Lock()
	gen := db.generator
	db.genMu.Unlock()
	if gen == nil {
		return 0, nil
	}
	current := generatorVersion(gen)

	var stale []*models.VectorRecord
	err := db.loader.StreamProcess(ctx, func(r *models.VectorRecord) error {
		if staleVersion(r, current) {
			if content, ok := r.Metadata["content"].(string); ok && content != "" {
				stale = append(stale, r)
			}
		}
		return nil
	})
	if err != nil {
		return 0, vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "rebuildStaleVectors", err)
	}

	rebuilt := 0
	for _, r := range stale {
		content, _ := r.Metadata["content"].(string)
		ok, err := db.Update(ctx, r.ID, UpdateData{Text: content})
		if err != nil {
			return rebuilt, err
		}
		if ok {
			rebuilt++
		}
	}
	return rebuilt, nil
}

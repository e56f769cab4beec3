package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/thebtf/vectordb/internal/loader"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// ExportOptions configures Export/ExportStream.
type ExportOptions struct {
	// IncludeIndex serializes the AnnIndex into the envelope's Index field.
	IncludeIndex bool
	// ChunkSize bounds how many records ExportStream batches per Vectors
	// chunk. <= 0 uses Config.Performance.ChunkSize.
	ChunkSize int
}

// ExportChunkKind discriminates ExportChunk's payload.
type ExportChunkKind int

const (
	ExportChunkMetadata ExportChunkKind = iota
	ExportChunkVectors
	ExportChunkIndex
)

// ExportChunk is one piece of a streamed export, delivered in the envelope
// order: one Metadata chunk, N Vectors chunks, then an optional Index
// chunk.
type ExportChunk struct {
	Kind     ExportChunkKind
	Metadata *models.EnvelopeMetadata
	Vectors  []*models.VectorRecord
	Index    []byte
}

// ExportChunkFunc receives one ExportChunk at a time.
type ExportChunkFunc func(ExportChunk) error

// ExportStream flushes the coalescer, then streams Storage's full contents
// through ExportChunkFunc: a metadata chunk, full chunks of records as
// they are scanned, and — unlike a generator that accumulates into a
// buffer it can only yield once scanning finishes — a chunk here is
// emitted the moment it fills, directly from inside the scan's visit
// callback, so every full chunk reaches the caller instead of only the
// last one.
func (db *DB) ExportStream(ctx context.Context, opts ExportOptions, emit ExportChunkFunc) error {
	if err := db.requireInitialized(); err != nil {
		return err
	}
	if err := db.coalescer.Flush(ctx); err != nil {
		db.logger.Warn().Err(err).Msg("vectordb: flush before export reported a pending-batch error")
	}

	count, err := db.storage.Count(ctx)
	if err != nil {
		return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "export", err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = db.cfg.Performance.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = loader.DefaultChunkSize
	}

	if err := emit(ExportChunk{Kind: ExportChunkMetadata, Metadata: &models.EnvelopeMetadata{
		ExportedAt:  time.Now().UnixMilli(),
		VectorCount: int(count),
		Dimensions:  db.cfg.Index.Dimensions,
	}}); err != nil {
		return err
	}

	buffer := make([]*models.VectorRecord, 0, chunkSize)
	err = db.loader.StreamProcess(ctx, func(r *models.VectorRecord) error {
		buffer = append(buffer, r.Clone())
		if len(buffer) < chunkSize {
			return nil
		}
		if err := emit(ExportChunk{Kind: ExportChunkVectors, Vectors: buffer}); err != nil {
			return err
		}
		buffer = make([]*models.VectorRecord, 0, chunkSize)
		return nil
	})
	if err != nil {
		return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "export", err)
	}
	if len(buffer) > 0 {
		if err := emit(ExportChunk{Kind: ExportChunkVectors, Vectors: buffer}); err != nil {
			return err
		}
	}

	if opts.IncludeIndex {
		data, err := db.index.Serialize()
		if err != nil {
			return fmt.Errorf("export: serialize index: %w", err)
		}
		if err := emit(ExportChunk{Kind: ExportChunkIndex, Index: data}); err != nil {
			return err
		}
	}

	return nil
}

// Export collects ExportStream's chunks into a single in-memory
// ExportEnvelope.
func (db *DB) Export(ctx context.Context, opts ExportOptions) (*models.ExportEnvelope, error) {
	env := &models.ExportEnvelope{
		Version: models.EnvelopeVersion,
		Config:  buildEnvelopeConfig(&db.cfg),
		Vectors: []*models.VectorRecord{},
	}

	err := db.ExportStream(ctx, opts, func(chunk ExportChunk) error {
		switch chunk.Kind {
		case ExportChunkMetadata:
			env.Metadata = *chunk.Metadata
		case ExportChunkVectors:
			env.Vectors = append(env.Vectors, chunk.Vectors...)
		case ExportChunkIndex:
			env.Index = chunk.Index
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// ImportOptions configures Import.
type ImportOptions struct {
	// ClearExisting wipes the database before importing env's records.
	ClearExisting bool
	// OnProgress, if set, is invoked after each import chunk commits and
	// once more at completion.
	OnProgress loader.ProgressFunc
}

// Import validates env's schema and version, verifies its dimensionality
// matches this DB's configured D, optionally clears existing state, bulk
// inserts every record through the ProgressiveLoader, and restores the
// AnnIndex from env.Index. An empty index is rebuilt from Storage via
// rebuildIndex (Storage.GetAll, AnnIndex.Clear, AnnIndex.AddBatch); a
// corrupted one degrades to the same rebuild with a logged warning rather
// than failing the import.
func (db *DB) Import(ctx context.Context, env *models.ExportEnvelope, opts ImportOptions) error {
	if err := db.requireInitialized(); err != nil {
		return err
	}
	if err := validateEnvelope(env); err != nil {
		return err
	}
	if err := checkEnvelopeVersion(env.Version); err != nil {
		return err
	}
	if env.Config.Index.Dimensions != db.cfg.Index.Dimensions {
		return fmt.Errorf("%w: envelope dimensions %d, database configured for %d",
			vdberrors.ErrDimensionMismatch, env.Config.Index.Dimensions, db.cfg.Index.Dimensions)
	}
	if env.Metadata.Dimensions != db.cfg.Index.Dimensions {
		return fmt.Errorf("%w: envelope metadata reports %d dimensions, database configured for %d",
			vdberrors.ErrDimensionMismatch, env.Metadata.Dimensions, db.cfg.Index.Dimensions)
	}
	for _, r := range env.Vectors {
		if len(r.Vector) != db.cfg.Index.Dimensions {
			return fmt.Errorf("%w: record %s has %d dims, expected %d",
				vdberrors.ErrDimensionMismatch, r.ID, len(r.Vector), db.cfg.Index.Dimensions)
		}
	}

	if opts.ClearExisting {
		if err := db.Clear(ctx); err != nil {
			return err
		}
	} else {
		if err := db.coalescer.Flush(ctx); err != nil {
			db.logger.Warn().Err(err).Msg("vectordb: flush before import reported a pending-batch error")
		}
		// Imported records may overwrite ids already warmed into the cache.
		db.vectorCache.Clear()
	}

	if err := db.loader.ImportInBatches(ctx, env.Vectors, db.cfg.Performance.ChunkSize, opts.OnProgress); err != nil {
		return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "import", err)
	}

	if len(env.Index) == 0 {
		// No serialized index in the envelope; rebuilding is the normal path.
		if err := db.rebuildIndex(ctx); err != nil {
			return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "import", err)
		}
		return nil
	}

	if err := db.index.Deserialize(env.Index); err != nil {
		db.logger.Warn().Err(err).Msg("vectordb: import index deserialize failed, rebuilding from storage")
		if err := db.rebuildIndex(ctx); err != nil {
			return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "import", err)
		}
		return nil
	}

	// A valid serialized index still only captures the exporting database's
	// membership. When importing into a non-empty database it under-covers
	// what storage now holds, so fall back to a rebuild there too.
	count, err := db.storage.Count(ctx)
	if err != nil {
		return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "import", err)
	}
	if int(count) != db.index.Stats().VectorCount {
		db.logger.Warn().Int64("storage", count).Int("index", db.index.Stats().VectorCount).
			Msg("vectordb: imported index membership disagrees with storage, rebuilding")
		if err := db.rebuildIndex(ctx); err != nil {
			return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "import", err)
		}
	}

	return nil
}

package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// InsertData is the caller-supplied payload for Insert/InsertBatch. At
// least one of Vector or Text must be set. Without a Vector, Text is
// embedded through the EmbeddingCache and generator; when both are set,
// Vector is used as given and Text is only stored as "content" metadata.
type InsertData struct {
	Vector   []float32
	Text     string
	Metadata models.Metadata
}

// Insert validates and sanitizes data, resolves its vector, assigns an id,
// writes it through the BatchCoalescer (so the index is updated before
// Insert returns), and offers it to the VectorCache (which keeps it under
// StrategyAlways). It returns the assigned id.
func (db *DB) Insert(ctx context.Context, data InsertData) (string, error) {
	if err := db.requireInitialized(); err != nil {
		return "", err
	}

	record, err := db.buildRecord(ctx, NewID(), data)
	if err != nil {
		return "", vdberrors.WrapUnlessTyped(vdberrors.ErrInsertError, "insert", err)
	}

	if err := db.coalescer.Put(ctx, record); err != nil {
		return "", vdberrors.WrapUnlessTyped(vdberrors.ErrInsertError, "insert", err)
	}
	db.vectorCache.Put(record)

	return record.ID, nil
}

// InsertBatch writes many records in one pass: a single Storage.PutBatch
// (bypassing the coalescer, since the caller has already batched),
// a single AnnIndex.AddBatch, and a VectorCache fill per item. It returns
// ids in the same order as data.
func (db *DB) InsertBatch(ctx context.Context, data []InsertData) ([]string, error) {
	if err := db.requireInitialized(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	records := make([]*models.VectorRecord, len(data))
	for i, d := range data {
		r, err := db.buildRecord(ctx, NewID(), d)
		if err != nil {
			return nil, vdberrors.WrapUnlessTyped(vdberrors.ErrInsertError, "insertBatch", err)
		}
		records[i] = r
	}

	if err := db.storage.PutBatch(ctx, records); err != nil {
		return nil, vdberrors.WrapUnlessTyped(vdberrors.ErrInsertError, "insertBatch", err)
	}
	if err := db.index.AddBatch(ctx, toIndexRecords(records)); err != nil {
		return nil, vdberrors.WrapUnlessTyped(vdberrors.ErrInsertError, "insertBatch", err)
	}

	ids := make([]string, len(records))
	for i, r := range records {
		db.vectorCache.Put(r)
		ids[i] = r.ID
	}
	return ids, nil
}

// buildRecord validates data, resolves its vector (provided or generated),
// and assembles the VectorRecord carrying id.
func (db *DB) buildRecord(ctx context.Context, id string, data InsertData) (*models.VectorRecord, error) {
	if len(data.Vector) == 0 && data.Text == "" {
		return nil, vdberrors.ErrInvalidInsertData
	}

	meta := sanitizeMetadata(data.Metadata)
	vector, genVersion, err := db.resolveVector(ctx, data.Vector, data.Text)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	if data.Text != "" {
		meta["content"] = data.Text
	}
	if genVersion != "" {
		meta["embeddingVersion"] = genVersion
	}
	meta["timestamp"] = now

	return &models.VectorRecord{ID: id, Vector: vector, Metadata: meta, Timestamp: now}, nil
}

// resolveVector validates an explicitly provided vector, or generates one
// from text via the EmbeddingCache and generator. It returns the generator
// version string when the vector was produced that way (empty otherwise),
// so callers can stamp records with the model that produced them.
func (db *DB) resolveVector(ctx context.Context, vector []float32, text string) ([]float32, string, error) {
	if len(vector) > 0 {
		if len(vector) != db.cfg.Index.Dimensions {
			return nil, "", fmt.Errorf("%w: expected %d, got %d", vdberrors.ErrDimensionMismatch, db.cfg.Index.Dimensions, len(vector))
		}
		out := make([]float32, len(vector))
		copy(out, vector)
		return out, "", nil
	}

	gen, err := db.ensureGenerator(ctx)
	if err != nil {
		return nil, "", err
	}

	emb, err := db.embeddingCache.GetOrCompute(ctx, text, func(ctx context.Context, text string) ([]float32, error) {
		return gen.Embed(ctx, text)
	})
	if err != nil {
		return nil, "", fmt.Errorf("embed: %w", err)
	}
	if len(emb) != db.cfg.Index.Dimensions {
		return nil, "", fmt.Errorf("%w: generator produced %d dims, expected %d", vdberrors.ErrDimensionMismatch, len(emb), db.cfg.Index.Dimensions)
	}
	return emb, generatorVersion(gen), nil
}

// generatorVersion extracts a Version() string when gen exposes one (every
// generator the embedding package ships does), without widening the
// public EmbeddingGenerator contract to require it.
func generatorVersion(gen EmbeddingGenerator) string {
	type versioned interface{ Version() string }
	if v, ok := gen.(versioned); ok {
		return v.Version()
	}
	return ""
}

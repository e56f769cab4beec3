// Package loader implements ProgressiveLoader: chunked, progress-reporting
// bulk import on top of Storage, and a streaming full scan, built as a
// producer/consumer errgroup pipeline.
package loader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/vectordb/internal/storage"
	"github.com/thebtf/vectordb/pkg/models"
)

// DefaultChunkSize is used by ImportInBatches when chunkSize <= 0.
const DefaultChunkSize = 100

// ProgressFunc is invoked after each chunk commits, with the cumulative
// count loaded so far and the total to load.
type ProgressFunc func(loaded, total int)

// Loader streams and bulk-imports records against a Storage backend.
type Loader struct {
	storage storage.Storage
}

// New constructs a Loader writing through to s.
func New(s storage.Storage) *Loader {
	return &Loader{storage: s}
}

// StreamProcess visits every record in storage without materializing the
// full set, delegating to the backend's own Scan.
func (l *Loader) StreamProcess(ctx context.Context, visit func(*models.VectorRecord) error) error {
	return l.storage.Scan(ctx, storage.VisitFunc(visit))
}

// ImportInBatches imports records in chunks of chunkSize, reporting
// progress after each chunk and once more at completion. It runs as a two-stage errgroup pipeline: one
// goroutine slices the input into chunks, a second consumes and persists
// them in order, so producing the next chunk overlaps with persisting the
// current one.
func (l *Loader) ImportInBatches(ctx context.Context, records []*models.VectorRecord, chunkSize int, onProgress ProgressFunc) error {
	total := len(records)
	if onProgress == nil {
		onProgress = func(int, int) {}
	}
	if total == 0 {
		onProgress(0, 0)
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	chunks := make(chan []*models.VectorRecord)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(chunks)
		for start := 0; start < total; start += chunkSize {
			end := start + chunkSize
			if end > total {
				end = total
			}
			select {
			case chunks <- records[start:end]:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		loaded := 0
		for chunk := range chunks {
			if err := l.storage.PutBatch(gctx, chunk); err != nil {
				return fmt.Errorf("loader: import records %d-%d: %w", loaded, loaded+len(chunk), err)
			}
			loaded += len(chunk)
			onProgress(loaded, total)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Int("total", total).Msg("loader: import failed")
		return err
	}
	onProgress(total, total)
	return nil
}

package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/thebtf/vectordb/vdberrors"
)

// ensureGenerator returns the embedding generator, constructing it on
// first use when LazyLoadModels defers load past Initialize. Concurrent
// callers (Search and Insert may run concurrently) share one construction
// attempt via genMu; construction retries with exponential backoff
// (retryDelay · 2^attempt up to maxRetries).
func (db *DB) ensureGenerator(ctx context.Context) (EmbeddingGenerator, error) {
	db.genMu.Lock()
	defer db.genMu.Unlock()

	if db.generator != nil {
		return db.generator, nil
	}
	if db.genFactory == nil {
		return nil, fmt.Errorf("%w: no embedding generator configured", vdberrors.ErrModelLoadError)
	}

	gen, err := loadGeneratorWithRetry(ctx, db.genFactory, db.cfg.Embedding.MaxRetries, db.cfg.Embedding.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vdberrors.ErrModelLoadError, err)
	}

	if gen.Dimensions() != db.cfg.Index.Dimensions {
		_ = gen.Close()
		return nil, fmt.Errorf("%w: embedding generator produces %d-dim vectors, index configured for %d",
			vdberrors.ErrDimensionMismatch, gen.Dimensions(), db.cfg.Index.Dimensions)
	}

	db.generator = gen
	return gen, nil
}

// loadGeneratorWithRetry attempts factory() up to maxRetries+1 times,
// waiting retryDelay·2^attempt between attempts. maxRetries <= 0 disables
// retrying (a single attempt). The first retry is also where a real
// hardware-accelerated generator would fall back to software execution;
// this module's shipped generators (static, OpenAI REST) have no such
// distinction to fall back from, so the hook is a no-op here beyond the
// retry itself.
func loadGeneratorWithRetry(ctx context.Context, factory func() (EmbeddingGenerator, error), maxRetries, retryDelayMs int) (EmbeddingGenerator, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := time.Duration(retryDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		gen, err := factory()
		if err == nil {
			return gen, nil
		}
		lastErr = err

		if attempt < maxRetries {
			wait := delay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

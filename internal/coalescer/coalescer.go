// Package coalescer implements BatchCoalescer, the write-coalescing layer
// between the Coordinator and Storage: a buffered work queue drained on a
// timer or once it fills, independent of the synchronous index update
// that happens on every Put/Delete call.
package coalescer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/vectordb/internal/storage"
	"github.com/thebtf/vectordb/pkg/models"
)

// IndexPutFunc and IndexDeleteFunc let the Coordinator keep the AnnIndex in
// sync with every accepted write before the durable flush happens. Per
// this module's concurrency rules, these hooks run synchronously inside
// Put/Delete and must succeed before the caller's call resolves.
type IndexPutFunc func(ctx context.Context, r *models.VectorRecord) error
type IndexDeleteFunc func(ctx context.Context, id string) error

type opKind int

const (
	opPut opKind = iota
	opDelete
)

type pendingOp struct {
	kind   opKind
	record *models.VectorRecord // set for opPut
	id     string               // set for opDelete
}

// Config configures a BatchCoalescer.
type Config struct {
	MaxBatchSize  int
	FlushInterval time.Duration
	OnIndexPut    IndexPutFunc
	OnIndexDelete IndexDeleteFunc
}

// BatchCoalescer buffers writes and flushes them to Storage in batches,
// triggered by size, a timer, or an explicit Flush call. It applies the
// AnnIndex side effect of each write synchronously, and only defers the
// durable half of the write.
type BatchCoalescer struct {
	storage storage.Storage
	cfg     Config

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []pendingOp
	flushing bool
	timer    *time.Timer
	closed   bool
	lastErr  error // first unobserved background-flush failure
}

// New constructs a BatchCoalescer writing through to s.
func New(s storage.Storage, cfg Config) *BatchCoalescer {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	c := &BatchCoalescer{storage: s, cfg: cfg}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Put applies the index side effect synchronously, then enqueues the
// record for a deferred durable write. It returns once the index has been
// updated, not once the record is on disk; if the deferred flush later
// fails, the error surfaces from the next Flush or Close.
func (c *BatchCoalescer) Put(ctx context.Context, r *models.VectorRecord) error {
	if c.cfg.OnIndexPut != nil {
		if err := c.cfg.OnIndexPut(ctx, r); err != nil {
			return fmt.Errorf("coalescer: index put: %w", err)
		}
	}
	c.enqueue(pendingOp{kind: opPut, record: r.Clone()})
	return nil
}

// Delete applies the index side effect synchronously, then enqueues the
// deletion for a deferred durable write.
func (c *BatchCoalescer) Delete(ctx context.Context, id string) error {
	if c.cfg.OnIndexDelete != nil {
		if err := c.cfg.OnIndexDelete(ctx, id); err != nil {
			return fmt.Errorf("coalescer: index delete: %w", err)
		}
	}
	c.enqueue(pendingOp{kind: opDelete, id: id})
	return nil
}

func (c *BatchCoalescer) enqueue(op pendingOp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Backpressure: block new enqueues while a flush is catching up and the
	// queue has grown to twice the batch size.
	for c.flushing && len(c.pending) >= 2*c.cfg.MaxBatchSize {
		c.cond.Wait()
	}

	c.pending = append(c.pending, op)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.FlushInterval, c.flushOnTimer)
	}

	if len(c.pending) >= c.cfg.MaxBatchSize && !c.flushing {
		batch := c.takeBatchLocked()
		go c.runFlush(batch)
	}
}

func (c *BatchCoalescer) flushOnTimer() {
	c.mu.Lock()
	if c.closed || len(c.pending) == 0 || c.flushing {
		c.timer = nil
		c.mu.Unlock()
		return
	}
	batch := c.takeBatchLocked()
	c.mu.Unlock()
	c.runFlush(batch)
}

// takeBatchLocked must be called with c.mu held. It removes every pending
// op, marks a flush in progress, and resets the flush timer.
func (c *BatchCoalescer) takeBatchLocked() []pendingOp {
	batch := c.pending
	c.pending = nil
	c.flushing = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return batch
}

// runFlush executes one batch against storage and signals waiters
// afterward, regardless of outcome. A failure is retained so the next
// Flush or Close surfaces it instead of the loss staying invisible.
func (c *BatchCoalescer) runFlush(batch []pendingOp) {
	err := c.applyBatch(batch)
	if err != nil {
		log.Error().Err(err).Int("batch_size", len(batch)).Msg("coalescer: flush failed")
	}

	c.mu.Lock()
	c.flushing = false
	if err != nil && c.lastErr == nil {
		c.lastErr = err
	}
	if len(c.pending) > 0 && c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.FlushInterval, c.flushOnTimer)
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

// applyBatch resolves same-id put/delete conflicts (last write wins) and
// applies the result to storage: one PutBatch call followed by sequential
// Delete calls.
func (c *BatchCoalescer) applyBatch(batch []pendingOp) error {
	puts := make(map[string]*models.VectorRecord)
	deletes := make(map[string]bool)
	order := make([]string, 0, len(batch))

	for _, op := range batch {
		var id string
		if op.kind == opPut {
			id = op.record.ID
		} else {
			id = op.id
		}
		if _, seen := puts[id]; !seen {
			if _, seen := deletes[id]; !seen {
				order = append(order, id)
			}
		}
		switch op.kind {
		case opPut:
			puts[id] = op.record
			delete(deletes, id)
		case opDelete:
			deletes[id] = true
			delete(puts, id)
		}
	}

	ctx := context.Background()

	putBatch := make([]*models.VectorRecord, 0, len(puts))
	for _, id := range order {
		if r, ok := puts[id]; ok {
			putBatch = append(putBatch, r)
		}
	}
	if len(putBatch) > 0 {
		if err := c.storage.PutBatch(ctx, putBatch); err != nil {
			return fmt.Errorf("coalescer: put batch: %w", err)
		}
	}

	for _, id := range order {
		if deletes[id] {
			if _, err := c.storage.Delete(ctx, id); err != nil {
				return fmt.Errorf("coalescer: delete %s: %w", id, err)
			}
		}
	}
	return nil
}

// Flush forces any pending writes to storage immediately and waits for
// them to complete. It also reports a background-flush failure that no
// caller has observed yet, clearing it in the process — writes the
// failed batch carried are gone, and the caller must find out.
func (c *BatchCoalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	for c.flushing {
		c.cond.Wait()
	}
	lastErr := c.lastErr
	c.lastErr = nil
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return lastErr
	}
	batch := c.takeBatchLocked()
	c.mu.Unlock()

	err := c.applyBatch(batch)

	c.mu.Lock()
	c.flushing = false
	if len(c.pending) > 0 && c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.FlushInterval, c.flushOnTimer)
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if err == nil {
		err = lastErr
	}
	return err
}

// PendingCount reports the number of writes not yet durable.
func (c *BatchCoalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close flushes any remaining writes and stops the background timer.
func (c *BatchCoalescer) Close(ctx context.Context) error {
	err := c.Flush(ctx)

	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	return err
}

// Package storage defines the durable keyed-persistence capability.
// boltstore and sqlitestore are the two concrete backends shipped; any
// implementation satisfying Storage plugs into the Coordinator.
package storage

import (
	"context"

	"github.com/thebtf/vectordb/pkg/models"
)

// VisitFunc is called once per record during a Scan. Returning an error
// aborts the scan and propagates the error to the caller.
type VisitFunc func(*models.VectorRecord) error

// Storage is the durable persistence capability.
type Storage interface {
	// Put is an idempotent upsert.
	Put(ctx context.Context, r *models.VectorRecord) error

	// PutBatch is an idempotent upsert of many records, atomic (all or
	// none) within the backing persistence layer.
	PutBatch(ctx context.Context, rs []*models.VectorRecord) error

	// Get returns the record, or (nil, nil) if absent.
	Get(ctx context.Context, id string) (*models.VectorRecord, error)

	// Delete reports whether the record existed.
	Delete(ctx context.Context, id string) (bool, error)

	// GetAll returns every record. Prefer Scan for large sets.
	GetAll(ctx context.Context) ([]*models.VectorRecord, error)

	// Count returns the cardinality of the store.
	Count(ctx context.Context) (int64, error)

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Scan delivers every record, one at a time, without materializing
	// the full set in memory.
	Scan(ctx context.Context, visit VisitFunc) error

	// Close releases the backing handle.
	Close() error
}

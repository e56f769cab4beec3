// Package vdberrors defines the typed error taxonomy shared across the
// vectordb subsystems, following the sentinel-plus-%w-wrapping convention
// the rest of this codebase's lineage uses for its own errors.
package vdberrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Leaf components raise these directly; the Coordinator
// wraps unknown errors with the originating operation's category while
// passing already-typed domain errors through unchanged.
var (
	ErrNotInitialized      = errors.New("not initialized")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrInvalidQuery        = errors.New("invalid query")
	ErrInvalidInsertData   = errors.New("invalid insert data")
	ErrInvalidExportData   = errors.New("invalid export data")
	ErrVersionIncompatible = errors.New("version incompatible")
	ErrIndexCorrupted      = errors.New("index corrupted")
	ErrStorageError        = errors.New("storage error")
	ErrModelLoadError      = errors.New("model load error")

	// Storage-specific kinds.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrSerialization      = errors.New("serialization error")

	// Coordinator wrap-kinds for otherwise-untyped failures.
	ErrInitError   = errors.New("init error")
	ErrInsertError = errors.New("insert error")
	ErrSearchError = errors.New("search error")
	ErrUpdateError = errors.New("update error")
	ErrDeleteError = errors.New("delete error")
)

// Wrap attaches op context and a kind to cause, so callers can both read a
// human-readable message and errors.Is against the kind. If cause already
// satisfies errors.Is(cause, kind) it is wrapped with op alone, avoiding a
// doubled kind in the message.
func Wrap(kind error, op string, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, kind) {
		return fmt.Errorf("%s: %w", op, cause)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

// WrapUnlessTyped wraps cause with kind only if cause isn't already one of
// the known sentinel kinds — this is the Coordinator's "pass through
// already-typed domain errors, wrap everything else" propagation policy.
func WrapUnlessTyped(kind error, op string, cause error) error {
	if cause == nil {
		return nil
	}
	for _, known := range allKinds {
		if errors.Is(cause, known) {
			return fmt.Errorf("%s: %w", op, cause)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

var allKinds = []error{
	ErrNotInitialized, ErrInvalidConfig, ErrDimensionMismatch, ErrInvalidQuery,
	ErrInvalidInsertData, ErrInvalidExportData, ErrVersionIncompatible,
	ErrIndexCorrupted, ErrStorageError, ErrModelLoadError,
	ErrStorageUnavailable, ErrQuotaExceeded, ErrSerialization,
}

// Package storage provides abstractions for persisting the resource catalog
// and the replacement audit log.
package storage

import (
	"context"
	"errors"
	"fmt"

	"ytresolve/catalog"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists indicates the entity already exists in storage.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "append", "lock").
	Op string
	// Entity is the entity type ("catalog", "replacement", "store").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// Store is the main storage interface. Implementations must be safe for
// concurrent use.
type Store interface {
	CatalogStore
	ReplacementStore

	// Close releases any resources held by the store.
	Close() error
}

// CatalogStore persists the ordered resource catalog. The catalog is read
// and written wholesale: the validator owns the whole pass.
type CatalogStore interface {
	// LoadCatalog retrieves all catalog items in stored order.
	LoadCatalog(ctx context.Context) ([]catalog.Item, error)
	// SaveCatalog replaces the stored catalog with the given items.
	SaveCatalog(ctx context.Context, items []catalog.Item) error
}

// ReplacementStore persists the append-only replacement audit log.
type ReplacementStore interface {
	// AppendReplacement adds a record to the log. Records are never updated
	// after insert.
	AppendReplacement(ctx context.Context, rec *Replacement) error
	// ListReplacements retrieves the latest records, newest first, capped at
	// limit (and at MaxReplacementList regardless).
	ListReplacements(ctx context.Context, limit int) ([]*Replacement, error)
}

// Package storage defines the adapters the sync engine reads and writes
// through, and the error taxonomy they report.
//
// There are two adapters. The local store is the on-device cache: one
// whole-value blob per user collection, replaced atomically. The remote store
// is the authoritative document store: one document per entity under
// users/{userId}/{collection}/{entityId}. Concrete implementations live in
// the sqlite, docstore and memory sub-packages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/steveyegge/mealsync/internal/types"
)

// ErrNotFound is returned when a key or document does not exist.
var ErrNotFound = errors.New("not found")

// ErrTransientIO marks network or timeout failures. Adapters retry these
// with bounded backoff before giving up.
var ErrTransientIO = errors.New("transient I/O failure")

// ErrPermissionDenied marks authorization failures. They are never retried.
var ErrPermissionDenied = errors.New("permission denied")

// ErrSchemaDecode marks a record that could not be decoded into an entity.
// Callers skip and count such records.
var ErrSchemaDecode = errors.New("schema decode error")

// ErrLocked is returned when the local store is owned by another process.
var ErrLocked = errors.New("local store locked by another process")

// Record is one raw entity as stored, before decoding.
type Record = map[string]any

// Document is a remote entity body addressed by its id within a collection.
type Document struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

// LocalStore is the on-device cache. Values are whole collection snapshots;
// a Write replaces the previous value in one atomic step, never per record.
type LocalStore interface {
	// Read returns the value stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write atomically replaces the value stored under key.
	Write(ctx context.Context, key string, value []byte) error

	// WriteBatch atomically replaces several keys at once.
	WriteBatch(ctx context.Context, values map[string][]byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// GetMetadata returns a metadata value, or "" with ErrNotFound.
	GetMetadata(ctx context.Context, key string) (string, error)

	// SetMetadata stores a metadata value.
	SetMetadata(ctx context.Context, key, value string) error

	// DeleteMetadata removes a metadata value.
	DeleteMetadata(ctx context.Context, key string) error

	Close() error
}

// RemoteStore is the networked document store.
type RemoteStore interface {
	// GetDocument reads users/{userID}/{collection}/{id}, or ErrNotFound.
	GetDocument(ctx context.Context, userID string, collection types.Collection, id string) (Document, error)

	// PutDocument creates or replaces one document.
	PutDocument(ctx context.Context, userID string, collection types.Collection, doc Document) error

	// DeleteDocument removes one document. Missing documents are not an error.
	DeleteDocument(ctx context.Context, userID string, collection types.Collection, id string) error

	// ListCollection returns every document of a user collection.
	ListCollection(ctx context.Context, userID string, collection types.Collection) ([]Document, error)

	// PutBatch creates or replaces several documents of one collection
	// atomically.
	PutBatch(ctx context.Context, userID string, collection types.Collection, docs []Document) error

	Close() error
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientIO)
}

// IsPermissionDenied reports whether err is an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// wrap attaches operation context to an error, keeping sentinels matchable.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

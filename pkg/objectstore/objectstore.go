// Package objectstore provides interfaces and implementations for flat
// key/value blob storage, the durability target the index files are
// mirrored to.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist indicates the requested object does not exist in the store.
var ErrNotExist = errors.New("object does not exist")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	// Key is the object's full key within the store.
	Key string

	// Size is the object's length in bytes.
	Size int64
}

// Store handles flat key/value blob storage. Keys are opaque strings;
// any hierarchy is a naming convention, not a store feature.
type Store interface {
	// List returns all objects whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Upload stores the reader's contents under key, replacing any
	// existing object.
	Upload(ctx context.Context, key string, r io.Reader, size int64) error

	// Download returns the object's contents. The caller must close the
	// returned reader. Returns ErrNotExist for a missing key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object under key. Deleting a missing key is
	// a no-op.
	Delete(ctx context.Context, key string) error
}

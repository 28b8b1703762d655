package testutils

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/foliostoreco/folio/pkg/objectstore"
	"github.com/foliostoreco/folio/pkg/objectstore/memory"
)

// ErrStoreFault is returned by FaultyStore for injected failures.
var ErrStoreFault = errors.New("injected object store fault")

// FaultyStore wraps an in-memory object store with per-operation fault
// injection for exercising durability error paths.
type FaultyStore struct {
	// Backing is the real store operations fall through to.
	Backing *memory.Store

	// FailList causes List to return ErrStoreFault.
	FailList bool

	// FailDownload causes Download to return ErrStoreFault.
	FailDownload bool

	// FailUploadKeys fails Upload for keys containing any of these
	// substrings.
	FailUploadKeys []string

	// FailUploadAll causes every Upload to return ErrStoreFault.
	FailUploadAll bool

	// FailDelete causes Delete to return ErrStoreFault.
	FailDelete bool

	// UploadedKeys accumulates every key successfully uploaded.
	UploadedKeys []string
}

// NewFaultyStore creates a fault-injecting store over an empty
// in-memory backing store.
func NewFaultyStore() *FaultyStore {
	return &FaultyStore{
		Backing: memory.NewStore(),
	}
}

func (f *FaultyStore) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	if f.FailList {
		return nil, ErrStoreFault
	}
	return f.Backing.List(ctx, prefix)
}

func (f *FaultyStore) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.FailUploadAll {
		return ErrStoreFault
	}
	for _, s := range f.FailUploadKeys {
		if strings.Contains(key, s) {
			return ErrStoreFault
		}
	}
	if err := f.Backing.Upload(ctx, key, r, size); err != nil {
		return err
	}
	f.UploadedKeys = append(f.UploadedKeys, key)
	return nil
}

func (f *FaultyStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.FailDownload {
		return nil, ErrStoreFault
	}
	return f.Backing.Download(ctx, key)
}

func (f *FaultyStore) Exists(ctx context.Context, key string) (bool, error) {
	return f.Backing.Exists(ctx, key)
}

func (f *FaultyStore) Delete(ctx context.Context, key string) error {
	if f.FailDelete {
		return ErrStoreFault
	}
	return f.Backing.Delete(ctx, key)
}

// Ensure FaultyStore implements objectstore.Store
var _ objectstore.Store = (*FaultyStore)(nil)

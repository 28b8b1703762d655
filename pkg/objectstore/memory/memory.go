// Package memory implements pkg/objectstore's Store in process memory.
// Useful for tests and for running without remote durability.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/foliostoreco/folio/pkg/objectstore"
)

// Store is an in-memory object store, safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

func (s *Store) List(_ context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []objectstore.ObjectInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, objectstore.ObjectInfo{
				Key:  key,
				Size: int64(len(data)),
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})

	return infos, nil
}

func (s *Store) Upload(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading object data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *Store) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrNotExist, key)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Ensure Store implements objectstore.Store
var _ objectstore.Store = (*Store)(nil)

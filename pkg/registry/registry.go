// Package registry tracks the documents currently present in the vector
// index. The registry is derived state: it is rebuilt at startup by
// scanning the index, so it never needs its own durability.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/vector"
)

// Document is the registry's view of one ingested document.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Registry is an in-memory map of ingested documents, safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	docs   map[string]Document
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		docs:   make(map[string]Document),
		logger: logger,
	}
}

// Rebuild replaces the registry's contents by scanning the index's chunk
// metadata. Chunks whose metadata lost the document ID are recovered
// through the chunk ID's canonical suffix; chunks that are identifiable
// by neither are skipped with a warning.
func (r *Registry) Rebuild(ctx context.Context, driver vector.Driver) error {
	docs := make(map[string]Document)
	skipped := 0

	err := driver.Scan(ctx, func(chunkID string, meta vector.Metadata) error {
		docID := meta.DocumentID
		if docID == "" {
			recovered, ok := vector.DocumentIDFromChunkID(chunkID)
			if !ok {
				skipped++
				r.logger.Warn("skipping unidentifiable chunk during rebuild",
					zap.String("chunk_id", chunkID),
				)
				return nil
			}
			docID = recovered
		}

		doc, exists := docs[docID]
		if !exists {
			doc = Document{ID: docID}
		}
		doc.ChunkCount++

		// Per-document fields are identical across a document's chunks,
		// but a partially degraded row shouldn't blank out what another
		// chunk already supplied.
		if meta.Filename != "" {
			doc.Filename = meta.Filename
		}
		if meta.ContentType != "" {
			doc.ContentType = meta.ContentType
		}
		if meta.Size > 0 {
			doc.Size = meta.Size
		}
		if !meta.CreatedAt.IsZero() && (doc.CreatedAt.IsZero() || meta.CreatedAt.Before(doc.CreatedAt)) {
			doc.CreatedAt = meta.CreatedAt
		}

		docs[docID] = doc
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning index: %w", err)
	}

	r.mu.Lock()
	r.docs = docs
	r.mu.Unlock()

	r.logger.Info("rebuilt document registry",
		zap.Int("documents", len(docs)),
		zap.Int("skipped_chunks", skipped),
	)

	return nil
}

// Get returns the document with the given ID.
func (r *Registry) Get(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

// Put inserts or replaces a document.
func (r *Registry) Put(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

// Remove deletes a document. Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Snapshot returns all documents sorted by creation time, newest first,
// with ID as the tiebreaker.
func (r *Registry) Snapshot() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})

	return docs
}

// Package vector provides interfaces and implementations for chunk storage
// and similarity retrieval.
package vector

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Metadata describes the document a chunk was cut from. Every chunk of the
// same document carries identical Filename/ContentType/Size/TotalChunks
// values; ChunkIndex is the chunk's 0-based position.
type Metadata struct {
	DocumentID  string    `json:"document_id"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is a stored slice of a document's text with its embedding.
type Chunk struct {
	// ID is the chunk's unique identifier, derived as
	// "{document_id}_chunk_{index}".
	ID string

	// Text is the chunk's UTF-8 content. Never empty for a stored chunk.
	Text string

	// Embedding is the vector representation of Text. Must match the
	// driver's configured dimensionality.
	Embedding []float32

	Metadata Metadata
}

// ScoredChunk is a search hit with its cosine similarity score
// (1 - cosine distance).
type ScoredChunk struct {
	Chunk

	Score float32
}

// ChunkID derives the canonical chunk identifier for a document chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// DocumentIDFromChunkID recovers the document ID from a chunk ID's
// "_chunk_N" suffix. Returns false when the ID doesn't follow the
// canonical shape.
func DocumentIDFromChunkID(chunkID string) (string, bool) {
	i := strings.LastIndex(chunkID, "_chunk_")
	if i <= 0 {
		return "", false
	}
	suffix := chunkID[i+len("_chunk_"):]
	if suffix == "" {
		return "", false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return chunkID[:i], true
}

// Driver handles durable storage and similarity retrieval of chunks.
type Driver interface {
	// Add stores chunks with their embeddings. The call is atomic: if any
	// chunk is rejected, none are stored. A chunk with the same ID as an
	// existing one replaces it.
	Add(ctx context.Context, chunks []Chunk) error

	// Search finds up to k chunks by cosine similarity to the embedding,
	// discarding results whose similarity falls below threshold. Results
	// are sorted by similarity descending.
	Search(ctx context.Context, embedding []float32, k int, threshold float32) ([]ScoredChunk, error)

	// DeleteByDocument removes every chunk belonging to the document and
	// returns how many were removed. Unknown documents remove zero.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the total number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Scan iterates all chunk metadata without loading embeddings,
	// in insertion order. Returning an error from fn stops the scan.
	Scan(ctx context.Context, fn func(chunkID string, meta Metadata) error) error

	// Close releases any resources held by the driver.
	Close() error
}

// Package embeddings provides interfaces and implementations for turning
// text into embedding vectors.
package embeddings

import "context"

// Embedder turns text into a fixed-dimension embedding vector.
type Embedder interface {
	// Embed returns the embedding vector for the given text. The text
	// must be non-empty.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of vectors this embedder
	// produces.
	Dimensions() uint

	// Close releases any resources held by the embedder.
	Close() error
}

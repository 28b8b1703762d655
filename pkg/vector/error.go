package vector

import "errors"

var (
	// ErrNotFound is returned when a chunk is not found in the vector store.
	ErrNotFound = errors.New("chunk not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch is returned when a chunk's embedding does not
	// match the store's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)

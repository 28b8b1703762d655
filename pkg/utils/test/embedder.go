package testutils

import (
	"context"

	"github.com/foliostoreco/folio/pkg/vector"
)

// MockEmbedder is a test embedder that returns configurable vectors and
// records the texts it was asked to embed.
type MockEmbedder struct {
	// EmbedTexts accumulates all texts passed to Embed.
	EmbedTexts []string

	// Vectors is returned by Embed in order, one per call; once
	// exhausted, Vector is returned instead.
	Vectors [][]float32

	// Vector is the fallback embedding returned by Embed.
	Vector []float32

	// FailEmbed causes Embed to return vector.ErrEmbedding.
	FailEmbed bool

	// FailAfter, when positive, fails the Nth call to Embed (1-based)
	// and every call after it.
	FailAfter int

	calls int
}

// NewMockEmbedder creates a new mock embedder producing the given
// fallback vector.
func NewMockEmbedder(fallback []float32) *MockEmbedder {
	return &MockEmbedder{
		EmbedTexts: make([]string, 0),
		Vector:     fallback,
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.FailEmbed {
		return nil, vector.ErrEmbedding
	}
	if m.FailAfter > 0 && m.calls >= m.FailAfter {
		return nil, vector.ErrEmbedding
	}
	m.EmbedTexts = append(m.EmbedTexts, text)
	if len(m.Vectors) > 0 {
		v := m.Vectors[0]
		m.Vectors = m.Vectors[1:]
		return v, nil
	}
	return m.Vector, nil
}

func (m *MockEmbedder) Dimensions() uint {
	return uint(len(m.Vector))
}

func (m *MockEmbedder) Close() error {
	return nil
}

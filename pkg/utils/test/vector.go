package testutils

import (
	"context"
	"sort"

	"github.com/foliostoreco/folio/pkg/vector"
)

// MockVectorDriver is a test vector driver backed by an in-memory map
// that records calls and returns configurable results.
type MockVectorDriver struct {
	// Chunks holds the stored chunks keyed by chunk ID.
	Chunks map[string]vector.Chunk

	// SearchResults is returned by Search when set, bypassing the map.
	SearchResults []vector.ScoredChunk

	// FailAdd causes Add to return vector.ErrConnection.
	FailAdd bool

	// FailSearch causes Search to return vector.ErrConnection.
	FailSearch bool

	// FailDelete causes DeleteByDocument to return vector.ErrConnection.
	FailDelete bool

	// FailScan causes Scan to return vector.ErrConnection.
	FailScan bool

	// order preserves insertion order for Scan.
	order []string
}

// NewMockVectorDriver creates a new empty mock vector driver.
func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Chunks: make(map[string]vector.Chunk),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, chunks []vector.Chunk) error {
	if m.FailAdd {
		return vector.ErrConnection
	}
	for _, c := range chunks {
		if _, exists := m.Chunks[c.ID]; !exists {
			m.order = append(m.order, c.ID)
		}
		m.Chunks[c.ID] = c
	}
	return nil
}

func (m *MockVectorDriver) Search(_ context.Context, _ []float32, k int, threshold float32) ([]vector.ScoredChunk, error) {
	if m.FailSearch {
		return nil, vector.ErrConnection
	}
	var results []vector.ScoredChunk
	for _, sc := range m.SearchResults {
		if sc.Score >= threshold {
			results = append(results, sc)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockVectorDriver) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	if m.FailDelete {
		return 0, vector.ErrConnection
	}
	deleted := 0
	remaining := m.order[:0]
	for _, id := range m.order {
		c := m.Chunks[id]
		docID := c.Metadata.DocumentID
		if docID == "" {
			docID, _ = vector.DocumentIDFromChunkID(id)
		}
		if docID == documentID {
			delete(m.Chunks, id)
			deleted++
			continue
		}
		remaining = append(remaining, id)
	}
	m.order = remaining
	return deleted, nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	return len(m.Chunks), nil
}

func (m *MockVectorDriver) Scan(_ context.Context, fn func(chunkID string, meta vector.Metadata) error) error {
	if m.FailScan {
		return vector.ErrConnection
	}
	for _, id := range m.order {
		if err := fn(id, m.Chunks[id].Metadata); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

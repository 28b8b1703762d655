package testutils

import (
	"context"
	"errors"
	"io"
)

// MockExtractor is a test extractor that returns a fixed text.
type MockExtractor struct {
	// Text is returned by Extract.
	Text string

	// FailExtract causes Extract to return an error.
	FailExtract bool
}

// NewMockExtractor creates a mock extractor returning the given text.
func NewMockExtractor(text string) *MockExtractor {
	return &MockExtractor{Text: text}
}

func (m *MockExtractor) Extract(_ context.Context, _ io.ReaderAt, _ int64) (string, error) {
	if m.FailExtract {
		return "", errors.New("extraction failed")
	}
	return m.Text, nil
}

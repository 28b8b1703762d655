// Package extract provides interfaces and implementations for pulling
// plain text out of uploaded documents.
package extract

import (
	"context"
	"errors"
	"io"
)

// ErrNoText indicates a document yielded no extractable text at all.
var ErrNoText = errors.New("no extractable text in document")

// Extractor pulls plain text out of a document.
type Extractor interface {
	// Extract returns the document's plain text. Individual-page
	// failures degrade to gaps in the output; Extract only errors
	// when the document as a whole is unreadable.
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// Package pdf implements pkg/extract's Extractor for PDF documents.
package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	ledongthuc "github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/extract"
)

// pageTimeout caps how long a single page's text extraction may run.
// Malformed PDFs can send the parser into pathological content streams;
// a stuck page is abandoned rather than stalling the whole upload.
const pageTimeout = 30 * time.Second

// document is the per-page view of an opened PDF. Extraction iterates
// it so page-level failures can be exercised independently of the
// parser.
type document interface {
	numPages() int
	pageText(ctx context.Context, pageNum int) (string, error)
}

// Extractor pulls plain text out of PDF documents page by page.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a PDF text extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads every page's text and joins them with blank lines.
// Pages that fail to parse are skipped; the error return is reserved
// for documents that cannot be opened or yield no text at all.
func (e *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	reader, err := newReader(r, size)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	return e.extractAll(ctx, &libDocument{reader: reader})
}

// extractAll walks the document's pages, degrading on per-page failure.
func (e *Extractor) extractAll(ctx context.Context, doc document) (string, error) {
	numPages := doc.numPages()
	if numPages == 0 {
		return "", extract.ErrNoText
	}

	var pages []string
	failed := 0
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := doc.pageText(ctx, i)
		if err != nil {
			failed++
			e.logger.Warn("skipping unreadable pdf page",
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", extract.ErrNoText
	}

	if failed > 0 {
		e.logger.Info("extracted pdf with degraded pages",
			zap.Int("pages", numPages),
			zap.Int("failed", failed),
		)
	}

	return strings.Join(pages, "\n\n"), nil
}

// newReader opens the PDF, converting the library's parse panics into
// errors.
func newReader(r io.ReaderAt, size int64) (reader *ledongthuc.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pdf parser panic: %v", p)
		}
	}()
	return ledongthuc.NewReader(r, size)
}

// libDocument adapts a ledongthuc reader to the document interface.
type libDocument struct {
	reader *ledongthuc.Reader
}

func (d *libDocument) numPages() int {
	return d.reader.NumPage()
}

// pageText pulls one page's text under a deadline, converting the
// library's parse panics into errors.
func (d *libDocument) pageText(ctx context.Context, pageNum int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("pdf parser panic on page %d: %v", pageNum, p)}
			}
		}()

		page := d.reader.Page(pageNum)
		if page.V.IsNull() {
			done <- result{err: fmt.Errorf("page %d is missing", pageNum)}
			return
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			done <- result{err: fmt.Errorf("reading page %d: %w", pageNum, err)}
			return
		}
		done <- result{text: strings.TrimSpace(text)}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("page %d extraction timed out: %w", pageNum, ctx.Err())
	case res := <-done:
		return res.text, res.err
	}
}

// Ensure Extractor implements extract.Extractor
var _ extract.Extractor = (*Extractor)(nil)

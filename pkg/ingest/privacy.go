package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/foliostoreco/folio/pkg/vector"
)

// redactedPlaceholder replaces user text in error messages.
const redactedPlaceholder = "[redacted]"

// redactText strips the given user-supplied text from an error's message.
// Provider errors can echo the request body back, so any error raised
// while handling a query or document must never carry the raw text into
// logs or responses. Sentinel classification survives redaction.
func redactText(err error, text string) error {
	if err == nil || text == "" {
		return err
	}

	msg := err.Error()
	if !strings.Contains(msg, text) {
		return err
	}
	sanitized := strings.ReplaceAll(msg, text, redactedPlaceholder)

	for _, sentinel := range []error{
		vector.ErrEmbedding,
		vector.ErrDimensionMismatch,
		vector.ErrConnection,
		vector.ErrNotFound,
	} {
		if errors.Is(err, sentinel) {
			sanitized = strings.TrimPrefix(sanitized, sentinel.Error()+": ")
			return fmt.Errorf("%w: %s", sentinel, sanitized)
		}
	}

	return errors.New(sanitized)
}

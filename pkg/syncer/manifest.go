package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/foliostoreco/folio/pkg/objectstore"
)

// manifestFilename is the remote key (under the prefix) of the current
// manifest.
const manifestFilename = "manifest.json"

// timestampLayout is the format of manifest timestamps and history
// snapshot keys. It sorts lexicographically in chronological order.
const timestampLayout = "20060102_150405"

// Manifest records which files constitute the current remote backup and
// when it was made. It is the commit marker: a backup exists remotely
// only once its manifest has been uploaded.
type Manifest struct {
	// Timestamp is when the backup was taken, in timestampLayout form.
	Timestamp string `json:"timestamp"`

	// Files lists the filenames included in the backup.
	Files []string `json:"files"`

	// DBPath is the local directory the backup was taken from.
	DBPath string `json:"db_path"`

	// Generation is a monotonic counter incremented on every committed
	// backup. It orders backups without relying on host clocks.
	Generation uint64 `json:"generation"`
}

// Time parses the manifest's timestamp. A malformed timestamp yields the
// zero time, which every real local file is newer than.
func (m *Manifest) Time() time.Time {
	t, err := time.Parse(timestampLayout, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// loadManifest downloads and decodes the current remote manifest.
// Returns objectstore.ErrNotExist (wrapped) when no manifest is present.
func loadManifest(ctx context.Context, store objectstore.Store, key string) (*Manifest, error) {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	return &m, nil
}

// saveManifest encodes and uploads the manifest to the given key.
func saveManifest(ctx context.Context, store objectstore.Store, key string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	if err := store.Upload(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("uploading manifest: %w", err)
	}

	return nil
}

// Package syncer keeps the vector index's on-disk file set consistent
// with a remote object store across process restarts.
//
// The remote layout is flat: "prefix/<filename>" holds the current copy
// of each index file, "prefix/manifest.json" is the commit marker naming
// the current backup, and "prefix/history/<timestamp>/<filename>" holds
// immutable point-in-time snapshots.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/objectstore"
)

// historyPrefix is the key segment under which snapshots live.
const historyPrefix = "history/"

// ErrNoManifest is returned by Restore when the remote store holds no
// committed backup.
var ErrNoManifest = errors.New("no remote backup to restore")

// Action is the outcome a sync decision selects.
type Action string

const (
	// ActionNone means local and remote already agree, or there is
	// nothing on either side.
	ActionNone Action = "none"

	// ActionBackup means the local file set is authoritative and is
	// pushed to the remote store.
	ActionBackup Action = "backup"

	// ActionRestore means the remote backup is authoritative and is
	// pulled into the local directory.
	ActionRestore Action = "restore"
)

// Syncer mirrors a local index directory to a remote object store.
type Syncer struct {
	store       objectstore.Store
	prefix      string
	indexDir    string
	primaryFile string
	maxHistory  int
	logger      *zap.Logger
}

// Config holds configuration for the syncer.
type Config struct {
	// Store is the remote object store backups live in.
	Store objectstore.Store

	// Prefix is prepended to every remote key. A trailing slash is
	// added if missing.
	Prefix string

	// IndexDir is the local directory holding the index's file set.
	IndexDir string

	// PrimaryFile is the filename of the index's main database file
	// within IndexDir. Its presence defines "local exists", and its
	// modification time is the local side of sync comparisons.
	PrimaryFile string

	// MaxHistory is how many history snapshots to retain. Zero or
	// negative disables rotation.
	MaxHistory int
}

// RestoreOptions controls restore behavior.
type RestoreOptions struct {
	// SkipLocalCopy skips the local safety copy of the existing index
	// directory. Used when local disk space is too constrained to hold
	// two copies.
	SkipLocalCopy bool
}

// NewSyncer creates a syncer for the given local directory and remote
// store.
func NewSyncer(cfg Config, logger *zap.Logger) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.IndexDir == "" {
		return nil, fmt.Errorf("index directory is required")
	}
	if cfg.PrimaryFile == "" {
		return nil, fmt.Errorf("primary filename is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Syncer{
		store:       cfg.Store,
		prefix:      prefix,
		indexDir:    cfg.IndexDir,
		primaryFile: cfg.PrimaryFile,
		maxHistory:  cfg.MaxHistory,
		logger:      logger,
	}, nil
}

// manifestKey returns the remote key of the current manifest.
func (s *Syncer) manifestKey() string {
	return s.prefix + manifestFilename
}

// localTime returns the primary file's modification time, truncated to
// manifest timestamp resolution. The second return reports whether the
// local index exists at all.
func (s *Syncer) localTime() (time.Time, bool) {
	info, err := os.Stat(filepath.Join(s.indexDir, s.primaryFile))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime().UTC().Truncate(time.Second), true
}

// Decide selects the sync action for a (local, remote) state pair.
// Timestamps only matter when both sides exist: local newer backs up,
// remote newer restores, equal is a no-op.
func Decide(localExists, remoteExists bool, localTS, remoteTS time.Time) Action {
	switch {
	case !localExists && !remoteExists:
		return ActionNone
	case localExists && !remoteExists:
		return ActionBackup
	case !localExists:
		return ActionRestore
	case localTS.After(remoteTS):
		return ActionBackup
	case remoteTS.After(localTS):
		return ActionRestore
	default:
		return ActionNone
	}
}

// Sync compares the local index against the remote manifest and performs
// whichever of backup or restore reconciles them. It returns the action
// taken and a human-readable message.
func (s *Syncer) Sync(ctx context.Context) (Action, string, error) {
	localTS, localExists := s.localTime()

	var remoteTS time.Time
	manifest, err := loadManifest(ctx, s.store, s.manifestKey())
	remoteExists := err == nil
	if err != nil && !errors.Is(err, objectstore.ErrNotExist) {
		return ActionNone, "", fmt.Errorf("loading remote manifest: %w", err)
	}
	if remoteExists {
		remoteTS = manifest.Time()
	}

	action := Decide(localExists, remoteExists, localTS, remoteTS)

	s.logger.Info("sync decision",
		zap.Bool("local_exists", localExists),
		zap.Bool("remote_exists", remoteExists),
		zap.String("action", string(action)),
	)

	switch action {
	case ActionBackup:
		msg, err := s.Backup(ctx)
		return ActionBackup, msg, err
	case ActionRestore:
		msg, err := s.Restore(ctx, RestoreOptions{})
		return ActionRestore, msg, err
	default:
		if localExists || remoteExists {
			return ActionNone, "already in sync", nil
		}
		return ActionNone, "nothing to sync", nil
	}
}

// Backup uploads every file in the index directory to the remote store:
// once to its current key and once to an immutable history snapshot,
// then commits the backup by uploading the manifest. Per-file upload
// failures are logged and skipped; only a manifest failure fails the
// backup as a whole.
func (s *Syncer) Backup(ctx context.Context) (string, error) {
	dataTS, ok := s.localTime()
	if !ok {
		return "", fmt.Errorf("no local index at %s to back up", filepath.Join(s.indexDir, s.primaryFile))
	}

	entries, err := os.ReadDir(s.indexDir)
	if err != nil {
		return "", fmt.Errorf("reading index directory: %w", err)
	}

	// History snapshots are keyed by backup wall-clock time so repeated
	// backups never overwrite an earlier snapshot.
	histTS := time.Now().UTC().Format(timestampLayout)

	// The generation counter survives across hosts via the manifest, so
	// it keeps counting even when the local side started from a restore.
	var generation uint64 = 1
	if prev, err := loadManifest(ctx, s.store, s.manifestKey()); err == nil {
		generation = prev.Generation + 1
	}

	var uploaded []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		data, err := os.ReadFile(filepath.Join(s.indexDir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable index file",
				zap.String("file", name),
				zap.Error(err),
			)
			continue
		}

		if err := s.store.Upload(ctx, s.prefix+name, bytes.NewReader(data), int64(len(data))); err != nil {
			s.logger.Warn("failed to upload index file",
				zap.String("file", name),
				zap.Error(err),
			)
			continue
		}

		historyKey := s.prefix + historyPrefix + histTS + "/" + name
		if err := s.store.Upload(ctx, historyKey, bytes.NewReader(data), int64(len(data))); err != nil {
			s.logger.Warn("failed to upload history snapshot",
				zap.String("key", historyKey),
				zap.Error(err),
			)
		}

		uploaded = append(uploaded, name)
	}

	// The manifest records the data's modification time, not the backup
	// wall-clock time, so a sync right after a backup compares equal.
	manifest := &Manifest{
		Timestamp:  dataTS.Format(timestampLayout),
		Files:      uploaded,
		DBPath:     s.indexDir,
		Generation: generation,
	}
	if err := saveManifest(ctx, s.store, s.manifestKey(), manifest); err != nil {
		return "", fmt.Errorf("backup not committed: %w", err)
	}

	if err := s.rotateHistory(ctx); err != nil {
		s.logger.Warn("history rotation failed", zap.Error(err))
	}

	s.logger.Info("backup committed",
		zap.Int("files", len(uploaded)),
		zap.Uint64("generation", generation),
	)

	return fmt.Sprintf("backed up %d files (generation %d)", len(uploaded), generation), nil
}

// Restore downloads the manifest's file set into the local index
// directory. An existing local directory is first copied aside to a
// timestamped sibling unless opts.SkipLocalCopy is set. A manifest file
// missing remotely is logged and skipped; any other failure aborts.
func (s *Syncer) Restore(ctx context.Context, opts RestoreOptions) (string, error) {
	manifest, err := loadManifest(ctx, s.store, s.manifestKey())
	if err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return "", ErrNoManifest
		}
		return "", fmt.Errorf("loading remote manifest: %w", err)
	}

	if _, err := os.Stat(s.indexDir); err == nil && !opts.SkipLocalCopy {
		safety := s.indexDir + "_backup_" + time.Now().UTC().Format(timestampLayout)
		if err := copyDir(s.indexDir, safety); err != nil {
			return "", fmt.Errorf("creating local safety copy: %w", err)
		}
		s.logger.Info("copied existing index aside", zap.String("path", safety))
	}

	if err := os.MkdirAll(s.indexDir, 0o755); err != nil {
		return "", fmt.Errorf("creating index directory: %w", err)
	}

	remoteTS := manifest.Time()
	restored := 0
	for _, name := range manifest.Files {
		if err := s.restoreFile(ctx, name, remoteTS); err != nil {
			if errors.Is(err, objectstore.ErrNotExist) {
				s.logger.Warn("manifest lists a file missing remotely",
					zap.String("file", name),
				)
				continue
			}
			return "", err
		}
		restored++
	}

	s.logger.Info("restore complete",
		zap.Int("files", restored),
		zap.Uint64("generation", manifest.Generation),
	)

	return fmt.Sprintf("restored %d of %d files (generation %d)",
		restored, len(manifest.Files), manifest.Generation), nil
}

// restoreFile downloads one file from its current remote key and
// backdates its modification time to the manifest's, so the restored
// set compares equal on the next sync.
func (s *Syncer) restoreFile(ctx context.Context, name string, remoteTS time.Time) error {
	rc, err := s.store.Download(ctx, s.prefix+name)
	if err != nil {
		return err
	}
	defer rc.Close()

	path := filepath.Join(s.indexDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	if !remoteTS.IsZero() {
		if err := os.Chtimes(path, remoteTS, remoteTS); err != nil {
			s.logger.Warn("failed to backdate restored file",
				zap.String("file", name),
				zap.Error(err),
			)
		}
	}

	return nil
}

// ListHistory returns the timestamps of retained history snapshots,
// newest first.
func (s *Syncer) ListHistory(ctx context.Context) ([]string, error) {
	infos, err := s.store.List(ctx, s.prefix+historyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	seen := make(map[string]bool)
	var timestamps []string
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, s.prefix+historyPrefix)
		ts, _, ok := strings.Cut(rest, "/")
		if !ok || seen[ts] {
			continue
		}
		seen[ts] = true
		timestamps = append(timestamps, ts)
	}

	// Lexicographic order is chronological for this layout.
	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))

	return timestamps, nil
}

// CurrentManifest returns the remote manifest, or objectstore.ErrNotExist
// when no backup has been committed.
func (s *Syncer) CurrentManifest(ctx context.Context) (*Manifest, error) {
	return loadManifest(ctx, s.store, s.manifestKey())
}

// rotateHistory deletes the oldest history snapshots beyond maxHistory.
func (s *Syncer) rotateHistory(ctx context.Context) error {
	if s.maxHistory <= 0 {
		return nil
	}

	timestamps, err := s.ListHistory(ctx)
	if err != nil {
		return err
	}
	if len(timestamps) <= s.maxHistory {
		return nil
	}

	for _, ts := range timestamps[s.maxHistory:] {
		infos, err := s.store.List(ctx, s.prefix+historyPrefix+ts+"/")
		if err != nil {
			return fmt.Errorf("listing snapshot %s: %w", ts, err)
		}
		for _, info := range infos {
			if err := s.store.Delete(ctx, info.Key); err != nil {
				return fmt.Errorf("deleting %s: %w", info.Key, err)
			}
		}
		s.logger.Debug("rotated out history snapshot", zap.String("timestamp", ts))
	}

	return nil
}

// IsDiskFull reports whether err stems from local disk-space exhaustion.
func IsDiskFull(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	return strings.Contains(err.Error(), "no space left on device")
}

// copyDir recursively copies src's regular files into dst, preserving
// the directory layout.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

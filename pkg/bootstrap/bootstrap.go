// Package bootstrap wires configuration into constructed collaborators.
// Both the serve and sync commands build the same object store, syncer,
// and embedder from config; this package keeps that wiring in one place.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/config"
	"github.com/foliostoreco/folio/pkg/dotdir"
	"github.com/foliostoreco/folio/pkg/embeddings"
	"github.com/foliostoreco/folio/pkg/embeddings/openai"
	"github.com/foliostoreco/folio/pkg/objectstore"
	"github.com/foliostoreco/folio/pkg/objectstore/memory"
	"github.com/foliostoreco/folio/pkg/objectstore/miniostore"
	"github.com/foliostoreco/folio/pkg/syncer"
)

// ResolveIndexDir returns the configured index directory, defaulting to
// an "index" directory inside the resolved dot directory.
func ResolveIndexDir(cfg *config.Config, configDir string) (string, error) {
	if cfg.Storage.IndexDir != "" {
		return cfg.Storage.IndexDir, nil
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving dot directory: %w", err)
	}
	if target == "" {
		return "", fmt.Errorf("no index directory configured and no dot directory found")
	}

	return filepath.Join(target, "index"), nil
}

// NewObjectStore constructs the configured object store. Provider "none"
// returns nil: durability is disabled.
func NewObjectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (objectstore.Store, error) {
	switch cfg.ObjectStore.Provider {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.NewStore(), nil
	case "s3", "minio":
		return miniostore.NewStore(ctx, miniostore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Bucket:    cfg.ObjectStore.Bucket,
			AccessKey: os.Getenv(cfg.ObjectStore.AccessKeyEnv),
			SecretKey: os.Getenv(cfg.ObjectStore.SecretKeyEnv),
			Secure:    cfg.ObjectStore.Secure,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown object store provider: %q", cfg.ObjectStore.Provider)
	}
}

// NewSyncer constructs a syncer over the given store and index directory.
func NewSyncer(cfg *config.Config, store objectstore.Store, indexDir string, logger *zap.Logger) (*syncer.Syncer, error) {
	return syncer.NewSyncer(syncer.Config{
		Store:       store,
		Prefix:      cfg.ObjectStore.Prefix,
		IndexDir:    indexDir,
		PrimaryFile: cfg.Storage.IndexFile,
		MaxHistory:  cfg.Backup.MaxHistory,
	}, logger)
}

// NewEmbedder constructs the configured embedding client.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "openai":
		return openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    cfg.Embedding.Target,
			Model:      cfg.Embedding.Model,
			APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}

// BackupInterval parses the configured backup interval, falling back to
// an hour on a malformed value.
func BackupInterval(cfg *config.Config, logger *zap.Logger) time.Duration {
	d, err := time.ParseDuration(cfg.Backup.Interval)
	if err != nil || d < 0 {
		logger.Warn("invalid backup interval, using 1h",
			zap.String("interval", cfg.Backup.Interval),
		)
		return time.Hour
	}
	return d
}

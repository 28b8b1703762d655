package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent folio configuration stored as config.toml
// in the .folio/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Backup      BackupConfig      `toml:"backup"`
	Ingest      IngestConfig      `toml:"ingest"`
}

// StorageConfig holds the embedded vector index location.
type StorageConfig struct {
	// IndexDir is the directory holding the index's on-disk file set.
	// Empty means "<.folio dir>/index".
	IndexDir string `toml:"index_dir,omitempty"`

	// IndexFile is the primary database file name inside IndexDir.
	IndexFile string `toml:"index_file,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// APIKeyEnv names the environment variable holding the provider key.
	// The key itself is never written to config.toml.
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

// ObjectStoreConfig holds remote object store settings for durability sync.
type ObjectStoreConfig struct {
	// Provider selects the backend: "s3" or "none" (sync disabled).
	Provider string `toml:"provider,omitempty"`

	Endpoint string `toml:"endpoint,omitempty"`
	Bucket   string `toml:"bucket,omitempty"`

	// Prefix is the key prefix all index objects live under.
	Prefix string `toml:"prefix,omitempty"`

	AccessKeyEnv string `toml:"access_key_env,omitempty"`
	SecretKeyEnv string `toml:"secret_key_env,omitempty"`
	Secure       bool   `toml:"secure,omitempty"`
}

// BackupConfig holds write-triggered backup scheduling settings.
type BackupConfig struct {
	// Interval is the minimum time between full-directory backups,
	// as a Go duration string (e.g. "1h").
	Interval string `toml:"interval,omitempty"`

	// MaxHistory is the number of timestamped history snapshots to retain.
	MaxHistory int `toml:"max_history,omitempty"`
}

// IngestConfig holds upload and chunking settings.
type IngestConfig struct {
	// MaxChunkWords is the word-count ceiling per chunk.
	MaxChunkWords int `toml:"max_chunk_words,omitempty"`

	// MaxUploadMB is the upload size cap in megabytes.
	MaxUploadMB int `toml:"max_upload_mb,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.index_dir": {
		get: func(c *Config) string { return c.Storage.IndexDir },
		set: func(c *Config, v string) error { c.Storage.IndexDir = v; return nil },
	},
	"storage.index_file": {
		get: func(c *Config) string { return c.Storage.IndexFile },
		set: func(c *Config, v string) error { c.Storage.IndexFile = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("embedding.dimensions must be a positive integer: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.api_key_env": {
		get: func(c *Config) string { return c.Embedding.APIKeyEnv },
		set: func(c *Config, v string) error { c.Embedding.APIKeyEnv = v; return nil },
	},
	"object_store.provider": {
		get: func(c *Config) string { return c.ObjectStore.Provider },
		set: func(c *Config, v string) error { c.ObjectStore.Provider = v; return nil },
	},
	"object_store.endpoint": {
		get: func(c *Config) string { return c.ObjectStore.Endpoint },
		set: func(c *Config, v string) error { c.ObjectStore.Endpoint = v; return nil },
	},
	"object_store.bucket": {
		get: func(c *Config) string { return c.ObjectStore.Bucket },
		set: func(c *Config, v string) error { c.ObjectStore.Bucket = v; return nil },
	},
	"object_store.prefix": {
		get: func(c *Config) string { return c.ObjectStore.Prefix },
		set: func(c *Config, v string) error { c.ObjectStore.Prefix = v; return nil },
	},
	"object_store.access_key_env": {
		get: func(c *Config) string { return c.ObjectStore.AccessKeyEnv },
		set: func(c *Config, v string) error { c.ObjectStore.AccessKeyEnv = v; return nil },
	},
	"object_store.secret_key_env": {
		get: func(c *Config) string { return c.ObjectStore.SecretKeyEnv },
		set: func(c *Config, v string) error { c.ObjectStore.SecretKeyEnv = v; return nil },
	},
	"object_store.secure": {
		get: func(c *Config) string { return strconv.FormatBool(c.ObjectStore.Secure) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("object_store.secure must be true or false: %w", err)
			}
			c.ObjectStore.Secure = b
			return nil
		},
	},
	"backup.interval": {
		get: func(c *Config) string { return c.Backup.Interval },
		set: func(c *Config, v string) error { c.Backup.Interval = v; return nil },
	},
	"backup.max_history": {
		get: func(c *Config) string { return strconv.Itoa(c.Backup.MaxHistory) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("backup.max_history must be a non-negative integer")
			}
			c.Backup.MaxHistory = n
			return nil
		},
	},
	"ingest.max_chunk_words": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.MaxChunkWords) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("ingest.max_chunk_words must be a positive integer")
			}
			c.Ingest.MaxChunkWords = n
			return nil
		},
	},
	"ingest.max_upload_mb": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.MaxUploadMB) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("ingest.max_upload_mb must be a positive integer")
			}
			c.Ingest.MaxUploadMB = n
			return nil
		},
	},
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/foliostoreco/folio/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the FOLIO_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (FOLIO_API_LISTEN, FOLIO_EMBEDDING_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: FOLIO_API_LISTEN, FOLIO_STORAGE_INDEX_DIR, etc.
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.index_dir", d.Storage.IndexDir)
	v.SetDefault("storage.index_file", d.Storage.IndexFile)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key_env", d.Embedding.APIKeyEnv)

	// Object store
	v.SetDefault("object_store.provider", d.ObjectStore.Provider)
	v.SetDefault("object_store.endpoint", d.ObjectStore.Endpoint)
	v.SetDefault("object_store.bucket", d.ObjectStore.Bucket)
	v.SetDefault("object_store.prefix", d.ObjectStore.Prefix)
	v.SetDefault("object_store.access_key_env", d.ObjectStore.AccessKeyEnv)
	v.SetDefault("object_store.secret_key_env", d.ObjectStore.SecretKeyEnv)
	v.SetDefault("object_store.secure", d.ObjectStore.Secure)

	// Backup
	v.SetDefault("backup.interval", d.Backup.Interval)
	v.SetDefault("backup.max_history", d.Backup.MaxHistory)

	// Ingest
	v.SetDefault("ingest.max_chunk_words", d.Ingest.MaxChunkWords)
	v.SetDefault("ingest.max_upload_mb", d.Ingest.MaxUploadMB)
}

// ConfigFromViper materializes a typed Config from a viper instance,
// applying defaults for any missing fields.
func ConfigFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			IndexDir:  v.GetString("storage.index_dir"),
			IndexFile: v.GetString("storage.index_file"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			APIKeyEnv:  v.GetString("embedding.api_key_env"),
		},
		ObjectStore: ObjectStoreConfig{
			Provider:     v.GetString("object_store.provider"),
			Endpoint:     v.GetString("object_store.endpoint"),
			Bucket:       v.GetString("object_store.bucket"),
			Prefix:       v.GetString("object_store.prefix"),
			AccessKeyEnv: v.GetString("object_store.access_key_env"),
			SecretKeyEnv: v.GetString("object_store.secret_key_env"),
			Secure:       v.GetBool("object_store.secure"),
		},
		Backup: BackupConfig{
			Interval:   v.GetString("backup.interval"),
			MaxHistory: v.GetInt("backup.max_history"),
		},
		Ingest: IngestConfig{
			MaxChunkWords: v.GetInt("ingest.max_chunk_words"),
			MaxUploadMB:   v.GetInt("ingest.max_upload_mb"),
		},
	}

	applyDefaults(cfg)
	return cfg
}

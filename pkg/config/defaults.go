package config

const (
	defaultIndexFile = "folio.db"

	defaultAPIListen = ":8080"

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingTarget     = "https://api.openai.com/v1"
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultEmbeddingDimensions = 1536
	defaultEmbeddingKeyEnv     = "OPENAI_API_KEY"

	defaultObjectStoreProvider = "none"
	defaultObjectStorePrefix   = "folio/"
	defaultAccessKeyEnv        = "FOLIO_S3_ACCESS_KEY"
	defaultSecretKeyEnv        = "FOLIO_S3_SECRET_KEY"

	defaultBackupInterval   = "1h"
	defaultBackupMaxHistory = 24

	defaultMaxChunkWords = 500
	defaultMaxUploadMB   = 50
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			IndexFile: defaultIndexFile,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			APIKeyEnv:  defaultEmbeddingKeyEnv,
		},
		ObjectStore: ObjectStoreConfig{
			Provider:     defaultObjectStoreProvider,
			Prefix:       defaultObjectStorePrefix,
			AccessKeyEnv: defaultAccessKeyEnv,
			SecretKeyEnv: defaultSecretKeyEnv,
		},
		Backup: BackupConfig{
			Interval:   defaultBackupInterval,
			MaxHistory: defaultBackupMaxHistory,
		},
		Ingest: IngestConfig{
			MaxChunkWords: defaultMaxChunkWords,
			MaxUploadMB:   defaultMaxUploadMB,
		},
	}
}

package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --index-dir
// on both "folio serve" and "folio sync").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen        = "listen"
	FlagIndexDir         = "index-dir"
	FlagEmbeddingProv    = "embedding-provider"
	FlagEmbeddingTgt     = "embedding-target"
	FlagEmbeddingModel   = "embedding-model"
	FlagEmbeddingDims    = "embedding-dimensions"
	FlagStoreProvider    = "store-provider"
	FlagStoreEndpoint    = "store-endpoint"
	FlagStoreBucket      = "store-bucket"
	FlagStorePrefix      = "store-prefix"
	FlagBackupInterval   = "backup-interval"
	FlagBackupMaxHistory = "backup-max-history"
)

// DefaultFlagSet returns the registry of all folio CLI flags.
func DefaultFlagSet() FlagSet {
	return FlagSet{
		FlagAPIListen: {
			Name:        "listen",
			Shorthand:   "l",
			ViperKey:    "api.listen",
			Description: "Address for the API server to listen on",
		},
		FlagIndexDir: {
			Name:        "index-dir",
			ViperKey:    "storage.index_dir",
			Description: "Directory holding the embedded vector index",
		},
		FlagEmbeddingProv: {
			Name:        "embedding-provider",
			ViperKey:    "embedding.provider",
			Description: "Embedding provider (openai)",
		},
		FlagEmbeddingTgt: {
			Name:        "embedding-target",
			ViperKey:    "embedding.target",
			Description: "Embedding provider base URL",
		},
		FlagEmbeddingModel: {
			Name:        "embedding-model",
			ViperKey:    "embedding.model",
			Description: "Embedding model name",
		},
		FlagEmbeddingDims: {
			Name:        "embedding-dimensions",
			ViperKey:    "embedding.dimensions",
			Description: "Embedding vector dimensionality",
		},
		FlagStoreProvider: {
			Name:        "store-provider",
			ViperKey:    "object_store.provider",
			Description: "Object store provider (s3, none)",
		},
		FlagStoreEndpoint: {
			Name:        "store-endpoint",
			ViperKey:    "object_store.endpoint",
			Description: "Object store endpoint host",
		},
		FlagStoreBucket: {
			Name:        "store-bucket",
			ViperKey:    "object_store.bucket",
			Description: "Object store bucket name",
		},
		FlagStorePrefix: {
			Name:        "store-prefix",
			ViperKey:    "object_store.prefix",
			Description: "Key prefix for index objects",
		},
		FlagBackupInterval: {
			Name:        "backup-interval",
			ViperKey:    "backup.interval",
			Description: "Minimum interval between write-triggered backups",
		},
		FlagBackupMaxHistory: {
			Name:        "backup-max-history",
			ViperKey:    "backup.max_history",
			Description: "Number of history snapshots to retain",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds each registered flag that was set on cmd to its
// viper key, giving CLI flags the highest precedence.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys ...string) error {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(def.ViperKey, f); err != nil {
			return err
		}
	}
	return nil
}

// defaultString resolves a viper key's default from NewDefaultConfig.
func defaultString(viperKey string) string {
	info, ok := configKeys[viperKey]
	if !ok {
		return ""
	}
	return info.get(NewDefaultConfig())
}

// defaultUint resolves a uint default from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	d := NewDefaultConfig()
	switch viperKey {
	case "embedding.dimensions":
		return d.Embedding.Dimensions
	default:
		return 0
	}
}

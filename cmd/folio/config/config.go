// Package configcmder provides the config command for managing persistent
// folio configuration stored in the .folio/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent folio configuration.

Configuration is stored as config.toml in the .folio/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen,
  storage.index_dir, storage.index_file,
  embedding.provider, embedding.target, embedding.model,
  embedding.dimensions, embedding.api_key_env,
  object_store.provider, object_store.endpoint, object_store.bucket,
  object_store.prefix, object_store.access_key_env,
  object_store.secret_key_env, object_store.secure,
  backup.interval, backup.max_history,
  ingest.max_chunk_words, ingest.max_upload_mb

Use subcommands to get, set, or list configuration values:
  folio config set <key> <value>    Set a configuration value
  folio config get <key>            Get a configuration value
  folio config list                 List all configuration values

Examples:
  folio config set object_store.provider s3
  folio config set embedding.dimensions 768
  folio config get api.listen
  folio config list`

const configShortDesc string = "Manage persistent folio configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

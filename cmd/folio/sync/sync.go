// Package synccmder provides the sync command for reconciling the local
// vector index with the remote object store.
package synccmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/bootstrap"
	"github.com/foliostoreco/folio/pkg/config"
	"github.com/foliostoreco/folio/pkg/logger"
	"github.com/foliostoreco/folio/pkg/syncer"
)

const syncLongDesc string = `Reconcile the local vector index with the remote object store.

Without a subcommand, sync compares the local index against the remote
manifest and performs whichever of backup or restore reconciles them:
a missing side is copied from the other, and when both exist the newer
side wins.

  folio sync              Reconcile automatically
  folio sync backup       Force a backup to the object store
  folio sync restore      Force a restore from the object store
  folio sync list         List retained history snapshots`

const syncShortDesc string = "Reconcile the local index with the object store"

type syncEnv struct {
	cfg      *config.Config
	syncer   *syncer.Syncer
	logger   *zap.Logger
	indexDir string
}

// buildEnv resolves config and constructs the syncer shared by every
// sync subcommand.
func buildEnv(cmd *cobra.Command) (*syncEnv, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	configDir, _ := cmd.Flags().GetString("config-dir")

	log := logger.NewLogger(debug)

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	cfg := config.ConfigFromViper(v)

	indexDir, err := bootstrap.ResolveIndexDir(cfg, configDir)
	if err != nil {
		return nil, err
	}

	store, err := bootstrap.NewObjectStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("no object store configured: set object_store.provider")
	}

	sy, err := bootstrap.NewSyncer(cfg, store, indexDir, log)
	if err != nil {
		return nil, err
	}

	return &syncEnv{
		cfg:      cfg,
		syncer:   sy,
		logger:   log,
		indexDir: indexDir,
	}, nil
}

func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: syncShortDesc,
		Long:  syncLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := buildEnv(cmd)
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			action, msg, err := env.syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%s: %s\n", action, msg)
			return nil
		},
	}

	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the local index to the object store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := buildEnv(cmd)
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			msg, err := env.syncer.Backup(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(msg)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	var skipLocalCopy bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the local index from the object store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := buildEnv(cmd)
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			msg, err := env.syncer.Restore(cmd.Context(), syncer.RestoreOptions{
				SkipLocalCopy: skipLocalCopy,
			})
			if err != nil {
				return err
			}

			fmt.Println(msg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipLocalCopy, "skip-local-copy", false,
		"Skip the local safety copy of the existing index (for constrained disk quotas)")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained history snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := buildEnv(cmd)
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			manifest, err := env.syncer.CurrentManifest(cmd.Context())
			if err == nil {
				fmt.Printf("current: %s (generation %d, %d files)\n",
					manifest.Timestamp, manifest.Generation, len(manifest.Files))
			} else {
				fmt.Println("current: none")
			}

			history, err := env.syncer.ListHistory(cmd.Context())
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Println("history: none")
				return nil
			}

			for _, ts := range history {
				fmt.Printf("history: %s\n", ts)
			}
			return nil
		},
	}
}

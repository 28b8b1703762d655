// Package servecmder provides the serve command for running the API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/api"
	"github.com/foliostoreco/folio/api/mcp"
	"github.com/foliostoreco/folio/pkg/bootstrap"
	"github.com/foliostoreco/folio/pkg/config"
	pdfextract "github.com/foliostoreco/folio/pkg/extract/pdf"
	"github.com/foliostoreco/folio/pkg/ingest"
	"github.com/foliostoreco/folio/pkg/logger"
	"github.com/foliostoreco/folio/pkg/registry"
	"github.com/foliostoreco/folio/pkg/syncer"
	"github.com/foliostoreco/folio/pkg/vector/sqlitevec"
)

type ServeCommander struct {
	listen        string
	indexDir      string
	embeddingProv string
	embeddingTgt  string
	embeddingMdl  string
	embeddingDims uint
	storeProvider string
	storeEndpoint string
	storeBucket   string
	storePrefix   string
	debug         bool
	configDir     string
	logger        *zap.Logger
}

const serveLongDesc string = `Run the Folio API server.

On startup the local vector index is reconciled with the remote object
store (when one is configured): a missing local index is restored from
the latest remote backup, and a local index newer than the remote copy
is backed up. The server then accepts uploads and queries.

  folio serve
  folio serve --listen :9090
  folio serve --store-provider s3 --store-endpoint s3.amazonaws.com --store-bucket my-folio`

const serveShortDesc string = "Run the Folio API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			if err := config.BindRegisteredFlags(v, cmd, fs,
				config.FlagAPIListen,
				config.FlagIndexDir,
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagEmbeddingDims,
				config.FlagStoreProvider,
				config.FlagStoreEndpoint,
				config.FlagStoreBucket,
				config.FlagStorePrefix,
			); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}

			return cmder.run(config.ConfigFromViper(v))
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagIndexDir, &cmder.indexDir)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingMdl)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, fs, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, fs, config.FlagStoreEndpoint, &cmder.storeEndpoint)
	config.AddStringFlag(cmd, fs, config.FlagStoreBucket, &cmder.storeBucket)
	config.AddStringFlag(cmd, fs, config.FlagStorePrefix, &cmder.storePrefix)

	return cmd
}

func (c *ServeCommander) run(cfg *config.Config) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx := context.Background()

	indexDir, err := bootstrap.ResolveIndexDir(cfg, c.configDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	// Durability first: reconcile with the remote store before the
	// index is opened, so a fresh host starts from the latest backup.
	var scheduler *syncer.Scheduler
	store, err := bootstrap.NewObjectStore(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	if store != nil {
		sy, err := bootstrap.NewSyncer(cfg, store, indexDir, c.logger)
		if err != nil {
			return err
		}

		if err := c.startupSync(ctx, sy); err != nil {
			return err
		}

		scheduler = syncer.NewScheduler(sy, bootstrap.BackupInterval(cfg, c.logger), c.logger)
	} else {
		c.logger.Info("no object store configured, durability disabled")
	}

	index, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
		DBPath:     filepath.Join(indexDir, cfg.Storage.IndexFile),
		Dimensions: cfg.Embedding.Dimensions,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	defer index.Close()

	reg := registry.NewRegistry(c.logger)
	if err := reg.Rebuild(ctx, index); err != nil {
		return fmt.Errorf("rebuilding document registry: %w", err)
	}

	embedder, err := bootstrap.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	var notifier ingest.Notifier
	if scheduler != nil {
		notifier = scheduler
	}

	service, err := ingest.NewService(ingest.Config{
		Embedder:      embedder,
		Index:         index,
		Registry:      reg,
		Notifier:      notifier,
		MaxChunkWords: cfg.Ingest.MaxChunkWords,
		IndexDir:      indexDir,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating ingest service: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Service: service,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr:     cfg.API.Listen,
		MaxUploadBytes: int64(cfg.Ingest.MaxUploadMB) * 1024 * 1024,
	}, service, pdfextract.NewExtractor(c.logger), mcpServer.Handler(), c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if scheduler != nil {
		if err := scheduler.Flush(ctx); err != nil {
			c.logger.Warn("final backup failed", zap.Error(err))
		}
	}

	return apiServer.Shutdown()
}

// startupSync reconciles local and remote state, retrying a disk-full
// restore once without the local safety copy before giving up.
func (c *ServeCommander) startupSync(ctx context.Context, sy *syncer.Syncer) error {
	action, msg, err := sy.Sync(ctx)
	if err == nil {
		c.logger.Info("startup sync complete",
			zap.String("action", string(action)),
			zap.String("message", msg),
		)
		return nil
	}

	if action == syncer.ActionRestore && syncer.IsDiskFull(err) {
		c.logger.Warn("restore hit disk quota, retrying without local safety copy", zap.Error(err))
		if msg, err = sy.Restore(ctx, syncer.RestoreOptions{SkipLocalCopy: true}); err == nil {
			c.logger.Info("startup restore complete", zap.String("message", msg))
			return nil
		}
	}

	return fmt.Errorf("startup sync failed: %w", err)
}

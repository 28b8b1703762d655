// Package foliocmder
package foliocmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/foliostoreco/folio/cmd/folio/config"
	servecmder "github.com/foliostoreco/folio/cmd/folio/serve"
	synccmder "github.com/foliostoreco/folio/cmd/folio/sync"
)

const folioLongDesc string = `Folio is a document ingestion and semantic-search service.

Upload PDFs, search them with natural-language queries, and keep the
underlying vector index durable against an object store.

  folio serve          Run the API server
  folio sync           Reconcile the local index with the object store
  folio config         Manage persistent configuration`

const folioShortDesc string = "Folio - Document Search"

func NewFolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: folioShortDesc,
		Long:  folioLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding the .folio configuration (default: auto-detect)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(synccmder.NewSyncCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())

	return cmd
}

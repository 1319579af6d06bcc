// Package loomcmder
package loomcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/loom/cmd/loom/config"
	initcmder "github.com/papercomputeco/loom/cmd/loom/init"
	refreshcmder "github.com/papercomputeco/loom/cmd/loom/refresh"
	servecmder "github.com/papercomputeco/loom/cmd/loom/serve"
	showcmder "github.com/papercomputeco/loom/cmd/loom/show"
	updatecmder "github.com/papercomputeco/loom/cmd/loom/update"
	versioncmder "github.com/papercomputeco/loom/cmd/version"
)

const loomLongDesc string = `Loom is automatic memory for your stories.

It watches a directory of story sections, extracts events, characters, and
the current situation from new text, and compiles them into a token-bounded
memory artifact that survives arbitrarily long narratives.

Common commands:
  loom update     Process new story content since the last run
  loom refresh    Rebuild memory from the entire story
  loom show       Display the compiled memory
  loom serve      Run the API server with a file watcher`

const loomShortDesc string = "Loom - Narrative Memory"

func NewLoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loom",
		Short: loomShortDesc,
		Long:  loomLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .loom/ directory location")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(updatecmder.NewUpdateCmd())
	cmd.AddCommand(refreshcmder.NewRefreshCmd())
	cmd.AddCommand(showcmder.NewShowCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

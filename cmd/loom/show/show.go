// Package showcmder provides the show command for displaying compiled memory.
package showcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/loom/cmd/loom/wiring"
	"github.com/papercomputeco/loom/pkg/cliui"
	"github.com/papercomputeco/loom/pkg/config"
	"github.com/papercomputeco/loom/pkg/logger"
	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/narrative/store"
	"github.com/papercomputeco/loom/pkg/tokens"
)

const showLongDesc string = `Display the compiled memory for a narrative.

Reads stored state and renders the memory artifact to the terminal.
Show never calls the model and never modifies state; run "loom update"
or "loom refresh" first to populate memory.

Examples:
  loom show
  loom show --narrative campaign
  loom show --raw`

const showShortDesc string = "Display the compiled memory"

type showCommander struct {
	debug     bool
	configDir string
	raw       bool

	storageProvider string
	sqlitePath      string
	postgresURL     string
	narrative       string
}

func NewShowCmd() *cobra.Command {
	cmder := &showCommander{}
	fs := wiring.CycleFlagSet()

	cmd := &cobra.Command{
		Use:   "show",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd, fs)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, fs, config.FlagNarrative, &cmder.narrative)
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the memory artifact without markdown rendering")

	return cmd
}

func (c *showCommander) run(ctx context.Context, cmd *cobra.Command, fs config.FlagSet) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, fs, []string{
		config.FlagStorageProvider,
		config.FlagSQLite,
		config.FlagPostgres,
		config.FlagNarrative,
	})

	cfg := wiring.ConfigFromViper(v)

	driver, err := wiring.NewStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = driver.Close() }()

	out := cmd.OutOrStdout()

	state, err := driver.Load(ctx, cfg.Narrative.Key)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			fmt.Fprintf(out, "No memory for narrative %q yet. Run \"loom update\" first.\n", cfg.Narrative.Key)
			return nil
		}
		return err
	}

	memory := narrative.CompileState(state)
	if memory == "" {
		fmt.Fprintf(out, "Memory for narrative %q is empty. Run \"loom update\" first.\n", cfg.Narrative.Key)
		return nil
	}

	if c.raw {
		fmt.Fprintln(out, memory)
	} else {
		rendered, err := cliui.RenderMarkdown(memory)
		if err != nil {
			fmt.Fprintln(out, memory)
		} else {
			fmt.Fprint(out, rendered)
		}
	}

	fmt.Fprintf(out, "\n%s\n", cliui.StatsLine(len(state.Events), len(state.Characters), tokens.Estimate(memory)))
	return nil
}

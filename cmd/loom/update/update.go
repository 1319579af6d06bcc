// Package updatecmder provides the update command for running one
// incremental memory cycle.
package updatecmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/loom/cmd/loom/wiring"
	"github.com/papercomputeco/loom/pkg/cliui"
	"github.com/papercomputeco/loom/pkg/config"
	"github.com/papercomputeco/loom/pkg/logger"
	"github.com/papercomputeco/loom/pkg/pipeline"
	"github.com/papercomputeco/loom/pkg/tokens"
)

const updateLongDesc string = `Run one incremental memory update.

Scans the content directory for story text past the last processed marker,
extracts events, characters, and the current situation from it, and
recompiles the memory file. Content that has already been processed is
never sent to the model again.

Examples:
  loom update
  loom update --narrative campaign --content-dir ./story
  loom update --sqlite ./loom.db --token-limit 1500`

const updateShortDesc string = "Process new story content since the last run"

type updateCommander struct {
	debug     bool
	configDir string

	storageProvider string
	sqlitePath      string
	postgresURL     string
	llmProvider     string
	llmModel        string
	llmTarget       string
	narrative       string
	tokenLimit      int
	contentDir      string
	eventsProvider  string
	eventsBrokers   string
	eventsTopic     string
	memoryFile      string
}

func NewUpdateCmd() *cobra.Command {
	cmder := &updateCommander{}
	fs := wiring.CycleFlagSet()

	cmd := &cobra.Command{
		Use:   "update",
		Short: updateShortDesc,
		Long:  updateLongDesc,
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

	cmder.registerFlags(cmd, fs)

	return cmd
}

func (c *updateCommander) registerFlags(cmd *cobra.Command, fs config.FlagSet) {
	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &c.storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &c.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &c.postgresURL)
	config.AddStringFlag(cmd, fs, config.FlagLLMProvider, &c.llmProvider)
	config.AddStringFlag(cmd, fs, config.FlagLLMModel, &c.llmModel)
	config.AddStringFlag(cmd, fs, config.FlagLLMTarget, &c.llmTarget)
	config.AddStringFlag(cmd, fs, config.FlagNarrative, &c.narrative)
	config.AddIntFlag(cmd, fs, config.FlagTokenLimit, &c.tokenLimit)
	config.AddStringFlag(cmd, fs, config.FlagContentDir, &c.contentDir)
	config.AddStringFlag(cmd, fs, config.FlagEventsProvider, &c.eventsProvider)
	config.AddStringFlag(cmd, fs, config.FlagEventsBrokers, &c.eventsBrokers)
	config.AddStringFlag(cmd, fs, config.FlagEventsTopic, &c.eventsTopic)
	config.AddStringFlag(cmd, fs, config.FlagMemoryFile, &c.memoryFile)
}

func (c *updateCommander) run(ctx context.Context, cmd *cobra.Command, fs config.FlagSet) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, fs, wiring.CycleFlagKeys())

	cfg := wiring.ConfigFromViper(v)

	runtime, err := wiring.NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.Close() }()

	if err := runtime.ApplySettings(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	err = cliui.Step(out, fmt.Sprintf("Updating memory for %q", cfg.Narrative.Key), func() error {
		return runtime.Pipeline.Update(ctx)
	})
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		fmt.Fprintln(out, "Another cycle is already running for this narrative; skipped.")
		return nil
	case errors.Is(err, pipeline.ErrAutoUpdateDisabled):
		fmt.Fprintln(out, "Automatic updates are disabled for this narrative.")
		fmt.Fprintln(out, "Enable them with: loom config set narrative.auto_update true")
		return nil
	case err != nil:
		return err
	}

	state, err := runtime.Pipeline.State(ctx)
	if err != nil {
		return err
	}
	memory, err := runtime.Pipeline.Memory(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", cliui.StatsLine(len(state.Events), len(state.Characters), tokens.Estimate(memory)))
	return nil
}

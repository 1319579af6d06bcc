// Package refreshcmder provides the refresh command for rebuilding memory
// from the entire story backlog.
package refreshcmder

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

const refreshLongDesc string = `Rebuild memory from the entire story.

Discards the derived state for the narrative and re-extracts it from the
full backlog, processing the text in overlapping windows. Use this after
editing earlier sections or when incremental updates have drifted.

Refresh makes one model call per window, so long stories take a while.

Examples:
  loom refresh
  loom refresh --narrative campaign --content-dir ./story`

const refreshShortDesc string = "Rebuild memory from the entire story"

type refreshCommander struct {
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

func NewRefreshCmd() *cobra.Command {
	cmder := &refreshCommander{}
	fs := wiring.CycleFlagSet()

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: refreshShortDesc,
		Long:  refreshLongDesc,
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

func (c *refreshCommander) registerFlags(cmd *cobra.Command, fs config.FlagSet) {
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

func (c *refreshCommander) run(ctx context.Context, cmd *cobra.Command, fs config.FlagSet) error {
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

	err = cliui.Step(out, fmt.Sprintf("Rebuilding memory for %q", cfg.Narrative.Key), func() error {
		return runtime.Pipeline.Refresh(ctx)
	})
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		fmt.Fprintln(out, "Another cycle is already running for this narrative; skipped.")
		return nil
	case errors.Is(err, pipeline.ErrNotEnoughContent):
		fmt.Fprintln(out, "Not enough story content to rebuild from. Existing memory is unchanged.")
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

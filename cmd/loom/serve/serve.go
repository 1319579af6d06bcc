// Package servecmder provides the serve command for running the loom API
// server alongside the content watcher.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/loom/api"
	"github.com/papercomputeco/loom/api/mcp"
	"github.com/papercomputeco/loom/cmd/loom/wiring"
	"github.com/papercomputeco/loom/pkg/config"
	"github.com/papercomputeco/loom/pkg/content/watcher"
	"github.com/papercomputeco/loom/pkg/logger"
	"github.com/papercomputeco/loom/pkg/pipeline"
)

const serveLongDesc string = `Run the loom API server.

Serves memory reads, settings changes, and cycle triggers over HTTP, and
exposes the same operations to agents over MCP at /mcp. While the server
runs, a file watcher on the content directory triggers an incremental
update after each burst of changes.

Examples:
  loom serve
  loom serve --listen :9090
  loom serve --no-watch`

const serveShortDesc string = "Run the API server with a file watcher"

type serveCommander struct {
	debug     bool
	configDir string
	listen    string
	noWatch   bool
	noMCP     bool

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

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}
	fs := wiring.CycleFlagSet()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

func (c *serveCommander) registerFlags(cmd *cobra.Command, fs config.FlagSet) {
	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &c.listen)
	cmd.Flags().BoolVar(&c.noWatch, "no-watch", false, "Disable the content directory watcher")
	cmd.Flags().BoolVar(&c.noMCP, "no-mcp", false, "Disable the MCP endpoint")

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

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command, fs config.FlagSet) error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, fs, append(wiring.CycleFlagKeys(), config.FlagAPIListen))

	cfg := wiring.ConfigFromViper(v)

	runtime, err := wiring.NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.Close() }()

	if err := runtime.ApplySettings(ctx); err != nil {
		return err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Pipeline: runtime.Pipeline,
		Noop:     c.noMCP,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, runtime.Pipeline, mcpServer.Handler(), log)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	defer func() { _ = apiServer.Shutdown() }()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)

	if !c.noWatch {
		w := watcher.New(cfg.Content.Dir, 0, func(ctx context.Context) {
			err := runtime.Pipeline.Update(ctx)
			switch {
			case err == nil:
			case errors.Is(err, pipeline.ErrBusy):
			case errors.Is(err, pipeline.ErrAutoUpdateDisabled):
			default:
				log.Warn("watch-triggered update failed", "error", err)
			}
		}, log)

		go func() {
			if err := w.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
	}

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("api error: %w", err)
		}
	}()

	log.Info("loom serving",
		"listen", cfg.API.Listen,
		"narrative", cfg.Narrative.Key,
		"content_dir", cfg.Content.Dir,
		"watch", !c.noWatch,
		"mcp", !c.noMCP,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newLogger writes pretty output to stdout and structured JSON to
// .loom/serve.log.
func (c *serveCommander) newLogger() (*slog.Logger, func(), error) {
	pretty := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	logPath, err := wiring.ResolveLogPath(c.configDir)
	if err != nil {
		return nil, nil, err
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	structured := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(logFile),
	)

	return logger.Multi(pretty, structured), func() { _ = logFile.Close() }, nil
}

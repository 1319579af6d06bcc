// Package wiring assembles a running pipeline from resolved configuration.
// Every loom command that needs storage, the LLM caller, or the pipeline
// goes through here so they all agree on defaults and precedence.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/papercomputeco/loom/pkg/compress"
	"github.com/papercomputeco/loom/pkg/config"
	"github.com/papercomputeco/loom/pkg/content"
	contentdir "github.com/papercomputeco/loom/pkg/content/dir"
	"github.com/papercomputeco/loom/pkg/dotdir"
	"github.com/papercomputeco/loom/pkg/eventstream"
	eskafka "github.com/papercomputeco/loom/pkg/eventstream/kafka"
	esnop "github.com/papercomputeco/loom/pkg/eventstream/nop"
	"github.com/papercomputeco/loom/pkg/extract"
	"github.com/papercomputeco/loom/pkg/llm"
	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/narrative/store"
	"github.com/papercomputeco/loom/pkg/narrative/store/inmemory"
	"github.com/papercomputeco/loom/pkg/narrative/store/postgres"
	"github.com/papercomputeco/loom/pkg/narrative/store/sqlite"
	"github.com/papercomputeco/loom/pkg/pipeline"
	"github.com/papercomputeco/loom/pkg/tokens"
)

const stateDBName = "loom.db"

// ConfigFromViper reads the fully-resolved configuration out of viper
// (flag > env > file > default).
func ConfigFromViper(v *viper.Viper) *config.Config {
	return &config.Config{
		Version: v.GetInt("version"),
		Storage: config.StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresURL: v.GetString("storage.postgres_url"),
		},
		API: config.APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: config.ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		LLM: config.LLMConfig{
			Provider: v.GetString("llm.provider"),
			Model:    v.GetString("llm.model"),
			Target:   v.GetString("llm.target"),
		},
		Narrative: config.NarrativeConfig{
			Key:             v.GetString("narrative.key"),
			TokenLimit:      v.GetInt("narrative.token_limit"),
			AutoUpdate:      v.GetBool("narrative.auto_update"),
			TrackedKeywords: v.GetStringSlice("narrative.tracked_keywords"),
		},
		Content: config.ContentConfig{
			Dir: v.GetString("content.dir"),
		},
		Events: config.EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetStringSlice("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Memory: config.MemoryConfig{
			File: v.GetString("memory.file"),
		},
	}
}

// ResolveStatePath returns the SQLite database path: the configured path
// when set, otherwise loom.db inside the resolved .loom/ directory
// (created if needed).
func ResolveStatePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	ddm := dotdir.NewManager()
	target, err := ddm.Create("")
	if err != nil {
		return "", fmt.Errorf("resolving state path: %w", err)
	}

	return filepath.Join(target, stateDBName), nil
}

// ResolveMemoryPath returns where the compiled artifact is written: the
// configured file when set, otherwise memory.md inside the resolved .loom/
// directory.
func ResolveMemoryPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	ddm := dotdir.NewManager()
	target, err := ddm.Create("")
	if err != nil {
		return "", fmt.Errorf("resolving memory path: %w", err)
	}

	return filepath.Join(target, "memory.md"), nil
}

// ResolveLogPath returns the server log file path inside the resolved
// .loom/ directory.
func ResolveLogPath(configDir string) (string, error) {
	ddm := dotdir.NewManager()
	target, err := ddm.Create(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving log path: %w", err)
	}

	return filepath.Join(target, "serve.log"), nil
}

// NewStore builds the narrative state store named by the config.
func NewStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Driver, error) {
	switch cfg.Storage.Provider {
	case "memory":
		log.Info("using in-memory state store")
		return inmemory.NewDriver(), nil

	case "postgres":
		if cfg.Storage.PostgresURL == "" {
			return nil, fmt.Errorf("storage.postgres_url is required for the postgres provider")
		}
		log.Info("using postgres state store")
		return postgres.NewDriver(ctx, cfg.Storage.PostgresURL)

	case "sqlite", "":
		path, err := ResolveStatePath(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("using sqlite state store", "path", path)
		return sqlite.NewDriver(ctx, path)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

// NewPublisher builds the event stream publisher named by the config.
func NewPublisher(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "none":
		return esnop.NewPublisher(), nil

	case "kafka":
		return eskafka.NewPublisher(eskafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, log)

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

// Runtime bundles the pipeline with the resources it owns.
type Runtime struct {
	Config    *config.Config
	Pipeline  *pipeline.Pipeline
	Store     store.Driver
	Source    content.Source
	Publisher eventstream.Publisher
}

// NewRuntime builds a complete pipeline from config. Close releases the
// store and publisher.
func NewRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	storer, err := NewStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	source, err := contentdir.NewSource(cfg.Content.Dir)
	if err != nil {
		storer.Close()
		return nil, fmt.Errorf("opening content dir: %w", err)
	}

	call, err := llm.NewCaller(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		Target:   cfg.LLM.Target,
	}, log)
	if err != nil {
		storer.Close()
		return nil, err
	}

	publisher, err := NewPublisher(cfg, log)
	if err != nil {
		storer.Close()
		return nil, err
	}

	memoryPath, err := ResolveMemoryPath(cfg.Memory.File)
	if err != nil {
		storer.Close()
		publisher.Close()
		return nil, err
	}

	pipe, err := pipeline.New(pipeline.Config{
		Key:        cfg.Narrative.Key,
		Store:      storer,
		Source:     source,
		Extractor:  extract.New(call, log),
		Compressor: compress.New(call, log),
		Estimator:  tokens.NewEstimator(nil),
		Sink:       pipeline.NewFileSink(memoryPath),
		Publisher:  publisher,
		Logger:     log,
	})
	if err != nil {
		storer.Close()
		publisher.Close()
		return nil, err
	}

	return &Runtime{
		Config:    cfg,
		Pipeline:  pipe,
		Store:     storer,
		Source:    source,
		Publisher: publisher,
	}, nil
}

// ApplySettings pushes the resolved narrative settings into persisted
// state. Called by commands that run cycles so flag and env overrides take
// effect before the next compile.
func (r *Runtime) ApplySettings(ctx context.Context) error {
	_, err := r.Pipeline.UpdateSettings(ctx, func(s *narrative.Settings) {
		s.TokenLimit = r.Config.Narrative.TokenLimit
		s.AutoUpdate = r.Config.Narrative.AutoUpdate
		s.TrackedKeywords = r.Config.Narrative.TrackedKeywords
	})

	return err
}

// Close releases the runtime's resources.
func (r *Runtime) Close() error {
	var firstErr error
	if err := r.Publisher.Close(); err != nil {
		firstErr = err
	}
	if err := r.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

package wiring

import (
	"github.com/papercomputeco/loom/pkg/config"
)

// CycleFlagSet defines the flags shared by the commands that run narrative
// cycles. Update, refresh, and serve all register from this set so names,
// shorthands, and help text stay consistent between them.
func CycleFlagSet() config.FlagSet {
	return config.FlagSet{
		config.FlagAPIListen: {
			Name:        "listen",
			Shorthand:   "l",
			ViperKey:    "api.listen",
			Description: "Address for the API server to listen on",
		},
		config.FlagStorageProvider: {
			Name:        "storage-provider",
			ViperKey:    "storage.provider",
			Description: "Storage backend: sqlite, postgres, or memory",
		},
		config.FlagSQLite: {
			Name:        "sqlite",
			Shorthand:   "s",
			ViperKey:    "storage.sqlite_path",
			Description: "Path to the SQLite state database",
		},
		config.FlagPostgres: {
			Name:        "postgres",
			ViperKey:    "storage.postgres_url",
			Description: "PostgreSQL connection URL",
		},
		config.FlagLLMProvider: {
			Name:        "llm-provider",
			ViperKey:    "llm.provider",
			Description: "LLM provider: ollama, openai, or anthropic",
		},
		config.FlagLLMModel: {
			Name:        "llm-model",
			ViperKey:    "llm.model",
			Description: "Model used for extraction and compression",
		},
		config.FlagLLMTarget: {
			Name:        "llm-target",
			ViperKey:    "llm.target",
			Description: "Base URL of the LLM endpoint",
		},
		config.FlagNarrative: {
			Name:        "narrative",
			Shorthand:   "n",
			ViperKey:    "narrative.key",
			Description: "Narrative key to operate on",
		},
		config.FlagTokenLimit: {
			Name:        "token-limit",
			ViperKey:    "narrative.token_limit",
			Description: "Token budget for the compiled memory",
		},
		config.FlagContentDir: {
			Name:        "content-dir",
			Shorthand:   "c",
			ViperKey:    "content.dir",
			Description: "Directory containing story content",
		},
		config.FlagEventsProvider: {
			Name:        "events-provider",
			ViperKey:    "events.provider",
			Description: "Event stream backend: none or kafka",
		},
		config.FlagEventsBrokers: {
			Name:        "events-brokers",
			ViperKey:    "events.brokers",
			Description: "Comma-separated Kafka broker addresses",
		},
		config.FlagEventsTopic: {
			Name:        "events-topic",
			ViperKey:    "events.topic",
			Description: "Kafka topic for memory update events",
		},
		config.FlagMemoryFile: {
			Name:        "memory-file",
			ViperKey:    "memory.file",
			Description: "Path of the compiled memory artifact",
		},
	}
}

// CycleFlagKeys is the registry-key order used when registering and binding
// the cycle flags.
func CycleFlagKeys() []string {
	return []string{
		config.FlagStorageProvider,
		config.FlagSQLite,
		config.FlagPostgres,
		config.FlagLLMProvider,
		config.FlagLLMModel,
		config.FlagLLMTarget,
		config.FlagNarrative,
		config.FlagTokenLimit,
		config.FlagContentDir,
		config.FlagEventsProvider,
		config.FlagEventsBrokers,
		config.FlagEventsTopic,
		config.FlagMemoryFile,
	}
}

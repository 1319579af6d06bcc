package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent loom configuration stored as config.toml
// in the .loom/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	LLM       LLMConfig       `toml:"llm"`
	Narrative NarrativeConfig `toml:"narrative"`
	Content   ContentConfig   `toml:"content"`
	Events    EventsConfig    `toml:"events"`
	Memory    MemoryConfig    `toml:"memory"`
}

// StorageConfig holds narrative state persistence settings.
type StorageConfig struct {
	// Provider is "sqlite", "postgres", or "memory".
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// loom serve (e.g. loom update, loom refresh against a server).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// LLMConfig holds text-understanding provider settings. API keys come from
// the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY), never the file.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// NarrativeConfig holds per-narrative pipeline settings.
type NarrativeConfig struct {
	// Key names the narrative blob in the store.
	Key             string   `toml:"key,omitempty"`
	TokenLimit      int      `toml:"token_limit,omitempty"`
	AutoUpdate      bool     `toml:"auto_update"`
	TrackedKeywords []string `toml:"tracked_keywords,omitempty"`
}

// ContentConfig holds story content source settings.
type ContentConfig struct {
	// Dir is the directory scanned for ordered story sections.
	Dir string `toml:"dir,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// MemoryConfig holds artifact sink settings.
type MemoryConfig struct {
	// File is where the compiled memory artifact is written. Empty means
	// memory.md inside the resolved .loom/ directory.
	File string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
// List-valued keys read and write comma-separated strings.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"narrative.key": {
		get: func(c *Config) string { return c.Narrative.Key },
		set: func(c *Config, v string) error { c.Narrative.Key = v; return nil },
	},
	"narrative.token_limit": {
		get: func(c *Config) string {
			if c.Narrative.TokenLimit == 0 {
				return ""
			}
			return strconv.Itoa(c.Narrative.TokenLimit)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for narrative.token_limit: %w", err)
			}
			c.Narrative.TokenLimit = n
			return nil
		},
	},
	"narrative.auto_update": {
		get: func(c *Config) string { return strconv.FormatBool(c.Narrative.AutoUpdate) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for narrative.auto_update: %w", err)
			}
			c.Narrative.AutoUpdate = b
			return nil
		},
	},
	"narrative.tracked_keywords": {
		get: func(c *Config) string { return strings.Join(c.Narrative.TrackedKeywords, ",") },
		set: func(c *Config, v string) error {
			c.Narrative.TrackedKeywords = splitList(v)
			return nil
		},
	},
	"content.dir": {
		get: func(c *Config) string { return c.Content.Dir },
		set: func(c *Config, v string) error { c.Content.Dir = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = splitList(v)
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"memory.file": {
		get: func(c *Config) string { return c.Memory.File },
		set: func(c *Config, v string) error { c.Memory.File = v; return nil },
	},
}

// splitList parses a comma-separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}

	return out
}

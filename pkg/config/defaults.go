package config

const (
	defaultStorageProvider = "sqlite"

	defaultAPIListen       = ":8088"
	defaultClientAPITarget = "http://localhost:8088"

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"
	defaultLLMTarget   = "http://localhost:11434"

	defaultNarrativeKey = "default"
	defaultTokenLimit   = 1000

	defaultContentDir = "."

	defaultEventsProvider = "none"
	defaultEventsTopic    = "loom.memory"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
			Target:   defaultLLMTarget,
		},
		Narrative: NarrativeConfig{
			Key:        defaultNarrativeKey,
			TokenLimit: defaultTokenLimit,
			AutoUpdate: true,
		},
		Content: ContentConfig{
			Dir: defaultContentDir,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}

// Package llm provides the text-understanding call the loom pipeline relies
// on. Providers are OpenAI, Anthropic, and Ollama, each reduced to a single
// CallFunc closure so the pipeline never touches provider wire formats.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	providerOpenAI    = "openai"
	providerAnthropic = "anthropic"
	providerOllama    = "ollama"
)

// Request is one completion request. Callers set a conservative MaxTokens
// and a low Temperature; extraction additionally asks for a JSON object.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64

	// JSON requests a JSON-object response where the provider supports
	// enforcing it. Output still goes through jsonrepair regardless.
	JSON bool
}

// CallFunc is the signature for an LLM inference call.
type CallFunc func(ctx context.Context, req Request) (string, error)

// Config holds configuration for creating an LLM caller.
type Config struct {
	Provider string // "openai", "anthropic", or "ollama"
	Model    string // e.g. "gpt-4o-mini", "claude-haiku-4-5-20251001"
	APIKey   string // explicit API key (highest priority)
	Target   string // override base URL
}

// NewCaller creates a CallFunc based on the provided configuration.
// Resolution order for the API key is explicit config, then environment
// variables (OPENAI_API_KEY / ANTHROPIC_API_KEY). When no key can be
// resolved and the provider is not explicitly ollama, the caller falls back
// to Ollama at localhost:11434.
func NewCaller(cfg Config, log *slog.Logger) (CallFunc, error) {
	if log == nil {
		log = slog.Default()
	}

	provider := strings.ToLower(cfg.Provider)
	model := cfg.Model

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	if apiKey == "" && provider != providerOllama {
		log.Info("llm: no API key found, falling back to ollama", "provider", provider)
		provider = providerOllama
	}

	switch provider {
	case providerOpenAI, "":
		if model == "" {
			model = "gpt-4o-mini"
		}
		target := cfg.Target
		if target == "" {
			target = "https://api.openai.com"
		}
		return newOpenAICaller(apiKey, model, target), nil

	case providerAnthropic:
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		target := cfg.Target
		if target == "" {
			target = "https://api.anthropic.com"
		}
		return newAnthropicCaller(apiKey, model, target), nil

	case providerOllama:
		if model == "" {
			model = "llama3.2"
		}
		target := cfg.Target
		if target == "" {
			target = "http://localhost:11434"
		}
		return newOllamaCaller(model, target), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case providerAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case providerOpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		// Try both
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}

// budgetSignals are substrings providers use when a request fails because
// the account is out of budget rather than because the request is broken.
var budgetSignals = []string{
	"insufficient_quota",
	"exceeded your current quota",
	"credit balance is too low",
	"billing hard limit",
	"budget has been exceeded",
}

// IsBudgetExceeded reports whether err looks like a provider budget or
// quota failure. Such errors are handled like any other call failure but
// logged at reduced severity.
func IsBudgetExceeded(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, signal := range budgetSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}

	return false
}

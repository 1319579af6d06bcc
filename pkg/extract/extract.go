// Package extract turns raw story text into structured narrative facts via
// the text-understanding call.
//
// The adapter never propagates failure: a dead provider, an over-budget
// account, or unparseable output all degrade to empty facts. The pipeline
// decides what an empty result means; this package only guarantees it gets
// one.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/loom/pkg/jsonrepair"
	"github.com/papercomputeco/loom/pkg/llm"
	"github.com/papercomputeco/loom/pkg/utils"
)

const (
	// maxInputChars bounds the prompt. Truncation keeps the tail: the
	// most recent content matters most for continuity.
	maxInputChars = 8000

	// maxOutputTokens is a conservative ceiling on the extraction reply.
	maxOutputTokens = 1000

	// temperature leans deterministic; extraction is not a creative task.
	temperature = 0.3
)

// Facts is the typed result of one extraction.
type Facts struct {
	// Events are short statements of story progress, oldest first as the
	// model listed them.
	Events []string

	// Characters maps character name to a state description.
	Characters map[string]string

	// Situation is the current scene summary, possibly empty.
	Situation string
}

// Empty reports whether the extraction produced nothing usable.
func (f Facts) Empty() bool {
	return len(f.Events) == 0 && len(f.Characters) == 0 && f.Situation == ""
}

// Extractor adapts the LLM call into typed facts.
type Extractor struct {
	call llm.CallFunc
	log  *slog.Logger
}

// New creates an Extractor.
func New(call llm.CallFunc, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}

	return &Extractor{call: call, log: log}
}

// Extract derives facts from text, with keywords as extraction hints.
// It always returns usable (possibly empty) Facts and never an error.
func (e *Extractor) Extract(ctx context.Context, text string, keywords []string) Facts {
	text = utils.TruncateHead(text, maxInputChars)

	response, err := e.call(ctx, llm.Request{
		Prompt:      buildPrompt(text, keywords),
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		if llm.IsBudgetExceeded(err) {
			e.log.Debug("extraction skipped: provider budget exceeded", "error", err)
		} else {
			e.log.Warn("extraction call failed", "error", err)
		}
		return Facts{}
	}

	return parseFacts(response, e.log)
}

func buildPrompt(text string, keywords []string) string {
	var b strings.Builder
	b.WriteString("Analyze this story excerpt and extract structured facts about its progress.\n")
	b.WriteString("Return ONLY valid JSON with these fields:\n\n")
	b.WriteString("{\n")
	b.WriteString("  \"events\": [\"array of short statements, one per notable plot event\"],\n")
	b.WriteString("  \"characters\": {\"character name\": \"one-line description of their current state\"},\n")
	b.WriteString("  \"situation\": \"1-2 sentence summary of the current scene\"\n")
	b.WriteString("}\n")

	if len(keywords) > 0 {
		fmt.Fprintf(&b, "\nPay particular attention to: %s\n", strings.Join(keywords, ", "))
	}

	b.WriteString("\nExcerpt:\n")
	b.WriteString(text)

	return b.String()
}

// parseFacts maps the (repaired) JSON response into Facts. Each field
// defaults independently: one mistyped field does not void the others.
func parseFacts(response string, log *slog.Logger) Facts {
	var raw map[string]any
	if err := jsonrepair.ExtractInto(response, &raw); err != nil {
		log.Warn("extraction output unusable", "error", err)
		return Facts{}
	}

	facts := Facts{Characters: map[string]string{}}

	if events, ok := raw["events"].([]any); ok {
		for _, item := range events {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				facts.Events = append(facts.Events, strings.TrimSpace(s))
			}
		}
	}

	if characters, ok := raw["characters"].(map[string]any); ok {
		for name, state := range characters {
			s, ok := state.(string)
			if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(s) == "" {
				continue
			}
			facts.Characters[strings.TrimSpace(name)] = strings.TrimSpace(s)
		}
	}

	if s, ok := raw["situation"].(string); ok {
		facts.Situation = strings.TrimSpace(s)
	}

	return facts
}

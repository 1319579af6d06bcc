// Package compress shrinks a narrative's event list when the compiled memory
// artifact outgrows its token budget. The split is flat recency: a small tail
// of recent events is kept verbatim and everything older is summarized into
// fewer, shorter events by the LLM.
//
// Compression is lossy but never destructive. Any failure, from the call
// itself to an unusable response, falls back to returning the input events
// unchanged.
package compress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/papercomputeco/loom/pkg/llm"
	"github.com/papercomputeco/loom/pkg/narrative"
)

const (
	// minEvents is the smallest event list worth compressing. Below this
	// there is nothing older than the verbatim tail to summarize.
	minEvents = 4

	maxRecent       = 3
	recentFraction  = 0.3
	maxOutputTokens = 800
	temperature     = 0.3
)

// Compressor summarizes the older portion of an event list.
type Compressor struct {
	call llm.CallFunc
	log  *slog.Logger
}

// New returns a Compressor backed by the given LLM call.
func New(call llm.CallFunc, log *slog.Logger) *Compressor {
	if log == nil {
		log = slog.Default()
	}

	return &Compressor{call: call, log: log}
}

// Compress returns a shorter event list: summarized replacements for the
// older head followed by the recent tail unchanged. When the list is too
// small to split, or when summarization fails for any reason, the input is
// returned as is.
func (c *Compressor) Compress(ctx context.Context, events []narrative.Event) []narrative.Event {
	if len(events) < minEvents {
		return events
	}

	recentCount := int(float64(len(events)) * recentFraction)
	if recentCount > maxRecent {
		recentCount = maxRecent
	}

	older := events[:len(events)-recentCount]
	recent := events[len(events)-recentCount:]
	if len(older) == 0 {
		return events
	}

	maxBullets := (len(older) + 2) / 3

	response, err := c.call(ctx, llm.Request{
		Prompt:      buildPrompt(older, maxBullets),
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
	})
	if err != nil {
		if llm.IsBudgetExceeded(err) {
			c.log.Debug("compression skipped, llm budget exceeded", "error", err)
		} else {
			c.log.Warn("compression call failed, keeping events", "error", err)
		}

		return events
	}

	lines := parseBullets(response, maxBullets)
	if len(lines) == 0 {
		c.log.Warn("compression response held no bullets, keeping events")
		return events
	}

	// Compressed replacements inherit the first older event's timestamp and
	// sequence so array order still reads oldest first.
	compressed := make([]narrative.Event, 0, len(lines)+len(recent))
	for _, line := range lines {
		compressed = append(compressed, narrative.Event{
			ID:         uuid.NewString(),
			Seq:        older[0].Seq,
			Timestamp:  older[0].Timestamp,
			Text:       line,
			Importance: 3,
			Compressed: true,
		})
	}

	c.log.Info("compressed events",
		"older", len(older),
		"summaries", len(lines),
		"recent", len(recent))

	return append(compressed, recent...)
}

func buildPrompt(older []narrative.Event, maxBullets int) string {
	var block strings.Builder
	for _, event := range older {
		block.WriteString("- ")
		block.WriteString(event.Text)
		block.WriteString("\n")
	}

	return fmt.Sprintf(`Condense the following story events into at most %d bullet points. Each bullet must be under 20 words and preserve the essential plot development. Respond with bullet lines only, one per line, starting with "-".

Events:
%s`, maxBullets, block.String())
}

// parseBullets keeps lines carrying a bullet marker, strips the marker, and
// caps the result at maxBullets.
func parseBullets(response string, maxBullets int) []string {
	var bullets []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)

		var text string
		switch {
		case strings.HasPrefix(line, "•"):
			text = strings.TrimPrefix(line, "•")
		case strings.HasPrefix(line, "-"):
			text = strings.TrimPrefix(line, "-")
		default:
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		bullets = append(bullets, text)
		if len(bullets) == maxBullets {
			break
		}
	}

	return bullets
}

package narrative

import (
	"fmt"
	"strings"
)

// Compile renders state into the memory artifact: a timeline of events, the
// current situation, and per-character states, in that fixed order. Sections
// with no source data are omitted entirely, headers included. Sections are
// joined by one blank line.
func Compile(events []Event, characters []CharacterState, situation string) string {
	var sections []string

	if len(events) > 0 {
		var b strings.Builder
		b.WriteString("## Story Timeline\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %s\n", e.Text)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	if situation != "" {
		sections = append(sections, "## Current Situation\n"+situation)
	}

	if len(characters) > 0 {
		var b strings.Builder
		b.WriteString("## Key Characters\n")
		for _, c := range characters {
			fmt.Fprintf(&b, "%s: %s\n", c.Name, c.State)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// CompileState is a convenience wrapper over Compile.
func CompileState(s *State) string {
	return Compile(s.Events, s.Characters, s.CurrentSituation)
}

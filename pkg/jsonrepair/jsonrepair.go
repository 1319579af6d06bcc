// Package jsonrepair recovers structured data from model output that is
// supposed to contain one JSON object but may be wrapped in prose or
// truncated mid-generation.
//
// The repair is a bounded set of structural fixes: close an unterminated
// string, then close unbalanced brackets and braces by counting. It can
// produce syntactically valid but semantically clipped JSON; callers accept
// that in exchange for never surfacing a parse error to the pipeline.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned when the input contains no JSON object span.
var ErrNoObject = errors.New("no JSON object found in input")

// ExtractInto locates the first { .. last } span in raw, parses it into v,
// and on parse failure retries once after Repair. The error is non-nil only
// when both attempts fail or no object span exists.
func ExtractInto(raw string, v any) error {
	s := strings.TrimSpace(raw)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')

	var span string
	switch {
	case start == -1:
		return ErrNoObject
	case end > start:
		span = s[start : end+1]
	default:
		// An opening brace with no closing brace is still worth a
		// repair attempt.
		span = s[start:]
	}

	if err := json.Unmarshal([]byte(span), v); err == nil {
		return nil
	}

	return json.Unmarshal([]byte(Repair(span)), v)
}

// Repair applies the structural fixes to a JSON candidate: terminate an open
// string, then append the missing closing brackets and braces.
func Repair(s string) string {
	var (
		inString bool
		escaped  bool
		braces   int
		brackets int
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			braces++
		case '}':
			braces--
		case '[':
			brackets++
		case ']':
			brackets--
		}
	}

	var b strings.Builder
	b.WriteString(s)

	if inString {
		if escaped {
			// Truncated mid-escape: the dangling backslash swallows
			// one quote, so emit two.
			b.WriteByte('"')
		}
		b.WriteByte('"')
	}
	for ; brackets > 0; brackets-- {
		b.WriteByte(']')
	}
	for ; braces > 0; braces-- {
		b.WriteByte('}')
	}

	return b.String()
}

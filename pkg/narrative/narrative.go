// Package narrative defines the persistent state of a story memory: the
// events extracted so far, per-character states, the current situation, and
// the position marker recording how much of the content stream has been
// processed.
//
// State is always handled as a full-document round trip: load the whole
// blob, mutate a local copy, save the whole blob. No component keeps a live
// reference across external calls; the pipeline's single-flight lock is the
// only concurrency control this design needs.
package narrative

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single extracted fact about story progress. Events are ordered
// by array position (oldest first); Seq breaks ties when events from a bulk
// refresh are created in one burst. Events are never mutated after creation,
// only replaced wholesale by compression or a full clear.
type Event struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
	Importance int       `json:"importance"`
	Compressed bool      `json:"compressed"`
}

// NewEvent creates an uncompressed extraction event with the default
// importance of 3.
func NewEvent(text string, seq int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Seq:        seq,
		Timestamp:  time.Now(),
		Text:       text,
		Importance: 3,
	}
}

// CharacterState tracks the most recently extracted state of one character.
// A later extraction for the same name overwrites the prior state entirely.
type CharacterState struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	LastUpdated time.Time `json:"last_updated"`
}

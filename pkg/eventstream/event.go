package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryUpdated is emitted after a narrative's compiled memory
	// artifact changes.
	EventTypeMemoryUpdated = "loom.memory.updated"
)

// MemoryUpdatedEvent is a transport-neutral event payload emitted once per
// successful pipeline cycle.
type MemoryUpdatedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Narrative is the key of the narrative whose memory changed.
	Narrative string `json:"narrative"`

	// Trigger names what produced the update: "update" or "refresh".
	Trigger string `json:"trigger"`

	EventCount     int  `json:"event_count"`
	CharacterCount int  `json:"character_count"`
	TokenCount     int  `json:"token_count"`
	Compressed     bool `json:"compressed"`
}

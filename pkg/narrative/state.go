package narrative

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Settings holds per-narrative tuning knobs. Settings survive a full
// refresh; everything else in State is derived and can be rebuilt.
type Settings struct {
	// TokenLimit bounds the compiled artifact, clamped to [500, 2000].
	TokenLimit int `json:"token_limit"`

	// AutoUpdate gates the incremental cycle. When false, triggers are
	// ignored entirely; manual refresh still works.
	AutoUpdate bool `json:"auto_update"`

	// TrackedKeywords are passed to the extraction prompt as hints.
	TrackedKeywords []string `json:"tracked_keywords,omitempty"`

	// CompressionThreshold is the fraction of TokenLimit at which
	// compression kicks in. Fixed at 0.8.
	CompressionThreshold float64 `json:"compression_threshold"`
}

const (
	// TokenLimit bounds.
	MinTokenLimit     = 500
	MaxTokenLimit     = 2000
	DefaultTokenLimit = 1000

	// DefaultCompressionThreshold is the only supported threshold.
	DefaultCompressionThreshold = 0.8
)

// DefaultSettings returns the settings applied to a narrative on first load.
func DefaultSettings() Settings {
	return Settings{
		TokenLimit:           DefaultTokenLimit,
		AutoUpdate:           true,
		CompressionThreshold: DefaultCompressionThreshold,
	}
}

// Normalize clamps out-of-range values and restores required defaults.
func (s *Settings) Normalize() {
	if s.TokenLimit == 0 {
		s.TokenLimit = DefaultTokenLimit
	}
	if s.TokenLimit < MinTokenLimit {
		s.TokenLimit = MinTokenLimit
	}
	if s.TokenLimit > MaxTokenLimit {
		s.TokenLimit = MaxTokenLimit
	}
	// The threshold is not user-tunable; any persisted drift is corrected.
	s.CompressionThreshold = DefaultCompressionThreshold
}

// State is the persisted aggregate for one narrative. It is serialized as a
// single JSON blob and always read and written in full.
type State struct {
	Events []Event `json:"events"`

	// Characters is ordered by first mention. Serialized as an array;
	// Decode also accepts the legacy object-keyed-by-name layout.
	Characters []CharacterState `json:"characters"`

	CurrentSituation string `json:"current_situation"`

	// LastProcessedSectionID marks how far into the content stream
	// extraction has run. Empty means nothing has been processed.
	LastProcessedSectionID string `json:"last_processed_section_id,omitempty"`

	Settings Settings `json:"settings"`

	// NextSeq is the ordering counter handed to newly created events.
	NextSeq int64 `json:"next_seq"`
}

// NewState returns a fresh state with default settings.
func NewState() *State {
	return &State{Settings: DefaultSettings()}
}

// Decode parses a persisted state blob. Missing top-level keys default
// rather than fail; settings are normalized after load.
func Decode(data []byte) (*State, error) {
	if len(data) == 0 {
		return NewState(), nil
	}

	var raw struct {
		Events           []Event         `json:"events"`
		Characters       json.RawMessage `json:"characters"`
		CurrentSituation string          `json:"current_situation"`
		LastProcessed    string          `json:"last_processed_section_id"`
		Settings         *Settings       `json:"settings"`
		NextSeq          int64           `json:"next_seq"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding narrative state: %w", err)
	}

	s := &State{
		Events:                 raw.Events,
		CurrentSituation:       raw.CurrentSituation,
		LastProcessedSectionID: raw.LastProcessed,
		NextSeq:                raw.NextSeq,
	}

	if raw.Settings != nil {
		s.Settings = *raw.Settings
	} else {
		s.Settings = DefaultSettings()
	}
	s.Settings.Normalize()

	chars, err := decodeCharacters(raw.Characters)
	if err != nil {
		return nil, err
	}
	s.Characters = chars

	// Seq counters predate some stored states; rebuild from events.
	for _, e := range s.Events {
		if e.Seq >= s.NextSeq {
			s.NextSeq = e.Seq + 1
		}
	}

	return s, nil
}

// decodeCharacters accepts either the current ordered-array layout or the
// legacy object layout keyed by character name. Object key order is not
// preserved by JSON, so legacy entries are ordered by LastUpdated.
func decodeCharacters(raw json.RawMessage) ([]CharacterState, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []CharacterState
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var byName map[string]CharacterState
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("decoding characters: %w", err)
	}

	list = make([]CharacterState, 0, len(byName))
	for name, c := range byName {
		if c.Name == "" {
			c.Name = name
		}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].LastUpdated.Equal(list[j].LastUpdated) {
			return list[i].LastUpdated.Before(list[j].LastUpdated)
		}
		return list[i].Name < list[j].Name
	})

	return list, nil
}

// Encode serializes the state for persistence.
func (s *State) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding narrative state: %w", err)
	}
	return data, nil
}

// AppendEvent creates an event from extracted text and appends it, advancing
// the sequence counter.
func (s *State) AppendEvent(text string) Event {
	e := NewEvent(text, s.NextSeq)
	s.NextSeq++
	s.Events = append(s.Events, e)
	return e
}

// UpsertCharacter overwrites the state for name, creating the entry on first
// mention. Insertion order is preserved for existing characters.
func (s *State) UpsertCharacter(name, state string, now time.Time) {
	for i := range s.Characters {
		if s.Characters[i].Name == name {
			s.Characters[i].State = state
			s.Characters[i].LastUpdated = now
			return
		}
	}
	s.Characters = append(s.Characters, CharacterState{
		Name:        name,
		State:       state,
		LastUpdated: now,
	})
}

// Character returns the tracked state for name, if any.
func (s *State) Character(name string) (CharacterState, bool) {
	for _, c := range s.Characters {
		if c.Name == name {
			return c, true
		}
	}
	return CharacterState{}, false
}

// ClearDerived drops everything extraction produced but keeps settings.
// Used by the full refresh before reprocessing the backlog.
func (s *State) ClearDerived() {
	s.Events = nil
	s.Characters = nil
	s.CurrentSituation = ""
	s.LastProcessedSectionID = ""
	s.NextSeq = 0
}

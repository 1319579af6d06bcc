// Package pipeline drives the memory cycle: detect new story content,
// extract facts, merge them into persisted state, compress when the compiled
// artifact outgrows its budget, and publish the result.
//
// One Pipeline owns one narrative. Every cycle is a full reload-mutate-save
// round trip over the store, guarded by a single-flight lock shared between
// the incremental update and the bulk refresh. A trigger that finds the lock
// held is dropped, not queued; the next successful cycle picks up everything
// accumulated since the last advanced position marker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/loom/pkg/compress"
	"github.com/papercomputeco/loom/pkg/content"
	"github.com/papercomputeco/loom/pkg/eventstream"
	"github.com/papercomputeco/loom/pkg/extract"
	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/narrative/store"
	"github.com/papercomputeco/loom/pkg/tokens"
)

const (
	// minNewChars is the smallest text delta worth an extraction call.
	minNewChars = 50

	// Refresh windowing. Consecutive windows overlap so facts straddling
	// a boundary are seen by at least one whole window.
	windowSize    = 6000
	windowOverlap = 1000

	// refreshEventBudget bounds total refresh events independent of
	// backlog length. Per-window cap is ceil(budget/windows)+2.
	refreshEventBudget = 10

	// defaultWindowDelay spaces refresh windows to respect rate limits.
	defaultWindowDelay = time.Second
)

var (
	// ErrBusy is returned when a cycle is already running. Dropped
	// triggers are not retried.
	ErrBusy = errors.New("pipeline busy")

	// ErrAutoUpdateDisabled is returned by Update when the narrative has
	// auto-update switched off. Refresh is never gated by it.
	ErrAutoUpdateDisabled = errors.New("auto-update disabled")

	// ErrNotEnoughContent is returned by Refresh when the backlog is too
	// short to extract anything from.
	ErrNotEnoughContent = errors.New("not enough content")
)

// Sink receives the compiled memory artifact, once per successful cycle.
type Sink interface {
	SetMemory(ctx context.Context, text string) error
}

// Pipeline orchestrates memory cycles for one narrative.
type Pipeline struct {
	key        string
	store      store.Driver
	source     content.Source
	extractor  *extract.Extractor
	compressor *compress.Compressor
	estimator  *tokens.Estimator
	sink       Sink
	publisher  eventstream.Publisher
	log        *slog.Logger

	mu          sync.Mutex
	windowDelay time.Duration
}

// Config wires a Pipeline's collaborators. Store, Source, Extractor, and
// Compressor are required; Sink and Publisher may be nil when nothing
// consumes the artifact or the event stream.
type Config struct {
	// Key identifies the narrative in the store.
	Key string

	Store      store.Driver
	Source     content.Source
	Extractor  *extract.Extractor
	Compressor *compress.Compressor
	Estimator  *tokens.Estimator
	Sink       Sink
	Publisher  eventstream.Publisher
	Logger     *slog.Logger

	// WindowDelay overrides the pause between refresh windows. Zero
	// means the one second default; tests set it negative to disable.
	WindowDelay time.Duration
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("pipeline: narrative key is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("pipeline: content source is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("pipeline: extractor is required")
	}
	if cfg.Compressor == nil {
		return nil, fmt.Errorf("pipeline: compressor is required")
	}

	estimator := cfg.Estimator
	if estimator == nil {
		estimator = tokens.NewEstimator(nil)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	delay := cfg.WindowDelay
	if delay == 0 {
		delay = defaultWindowDelay
	}
	if delay < 0 {
		delay = 0
	}

	return &Pipeline{
		key:         cfg.Key,
		store:       cfg.Store,
		source:      cfg.Source,
		extractor:   cfg.Extractor,
		compressor:  cfg.Compressor,
		estimator:   estimator,
		sink:        cfg.Sink,
		publisher:   cfg.Publisher,
		log:         log.With("narrative", cfg.Key),
		windowDelay: delay,
	}, nil
}

// Key returns the narrative key this pipeline owns.
func (p *Pipeline) Key() string {
	return p.key
}

// Update runs one incremental cycle: everything after the position marker is
// extracted, merged, and published. Returns ErrAutoUpdateDisabled when the
// narrative has auto-update off, ErrBusy when a cycle is already running,
// and nil when there was nothing to do.
func (p *Pipeline) Update(ctx context.Context) error {
	st, err := p.loadState(ctx)
	if err != nil {
		return err
	}
	if !st.Settings.AutoUpdate {
		p.log.Debug("update skipped, auto-update disabled")
		return ErrAutoUpdateDisabled
	}

	if !p.mu.TryLock() {
		p.log.Info("update dropped, cycle already running")
		return ErrBusy
	}
	defer p.mu.Unlock()

	// Reload under the lock; the gate check above may be stale.
	st, err = p.loadState(ctx)
	if err != nil {
		return err
	}

	ids, err := p.source.SectionIDs(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: listing sections: %w", err)
	}
	if len(ids) == 0 {
		p.log.Debug("update skipped, no content")
		return nil
	}

	sections, err := p.source.Scan(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: scanning sections: %w", err)
	}

	newText := textAfter(sections, st.LastProcessedSectionID)

	// The marker always advances, even when the delta is too small to
	// extract from. Content is never reprocessed.
	st.LastProcessedSectionID = ids[len(ids)-1]

	if len(newText) < minNewChars {
		p.log.Debug("update found too little new text", "chars", len(newText))
		return p.saveState(ctx, st)
	}

	facts := p.extractor.Extract(ctx, newText, st.Settings.TrackedKeywords)
	p.mergeFacts(st, facts, time.Now())

	if err := p.saveState(ctx, st); err != nil {
		return err
	}

	return p.finishCycle(ctx, st, "update")
}

// Refresh rebuilds derived state from the entire backlog. Settings survive;
// events, characters, and the situation are rebuilt from overlapping windows
// processed oldest first. Not gated by auto-update.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if !p.mu.TryLock() {
		p.log.Info("refresh dropped, cycle already running")
		return ErrBusy
	}
	defer p.mu.Unlock()

	st, err := p.loadState(ctx)
	if err != nil {
		return err
	}

	ids, err := p.source.SectionIDs(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: listing sections: %w", err)
	}

	sections, err := p.source.Scan(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: scanning sections: %w", err)
	}

	backlog := joinSections(sections)
	if len(backlog) < minNewChars {
		return ErrNotEnoughContent
	}

	st.ClearDerived()

	windows := splitWindows(backlog, windowSize, windowSize-windowOverlap)
	maxEventsPerWindow := ceilDiv(refreshEventBudget, len(windows)) + 2

	// Earlier windows get strictly older synthetic timestamps so the
	// rebuilt timeline reads chronologically despite being created in
	// one burst.
	base := time.Now()

	for i, window := range windows {
		if i > 0 && p.windowDelay > 0 {
			select {
			case <-time.After(p.windowDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		facts := p.extractor.Extract(ctx, window, st.Settings.TrackedKeywords)
		if facts.Empty() {
			p.log.Warn("refresh window produced no facts", "window", i+1, "windows", len(windows))
			continue
		}

		stamp := base.Add(-time.Duration(len(windows)-i) * time.Second)

		events := facts.Events
		if len(events) > maxEventsPerWindow {
			events = events[:maxEventsPerWindow]
		}
		for _, text := range events {
			st.AppendEvent(text)
			st.Events[len(st.Events)-1].Timestamp = stamp
		}

		upsertCharacters(st, facts.Characters, stamp)

		// Only the final window's situation survives.
		if i == len(windows)-1 && facts.Situation != "" {
			st.CurrentSituation = facts.Situation
		}
	}

	if len(ids) > 0 {
		st.LastProcessedSectionID = ids[len(ids)-1]
	}

	if err := p.saveState(ctx, st); err != nil {
		return err
	}

	p.log.Info("refresh rebuilt state",
		"windows", len(windows),
		"events", len(st.Events),
		"characters", len(st.Characters))

	return p.finishCycle(ctx, st, "refresh")
}

// Memory loads state and compiles the current artifact without running a
// cycle.
func (p *Pipeline) Memory(ctx context.Context) (string, error) {
	st, err := p.loadState(ctx)
	if err != nil {
		return "", err
	}

	return narrative.CompileState(st), nil
}

// State returns a loaded copy of the narrative state.
func (p *Pipeline) State(ctx context.Context) (*narrative.State, error) {
	return p.loadState(ctx)
}

// UpdateSettings applies fn to the persisted settings under the cycle lock
// and returns the normalized result.
func (p *Pipeline) UpdateSettings(ctx context.Context, fn func(*narrative.Settings)) (narrative.Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.loadState(ctx)
	if err != nil {
		return narrative.Settings{}, err
	}

	fn(&st.Settings)
	st.Settings.Normalize()

	if err := p.saveState(ctx, st); err != nil {
		return narrative.Settings{}, err
	}

	return st.Settings, nil
}

// mergeFacts applies one extraction to state: events append, characters
// overwrite by name, a non-empty situation replaces the old one. Characters
// are applied in name order so a cycle is deterministic.
func (p *Pipeline) mergeFacts(st *narrative.State, facts extract.Facts, now time.Time) {
	for _, text := range facts.Events {
		st.AppendEvent(text)
	}

	upsertCharacters(st, facts.Characters, now)

	if facts.Situation != "" {
		st.CurrentSituation = facts.Situation
	}
}

// finishCycle compiles the artifact, compresses when over threshold, and
// publishes. State is already persisted; compression persists again.
func (p *Pipeline) finishCycle(ctx context.Context, st *narrative.State, trigger string) error {
	artifact := narrative.CompileState(st)

	compressed := false
	count := p.estimator.Count(ctx, artifact)
	threshold := float64(st.Settings.TokenLimit) * st.Settings.CompressionThreshold

	if float64(count) > threshold {
		before := len(st.Events)
		st.Events = p.compressor.Compress(ctx, st.Events)

		if len(st.Events) != before {
			compressed = true
			if err := p.saveState(ctx, st); err != nil {
				return err
			}

			artifact = narrative.CompileState(st)
			count = p.estimator.Count(ctx, artifact)
		}
	}

	if p.sink != nil {
		if err := p.sink.SetMemory(ctx, artifact); err != nil {
			return fmt.Errorf("pipeline: publishing memory: %w", err)
		}
	}

	p.publishEvent(ctx, st, trigger, count, compressed)

	p.log.Info("memory updated",
		"trigger", trigger,
		"events", len(st.Events),
		"characters", len(st.Characters),
		"tokens", count,
		"compressed", compressed)

	return nil
}

// publishEvent emits the memory-updated event. Stream failures are logged
// and never fail the cycle.
func (p *Pipeline) publishEvent(ctx context.Context, st *narrative.State, trigger string, tokenCount int, compressed bool) {
	if p.publisher == nil {
		return
	}

	event := &eventstream.MemoryUpdatedEvent{
		SchemaVersion:  eventstream.SchemaVersionV1,
		EventType:      eventstream.EventTypeMemoryUpdated,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		Narrative:      p.key,
		Trigger:        trigger,
		EventCount:     len(st.Events),
		CharacterCount: len(st.Characters),
		TokenCount:     tokenCount,
		Compressed:     compressed,
	}

	if err := p.publisher.PublishMemoryUpdate(ctx, event); err != nil {
		p.log.Warn("event stream publish failed", "error", err)
	}
}

func (p *Pipeline) loadState(ctx context.Context) (*narrative.State, error) {
	st, err := p.store.Load(ctx, p.key)
	if err != nil {
		var notFound store.NotFoundError
		if errors.As(err, &notFound) {
			return narrative.NewState(), nil
		}

		return nil, fmt.Errorf("pipeline: loading state: %w", err)
	}

	return st, nil
}

func (p *Pipeline) saveState(ctx context.Context, st *narrative.State) error {
	if err := p.store.Save(ctx, p.key, st); err != nil {
		return fmt.Errorf("pipeline: saving state: %w", err)
	}

	return nil
}

// textAfter concatenates every section strictly after marker. An empty or
// unknown marker means the whole stream.
func textAfter(sections []content.Section, marker string) string {
	start := 0
	if marker != "" {
		for i, s := range sections {
			if s.ID == marker {
				start = i + 1
				break
			}
		}
	}

	var texts []string
	for _, s := range sections[start:] {
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
	}

	return strings.Join(texts, "\n\n")
}

func joinSections(sections []content.Section) string {
	var texts []string
	for _, s := range sections {
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
	}

	return strings.Join(texts, "\n\n")
}

// splitWindows cuts text into windows of at most size characters, each
// starting stride characters after the previous one.
func splitWindows(text string, size, stride int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var windows []string
	for start := 0; start < len(text); start += stride {
		end := start + size
		if end > len(text) {
			end = len(text)
		}

		windows = append(windows, text[start:end])

		if end == len(text) {
			break
		}
	}

	return windows
}

// upsertCharacters applies a characters mapping in name order so map
// iteration cannot reorder the tracked list.
func upsertCharacters(st *narrative.State, characters map[string]string, now time.Time) {
	names := make([]string, 0, len(characters))
	for name := range characters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st.UpsertCharacter(name, characters[name], now)
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Package watcher turns filesystem changes in a story directory into
// pipeline triggers. Bursts of write events are debounced so one authoring
// session produces one update cycle rather than one per saved keystroke.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event
// before firing the trigger.
const DefaultDebounce = 2 * time.Second

// TriggerFunc is invoked once per debounced change burst.
type TriggerFunc func(ctx context.Context)

// Watcher watches one directory and fires a trigger on changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	trigger  TriggerFunc
	log      *slog.Logger
}

// New creates a Watcher for dir. A zero debounce uses DefaultDebounce.
func New(dir string, debounce time.Duration, trigger TriggerFunc, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		trigger:  trigger,
		log:      log,
	}
}

// Run watches until ctx is cancelled. It blocks; run it in a goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	w.log.Info("watching story directory", "dir", w.dir)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.log.Debug("content change detected", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.trigger(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

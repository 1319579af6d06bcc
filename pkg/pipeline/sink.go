package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the compiled artifact to a file. The write goes through a
// temp file and rename so readers never see a partial artifact.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path. Parent directories are
// created on first publish.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// SetMemory implements Sink.
func (s *FileSink) SetMemory(_ context.Context, text string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sink: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".memory-*")
	if err != nil {
		return fmt.Errorf("sink: temp file: %w", err)
	}

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: closing artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: replacing %s: %w", s.path, err)
	}

	return nil
}

// Path returns where the artifact is written.
func (s *FileSink) Path() string {
	return s.path
}

// MultiSink publishes to every sink in order, stopping at the first error.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink fans publishes out to sinks. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}

	return &MultiSink{sinks: kept}
}

// SetMemory implements Sink.
func (m *MultiSink) SetMemory(ctx context.Context, text string) error {
	for _, s := range m.sinks {
		if err := s.SetMemory(ctx, text); err != nil {
			return err
		}
	}

	return nil
}

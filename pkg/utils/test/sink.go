package testutils

import (
	"context"
	"sync"
)

// MockSink records every artifact published to it.
type MockSink struct {
	mu sync.Mutex

	// Artifacts holds each published memory text in order.
	Artifacts []string

	// Err, when set, is returned by SetMemory.
	Err error
}

// SetMemory implements pipeline.Sink.
func (m *MockSink) SetMemory(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Artifacts = append(m.Artifacts, text)

	return nil
}

// Last returns the most recently published artifact, or "".
func (m *MockSink) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Artifacts) == 0 {
		return ""
	}

	return m.Artifacts[len(m.Artifacts)-1]
}

// PublishCount returns how many artifacts have been published.
func (m *MockSink) PublishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Artifacts)
}

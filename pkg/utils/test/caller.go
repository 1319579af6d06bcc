// Package testutils provides mock collaborators shared across test suites.
package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/loom/pkg/llm"
)

// MockCaller is a scripted llm.CallFunc for tests. Responses are returned
// in order; the last response repeats once the script runs out.
type MockCaller struct {
	mu sync.Mutex

	// Responses is the script of completions to return.
	Responses []string

	// Err, when set, is returned for every call instead of a response.
	Err error

	// Calls records every request received.
	Calls []llm.Request
}

// Call implements llm.CallFunc.
func (m *MockCaller) Call(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.Err != nil {
		return "", m.Err
	}

	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := len(m.Calls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}

	return m.Responses[idx], nil
}

// CallCount returns how many calls have been made.
func (m *MockCaller) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

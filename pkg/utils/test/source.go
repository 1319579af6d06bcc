package testutils

import (
	"context"

	"github.com/papercomputeco/loom/pkg/content"
)

// MockSource is an in-memory content.Source for tests.
type MockSource struct {
	Sections []content.Section

	// Err, when set, is returned by both SectionIDs and Scan.
	Err error
}

// SectionIDs implements content.Source.
func (m *MockSource) SectionIDs(_ context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	ids := make([]string, len(m.Sections))
	for i, s := range m.Sections {
		ids[i] = s.ID
	}

	return ids, nil
}

// Scan implements content.Source.
func (m *MockSource) Scan(_ context.Context) ([]content.Section, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]content.Section, len(m.Sections))
	copy(out, m.Sections)

	return out, nil
}

// Append adds a section to the stream.
func (m *MockSource) Append(id, text string) {
	m.Sections = append(m.Sections, content.Section{ID: id, Text: text})
}

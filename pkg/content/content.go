// Package content abstracts the story content stream the pipeline reads.
//
// A narrative is an ordered sequence of sections. Section identifiers are
// opaque ordering keys: the pipeline compares them only against its own
// position marker and never interprets their structure.
package content

import "context"

// Section is one unit of the content stream.
type Section struct {
	ID   string
	Text string
}

// Source yields the ordered sections of one narrative.
type Source interface {
	// SectionIDs returns the identifiers of all known sections in
	// document order.
	SectionIDs(ctx context.Context) ([]string, error)

	// Scan returns every section with its text, in document order.
	Scan(ctx context.Context) ([]Section, error)
}

// Package store defines the persistence interface for narrative state.
//
// A narrative's state is one JSON blob keyed by an opaque narrative
// identifier. Drivers only move blobs; all interpretation happens in
// pkg/narrative. The full-blob contract is deliberate: partial-field
// updates would undermine the pipeline's reload-mutate-save discipline.
package store

import (
	"context"

	"github.com/papercomputeco/loom/pkg/narrative"
)

// Driver persists and retrieves narrative state blobs.
type Driver interface {
	// Load returns the state stored under key, or NotFoundError when the
	// narrative has never been saved.
	Load(ctx context.Context, key string) (*narrative.State, error)

	// Save writes the full state under key, replacing any prior blob.
	Save(ctx context.Context, key string, state *narrative.State) error

	// Delete removes the state stored under key. Deleting a missing key
	// is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases driver resources.
	Close() error
}

// Package inmemory provides an in-memory store.Driver. State blobs live in
// a map guarded by a mutex; nothing survives process exit. Used for tests
// and for running loom without configured storage.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/narrative/store"
)

// Driver implements store.Driver using an in-memory map.
type Driver struct {
	mu sync.RWMutex

	// blobs maps narrative key to encoded state. Blobs are stored encoded
	// so Load always hands back an independent copy.
	blobs map[string][]byte
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		blobs: make(map[string][]byte),
	}
}

// Load returns the state stored under key.
func (d *Driver) Load(_ context.Context, key string) (*narrative.State, error) {
	d.mu.RLock()
	data, ok := d.blobs[key]
	d.mu.RUnlock()

	if !ok {
		return nil, store.NotFoundError{Key: key}
	}

	return narrative.Decode(data)
}

// Save writes the full state under key.
func (d *Driver) Save(_ context.Context, key string, state *narrative.State) error {
	if state == nil {
		return errors.New("cannot save nil state")
	}

	data, err := state.Encode()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.blobs[key] = data

	return nil
}

// Delete removes the state stored under key.
func (d *Driver) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blobs, key)

	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

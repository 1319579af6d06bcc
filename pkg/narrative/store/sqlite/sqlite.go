// Package sqlite provides a SQLite-backed store.Driver using the
// github.com/mattn/go-sqlite3 driver. State blobs live in a single
// narratives table keyed by narrative id.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/narrative/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS narratives (
	key        TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// Driver implements store.Driver on a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (and if necessary creates) a SQLite database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Load returns the state stored under key.
func (d *Driver) Load(ctx context.Context, key string) (*narrative.State, error) {
	var blob []byte
	err := d.db.QueryRowContext(ctx,
		"SELECT state FROM narratives WHERE key = ?", key,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("loading narrative %s: %w", key, err)
	}

	return narrative.Decode(blob)
}

// Save writes the full state under key, replacing any prior blob.
func (d *Driver) Save(ctx context.Context, key string, state *narrative.State) error {
	if state == nil {
		return errors.New("cannot save nil state")
	}

	data, err := state.Encode()
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO narratives (key, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving narrative %s: %w", key, err)
	}

	return nil
}

// Delete removes the state stored under key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM narratives WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting narrative %s: %w", key, err)
	}

	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

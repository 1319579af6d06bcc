// Package dotdir manages the .loom/ and ~/.loom directories.
//
// The dotdir holds loom's config.toml and, by default, the SQLite state
// database. Resolution prefers an explicit override, then a local .loom/
// directory, then ~/.loom/.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the loom directory.
	dirName = ".loom"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .loom/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.loom/ dir
//  3. Home ~/.loom/ dir
//
// If no directory is found and no override is given, Target returns an
// empty string without error; callers fall back to defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating loom directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if dir := filepath.Join(cwd, dirName); dirExists(dir) {
		return filepath.Abs(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if dir := filepath.Join(home, dirName); dirExists(dir) {
		return filepath.Abs(dir)
	}

	return "", nil
}

// Create resolves the target directory like Target but creates ~/.loom/
// when nothing else is found. Used by "loom init".
func (m *Manager) Create(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	if target != "" {
		return target, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating loom directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Package initcmder provides the init command for initializing a local .loom
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/loom/pkg/config"
)

const (
	dirName = ".loom"
)

const initLongDesc string = `Initialize a new .loom/ directory in the current working directory.

Creates a local .loom/ directory that takes precedence over the default
~/.loom/ directory for narrative state, the compiled memory artifact,
configuration, and other loom operations.

This is useful for maintaining separate story memory per project or
directory.

Examples:
  loom init
  loom init --preset anthropic`

const initShortDesc string = "Initialize a local .loom/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Seed config.toml from a provider preset (openai, anthropic, ollama)")

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return writePreset(dir, preset)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .loom directory: %w", err)
	}

	fmt.Printf("Initialized .loom directory: %s\n", dir)

	return writePreset(dir, preset)
}

// writePreset seeds config.toml from the named preset. A no-op without one.
func writePreset(dir, preset string) error {
	if preset == "" {
		return nil
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote %s preset to %s\n", preset, cfger.GetTarget())

	return nil
}

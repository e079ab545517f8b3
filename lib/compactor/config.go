// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compactor

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the compactor configuration, loaded from a YAML file.
// Flags override individual fields after loading.
type Config struct {
	// SourceDir is where epoch archives are read from.
	SourceDir string `yaml:"source_dir"`

	// OutputDir is where compact file sets are written.
	OutputDir string `yaml:"output_dir"`

	// Workers is the number of epochs built concurrently.
	Workers int `yaml:"workers"`

	// Strict aborts an epoch on the first malformed block.
	Strict bool `yaml:"strict"`

	// Verify recomputes content address digests while reading.
	Verify bool `yaml:"verify"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Load loads configuration from the BLOCKZILLA_CONFIG environment
// variable. Fails if the variable is unset; use LoadFile for an
// explicit path.
func Load() (Config, error) {
	path := os.Getenv("BLOCKZILLA_CONFIG")
	if path == "" {
		return Config{}, fmt.Errorf("BLOCKZILLA_CONFIG environment variable not set; " +
			"set it to the path of your blockzilla.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, merging over Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for a build run.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir not set")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

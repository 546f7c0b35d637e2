// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, in priority order.
var DefaultConfigPaths = []string{
	"quarry.yaml",
	"quarry.yml",
	"/etc/quarry/config.yaml",
	"/etc/quarry/config.yml",
}

// ConfigPathEnvVar overrides the config file search when set.
const ConfigPathEnvVar = "QUARRY_CONFIG"

// envPrefix namespaces Quarry's environment variables.
const envPrefix = "QUARRY_"

// Load resolves configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. QUARRY_* environment variables (highest priority)
//
// After merging, empty data subdirectories are derived from data.dir and
// the result is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// QUARRY_SERVER_PORT -> server.port, QUARRY_TRAIN_TEST_SIZE -> train.test_size
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.resolveDirs()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// resolveDirs fills empty data subdirectories from the data root so a
// single data.dir setting relocates the whole layout.
func (c *Config) resolveDirs() {
	sub := func(current, name string) string {
		if current != "" {
			return current
		}
		return filepath.Join(c.Data.Dir, name)
	}
	c.Data.RawDir = sub(c.Data.RawDir, "raw")
	c.Data.ProcessedDir = sub(c.Data.ProcessedDir, "processed")
	c.Data.ModelsDir = sub(c.Data.ModelsDir, "models")
	c.Data.ResultsDir = sub(c.Data.ResultsDir, "results")
	c.Data.PlotsDir = sub(c.Data.PlotsDir, "plots")
}

// EnsureDirs creates the full data layout. Missing directories are created
// on demand so every command can run from a clean checkout.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Data.RawDir,
		c.Data.ProcessedDir,
		c.Data.ModelsDir,
		c.Data.ResultsDir,
		c.Data.PlotsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envSectionPrefixes maps the first token of an environment variable to a
// config section. Remaining tokens join with underscores to form the key,
// so QUARRY_TRAIN_TEST_SIZE resolves to train.test_size.
var envSectionPrefixes = []string{
	"data", "datasets", "fetch", "train", "backend",
	"server", "database", "artifacts", "logging",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, section := range envSectionPrefixes {
		if key == section {
			return key
		}
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	// Unknown variables are ignored rather than polluting the config map.
	return ""
}

// sliceConfigPaths are fields that accept comma-separated values from the
// environment.
var sliceConfigPaths = []string{
	"datasets",
	"server.cors_origins",
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

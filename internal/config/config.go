// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package config defines Quarry's configuration model and its layered
// loader. Configuration is resolved from three sources in increasing
// priority: built-in defaults, an optional YAML file, and environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/quarrydev/quarry/internal/validation"
)

// Config is the root configuration for all Quarry commands.
type Config struct {
	Data      DataConfig      `koanf:"data"`
	Datasets  []string        `koanf:"datasets"`
	Fetch     FetchConfig     `koanf:"fetch"`
	Train     TrainConfig     `koanf:"train"`
	Backend   BackendConfig   `koanf:"backend"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DataConfig locates the on-disk data layout shared by all pipeline stages.
type DataConfig struct {
	Dir          string `koanf:"dir" validate:"required"`
	RawDir       string `koanf:"raw_dir"`
	ProcessedDir string `koanf:"processed_dir"`
	ModelsDir    string `koanf:"models_dir"`
	ResultsDir   string `koanf:"results_dir"`
	PlotsDir     string `koanf:"plots_dir"`
}

// FetchConfig controls raw dataset acquisition.
type FetchConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	Offline bool          `koanf:"offline"`
}

// TrainConfig holds hyperparameters shared across datasets.
type TrainConfig struct {
	Seed           int64   `koanf:"seed"`
	TestSize       float64 `koanf:"test_size" validate:"gt=0,lt=1"`
	NumEstimators  int     `koanf:"n_estimators" validate:"gte=1"`
	MaxDepth       int     `koanf:"max_depth" validate:"gte=1"`
	KNeighbors     int     `koanf:"k_neighbors" validate:"gte=1"`
	LearningRate   float64 `koanf:"learning_rate" validate:"gt=0"`
	Epochs         int     `koanf:"epochs" validate:"gte=1"`
	SelectK        int     `koanf:"select_k" validate:"gte=1"`
	ImputeStrategy string  `koanf:"impute_strategy" validate:"oneof=mean median"`
	ScaleMethod    string  `koanf:"scale_method" validate:"oneof=standard minmax robust"`
	ParallelTrees  bool    `koanf:"parallel_trees"`
	MinSamplesLeaf int     `koanf:"min_samples_leaf" validate:"gte=1"`
}

// BackendConfig points the analyzer at the metrics backend it probes.
type BackendConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ServerConfig configures the model serving API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig configures the embedded DuckDB warehouse.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// ArtifactsConfig configures the Badger model artifact store.
type ArtifactsConfig struct {
	Path     string `koanf:"path" validate:"required"`
	InMemory bool   `koanf:"in_memory"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// knownDatasets lists the dataset specs Quarry ships with.
var knownDatasets = map[string]bool{
	"iris":               true,
	"wine":               true,
	"california_housing": true,
}

// Validate checks tag rules and cross-field constraints. It returns the
// first problem found so startup fails fast with an actionable message.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if len(c.Datasets) == 0 {
		return fmt.Errorf("at least one dataset must be configured")
	}
	for _, name := range c.Datasets {
		if !knownDatasets[name] {
			return fmt.Errorf("unknown dataset %q (known: iris, wine, california_housing)", name)
		}
	}
	if c.Train.SelectK > 0 && c.Train.NumEstimators > 10_000 {
		return fmt.Errorf("n_estimators %d is unreasonably large", c.Train.NumEstimators)
	}
	return nil
}

// defaultConfig returns the built-in defaults applied before file and
// environment overrides.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:          "data",
			RawDir:       "",
			ProcessedDir: "",
			ModelsDir:    "",
			ResultsDir:   "",
			PlotsDir:     "",
		},
		Datasets: []string{"iris", "wine", "california_housing"},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Offline: false,
		},
		Train: TrainConfig{
			Seed:           42,
			TestSize:       0.2,
			NumEstimators:  100,
			MaxDepth:       10,
			KNeighbors:     5,
			LearningRate:   0.1,
			Epochs:         200,
			SelectK:        15,
			ImputeStrategy: "mean",
			ScaleMethod:    "standard",
			ParallelTrees:  true,
			MinSamplesLeaf: 1,
		},
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "data/quarry.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Artifacts: ArtifactsConfig{
			Path:     "data/models/store",
			InMemory: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

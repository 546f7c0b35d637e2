// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydev/quarry/internal/artifacts"
	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/warehouse"
)

func testConfig(t *testing.T, datasets []string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Data:     config.DataConfig{Dir: dir},
		Datasets: datasets,
		Fetch:    config.FetchConfig{Timeout: 2 * time.Second, Offline: true},
		Train: config.TrainConfig{
			Seed:           42,
			TestSize:       0.2,
			NumEstimators:  10,
			MaxDepth:       5,
			KNeighbors:     3,
			LearningRate:   0.1,
			Epochs:         100,
			SelectK:        15,
			ImputeStrategy: "mean",
			ScaleMethod:    "standard",
			MinSamplesLeaf: 1,
		},
	}
	cfg.Data.RawDir = filepath.Join(dir, "raw")
	cfg.Data.ProcessedDir = filepath.Join(dir, "processed")
	cfg.Data.ModelsDir = filepath.Join(dir, "models")
	cfg.Data.ResultsDir = filepath.Join(dir, "results")
	cfg.Data.PlotsDir = filepath.Join(dir, "plots")
	require.NoError(t, cfg.EnsureDirs())
	return cfg
}

func newRunner(t *testing.T, datasets []string) (*Runner, *warehouse.DB) {
	t.Helper()
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	db, err := warehouse.Open(warehouse.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRunner(testConfig(t, datasets), store, db), db
}

func TestRunCompletesIrisEndToEnd(t *testing.T) {
	r, db := newRunner(t, []string{"iris"})
	ctx := context.Background()

	report, err := r.Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.AnySucceeds)
	assert.Equal(t, []string{"iris"}, report.Succeeded)
	assert.Empty(t, report.Failed)
	require.Len(t, report.Outcomes, 4)
	for _, o := range report.Outcomes {
		assert.True(t, o.Success, "stage %s", o.Stage)
	}

	// Artifacts from every stage are on disk.
	assert.FileExists(t, filepath.Join(r.cfg.Data.RawDir, "iris.csv"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.RawDir, "iris_metadata.json"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.RawDir, "metadata.json"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.ProcessedDir, "iris_processed.csv"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.ResultsDir, "training_results_iris.json"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.ResultsDir, "evaluation_results_iris.json"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.ResultsDir, "pipeline_report.json"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.PlotsDir, "iris", "accuracy_comparison.png"))

	// The warehouse has the raw rows and four stage records.
	n, err := db.RowCount(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, 150, n)

	history, err := db.RunHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for _, rec := range history {
		assert.Equal(t, r.RunID(), rec.RunID)
		assert.True(t, rec.Success)
	}
	// Newest first: evaluate ran last.
	assert.Equal(t, StageEvaluate, history[0].Stage)

	var onDisk models.PipelineReport
	reportPath := filepath.Join(r.cfg.Data.ResultsDir, "pipeline_report.json")
	require.NoError(t, dataset.ReadJSON(reportPath, &onDisk))
	assert.Equal(t, report.RunID, onDisk.RunID)
}

func TestRunIsolatesDatasetFailures(t *testing.T) {
	r, _ := newRunner(t, []string{"iris", "wine"})

	// Sabotage wine by making its prep fail: an unknown dataset name in
	// the list exercises the same path.
	r.cfg.Datasets = []string{"nope", "iris"}

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.AnySucceeds)
	assert.Contains(t, report.Failed, "nope")
	assert.Contains(t, report.Succeeded, "iris")

	// The failed dataset stops after prep; iris still ran all stages.
	var prepFailures int
	for _, o := range report.Outcomes {
		if o.Dataset == "nope" {
			assert.Equal(t, StagePrep, o.Stage)
			assert.False(t, o.Success)
			prepFailures++
		}
	}
	assert.Equal(t, 1, prepFailures)
}

func TestRunHousingRegression(t *testing.T) {
	r, _ := newRunner(t, []string{"california_housing"})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"california_housing"}, report.Succeeded)

	assert.FileExists(t, filepath.Join(r.cfg.Data.PlotsDir, "california_housing", "rmse_comparison.png"))
	assert.FileExists(t, filepath.Join(r.cfg.Data.PlotsDir, "california_housing", "r2_comparison.png"))
}

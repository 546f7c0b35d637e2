// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package trainer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydev/quarry/internal/artifacts"
	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/estimator"
	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/models"
)

func testTrainConfig() config.TrainConfig {
	return config.TrainConfig{
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
	}
}

func testDataConfig(t *testing.T) config.DataConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DataConfig{
		Dir:          dir,
		RawDir:       filepath.Join(dir, "raw"),
		ProcessedDir: filepath.Join(dir, "processed"),
		ModelsDir:    filepath.Join(dir, "models"),
		ResultsDir:   filepath.Join(dir, "results"),
		PlotsDir:     filepath.Join(dir, "plots"),
	}
	for _, d := range []string{cfg.RawDir, cfg.ProcessedDir, cfg.ModelsDir, cfg.ResultsDir, cfg.PlotsDir} {
		require.NoError(t, os.MkdirAll(d, 0o750))
	}
	return cfg
}

func newStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func regressionDataset(t *testing.T, n int) *Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = rng.NormFloat64()
		x2[i] = rng.NormFloat64()
		y[i] = 2*x1[i] - x2[i] + 0.05*rng.NormFloat64()
	}
	f := frame.New()
	require.NoError(t, f.AddNumeric("x1", x1))
	require.NoError(t, f.AddNumeric("x2", x2))
	require.NoError(t, f.AddNumeric("target", y))
	return &Dataset{Name: "synthetic", ProblemType: "regression", Target: "target", Frame: f}
}

func classificationDataset(t *testing.T, n int) *Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		cls := float64(i % 2)
		x1[i] = cls*4 + rng.NormFloat64()*0.5
		x2[i] = cls*-4 + rng.NormFloat64()*0.5
		y[i] = cls
	}
	f := frame.New()
	require.NoError(t, f.AddNumeric("x1", x1))
	require.NoError(t, f.AddNumeric("x2", x2))
	require.NoError(t, f.AddNumeric("target", y))
	return &Dataset{
		Name: "blobs", ProblemType: "classification", Target: "target",
		Frame: f, Labels: []string{"a", "b"},
	}
}

func TestTrainRegression(t *testing.T) {
	store := newStore(t)
	data := testDataConfig(t)
	tr := New(testTrainConfig(), store)

	summary, err := tr.Train(context.Background(), regressionDataset(t, 120), data)
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	for _, res := range summary.Results {
		assert.Empty(t, res.Error, "model %s", res.Model)
		assert.GreaterOrEqual(t, res.RMSE, 0.0)
	}
	// The target is almost exactly linear, so OLS must win.
	assert.Equal(t, estimator.KindLinear, summary.BestModel)
	assert.Equal(t, 96, summary.TrainRows)
	assert.Equal(t, 24, summary.TestRows)
	assert.Equal(t, 2, summary.Features)

	// Every successful model lands in the store and on disk.
	stored, err := store.List("synthetic")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	for _, kind := range []string{estimator.KindLinear, estimator.KindRandomForest, estimator.KindKNN} {
		snap := filepath.Join(data.ModelsDir, kind+"_synthetic_model.model")
		assert.FileExists(t, snap)
	}

	var onDisk models.TrainingSummary
	resultsPath := filepath.Join(data.ResultsDir, "training_results_synthetic.json")
	require.NoError(t, dataset.ReadJSON(resultsPath, &onDisk))
	assert.Equal(t, summary.BestModel, onDisk.BestModel)
}

func TestTrainClassification(t *testing.T) {
	store := newStore(t)
	data := testDataConfig(t)
	tr := New(testTrainConfig(), store)

	summary, err := tr.Train(context.Background(), classificationDataset(t, 100), data)
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	for _, res := range summary.Results {
		assert.Empty(t, res.Error, "model %s", res.Model)
		assert.GreaterOrEqual(t, res.Accuracy, 0.9, "model %s", res.Model)
	}
	assert.NotEmpty(t, summary.BestModel)

	// Stored metadata carries the class names for serving.
	_, meta, err := store.Get("blobs", summary.BestModel)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, meta.Labels)
	assert.Equal(t, "classification", meta.ProblemType)
}

func TestTrainIsDeterministic(t *testing.T) {
	run := func() *models.TrainingSummary {
		store := newStore(t)
		tr := New(testTrainConfig(), store)
		summary, err := tr.Train(context.Background(), regressionDataset(t, 80), testDataConfig(t))
		require.NoError(t, err)
		return summary
	}
	first, second := run(), run()
	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Model, second.Results[i].Model)
		assert.InDelta(t, first.Results[i].RMSE, second.Results[i].RMSE, 1e-12)
	}
}

func TestBestModelSkipsFailures(t *testing.T) {
	results := []models.ModelResult{
		{Model: "linear_regression", RMSE: 0.5},
		{Model: "random_forest", Error: "boom"},
		{Model: "knn", RMSE: 0.9},
	}
	assert.Equal(t, "linear_regression", bestModel(results, "regression"))

	clsResults := []models.ModelResult{
		{Model: "logistic_regression", Accuracy: 0.8},
		{Model: "random_forest", Accuracy: 0.95},
		{Model: "knn", Error: "boom"},
	}
	assert.Equal(t, "random_forest", bestModel(clsResults, "classification"))

	assert.Empty(t, bestModel([]models.ModelResult{{Model: "knn", Error: "x"}}, "regression"))
}

func TestLoadFallsBackToRaw(t *testing.T) {
	data := testDataConfig(t)

	// Only a raw CSV exists; Load should run the feature pipeline on it.
	spec := dataset.Lookup("iris")
	require.NotNil(t, spec)
	raw := spec.Synthesize(42)
	require.NoError(t, raw.WriteCSVFile(filepath.Join(data.RawDir, "iris.csv")))

	ds, err := Load(data, testTrainConfig(), "iris")
	require.NoError(t, err)
	assert.Equal(t, "classification", ds.ProblemType)
	assert.Equal(t, "species", ds.Target)
	assert.NotEmpty(t, ds.Labels)
	assert.Greater(t, ds.Frame.NumCols(), 4)
}

func TestLoadMissingDataset(t *testing.T) {
	data := testDataConfig(t)
	_, err := Load(data, testTrainConfig(), "iris")
	assert.Error(t, err)
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package evaluator

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
	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/trainer"
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

func regressionDataset(t *testing.T, n int) *trainer.Dataset {
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
	return &trainer.Dataset{Name: "synthetic", ProblemType: "regression", Target: "target", Frame: f}
}

func classificationDataset(t *testing.T, n int) *trainer.Dataset {
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
	return &trainer.Dataset{
		Name: "blobs", ProblemType: "classification", Target: "target",
		Frame: f, Labels: []string{"a", "b"},
	}
}

// trainModels fits and stores models so the evaluator has something to load.
func trainModels(t *testing.T, ds *trainer.Dataset, store *artifacts.Store, data config.DataConfig) {
	t.Helper()
	tr := trainer.New(testTrainConfig(), store)
	_, err := tr.Train(context.Background(), ds, data)
	require.NoError(t, err)
}

func TestEvaluateRegression(t *testing.T) {
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	data := testDataConfig(t)

	ds := regressionDataset(t, 120)
	trainModels(t, ds, store, data)

	ev := New(testTrainConfig(), store)
	summary, err := ev.Evaluate(context.Background(), ds, data)
	require.NoError(t, err)

	require.Len(t, summary.Models, 3)
	linear := summary.Models["linear_regression"]
	assert.Greater(t, linear.R2, 0.95)
	assert.Greater(t, linear.MSE, 0.0)
	assert.GreaterOrEqual(t, linear.MAE, 0.0)
	assert.Equal(t, "linear_regression", summary.BestModel)

	var onDisk models.EvaluationSummary
	resultsPath := filepath.Join(data.ResultsDir, "evaluation_results_synthetic.json")
	require.NoError(t, dataset.ReadJSON(resultsPath, &onDisk))
	assert.Equal(t, summary.BestModel, onDisk.BestModel)

	assert.FileExists(t, filepath.Join(data.PlotsDir, "synthetic", "rmse_comparison.png"))
	assert.FileExists(t, filepath.Join(data.PlotsDir, "synthetic", "r2_comparison.png"))
}

func TestEvaluateClassification(t *testing.T) {
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	data := testDataConfig(t)

	ds := classificationDataset(t, 100)
	trainModels(t, ds, store, data)

	ev := New(testTrainConfig(), store)
	summary, err := ev.Evaluate(context.Background(), ds, data)
	require.NoError(t, err)

	require.Len(t, summary.Models, 3)
	for name, m := range summary.Models {
		assert.GreaterOrEqual(t, m.Accuracy, 0.9, "model %s", name)
		assert.Greater(t, m.F1, 0.0, "model %s", name)
		assert.Greater(t, m.Precision, 0.0, "model %s", name)
		assert.Greater(t, m.Recall, 0.0, "model %s", name)
	}
	assert.NotEmpty(t, summary.BestModel)

	assert.FileExists(t, filepath.Join(data.PlotsDir, "blobs", "accuracy_comparison.png"))
	assert.FileExists(t, filepath.Join(data.PlotsDir, "blobs", "f1_comparison.png"))
}

func TestEvaluateHonorsStoredFeatureOrder(t *testing.T) {
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	data := testDataConfig(t)

	ds := regressionDataset(t, 120)
	trainModels(t, ds, store, data)

	ev := New(testTrainConfig(), store)
	baseline, err := ev.Evaluate(context.Background(), ds, data)
	require.NoError(t, err)

	// Rebuild the frame with feature columns permuted, the way a feature
	// stage re-run could lay them out. Metrics must not change: the
	// evaluator takes columns in the stored training order.
	permuted := frame.New()
	for _, name := range []string{"x2", "x1", "target"} {
		v, err := ds.Frame.Vector(name)
		require.NoError(t, err)
		require.NoError(t, permuted.AddNumeric(name, v))
	}
	reordered := &trainer.Dataset{
		Name: ds.Name, ProblemType: ds.ProblemType, Target: ds.Target, Frame: permuted,
	}
	summary, err := ev.Evaluate(context.Background(), reordered, data)
	require.NoError(t, err)

	assert.InDelta(t, baseline.Models["linear_regression"].RMSE,
		summary.Models["linear_regression"].RMSE, 1e-12)
	assert.InDelta(t, baseline.Models["linear_regression"].R2,
		summary.Models["linear_regression"].R2, 1e-12)
}

func TestEvaluateSkipsModelWithMissingFeature(t *testing.T) {
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	data := testDataConfig(t)

	ds := regressionDataset(t, 120)
	trainModels(t, ds, store, data)

	// Dropping a trained-on column must skip every stored model, not
	// silently score against whatever columns remain.
	ds.Frame.Drop("x2")
	ev := New(testTrainConfig(), store)
	_, err = ev.Evaluate(context.Background(), ds, data)
	assert.Error(t, err)
}

func TestEvaluateWithoutModels(t *testing.T) {
	store, err := artifacts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ev := New(testTrainConfig(), store)
	_, err = ev.Evaluate(context.Background(), regressionDataset(t, 50), testDataConfig(t))
	assert.Error(t, err)
}

func TestPickBestDeterministicOnTies(t *testing.T) {
	scored := map[string]models.EvalMetrics{
		"knn":           {Accuracy: 0.9},
		"random_forest": {Accuracy: 0.9},
	}
	assert.Equal(t, "knn", pickBest(scored, "classification"))

	regScored := map[string]models.EvalMetrics{
		"linear_regression": {RMSE: 0.4},
		"knn":               {RMSE: 0.6},
	}
	assert.Equal(t, "linear_regression", pickBest(regScored, "regression"))
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package trainer runs the model bake-off for one dataset: it splits the
// processed data into a deterministic holdout, fits every candidate model
// for the dataset's problem type, scores each one on the holdout, and
// persists the trained models plus a training summary.
package trainer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarrydev/quarry/internal/artifacts"
	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/estimator"
	"github.com/quarrydev/quarry/internal/features"
	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
	"github.com/quarrydev/quarry/internal/models"
)

// Trainer fits and persists models for processed datasets.
type Trainer struct {
	cfg   config.TrainConfig
	store *artifacts.Store
	log   zerolog.Logger
}

// New returns a Trainer that stores trained models in store.
func New(cfg config.TrainConfig, store *artifacts.Store) *Trainer {
	return &Trainer{
		cfg:   cfg,
		store: store,
		log:   logging.With().Str("component", "trainer").Logger(),
	}
}

// Dataset bundles the inputs Train needs for one dataset.
type Dataset struct {
	Name        string
	ProblemType string // regression or classification
	Target      string
	Frame       *frame.Frame
	Labels      []string // class names for classification targets
}

// Load reads a processed dataset from disk. When the processed files are
// missing it falls back to the raw CSV and runs the feature pipeline on it,
// so training still works on freshly fetched data.
func Load(data config.DataConfig, train config.TrainConfig, name string) (*Dataset, error) {
	f, meta, err := features.LoadProcessed(data.ProcessedDir, name)
	if err == nil {
		return &Dataset{
			Name:        name,
			ProblemType: meta.ProblemType,
			Target:      meta.Target,
			Frame:       f,
			Labels:      meta.TargetLabels,
		}, nil
	}

	raw, rawErr := frame.ReadCSVFile(filepath.Join(data.RawDir, name+".csv"))
	if rawErr != nil {
		return nil, fmt.Errorf("load dataset %s: %w", name, err)
	}
	logging.Warn().Str("dataset", name).Msg("processed data missing, running feature pipeline on raw CSV")
	res, err := features.Process(raw, name, features.Options{
		ImputeStrategy: train.ImputeStrategy,
		ScaleMethod:    train.ScaleMethod,
		SelectK:        train.SelectK,
	})
	if err != nil {
		return nil, fmt.Errorf("process raw dataset %s: %w", name, err)
	}
	return &Dataset{
		Name:        name,
		ProblemType: res.ProblemType,
		Target:      res.Target,
		Frame:       res.Frame,
		Labels:      res.TargetLabels,
	}, nil
}

// Train fits every candidate model for ds, scores each on the holdout and
// writes training_results_{dataset}.json plus one model snapshot per
// successful fit. A model that fails to fit is recorded with its error and
// does not abort the remaining candidates.
func (t *Trainer) Train(ctx context.Context, ds *Dataset, data config.DataConfig) (*models.TrainingSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	featureNames := featureColumns(ds.Frame, ds.Target)
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("dataset %s has no feature columns", ds.Name)
	}
	X, err := rowsMatrix(ds.Frame, featureNames)
	if err != nil {
		return nil, err
	}
	y, err := ds.Frame.Vector(ds.Target)
	if err != nil {
		return nil, fmt.Errorf("target column %s: %w", ds.Target, err)
	}

	trainIdx, testIdx, err := estimator.SplitIndices(len(X), t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	XTrain, XTest := estimator.TakeRows(X, trainIdx), estimator.TakeRows(X, testIdx)

	summary := &models.TrainingSummary{
		Dataset:     ds.Name,
		ProblemType: ds.ProblemType,
		TrainRows:   len(trainIdx),
		TestRows:    len(testIdx),
		Features:    len(featureNames),
		TrainedAt:   time.Now().UTC(),
	}

	switch ds.ProblemType {
	case "regression":
		yTrain, yTest := estimator.TakeFloats(y, trainIdx), estimator.TakeFloats(y, testIdx)
		for _, kind := range []string{estimator.KindLinear, estimator.KindRandomForest, estimator.KindKNN} {
			res := t.trainRegressor(kind, ds, featureNames, XTrain, yTrain, XTest, yTest, data)
			summary.Results = append(summary.Results, res)
		}
	case "classification":
		labels := toIntLabels(y)
		yTrain, yTest := estimator.TakeInts(labels, trainIdx), estimator.TakeInts(labels, testIdx)
		for _, kind := range []string{estimator.KindLogistic, estimator.KindRandomForest, estimator.KindKNN} {
			res := t.trainClassifier(kind, ds, featureNames, XTrain, yTrain, XTest, yTest, data)
			summary.Results = append(summary.Results, res)
		}
	default:
		return nil, fmt.Errorf("unknown problem type %q for dataset %s", ds.ProblemType, ds.Name)
	}

	summary.BestModel = bestModel(summary.Results, ds.ProblemType)
	if summary.BestModel == "" {
		return nil, fmt.Errorf("all models failed for dataset %s", ds.Name)
	}

	resultsPath := filepath.Join(data.ResultsDir, "training_results_"+ds.Name+".json")
	if err := dataset.WriteJSON(resultsPath, summary); err != nil {
		return nil, fmt.Errorf("write training results: %w", err)
	}

	t.log.Info().
		Str("dataset", ds.Name).
		Str("best_model", summary.BestModel).
		Int("features", summary.Features).
		Msg("training complete")
	return summary, nil
}

func (t *Trainer) trainRegressor(kind string, ds *Dataset, featureNames []string, XTrain [][]float64, yTrain []float64, XTest [][]float64, yTest []float64, data config.DataConfig) models.ModelResult {
	res := models.ModelResult{Model: kind}
	start := time.Now()

	model := t.newRegressor(kind)
	if err := model.Fit(XTrain, yTrain); err != nil {
		res.Duration = time.Since(start).Seconds()
		res.Error = err.Error()
		t.log.Warn().Err(err).Str("dataset", ds.Name).Str("model", kind).Msg("model fit failed")
		return res
	}
	res.RMSE = estimator.RMSE(yTest, model.Predict(XTest))
	res.Duration = time.Since(start).Seconds()

	if err := t.persist(ds, kind, featureNames, model, data); err != nil {
		res.Error = err.Error()
		return res
	}
	metrics.ModelsTrained.WithLabelValues(ds.Name, kind).Inc()
	t.log.Info().Str("dataset", ds.Name).Str("model", kind).
		Float64("rmse", res.RMSE).Float64("seconds", res.Duration).Msg("model trained")
	return res
}

func (t *Trainer) trainClassifier(kind string, ds *Dataset, featureNames []string, XTrain [][]float64, yTrain []int, XTest [][]float64, yTest []int, data config.DataConfig) models.ModelResult {
	res := models.ModelResult{Model: kind}
	start := time.Now()

	model := t.newClassifier(kind)
	if err := model.Fit(XTrain, yTrain); err != nil {
		res.Duration = time.Since(start).Seconds()
		res.Error = err.Error()
		t.log.Warn().Err(err).Str("dataset", ds.Name).Str("model", kind).Msg("model fit failed")
		return res
	}
	res.Accuracy = estimator.Accuracy(yTest, model.Predict(XTest))
	res.Duration = time.Since(start).Seconds()

	if err := t.persist(ds, kind, featureNames, model, data); err != nil {
		res.Error = err.Error()
		return res
	}
	metrics.ModelsTrained.WithLabelValues(ds.Name, kind).Inc()
	t.log.Info().Str("dataset", ds.Name).Str("model", kind).
		Float64("accuracy", res.Accuracy).Float64("seconds", res.Duration).Msg("model trained")
	return res
}

func (t *Trainer) newRegressor(kind string) estimator.Regressor {
	switch kind {
	case estimator.KindRandomForest:
		return estimator.NewForestRegressor(t.cfg.NumEstimators, t.cfg.MaxDepth, t.cfg.MinSamplesLeaf, t.cfg.Seed, t.cfg.ParallelTrees)
	case estimator.KindKNN:
		return estimator.NewKNNRegressor(t.cfg.KNeighbors)
	default:
		return estimator.NewLinearRegression()
	}
}

func (t *Trainer) newClassifier(kind string) estimator.Classifier {
	switch kind {
	case estimator.KindRandomForest:
		return estimator.NewForestClassifier(t.cfg.NumEstimators, t.cfg.MaxDepth, t.cfg.MinSamplesLeaf, t.cfg.Seed, t.cfg.ParallelTrees)
	case estimator.KindKNN:
		return estimator.NewKNNClassifier(t.cfg.KNeighbors)
	default:
		return estimator.NewLogisticRegression(t.cfg.LearningRate, t.cfg.Epochs, t.cfg.Seed)
	}
}

// persist encodes the fitted model, stores it in the artifact store and
// exports a file snapshot to the models directory.
func (t *Trainer) persist(ds *Dataset, kind string, featureNames []string, model interface{}, data config.DataConfig) error {
	blob, err := estimator.Encode(model)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	meta := artifacts.Meta{
		Dataset:     ds.Name,
		Name:        kind,
		Kind:        kind,
		ProblemType: ds.ProblemType,
		Features:    featureNames,
		Scaled:      true,
		Labels:      ds.Labels,
	}
	if err := t.store.Put(meta, blob); err != nil {
		return fmt.Errorf("store %s: %w", kind, err)
	}
	if data.ModelsDir != "" {
		if _, err := t.store.ExportSnapshot(data.ModelsDir, ds.Name, kind); err != nil {
			return fmt.Errorf("snapshot %s: %w", kind, err)
		}
	}
	return nil
}

// bestModel picks the lowest RMSE for regression and the highest accuracy
// for classification, skipping failed candidates.
func bestModel(results []models.ModelResult, problemType string) string {
	best := ""
	var bestScore float64
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		score := r.Accuracy
		if problemType == "regression" {
			score = -r.RMSE
		}
		if best == "" || score > bestScore {
			best, bestScore = r.Model, score
		}
	}
	return best
}

func featureColumns(f *frame.Frame, target string) []string {
	names := make([]string, 0, f.NumCols())
	for _, name := range f.Names() {
		if name != target {
			names = append(names, name)
		}
	}
	return names
}

// rowsMatrix extracts the named columns as row-major float slices.
func rowsMatrix(f *frame.Frame, names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		v, err := f.Vector(name)
		if err != nil {
			return nil, fmt.Errorf("feature column %s: %w", name, err)
		}
		cols[i] = v
	}
	n := f.NumRows()
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		X[i] = row
	}
	return X, nil
}

// toIntLabels converts a label-encoded float target to ints.
func toIntLabels(y []float64) []int {
	out := make([]int, len(y))
	for i, v := range y {
		out[i] = int(v)
	}
	return out
}

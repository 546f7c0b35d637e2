// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package evaluator reloads trained models from the artifact store, scores
// them on the same deterministic holdout the trainer used, writes the
// evaluation results JSON and renders metric comparison charts.
package evaluator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarrydev/quarry/internal/artifacts"
	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/estimator"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/trainer"
)

// Evaluator scores stored models against the holdout split.
type Evaluator struct {
	cfg   config.TrainConfig
	store *artifacts.Store
	log   zerolog.Logger
}

// New returns an Evaluator reading models from store. The train config must
// match the one used at training time so the holdout split lines up.
func New(cfg config.TrainConfig, store *artifacts.Store) *Evaluator {
	return &Evaluator{
		cfg:   cfg,
		store: store,
		log:   logging.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate scores every stored model for ds on the holdout, writes
// evaluation_results_{dataset}.json and the comparison plots. A model that
// fails to decode or predict is skipped with a warning.
func (e *Evaluator) Evaluate(ctx context.Context, ds *trainer.Dataset, data config.DataConfig) (*models.EvaluationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, err := e.store.List(ds.Name)
	if err != nil {
		return nil, fmt.Errorf("list models for %s: %w", ds.Name, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("no trained models found for dataset %s", ds.Name)
	}

	summary := &models.EvaluationSummary{
		Dataset:     ds.Name,
		ProblemType: ds.ProblemType,
		Models:      make(map[string]models.EvalMetrics, len(stored)),
		EvaluatedAt: time.Now().UTC(),
	}

	for _, meta := range stored {
		// Columns are taken in the order the model was trained with, not
		// the frame's on-disk order; a re-run of the feature stage must
		// not silently permute the matrix under a stored model.
		X, y, err := holdout(ds, e.cfg, meta.Features)
		if err != nil {
			e.log.Warn().Err(err).Str("dataset", ds.Name).Str("model", meta.Name).Msg("evaluation skipped")
			continue
		}
		m, err := e.score(ds, meta, X, y)
		if err != nil {
			e.log.Warn().Err(err).Str("dataset", ds.Name).Str("model", meta.Name).Msg("evaluation skipped")
			continue
		}
		summary.Models[meta.Name] = m
	}
	if len(summary.Models) == 0 {
		return nil, fmt.Errorf("no models could be evaluated for dataset %s", ds.Name)
	}
	summary.BestModel = pickBest(summary.Models, ds.ProblemType)

	resultsPath := filepath.Join(data.ResultsDir, "evaluation_results_"+ds.Name+".json")
	if err := dataset.WriteJSON(resultsPath, summary); err != nil {
		return nil, fmt.Errorf("write evaluation results: %w", err)
	}

	if data.PlotsDir != "" {
		if err := renderComparisonPlots(summary, data.PlotsDir); err != nil {
			// Plots are a convenience output; a render failure should not
			// fail the stage.
			e.log.Warn().Err(err).Str("dataset", ds.Name).Msg("plot rendering failed")
		}
	}

	e.log.Info().
		Str("dataset", ds.Name).
		Str("best_model", summary.BestModel).
		Int("models", len(summary.Models)).
		Msg("evaluation complete")
	return summary, nil
}

// holdout rebuilds the test split used at training time, with columns in
// the given training-time feature order. A feature missing from the frame
// is an error, not a silent substitution.
func holdout(ds *trainer.Dataset, cfg config.TrainConfig, featureNames []string) ([][]float64, []float64, error) {
	if len(featureNames) == 0 {
		return nil, nil, fmt.Errorf("no stored feature list for dataset %s", ds.Name)
	}
	cols := make([][]float64, len(featureNames))
	for i, name := range featureNames {
		v, err := ds.Frame.Vector(name)
		if err != nil {
			return nil, nil, fmt.Errorf("feature column %s: %w", name, err)
		}
		cols[i] = v
	}
	y, err := ds.Frame.Vector(ds.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("target column %s: %w", ds.Target, err)
	}

	n := ds.Frame.NumRows()
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(featureNames))
		for j := range featureNames {
			row[j] = cols[j][i]
		}
		X[i] = row
	}

	_, testIdx, err := estimator.SplitIndices(n, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	return estimator.TakeRows(X, testIdx), estimator.TakeFloats(y, testIdx), nil
}

func (e *Evaluator) score(ds *trainer.Dataset, meta artifacts.Meta, X [][]float64, y []float64) (models.EvalMetrics, error) {
	blob, _, err := e.store.Get(ds.Name, meta.Name)
	if err != nil {
		return models.EvalMetrics{}, err
	}

	if ds.ProblemType == "regression" {
		model, err := estimator.DecodeRegressor(meta.Kind, blob)
		if err != nil {
			return models.EvalMetrics{}, err
		}
		pred := model.Predict(X)
		return models.EvalMetrics{
			MSE:  estimator.MSE(y, pred),
			RMSE: estimator.RMSE(y, pred),
			MAE:  estimator.MAE(y, pred),
			R2:   estimator.R2(y, pred),
		}, nil
	}

	model, err := estimator.DecodeClassifier(meta.Kind, blob)
	if err != nil {
		return models.EvalMetrics{}, err
	}
	yTrue := make([]int, len(y))
	for i, v := range y {
		yTrue[i] = int(v)
	}
	pred := model.Predict(X)
	precision, recall, f1 := estimator.PrecisionRecallF1(yTrue, pred)
	_, confusion := estimator.ConfusionMatrix(yTrue, pred)
	return models.EvalMetrics{
		Accuracy:  estimator.Accuracy(yTrue, pred),
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		Confusion: confusion,
	}, nil
}

// pickBest selects the lowest RMSE for regression and the highest accuracy
// for classification. Model names are walked in sorted order so ties
// resolve deterministically.
func pickBest(scored map[string]models.EvalMetrics, problemType string) string {
	names := make([]string, 0, len(scored))
	for name := range scored {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	var bestScore float64
	for _, name := range names {
		score := scored[name].Accuracy
		if problemType == "regression" {
			score = -scored[name].RMSE
		}
		if best == "" || score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

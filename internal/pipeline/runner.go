// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package pipeline orchestrates the per-dataset stages: prep (acquire raw
// data), features (engineer and scale), train (model bake-off) and
// evaluate (holdout metrics plus plots). Datasets are isolated: one
// dataset failing a stage never blocks the others.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quarrydev/quarry/internal/artifacts"
	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/evaluator"
	"github.com/quarrydev/quarry/internal/features"
	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/trainer"
	"github.com/quarrydev/quarry/internal/warehouse"
)

// Stage names in execution order.
const (
	StagePrep     = "prep"
	StageFeatures = "features"
	StageTrain    = "train"
	StageEvaluate = "evaluate"
)

// Runner executes pipeline stages for the configured datasets. The
// warehouse is optional; when nil, dataset snapshots and run history are
// skipped.
type Runner struct {
	cfg   *config.Config
	store *artifacts.Store
	db    *warehouse.DB
	runID string
	log   zerolog.Logger
}

// NewRunner builds a Runner with a fresh run ID.
func NewRunner(cfg *config.Config, store *artifacts.Store, db *warehouse.DB) *Runner {
	runID := uuid.NewString()
	return &Runner{
		cfg:   cfg,
		store: store,
		db:    db,
		runID: runID,
		log:   logging.With().Str("component", "pipeline").Str("run_id", runID).Logger(),
	}
}

// RunID returns the identifier shared by all stage records of this run.
func (r *Runner) RunID() string { return r.runID }

// Run executes every stage for every configured dataset and writes
// pipeline_report.json. The returned report marks the run as succeeded if
// at least one dataset completed all stages.
func (r *Runner) Run(ctx context.Context) (*models.PipelineReport, error) {
	report := &models.PipelineReport{
		RunID:     r.runID,
		StartedAt: time.Now().UTC(),
	}

	for _, name := range r.cfg.Datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.runDataset(ctx, name, report) {
			report.Succeeded = append(report.Succeeded, name)
		} else {
			report.Failed = append(report.Failed, name)
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.AnySucceeds = len(report.Succeeded) > 0

	path := filepath.Join(r.cfg.Data.ResultsDir, "pipeline_report.json")
	if err := dataset.WriteJSON(path, report); err != nil {
		return nil, fmt.Errorf("write pipeline report: %w", err)
	}

	r.log.Info().
		Strs("succeeded", report.Succeeded).
		Strs("failed", report.Failed).
		Msg("pipeline run finished")
	return report, nil
}

// RunStage executes a single named stage for every configured dataset.
// Unlike Run it does not write pipeline_report.json; callers invoking one
// stage at a time usually want the individual stage artifacts only.
func (r *Runner) RunStage(ctx context.Context, stage string) (*models.PipelineReport, error) {
	var fn func(context.Context, string) error
	switch stage {
	case StagePrep:
		fn = r.prep
	case StageFeatures:
		fn = r.features
	case StageTrain:
		fn = r.train
	case StageEvaluate:
		fn = r.evaluate
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	report := &models.PipelineReport{
		RunID:     r.runID,
		StartedAt: time.Now().UTC(),
	}
	for _, name := range r.cfg.Datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.runStage(ctx, stage, name, fn, report) {
			report.Succeeded = append(report.Succeeded, name)
		} else {
			report.Failed = append(report.Failed, name)
		}
	}
	report.FinishedAt = time.Now().UTC()
	report.AnySucceeds = len(report.Succeeded) > 0
	return report, nil
}

// runDataset runs the four stages in order, stopping at the first failure.
func (r *Runner) runDataset(ctx context.Context, name string, report *models.PipelineReport) bool {
	stages := []struct {
		stage string
		fn    func(context.Context, string) error
	}{
		{StagePrep, r.prep},
		{StageFeatures, r.features},
		{StageTrain, r.train},
		{StageEvaluate, r.evaluate},
	}
	for _, s := range stages {
		if !r.runStage(ctx, s.stage, name, s.fn, report) {
			return false
		}
	}
	return true
}

// runStage executes one stage with timing, metrics and run history.
func (r *Runner) runStage(ctx context.Context, stage, name string, fn func(context.Context, string) error, report *models.PipelineReport) bool {
	start := time.Now()
	err := fn(ctx, name)
	elapsed := time.Since(start)

	metrics.RecordStage(stage, name, elapsed, err)

	outcome := models.StageOutcome{
		Stage:    stage,
		Dataset:  name,
		Success:  err == nil,
		Duration: elapsed.Seconds(),
	}
	if err != nil {
		outcome.Error = err.Error()
		r.log.Error().Err(err).Str("stage", stage).Str("dataset", name).Msg("stage failed")
	} else {
		r.log.Info().Str("stage", stage).Str("dataset", name).
			Float64("seconds", elapsed.Seconds()).Msg("stage complete")
	}
	report.Outcomes = append(report.Outcomes, outcome)

	if r.db != nil {
		rec := warehouse.RunRecord{
			RunID:      r.runID,
			Stage:      stage,
			Dataset:    name,
			Success:    err == nil,
			Duration:   elapsed.Milliseconds(),
			RecordedAt: time.Now().UTC(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if dbErr := r.db.RecordRun(ctx, rec); dbErr != nil {
			r.log.Warn().Err(dbErr).Msg("failed to record run history")
		}
	}
	return err == nil
}

// prep acquires the raw dataset, writes the raw CSV plus metadata and
// snapshots the rows into the warehouse.
func (r *Runner) prep(ctx context.Context, name string) error {
	spec := dataset.Lookup(name)
	if spec == nil {
		return fmt.Errorf("unknown dataset %q", name)
	}
	fetcher := dataset.NewFetcher(r.cfg.Fetch.Timeout, r.cfg.Fetch.Offline, r.cfg.Train.Seed)
	f, source, err := fetcher.Fetch(ctx, spec)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	if err := dataset.SaveRaw(r.cfg.Data.RawDir, spec, f, source); err != nil {
		return fmt.Errorf("save raw %s: %w", name, err)
	}
	if err := dataset.WriteRawSummary(r.cfg.Data.RawDir); err != nil {
		return fmt.Errorf("write raw summary: %w", err)
	}
	if r.db != nil {
		if err := r.db.LoadDataset(ctx, name, f); err != nil {
			return fmt.Errorf("warehouse load %s: %w", name, err)
		}
	}
	return nil
}

// features runs the feature pipeline over the raw CSV and writes the
// processed CSV plus metadata.
func (r *Runner) features(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := frame.ReadCSVFile(filepath.Join(r.cfg.Data.RawDir, name+".csv"))
	if err != nil {
		return fmt.Errorf("read raw %s: %w", name, err)
	}
	res, err := features.Process(raw, name, features.Options{
		ImputeStrategy: r.cfg.Train.ImputeStrategy,
		ScaleMethod:    r.cfg.Train.ScaleMethod,
		SelectK:        r.cfg.Train.SelectK,
	})
	if err != nil {
		return fmt.Errorf("process %s: %w", name, err)
	}
	return features.SaveProcessed(r.cfg.Data.ProcessedDir, name, res)
}

// train runs the model bake-off over the processed dataset.
func (r *Runner) train(ctx context.Context, name string) error {
	ds, err := trainer.Load(r.cfg.Data, r.cfg.Train, name)
	if err != nil {
		return err
	}
	_, err = trainer.New(r.cfg.Train, r.store).Train(ctx, ds, r.cfg.Data)
	return err
}

// evaluate scores the stored models on the holdout split.
func (r *Runner) evaluate(ctx context.Context, name string) error {
	ds, err := trainer.Load(r.cfg.Data, r.cfg.Train, name)
	if err != nil {
		return err
	}
	_, err = evaluator.New(r.cfg.Train, r.store).Evaluate(ctx, ds, r.cfg.Data)
	return err
}

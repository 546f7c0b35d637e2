// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package main is the entry point for the quarry command.
//
// Quarry bundles an end-to-end tabular ML pipeline (dataset acquisition,
// feature engineering, a multi-model training bake-off and holdout
// evaluation), an image-feature classifier served over a REST API, and a
// backend analyzer that probes a metrics endpoint and forecasts load.
//
// # Subcommands
//
//	quarry run        Run prep, features, train and evaluate for every dataset
//	quarry prep       Acquire raw datasets and snapshot them into the warehouse
//	quarry features   Engineer, impute, scale and select features
//	quarry train      Train the model suite on processed data
//	quarry evaluate   Score stored models on the holdout split and render plots
//	quarry report     Print a summary of models, results, plots and run history
//	quarry analyze    Probe the metrics backend and write ml_analysis_results.json
//	quarry serve      Serve the image classifier REST API under a supervisor tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables prefixed QUARRY_, an optional
// config.yaml, then built-in defaults. See internal/config for the full
// key list.
//
// # Signal Handling
//
// quarry serve handles graceful shutdown on SIGINT and SIGTERM: the HTTP
// server stops accepting connections and in-flight requests get the
// configured shutdown timeout to complete.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quarrydev/quarry/internal/analyzer"
	"github.com/quarrydev/quarry/internal/api"
	"github.com/quarrydev/quarry/internal/artifacts"
	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/pipeline"
	"github.com/quarrydev/quarry/internal/report"
	"github.com/quarrydev/quarry/internal/supervisor"
	"github.com/quarrydev/quarry/internal/vision"
	"github.com/quarrydev/quarry/internal/warehouse"
)

// syntheticRowsPerClass sizes the serving classifier's training corpus.
const syntheticRowsPerClass = 200

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := cfg.EnsureDirs(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create data directories")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exit int
	switch cmd {
	case "run":
		exit = runPipeline(ctx, cfg, "")
	case "prep", "features", "train", "evaluate":
		exit = runPipeline(ctx, cfg, cmd)
	case "report":
		exit = runReport(ctx, cfg)
	case "analyze":
		exit = runAnalyze(ctx, cfg)
	case "serve":
		exit = runServe(ctx, cancel, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		exit = 2
	}
	os.Exit(exit)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: quarry <command>

Commands:
  run        run the full pipeline (prep, features, train, evaluate)
  prep       acquire raw datasets
  features   engineer and scale features
  train      train the model suite
  evaluate   score stored models on the holdout split
  report     summarize models, results and run history
  analyze    probe the metrics backend and write analysis results
  serve      serve the image classifier REST API`)
}

// openStores opens the artifact store and warehouse shared by the
// pipeline commands. Callers must invoke the returned cleanup.
func openStores(cfg *config.Config) (*artifacts.Store, *warehouse.DB, func(), error) {
	var store *artifacts.Store
	var err error
	if cfg.Artifacts.InMemory {
		store, err = artifacts.OpenInMemory()
	} else {
		store, err = artifacts.Open(cfg.Artifacts.Path)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open artifact store: %w", err)
	}

	db, err := warehouse.Open(warehouse.Config{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing artifact store")
		}
		return nil, nil, nil, fmt.Errorf("open warehouse: %w", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing warehouse")
		}
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing artifact store")
		}
	}
	return store, db, cleanup, nil
}

// runPipeline executes either the full pipeline (stage == "") or one
// named stage for every configured dataset. The exit code is zero when
// at least one dataset succeeds, matching the run report.
func runPipeline(ctx context.Context, cfg *config.Config, stage string) int {
	store, db, cleanup, err := openStores(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open stores")
		return 1
	}
	defer cleanup()

	runner := pipeline.NewRunner(cfg, store, db)
	ctx = withSignals(ctx)

	var rep *models.PipelineReport
	if stage == "" {
		rep, err = runner.Run(ctx)
	} else {
		rep, err = runner.RunStage(ctx, stage)
	}
	if err != nil {
		logging.Error().Err(err).Msg("Pipeline run failed")
		return 1
	}
	if !rep.AnySucceeds {
		return 1
	}
	return 0
}

func runReport(ctx context.Context, cfg *config.Config) int {
	db, err := warehouse.Open(warehouse.Config{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open warehouse")
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing warehouse")
		}
	}()

	gen := report.NewGenerator(cfg.Data, db)
	if err := gen.Write(ctx, os.Stdout); err != nil {
		logging.Error().Err(err).Msg("Failed to generate report")
		return 1
	}
	return 0
}

func runAnalyze(ctx context.Context, cfg *config.Config) int {
	a := analyzer.New(cfg.Backend, cfg.Train.Seed)
	rep, err := a.Run(withSignals(ctx), cfg.Data.ResultsDir)
	if err != nil {
		logging.Error().Err(err).Msg("Analysis failed")
		return 1
	}
	if !rep.Success {
		logging.Warn().Str("error", rep.Error).Msg("Backend probe failed; build simulation written")
		return 1
	}
	return 0
}

// runServe trains the serving classifier, then runs the HTTP server
// under the supervisor tree until a signal or fatal error.
func runServe(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) int {
	classifier := vision.NewClassifier(cfg.Train.NumEstimators, cfg.Train.Seed)
	if err := classifier.TrainSynthetic(syntheticRowsPerClass, cfg.Train.Seed); err != nil {
		logging.Error().Err(err).Msg("Failed to train serving classifier")
		return 1
	}
	logging.Info().
		Int("trees", cfg.Train.NumEstimators).
		Strs("labels", vision.Labels).
		Msg("Serving classifier trained")

	server := api.NewServer(cfg.Server, vision.NewPredictor(classifier))
	httpSrv := &http.Server{
		Addr:              server.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(httpSrv, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", httpSrv.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			for range errCh { // drain so the supervisor goroutine exits
			}
			return 1
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Server stopped gracefully")
	return 0
}

// withSignals cancels the returned context on SIGINT or SIGTERM so
// long-running stages stop cleanly. The stop function is intentionally
// dropped; the context lives for the rest of the process.
func withSignals(ctx context.Context) context.Context {
	sigCtx, _ := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return sigCtx
}

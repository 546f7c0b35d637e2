// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package metrics instruments Quarry with Prometheus metrics covering the
// pipeline stages, the artifact store, the DuckDB warehouse and the serving
// API. Metrics are exposed on GET /metrics by the serving API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage", "dataset"}, // stage: prep, features, train, evaluate
	)

	DatasetsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_datasets_processed_total",
			Help: "Total number of dataset stage executions by outcome",
		},
		[]string{"stage", "dataset", "outcome"}, // outcome: success, failure
	)

	RowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_rows_fetched_total",
			Help: "Total number of raw dataset rows acquired",
		},
		[]string{"dataset", "source"}, // source: remote, synthetic
	)

	ModelsTrained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_models_trained_total",
			Help: "Total number of models trained",
		},
		[]string{"dataset", "model"},
	)

	// Warehouse Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Artifact Store Metrics
	ArtifactOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_artifact_operations_total",
			Help: "Total number of artifact store operations",
		},
		[]string{"operation", "outcome"}, // operation: put, get, list, delete
	)

	ArtifactBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_artifact_bytes",
			Help:    "Size of stored model artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB .. 16MiB
		},
		[]string{"dataset"},
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	PredictionsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_predictions_served_total",
			Help: "Total number of predictions served by the API",
		},
		[]string{"model"},
	)

	// Analyzer Metrics
	BackendProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_backend_probes_total",
			Help: "Total number of analyzer probes against the backend",
		},
		[]string{"outcome"}, // outcome: success, failure, open_circuit
	)
)

// RecordStage records the duration and outcome of one pipeline stage run
// for one dataset.
func RecordStage(stage, dataset string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage, dataset).Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	DatasetsProcessed.WithLabelValues(stage, dataset, outcome).Inc()
}

// RecordFetch records rows acquired for a dataset from the given source.
func RecordFetch(dataset, source string, rows int) {
	RowsFetched.WithLabelValues(dataset, source).Add(float64(rows))
}

// RecordDBQuery records a warehouse query duration and any error.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordArtifactOp records an artifact store operation outcome.
func RecordArtifactOp(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ArtifactOps.WithLabelValues(operation, outcome).Inc()
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}

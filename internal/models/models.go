// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package models defines the shared data structures exchanged between
// pipeline stages and persisted as JSON result files.
package models

import "time"

// DatasetInfo describes one built-in dataset.
type DatasetInfo struct {
	Name        string `json:"name"`
	ProblemType string `json:"problem_type"` // regression or classification
	Target      string `json:"target"`
	SourceURL   string `json:"source_url,omitempty"`
}

// RawMetadata is written next to each raw CSV after acquisition.
type RawMetadata struct {
	Dataset    string    `json:"dataset"`
	Rows       int       `json:"rows"`
	Columns    int       `json:"columns"`
	Source     string    `json:"source"` // remote or synthetic
	FetchedAt  time.Time `json:"fetched_at"`
	TargetName string    `json:"target_name"`
}

// RawFileInfo describes one CSV found in the raw data directory.
type RawFileInfo struct {
	File    string  `json:"file"`
	Rows    int     `json:"rows"`
	Columns int     `json:"columns"`
	SizeMB  float64 `json:"size_mb"`
	Nulls   int     `json:"null_count"`
}

// RawSummary is the aggregate metadata.json written after acquisition.
type RawSummary struct {
	Files       []RawFileInfo `json:"files"`
	TotalRows   int           `json:"total_rows"`
	TotalSizeMB float64       `json:"total_size_mb"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ProcessedMetadata is written next to each processed CSV and records what
// the feature pipeline did to the raw data.
type ProcessedMetadata struct {
	Dataset          string    `json:"dataset"`
	ProblemType      string    `json:"problem_type"`
	Rows             int       `json:"rows"`
	Features         []string  `json:"features"`
	Target           string    `json:"target"`
	TargetLabels     []string  `json:"target_labels,omitempty"`
	ImputedColumns   []string  `json:"imputed_columns,omitempty"`
	EncodedColumns   []string  `json:"encoded_columns,omitempty"`
	EngineeredCols   []string  `json:"engineered_columns,omitempty"`
	SelectedFeatures []string  `json:"selected_features,omitempty"`
	ScaleMethod      string    `json:"scale_method"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// ModelResult captures one trained model's holdout score during training.
type ModelResult struct {
	Model    string  `json:"model"`
	RMSE     float64 `json:"rmse,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Duration float64 `json:"duration_seconds"`
	Error    string  `json:"error,omitempty"`
}

// TrainingSummary is written to training_results_{dataset}.json.
type TrainingSummary struct {
	Dataset     string        `json:"dataset"`
	ProblemType string        `json:"problem_type"`
	TrainRows   int           `json:"train_rows"`
	TestRows    int           `json:"test_rows"`
	Features    int           `json:"features"`
	Results     []ModelResult `json:"results"`
	BestModel   string        `json:"best_model"`
	TrainedAt   time.Time     `json:"trained_at"`
}

// EvalMetrics holds the metric set for one model. Regression and
// classification fill disjoint subsets; omitempty keeps the JSON clean.
type EvalMetrics struct {
	MSE       float64 `json:"mse,omitempty"`
	RMSE      float64 `json:"rmse,omitempty"`
	MAE       float64 `json:"mae,omitempty"`
	R2        float64 `json:"r2,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Precision float64 `json:"precision,omitempty"`
	Recall    float64 `json:"recall,omitempty"`
	F1        float64 `json:"f1,omitempty"`
	Confusion [][]int `json:"confusion_matrix,omitempty"`
}

// EvaluationSummary is written to evaluation_results_{dataset}.json.
type EvaluationSummary struct {
	Dataset     string                 `json:"dataset"`
	ProblemType string                 `json:"problem_type"`
	Models      map[string]EvalMetrics `json:"models"`
	BestModel   string                 `json:"best_model"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
}

// ResponseAnalysis scores one backend /metrics response.
type ResponseAnalysis struct {
	StatusCode   int     `json:"status_code"`
	ResponseTime float64 `json:"response_time_seconds"`
	DataQuality  float64 `json:"data_quality"`
	Completeness float64 `json:"completeness"`
	Freshness    float64 `json:"freshness_score"`
}

// Predictions holds the analyzer's forward-looking estimates.
type Predictions struct {
	NextRequestTime time.Time `json:"next_request_time"`
	LoadForecast    float64   `json:"load_forecast"`
	HealthScore     float64   `json:"health_confidence"`
}

// MLAnalysis is the analyzer output for one backend probe.
type MLAnalysis struct {
	Timestamp       time.Time        `json:"timestamp"`
	Backend         string           `json:"backend"`
	Analysis        ResponseAnalysis `json:"response_analysis"`
	Predictions     Predictions      `json:"predictions"`
	Recommendations []string         `json:"recommendations"`
}

// LanguageBuild is one simulated build measurement.
type LanguageBuild struct {
	Language        string  `json:"language"`
	Duration        float64 `json:"build_time_seconds"`
	ComplexityScore float64 `json:"complexity_score"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// BuildPerformance aggregates the simulated cross-language build runs.
// Parallel time is the slowest build since builds run concurrently.
type BuildPerformance struct {
	Builds          []LanguageBuild `json:"builds"`
	Fastest         string          `json:"fastest"`
	Slowest         string          `json:"slowest"`
	TotalSequential float64         `json:"total_sequential_time"`
	ParallelTime    float64         `json:"parallel_execution_time"`
	Efficiency      float64         `json:"parallel_efficiency"`
	TimeSaved       float64         `json:"time_saved_seconds"`
}

// AnalysisReport is written to ml_analysis_results.json.
type AnalysisReport struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	Backend          string           `json:"backend"`
	Success          bool             `json:"success"`
	Error            string           `json:"error,omitempty"`
	Suggestion       string           `json:"suggestion,omitempty"`
	Analyses         []MLAnalysis     `json:"analyses,omitempty"`
	BuildPerformance BuildPerformance `json:"build_performance"`
}

// StageOutcome records one stage execution for the final pipeline report.
type StageOutcome struct {
	Stage    string  `json:"stage"`
	Dataset  string  `json:"dataset"`
	Success  bool    `json:"success"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// PipelineReport summarizes a full pipeline run.
type PipelineReport struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Outcomes    []StageOutcome `json:"outcomes"`
	Succeeded   []string       `json:"succeeded_datasets"`
	Failed      []string       `json:"failed_datasets"`
	AnySucceeds bool           `json:"any_succeeded"`
}

// Prediction is one scored label returned by the vision classifier.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/models"
)

func backendConfig(url string) config.BackendConfig {
	return config.BackendConfig{URL: url, Timeout: 2 * time.Second}
}

func metricsPayload(ts time.Time) string {
	return fmt.Sprintf(`{
		"language": "rust",
		"timestamp": %d,
		"data": {"a":1,"b":2,"c":3,"d":4,"e":5}
	}`, ts.Unix())
}

func TestRunWritesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, metricsPayload(time.Now()))
	}))
	defer srv.Close()

	resultsDir := t.TempDir()
	a := New(backendConfig(srv.URL), 42)
	report, err := a.Run(context.Background(), resultsDir)
	require.NoError(t, err)

	assert.True(t, report.Success)
	require.Len(t, report.Analyses, 1)

	analysis := report.Analyses[0].Analysis
	assert.Equal(t, http.StatusOK, analysis.StatusCode)
	assert.GreaterOrEqual(t, analysis.DataQuality, 0.85)
	assert.LessOrEqual(t, analysis.DataQuality, 0.98)
	assert.InDelta(t, 0.5, analysis.Completeness, 1e-9) // 5 of 10 expected fields
	assert.Greater(t, analysis.Freshness, 0.9)

	preds := report.Analyses[0].Predictions
	assert.GreaterOrEqual(t, preds.LoadForecast, 0.3)
	assert.LessOrEqual(t, preds.LoadForecast, 0.8)
	assert.GreaterOrEqual(t, preds.HealthScore, 0.9)

	var onDisk models.AnalysisReport
	require.NoError(t, dataset.ReadJSON(filepath.Join(resultsDir, "ml_analysis_results.json"), &onDisk))
	assert.True(t, onDisk.Success)
	assert.Len(t, onDisk.BuildPerformance.Builds, 4)
}

func TestRunRecordsProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	resultsDir := t.TempDir()
	a := New(backendConfig(srv.URL), 42)
	report, err := a.Run(context.Background(), resultsDir)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)
	assert.Contains(t, report.Suggestion, srv.URL)
	assert.Empty(t, report.Analyses)
	// The build comparison still lands even when the backend is down.
	assert.Len(t, report.BuildPerformance.Builds, 4)
	assert.FileExists(t, filepath.Join(resultsDir, "ml_analysis_results.json"))
}

func TestResponseAnalysisWireKeys(t *testing.T) {
	raw, err := json.Marshal(models.ResponseAnalysis{Freshness: 0.5})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"freshness_score":0.5`)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(backendConfig(srv.URL))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Probe(ctx)
		require.Error(t, err)
	}
	require.Equal(t, 3, hits)

	// Breaker is now open: further probes fail fast without a request.
	_, err := c.Probe(ctx)
	require.Error(t, err)
	assert.Equal(t, 3, hits)
}

func TestSimulateBuilds(t *testing.T) {
	a := New(backendConfig("http://localhost:1"), 42)
	perf := a.SimulateBuilds()

	require.Len(t, perf.Builds, 4)
	var total float64
	for _, b := range perf.Builds {
		assert.GreaterOrEqual(t, b.Duration, 0.1, b.Language)
		assert.GreaterOrEqual(t, b.ComplexityScore, 0.3)
		assert.LessOrEqual(t, b.CacheHitRate, 0.95)
		total += b.Duration
	}
	assert.InDelta(t, total, perf.TotalSequential, 1e-9)
	assert.InDelta(t, total-perf.ParallelTime, perf.TimeSaved, 1e-9)
	assert.Greater(t, perf.Efficiency, 0.0)
	assert.NotEqual(t, perf.Fastest, perf.Slowest)
}

func TestSimulateBuildsDeterministic(t *testing.T) {
	first := New(backendConfig("http://localhost:1"), 7).SimulateBuilds()
	second := New(backendConfig("http://localhost:1"), 7).SimulateBuilds()
	assert.Equal(t, first, second)
}

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 0.0, completeness([]byte("not json")))
	assert.InDelta(t, 0.2, completeness([]byte(`{"a":1,"b":2}`)), 1e-9)
	// A data envelope is scored by its contents.
	assert.InDelta(t, 0.1, completeness([]byte(`{"data":{"x":1},"other":2}`)), 1e-9)

	big := []byte(`{"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7,"h":8,"i":9,"j":10,"k":11}`)
	assert.Equal(t, 1.0, completeness(big))
}

func TestFreshness(t *testing.T) {
	now := time.Now()
	assert.Greater(t, freshness(nil, now), 0.99)

	stale := fmt.Sprintf(`{"timestamp": %d}`, now.Add(-2*time.Hour).Unix())
	assert.Equal(t, 0.0, freshness([]byte(stale), now))

	halfOld := fmt.Sprintf(`{"timestamp": %d}`, now.Add(-30*time.Minute).Unix())
	assert.InDelta(t, 0.5, freshness([]byte(halfOld), now), 0.01)
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package analyzer probes a backend metrics endpoint, scores the response
// with ML-style heuristics and simulates cross-language build performance.
// The combined report is written to ml_analysis_results.json.
package analyzer

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/models"
)

// expectedFields is the field count a complete backend payload carries;
// completeness is scored against it.
const expectedFields = 10

// buildLanguages and the per-language timing distributions for the
// simulated build comparison.
var (
	buildLanguages = []string{"Rust", "Go", "Node.js", "Python"}
	buildMeans     = []float64{3.2, 1.8, 4.5, 2.1}
	buildStds      = []float64{0.5, 0.3, 0.8, 0.4}
)

// Analyzer scores backend responses and forecasts request load.
type Analyzer struct {
	client  *Client
	backend string
	rng     *rand.Rand
	log     zerolog.Logger
}

// New returns an Analyzer probing the configured backend. The seed fixes
// the simulated scores so repeated runs are reproducible.
func New(cfg config.BackendConfig, seed int64) *Analyzer {
	return &Analyzer{
		client:  NewClient(cfg),
		backend: cfg.URL,
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // simulation, not crypto
		log:     logging.With().Str("component", "analyzer").Logger(),
	}
}

// Run probes the backend once, analyzes the response, simulates the build
// comparison and writes ml_analysis_results.json into resultsDir. A probe
// failure is recorded in the report rather than aborting it, so the build
// analysis still lands on disk.
func (a *Analyzer) Run(ctx context.Context, resultsDir string) (*models.AnalysisReport, error) {
	report := &models.AnalysisReport{
		GeneratedAt:      time.Now().UTC(),
		Backend:          a.backend,
		BuildPerformance: a.SimulateBuilds(),
	}

	probe, err := a.client.Probe(ctx)
	if err != nil {
		a.log.Warn().Err(err).Str("backend", a.backend).Msg("backend probe failed")
		report.Error = err.Error()
		report.Suggestion = fmt.Sprintf("Start the backend at %s before rerunning the analysis", a.backend)
	} else {
		report.Success = true
		report.Analyses = append(report.Analyses, a.Analyze(probe))
	}

	path := filepath.Join(resultsDir, "ml_analysis_results.json")
	if err := dataset.WriteJSON(path, report); err != nil {
		return nil, err
	}
	a.log.Info().Bool("success", report.Success).Str("path", path).Msg("analysis report written")
	return report, nil
}

// Analyze scores one probe response and derives load predictions plus
// recommendations from the scores.
func (a *Analyzer) Analyze(probe *ProbeResult) models.MLAnalysis {
	analysis := models.ResponseAnalysis{
		StatusCode:   probe.StatusCode,
		ResponseTime: probe.Elapsed.Seconds(),
		DataQuality:  a.uniform(0.85, 0.98),
		Completeness: completeness(probe.Body),
		Freshness:    freshness(probe.Body, probe.FetchedAt),
	}
	predictions := models.Predictions{
		NextRequestTime: probe.FetchedAt.Add(time.Duration(a.rng.ExpFloat64() * 30 * float64(time.Second))),
		LoadForecast:    a.uniform(0.3, 0.8),
		HealthScore:     a.uniform(0.9, 0.99),
	}

	var recs []string
	if analysis.DataQuality > 0.9 {
		recs = append(recs, "High data quality - system performing well")
	}
	if analysis.Freshness > 0.8 {
		recs = append(recs, "Data is fresh - real-time processing possible")
	}
	if predictions.HealthScore > 0.95 {
		recs = append(recs, "System health excellent - scale up recommended")
	}

	return models.MLAnalysis{
		Timestamp:       probe.FetchedAt.UTC(),
		Backend:         a.backend,
		Analysis:        analysis,
		Predictions:     predictions,
		Recommendations: recs,
	}
}

// SimulateBuilds draws one build time per language from its distribution
// and aggregates sequential versus parallel execution.
func (a *Analyzer) SimulateBuilds() models.BuildPerformance {
	perf := models.BuildPerformance{
		Builds: make([]models.LanguageBuild, len(buildLanguages)),
	}
	var total float64
	fastestIdx, slowestIdx := 0, 0
	for i, lang := range buildLanguages {
		d := buildMeans[i] + a.rng.NormFloat64()*buildStds[i]
		if d < 0.1 {
			d = 0.1
		}
		perf.Builds[i] = models.LanguageBuild{
			Language:        lang,
			Duration:        d,
			ComplexityScore: a.uniform(0.3, 0.9),
			CacheHitRate:    a.uniform(0.6, 0.95),
		}
		total += d
		if d < perf.Builds[fastestIdx].Duration {
			fastestIdx = i
		}
		if d > perf.Builds[slowestIdx].Duration {
			slowestIdx = i
		}
	}
	perf.Fastest = perf.Builds[fastestIdx].Language
	perf.Slowest = perf.Builds[slowestIdx].Language
	perf.TotalSequential = total
	perf.ParallelTime = perf.Builds[slowestIdx].Duration
	perf.Efficiency = 1 - perf.ParallelTime/total
	perf.TimeSaved = total - perf.ParallelTime
	return perf
}

func (a *Analyzer) uniform(lo, hi float64) float64 {
	return lo + a.rng.Float64()*(hi-lo)
}

// completeness counts the top-level fields of the payload against the
// expected field count. A non-JSON body scores zero.
func completeness(body []byte) float64 {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	fields := payload
	// Backends that wrap their metrics in a data envelope are scored on
	// the envelope contents.
	if raw, ok := payload["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil {
			fields = inner
		}
	}
	score := float64(len(fields)) / expectedFields
	if score > 1 {
		score = 1
	}
	return score
}

// freshness decays linearly from 1 to 0 over an hour, measured from the
// payload's own timestamp when it carries one.
func freshness(body []byte, fetchedAt time.Time) float64 {
	at := fetchedAt
	var payload struct {
		Timestamp float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Timestamp > 0 {
		sec := int64(payload.Timestamp)
		nsec := int64((payload.Timestamp - float64(sec)) * float64(time.Second))
		at = time.Unix(sec, nsec)
	}
	age := time.Since(at).Seconds()
	score := 1 - age/3600
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package api

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	json "github.com/goccy/go-json"

	"github.com/quarrydev/quarry/internal/metrics"
	"github.com/quarrydev/quarry/internal/validation"
	"github.com/quarrydev/quarry/internal/vision"
)

// maxPredictBody bounds the request body for POST /predict.
const maxPredictBody = 1 << 16 // 64 KiB

// HealthResponse is the payload of GET /api/v1/health.
type HealthResponse struct {
	Status string   `json:"status"`
	Uptime string   `json:"uptime"`
	Model  string   `json:"model"`
	Labels []string `json:"labels"`
}

// MetricsResponse is the payload of GET /api/v1/metrics.
type MetricsResponse struct {
	Uptime        string  `json:"uptime"`
	RequestsTotal int64   `json:"requests_total"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
	Goroutines    int     `json:"goroutines"`
	CPUCores      int     `json:"cpu_cores"`
}

// PredictRequest is the body of POST /api/v1/predict.
type PredictRequest struct {
	Features []float64 `json:"features" validate:"required,min=1"`
	TopK     int       `json:"top_k" validate:"gte=0,lte=10"`
}

// PredictionsResponse is the payload of GET /api/v1/predictions.
type PredictionsResponse struct {
	Predictions []servedPrediction `json:"predictions"`
	Count       int                `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, HealthResponse{
		Status: "healthy",
		Uptime: time.Since(s.startedAt).String(),
		Model:  "random_forest",
		Labels: s.predictor.Labels(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	respondJSON(w, r, http.StatusOK, MetricsResponse{
		Uptime:        time.Since(s.startedAt).String(),
		RequestsTotal: s.requests.Load(),
		MemoryUsageMB: float64(m.Alloc) / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
		CPUCores:      runtime.NumCPU(),
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	entries := s.recent.list()
	respondJSON(w, r, http.StatusOK, PredictionsResponse{
		Predictions: entries,
		Count:       len(entries),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	body := http.MaxBytesReader(w, r.Body, maxPredictBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if len(req.Features) != s.predictor.FeatureDim() {
		respondError(w, r, http.StatusBadRequest, "BAD_FEATURE_DIM",
			fmt.Sprintf("features must have exactly %d values", s.predictor.FeatureDim()), nil)
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = vision.DefaultTopK
	}
	preds, err := s.predictor.GetPredictions(req.Features, topK)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "PREDICT_FAILED", "prediction failed", err)
		return
	}

	s.recent.add(preds)
	metrics.PredictionsServed.WithLabelValues("random_forest").Inc()
	respondJSON(w, r, http.StatusOK, preds)
}

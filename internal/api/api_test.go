// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/vision"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	c := vision.NewClassifier(20, 42)
	require.NoError(t, c.TrainSynthetic(40, 42))
	return NewServer(config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Timeout:         5 * time.Second,
		ShutdownTimeout: time.Second,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}, vision.NewPredictor(c))
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var envelope APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, &envelope
}

func featureVector(v float64) []float64 {
	features := make([]float64, vision.FeatureDim)
	for i := range features {
		features[i] = v
	}
	return features
}

func TestHealthEndpoint(t *testing.T) {
	h := testServer(t).Routes()
	rec, envelope := doRequest(t, h, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", envelope.Status)
	assert.NotEmpty(t, envelope.Metadata.RequestID)

	var health HealthResponse
	remarshal(t, envelope.Data, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, vision.Labels, health.Labels)
}

func TestMetricsEndpoint(t *testing.T) {
	h := testServer(t).Routes()
	rec, envelope := doRequest(t, h, http.MethodGet, "/api/v1/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var m MetricsResponse
	remarshal(t, envelope.Data, &m)
	assert.GreaterOrEqual(t, m.RequestsTotal, int64(1))
	assert.Greater(t, m.Goroutines, 0)
	assert.Greater(t, m.CPUCores, 0)
	assert.Greater(t, m.MemoryUsageMB, 0.0)
}

func TestPredictEndpoint(t *testing.T) {
	h := testServer(t).Routes()

	body, err := json.Marshal(PredictRequest{Features: featureVector(0.5), TopK: 2})
	require.NoError(t, err)
	rec, envelope := doRequest(t, h, http.MethodPost, "/api/v1/predict", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var preds []models.Prediction
	remarshal(t, envelope.Data, &preds)
	require.Len(t, preds, 2)
	assert.GreaterOrEqual(t, preds[0].Confidence, preds[1].Confidence)
}

func TestPredictValidation(t *testing.T) {
	h := testServer(t).Routes()

	// Invalid JSON.
	rec, envelope := doRequest(t, h, http.MethodPost, "/api/v1/predict", []byte("{nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_BODY", envelope.Error.Code)

	// Missing features.
	rec, envelope = doRequest(t, h, http.MethodPost, "/api/v1/predict", []byte(`{"top_k":2}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)

	// Wrong dimension.
	body, err := json.Marshal(PredictRequest{Features: []float64{1, 2}})
	require.NoError(t, err)
	rec, envelope = doRequest(t, h, http.MethodPost, "/api/v1/predict", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "BAD_FEATURE_DIM", envelope.Error.Code)
}

func TestPredictionsHistory(t *testing.T) {
	h := testServer(t).Routes()

	// Empty before any predictions.
	rec, envelope := doRequest(t, h, http.MethodGet, "/api/v1/predictions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var history PredictionsResponse
	remarshal(t, envelope.Data, &history)
	assert.Equal(t, 0, history.Count)

	body, err := json.Marshal(PredictRequest{Features: featureVector(1.0)})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/predict", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, envelope = doRequest(t, h, http.MethodGet, "/api/v1/predictions", nil)
	remarshal(t, envelope.Data, &history)
	assert.Equal(t, 3, history.Count)
	require.Len(t, history.Predictions, 3)
	assert.NotEmpty(t, history.Predictions[0].Predictions)
}

func TestRecentPredictionsBounded(t *testing.T) {
	rp := newRecentPredictions(2)
	for i := 0; i < 5; i++ {
		rp.add([]models.Prediction{{Label: "cats", Confidence: float64(i)}})
	}
	entries := rp.list()
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, 4.0, entries[0].Predictions[0].Confidence)
}

func TestPrometheusEndpoint(t *testing.T) {
	h := testServer(t).Routes()

	// Generate at least one labeled observation so the scrape has output.
	doRequest(t, h, http.MethodGet, "/api/v1/health", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quarry_")
}

// remarshal converts the untyped envelope data back into its typed form.
func remarshal(t *testing.T, data interface{}, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

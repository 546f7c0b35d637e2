// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package api serves model predictions over HTTP. All JSON endpoints share
// a request envelope with request ID correlation, and Prometheus metrics
// are exposed on /metrics.
package api

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/vision"
)

// recentLimit bounds how many served predictions GET /predictions returns.
const recentLimit = 50

// Server is the prediction API.
type Server struct {
	cfg       config.ServerConfig
	predictor *vision.Predictor
	recent    *recentPredictions
	requests  atomic.Int64
	startedAt time.Time
	log       zerolog.Logger
}

// NewServer builds a Server around a trained predictor.
func NewServer(cfg config.ServerConfig, predictor *vision.Predictor) *Server {
	return &Server{
		cfg:       cfg,
		predictor: predictor,
		recent:    newRecentPredictions(recentLimit),
		startedAt: time.Now(),
		log:       logging.With().Str("component", "api").Logger(),
	}
}

// Addr returns the host:port the server should bind.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Routes assembles the router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(s.countRequests)
	r.Use(s.observeRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/predictions", s.handlePredictions)
		r.Post("/predict", s.handlePredict)
	})

	// Prometheus scrape endpoint, outside the envelope and rate limit.
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// countRequests feeds the requests_total figure in GET /api/v1/metrics.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// observeRequests logs each request and records per-route Prometheus
// metrics using the chi route pattern so path parameters do not explode
// label cardinality.
func (s *Server) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, pattern, ww.Status(), elapsed)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request served")
	})
}

// servedPrediction is one entry in the recent predictions ring.
type servedPrediction struct {
	Predictions []models.Prediction `json:"predictions"`
	ServedAt    time.Time           `json:"served_at"`
}

// recentPredictions is a bounded, newest-first history of served requests.
type recentPredictions struct {
	mu      sync.Mutex
	entries []servedPrediction
	limit   int
}

func newRecentPredictions(limit int) *recentPredictions {
	return &recentPredictions{limit: limit}
}

func (rp *recentPredictions) add(preds []models.Prediction) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.entries = append([]servedPrediction{{Predictions: preds, ServedAt: time.Now().UTC()}}, rp.entries...)
	if len(rp.entries) > rp.limit {
		rp.entries = rp.entries[:rp.limit]
	}
}

func (rp *recentPredictions) list() []servedPrediction {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	out := make([]servedPrediction, len(rp.entries))
	copy(out, rp.entries)
	return out
}

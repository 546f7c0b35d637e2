// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
)

// maxProbeBody caps how much of the backend response is buffered.
const maxProbeBody = 1 << 20 // 1 MiB

// ProbeResult is one successful fetch of the backend metrics endpoint.
type ProbeResult struct {
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Elapsed    time.Duration
}

// Client probes the backend metrics endpoint behind a circuit breaker so a
// dead backend stops costing a full timeout per probe.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*ProbeResult]
}

// NewClient returns a Client for the configured backend. The breaker opens
// after three consecutive failures and retries after 30 seconds.
func NewClient(cfg config.BackendConfig) *Client {
	cb := gobreaker.NewCircuitBreaker[*ProbeResult](gobreaker.Settings{
		Name:        "backend-metrics",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
	}
}

// Probe fetches {backend}/metrics once. It returns gobreaker.ErrOpenState
// without touching the network while the breaker is open.
func (c *Client) Probe(ctx context.Context) (*ProbeResult, error) {
	result, err := c.cb.Execute(func() (*ProbeResult, error) {
		return c.fetch(ctx)
	})
	switch {
	case err == nil:
		metrics.BackendProbes.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BackendProbes.WithLabelValues("open_circuit").Inc()
	default:
		metrics.BackendProbes.WithLabelValues("failure").Inc()
	}
	return result, err
}

func (c *Client) fetch(ctx context.Context) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return nil, fmt.Errorf("read probe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return &ProbeResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		FetchedAt:  start,
		Elapsed:    time.Since(start),
	}, nil
}

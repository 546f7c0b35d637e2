// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
)

// Source labels recorded in metadata and metrics.
const (
	SourceRemote    = "remote"
	SourceSynthetic = "synthetic"
)

// Fetcher acquires raw datasets, preferring the remote source and falling
// back to local synthesis when the source is unreachable or disabled.
type Fetcher struct {
	client  *http.Client
	offline bool
	seed    int64
}

// NewFetcher builds a fetcher. When offline is true no network calls are
// made and every dataset is synthesized from seed.
func NewFetcher(timeout time.Duration, offline bool, seed int64) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		offline: offline,
		seed:    seed,
	}
}

// Fetch acquires the dataset described by spec. It returns the frame and
// the source it came from (remote or synthetic).
func (f *Fetcher) Fetch(ctx context.Context, spec *Spec) (*frame.Frame, string, error) {
	if f.offline || spec.SourceURL == "" {
		data := spec.Synthesize(f.seed)
		metrics.RecordFetch(spec.Name, SourceSynthetic, data.NumRows())
		return data, SourceSynthetic, nil
	}

	data, err := f.fetchRemote(ctx, spec)
	if err != nil {
		logging.Warn().
			Str("dataset", spec.Name).
			Str("url", spec.SourceURL).
			Err(err).
			Msg("Remote fetch failed, synthesizing dataset")
		data = spec.Synthesize(f.seed)
		metrics.RecordFetch(spec.Name, SourceSynthetic, data.NumRows())
		return data, SourceSynthetic, nil
	}

	metrics.RecordFetch(spec.Name, SourceRemote, data.NumRows())
	return data, SourceRemote, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, spec *Spec) (*frame.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, spec.SourceURL)
	}

	return parseHeaderless(resp.Body, spec)
}

// parseHeaderless reads a UCI-style CSV without a header row and applies
// the spec's column names. Blank trailing lines are skipped and class
// labels are normalized (the iris archive prefixes labels with "Iris-").
func parseHeaderless(r io.Reader, spec *Spec) (*frame.Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	numCols := len(spec.Columns)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != numCols {
			return nil, fmt.Errorf("row has %d fields, expected %d", len(rec), numCols)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("source returned no data rows")
	}

	// Sources with a leading class column are rotated so the target
	// lands last, matching the layout of the other raw datasets.
	order := make([]int, numCols)
	for j := range order {
		order[j] = j
	}
	if spec.TargetFirst {
		order = append(order[1:], 0)
	}

	out := frame.New()
	for _, j := range order {
		name := spec.Columns[j]
		numeric := true
		for _, row := range rows {
			cell := strings.TrimSpace(row[j])
			if cell == "" || cell == "?" {
				continue
			}
			if _, perr := strconv.ParseFloat(cell, 64); perr != nil {
				numeric = false
				break
			}
		}
		if numeric {
			values := make([]float64, len(rows))
			for i, row := range rows {
				cell := strings.TrimSpace(row[j])
				if cell == "" || cell == "?" {
					values[i] = math.NaN()
					continue
				}
				values[i], _ = strconv.ParseFloat(cell, 64)
			}
			if err := out.AddNumeric(name, values); err != nil {
				return nil, err
			}
			continue
		}
		values := make([]string, len(rows))
		for i, row := range rows {
			cell := strings.TrimSpace(row[j])
			cell = strings.TrimPrefix(cell, "Iris-")
			if cell == "?" {
				cell = ""
			}
			values[i] = cell
		}
		if err := out.AddString(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

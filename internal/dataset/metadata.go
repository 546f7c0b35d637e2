// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/models"
)

// SaveRaw writes the acquired frame to {rawDir}/{name}.csv and its
// metadata to {rawDir}/{name}_metadata.json.
func SaveRaw(rawDir string, spec *Spec, data *frame.Frame, source string) error {
	csvPath := filepath.Join(rawDir, spec.Name+".csv")
	if err := data.WriteCSVFile(csvPath); err != nil {
		return fmt.Errorf("failed to write raw CSV: %w", err)
	}

	meta := models.RawMetadata{
		Dataset:    spec.Name,
		Rows:       data.NumRows(),
		Columns:    data.NumCols(),
		Source:     source,
		FetchedAt:  time.Now().UTC(),
		TargetName: spec.Target,
	}
	return WriteJSON(filepath.Join(rawDir, spec.Name+"_metadata.json"), meta)
}

// WriteRawSummary scans {rawDir}/*.csv and writes an aggregate
// {rawDir}/metadata.json with per-file shape, size and null counts.
// Unreadable CSVs are logged and skipped so one bad file never blocks
// the scan.
func WriteRawSummary(rawDir string) error {
	paths, err := filepath.Glob(filepath.Join(rawDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", rawDir, err)
	}
	sort.Strings(paths)

	summary := models.RawSummary{
		Files:       make([]models.RawFileInfo, 0, len(paths)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, path := range paths {
		f, err := frame.ReadCSVFile(path)
		if err != nil {
			logging.Warn().Err(err).Str("file", path).Msg("skipping unreadable raw CSV")
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			logging.Warn().Err(err).Str("file", path).Msg("skipping unstatable raw CSV")
			continue
		}
		nulls := 0
		for _, name := range f.Names() {
			nulls += f.Column(name).NullCount()
		}
		sizeMB := float64(info.Size()) / (1024 * 1024)
		summary.Files = append(summary.Files, models.RawFileInfo{
			File:    filepath.Base(path),
			Rows:    f.NumRows(),
			Columns: f.NumCols(),
			SizeMB:  sizeMB,
			Nulls:   nulls,
		})
		summary.TotalRows += f.NumRows()
		summary.TotalSizeMB += sizeMB
	}
	return WriteJSON(filepath.Join(rawDir, "metadata.json"), summary)
}

// WriteJSON marshals v with indentation and writes it to path.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads path and unmarshals it into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

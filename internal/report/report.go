// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package report consolidates a pipeline run's on-disk outputs into a
// human-readable summary: stored models, result files, per-dataset best
// models, generated plots and warehouse run history.
package report

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarrydev/quarry/internal/config"
	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/models"
	"github.com/quarrydev/quarry/internal/warehouse"
)

// Summary is the aggregated view of one pipeline run's outputs.
type Summary struct {
	ModelFiles  []string              `json:"model_files"`
	ResultFiles []string              `json:"result_files"`
	PlotFiles   []string              `json:"plot_files"`
	Datasets    []DatasetSummary      `json:"datasets"`
	Raw         []RawProfile          `json:"raw_datasets,omitempty"`
	Warehouse   []WarehouseProfile    `json:"warehouse,omitempty"`
	RunHistory  []warehouse.RunRecord `json:"run_history,omitempty"`
}

// DatasetSummary states the winning model for one evaluated dataset.
type DatasetSummary struct {
	Dataset     string  `json:"dataset"`
	ProblemType string  `json:"problem_type"`
	BestModel   string  `json:"best_model"`
	BestScore   float64 `json:"best_score"`
	ScoreMetric string  `json:"score_metric"` // rmse or accuracy
}

// RawProfile holds descriptive statistics for one raw CSV.
type RawProfile struct {
	Dataset string          `json:"dataset"`
	Rows    int             `json:"rows"`
	Columns []frame.Summary `json:"columns"`
}

// WarehouseProfile carries the SQL-side column aggregates for one
// dataset snapshot.
type WarehouseProfile struct {
	Dataset string                 `json:"dataset"`
	Rows    int                    `json:"rows"`
	Columns []warehouse.ColumnStat `json:"columns"`
}

// Generator collects run outputs from disk and the warehouse.
type Generator struct {
	data config.DataConfig
	db   *warehouse.DB // optional
}

// NewGenerator builds a Generator. db may be nil when no warehouse is open.
func NewGenerator(data config.DataConfig, db *warehouse.DB) *Generator {
	return &Generator{data: data, db: db}
}

// Collect gathers all run outputs into a Summary.
func (g *Generator) Collect(ctx context.Context) (*Summary, error) {
	s := &Summary{
		ModelFiles:  listFiles(g.data.ModelsDir, ".model"),
		ResultFiles: listFiles(g.data.ResultsDir, ".json"),
		PlotFiles:   listPlots(g.data.PlotsDir),
	}

	for _, file := range s.ResultFiles {
		if !strings.HasPrefix(file, "evaluation_results_") {
			continue
		}
		var eval models.EvaluationSummary
		if err := dataset.ReadJSON(filepath.Join(g.data.ResultsDir, file), &eval); err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		s.Datasets = append(s.Datasets, datasetSummary(&eval))
	}
	sort.Slice(s.Datasets, func(i, j int) bool { return s.Datasets[i].Dataset < s.Datasets[j].Dataset })

	for _, file := range listFiles(g.data.RawDir, ".csv") {
		name := strings.TrimSuffix(file, ".csv")
		f, err := frame.ReadCSVFile(filepath.Join(g.data.RawDir, file))
		if err != nil {
			// Prep already reports unreadable raw files.
			continue
		}
		s.Raw = append(s.Raw, RawProfile{Dataset: name, Rows: f.NumRows(), Columns: f.Describe()})

		if g.db == nil {
			continue
		}
		rows, err := g.db.RowCount(ctx, name)
		if err != nil {
			// The dataset may not have been snapshotted this run.
			continue
		}
		stats, err := g.db.DatasetSummary(ctx, name, f.NumericNames())
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		s.Warehouse = append(s.Warehouse, WarehouseProfile{Dataset: name, Rows: rows, Columns: stats})
	}

	if g.db != nil {
		history, err := g.db.RunHistory(ctx, 20)
		if err != nil {
			return nil, fmt.Errorf("read run history: %w", err)
		}
		s.RunHistory = history
	}
	return s, nil
}

// Write renders the summary as text to w and saves it as
// pipeline_summary.json alongside the other results.
func (g *Generator) Write(ctx context.Context, w io.Writer) error {
	s, err := g.Collect(ctx)
	if err != nil {
		return err
	}
	if err := dataset.WriteJSON(filepath.Join(g.data.ResultsDir, "pipeline_summary.json"), s); err != nil {
		return fmt.Errorf("write summary json: %w", err)
	}
	return render(w, s)
}

func datasetSummary(eval *models.EvaluationSummary) DatasetSummary {
	ds := DatasetSummary{
		Dataset:     eval.Dataset,
		ProblemType: eval.ProblemType,
		BestModel:   eval.BestModel,
	}
	best, ok := eval.Models[eval.BestModel]
	if !ok {
		return ds
	}
	if eval.ProblemType == "regression" {
		ds.BestScore = best.RMSE
		ds.ScoreMetric = "rmse"
	} else {
		ds.BestScore = best.Accuracy
		ds.ScoreMetric = "accuracy"
	}
	return ds
}

func render(w io.Writer, s *Summary) error {
	var b strings.Builder
	b.WriteString("ML Pipeline Report\n\n")

	b.WriteString("Models:\n")
	writeList(&b, s.ModelFiles)

	b.WriteString("\nResults:\n")
	writeList(&b, s.ResultFiles)

	b.WriteString("\nSummary:\n")
	if len(s.Datasets) == 0 {
		b.WriteString("  (no evaluation results found)\n")
	}
	for _, d := range s.Datasets {
		fmt.Fprintf(&b, "  dataset=%s best_model=%s %s=%.4f\n",
			d.Dataset, d.BestModel, d.ScoreMetric, d.BestScore)
	}

	if len(s.Raw) > 0 {
		b.WriteString("\nRaw datasets:\n")
		for _, p := range s.Raw {
			fmt.Fprintf(&b, "  %s rows=%d numeric_columns=%d\n", p.Dataset, p.Rows, len(p.Columns))
		}
	}

	if len(s.Warehouse) > 0 {
		b.WriteString("\nWarehouse snapshots:\n")
		for _, p := range s.Warehouse {
			fmt.Fprintf(&b, "  %s rows=%d\n", p.Dataset, p.Rows)
			for _, c := range p.Columns {
				fmt.Fprintf(&b, "    %s mean=%.4f min=%.4f max=%.4f nulls=%d\n",
					c.Column, c.Mean, c.Min, c.Max, c.Nulls)
			}
		}
	}

	b.WriteString("\nPlots:\n")
	writeList(&b, s.PlotFiles)

	if len(s.RunHistory) > 0 {
		b.WriteString("\nRecent stages:\n")
		for _, rec := range s.RunHistory {
			status := "ok"
			if !rec.Success {
				status = "failed: " + rec.Error
			}
			fmt.Fprintf(&b, "  %s/%s %dms %s\n", rec.Dataset, rec.Stage, rec.Duration, status)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, item := range items {
		b.WriteString("  - " + item + "\n")
	}
}

// listFiles returns the sorted base names in dir with the given extension.
// A missing directory yields an empty list.
func listFiles(dir, ext string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// listPlots walks the plots tree and returns relative image paths.
func listPlots(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // a missing plots dir is not an error
		}
		switch filepath.Ext(path) {
		case ".png", ".svg", ".pdf", ".jpg", ".jpeg":
			if rel, relErr := filepath.Rel(dir, path); relErr == nil {
				out = append(out, rel)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out
}

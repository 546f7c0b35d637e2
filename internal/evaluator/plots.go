// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package evaluator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/quarrydev/quarry/internal/models"
)

// renderComparisonPlots writes two bar charts per dataset under
// {plotsDir}/{dataset}/: RMSE and R2 for regression, accuracy and F1 for
// classification.
func renderComparisonPlots(summary *models.EvaluationSummary, plotsDir string) error {
	dir := filepath.Join(plotsDir, summary.Dataset)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	names := make([]string, 0, len(summary.Models))
	for name := range summary.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	type chart struct {
		file   string
		title  string
		yLabel string
		value  func(models.EvalMetrics) float64
	}
	var charts []chart
	if summary.ProblemType == "regression" {
		charts = []chart{
			{"rmse_comparison.png", "Model RMSE Comparison", "RMSE", func(m models.EvalMetrics) float64 { return m.RMSE }},
			{"r2_comparison.png", "Model R2 Comparison", "R2", func(m models.EvalMetrics) float64 { return m.R2 }},
		}
	} else {
		charts = []chart{
			{"accuracy_comparison.png", "Model Accuracy Comparison", "Accuracy", func(m models.EvalMetrics) float64 { return m.Accuracy }},
			{"f1_comparison.png", "Model F1 Comparison", "F1 Score", func(m models.EvalMetrics) float64 { return m.F1 }},
		}
	}

	for _, c := range charts {
		values := make(plotter.Values, len(names))
		for i, name := range names {
			values[i] = c.value(summary.Models[name])
		}
		path := filepath.Join(dir, c.file)
		if err := renderBarChart(path, c.title, c.yLabel, names, values); err != nil {
			return fmt.Errorf("render %s: %w", c.file, err)
		}
	}
	return nil
}

func renderBarChart(path, title, yLabel string, names []string, values plotter.Values) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package features implements the preprocessing pipeline that turns raw
// datasets into model-ready feature tables: imputation, categorical
// encoding, domain feature engineering, scaling and univariate selection.
package features

import (
	"math"
	"sort"

	"github.com/quarrydev/quarry/internal/frame"
)

// Impute fills missing values in place: numeric columns take the column
// mean (or median when strategy is "median"), string columns take the most
// frequent value. Returns the names of columns that had missing values.
func Impute(f *frame.Frame, strategy string) []string {
	var imputed []string
	for _, name := range f.Names() {
		c := f.Column(name)
		if c.NullCount() == 0 {
			continue
		}
		imputed = append(imputed, name)
		if c.Kind == frame.Numeric {
			fill := numericFill(c.Floats, strategy)
			for i, v := range c.Floats {
				if math.IsNaN(v) {
					c.Floats[i] = fill
				}
			}
		} else {
			fill := mode(c.Strings)
			for i, v := range c.Strings {
				if v == "" {
					c.Strings[i] = fill
				}
			}
		}
	}
	return imputed
}

func numericFill(values []float64, strategy string) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0
	}
	if strategy == "median" {
		sort.Float64s(present)
		mid := len(present) / 2
		if len(present)%2 == 0 {
			return (present[mid-1] + present[mid]) / 2
		}
		return present[mid]
	}
	sum := 0.0
	for _, v := range present {
		sum += v
	}
	return sum / float64(len(present))
}

func mode(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", -1
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

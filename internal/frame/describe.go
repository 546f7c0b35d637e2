// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package frame

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics for one numeric column, computed
// over non-missing values only.
type Summary struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Nulls  int     `json:"nulls"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Describe computes summary statistics for every numeric column.
func (f *Frame) Describe() []Summary {
	var out []Summary
	for _, name := range f.NumericNames() {
		c := f.Column(name)
		values := make([]float64, 0, len(c.Floats))
		for _, v := range c.Floats {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		s := Summary{Name: name, Count: len(values), Nulls: len(c.Floats) - len(values)}
		if len(values) > 0 {
			sort.Float64s(values)
			s.Mean = stat.Mean(values, nil)
			s.StdDev = stat.StdDev(values, nil)
			s.Min = values[0]
			s.Max = values[len(values)-1]
			s.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
		}
		if math.IsNaN(s.StdDev) { // single observation
			s.StdDev = 0
		}
		out = append(out, s)
	}
	return out
}

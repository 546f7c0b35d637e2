// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/quarrydev/quarry/internal/frame"
)

// Scaler rescales numeric feature columns. Fitted parameters are kept per
// column so the same transform can be replayed on serving inputs.
type Scaler struct {
	Method string // standard, minmax or robust

	// Center and Spread are the per-column shift and divisor: mean/std for
	// standard, min/range for minmax, median/IQR for robust.
	Center map[string]float64
	Spread map[string]float64
}

// NewScaler builds a scaler for the given method.
func NewScaler(method string) (*Scaler, error) {
	switch method {
	case "standard", "minmax", "robust":
		return &Scaler{
			Method: method,
			Center: make(map[string]float64),
			Spread: make(map[string]float64),
		}, nil
	default:
		return nil, fmt.Errorf("unknown scaling method %q", method)
	}
}

// FitTransform fits the scaler on every numeric column except the target
// and rescales those columns in place. Columns with zero spread are set
// to zero.
func (s *Scaler) FitTransform(f *frame.Frame, target string) error {
	for _, name := range featureColumns(f, target) {
		values := f.Column(name).Floats
		center, spread := s.fitColumn(values)
		s.Center[name] = center
		s.Spread[name] = spread
		scaleInPlace(values, center, spread)
	}
	return nil
}

// TransformRow applies the fitted parameters to one row laid out in the
// given column order.
func (s *Scaler) TransformRow(names []string, row []float64) ([]float64, error) {
	if len(names) != len(row) {
		return nil, fmt.Errorf("row has %d values for %d columns", len(row), len(names))
	}
	out := make([]float64, len(row))
	for i, name := range names {
		center, ok := s.Center[name]
		if !ok {
			return nil, fmt.Errorf("scaler was not fitted on column %q", name)
		}
		spread := s.Spread[name]
		if spread == 0 {
			out[i] = 0
			continue
		}
		out[i] = (row[i] - center) / spread
	}
	return out, nil
}

func (s *Scaler) fitColumn(values []float64) (center, spread float64) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0, 0
	}

	switch s.Method {
	case "minmax":
		sort.Float64s(present)
		return present[0], present[len(present)-1] - present[0]
	case "robust":
		sort.Float64s(present)
		return quantileSorted(present, 0.5), quantileSorted(present, 0.75) - quantileSorted(present, 0.25)
	default:
		mean := 0.0
		for _, v := range present {
			mean += v
		}
		mean /= float64(len(present))
		variance := 0.0
		for _, v := range present {
			d := v - mean
			variance += d * d
		}
		return mean, math.Sqrt(variance / float64(len(present)))
	}
}

func scaleInPlace(values []float64, center, spread float64) {
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if spread == 0 {
			values[i] = 0
			continue
		}
		values[i] = (v - center) / spread
	}
}

// quantileSorted linearly interpolates the q-quantile of sorted values.
func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	weight := pos - float64(lo)
	return sorted[lo]*(1-weight) + sorted[hi]*weight
}

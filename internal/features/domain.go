// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"math"

	"github.com/quarrydev/quarry/internal/frame"
)

// Approximate geographic center of California.
const (
	centerLatitude  = 36.7783
	centerLongitude = -119.4179
)

// epsilon guards ratio features against division by zero.
const epsilon = 1e-8

// Engineer adds derived features. Housing data gets domain ratios and a
// distance-from-center feature; classification datasets get pairwise
// interaction terms. Every dataset with more than two numeric feature
// columns also gets per-row aggregate features. The target column never
// participates. Returns the names of the added columns.
func Engineer(f *frame.Frame, datasetName, target string) ([]string, error) {
	var added []string

	if datasetName == "california_housing" {
		names, err := engineerHousing(f)
		if err != nil {
			return nil, err
		}
		added = append(added, names...)
	} else {
		names, err := engineerInteractions(f, target)
		if err != nil {
			return nil, err
		}
		added = append(added, names...)
	}

	names, err := engineerAggregates(f, target)
	if err != nil {
		return nil, err
	}
	return append(added, names...), nil
}

func engineerHousing(f *frame.Frame) ([]string, error) {
	var added []string

	if f.Has("AveRooms") && f.Has("AveBedrms") {
		rooms := f.Column("AveRooms").Floats
		bedrms := f.Column("AveBedrms").Floats
		values := make([]float64, len(rooms))
		for i := range values {
			values[i] = rooms[i] / (bedrms[i] + epsilon)
		}
		if err := f.AddNumeric("RoomsToBedrooms", values); err != nil {
			return nil, err
		}
		added = append(added, "RoomsToBedrooms")
	}

	if f.Has("Population") && f.Has("AveOccup") {
		population := f.Column("Population").Floats
		occup := f.Column("AveOccup").Floats
		values := make([]float64, len(population))
		for i := range values {
			values[i] = population[i] / (occup[i] + epsilon)
		}
		if err := f.AddNumeric("PopulationDensity", values); err != nil {
			return nil, err
		}
		added = append(added, "PopulationDensity")
	}

	if f.Has("Latitude") && f.Has("Longitude") {
		lat := f.Column("Latitude").Floats
		lon := f.Column("Longitude").Floats
		values := make([]float64, len(lat))
		for i := range values {
			dLat := lat[i] - centerLatitude
			dLon := lon[i] - centerLongitude
			values[i] = math.Sqrt(dLat*dLat + dLon*dLon)
		}
		if err := f.AddNumeric("DistanceFromCenter", values); err != nil {
			return nil, err
		}
		added = append(added, "DistanceFromCenter")
	}

	return added, nil
}

// engineerInteractions adds pairwise products of the numeric feature
// columns, named interaction_{a}_{b}.
func engineerInteractions(f *frame.Frame, target string) ([]string, error) {
	numeric := featureColumns(f, target)
	if len(numeric) < 2 {
		return nil, nil
	}

	var added []string
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			a := f.Column(numeric[i]).Floats
			b := f.Column(numeric[j]).Floats
			values := make([]float64, len(a))
			for k := range values {
				values[k] = a[k] * b[k]
			}
			name := "interaction_" + numeric[i] + "_" + numeric[j]
			if err := f.AddNumeric(name, values); err != nil {
				return nil, err
			}
			added = append(added, name)
		}
	}
	return added, nil
}

// engineerAggregates adds per-row sum, mean and sample standard deviation
// over the numeric feature columns when there are more than two of them.
func engineerAggregates(f *frame.Frame, target string) ([]string, error) {
	numeric := featureColumns(f, target)
	if len(numeric) <= 2 {
		return nil, nil
	}

	rows := f.NumRows()
	sums := make([]float64, rows)
	means := make([]float64, rows)
	stds := make([]float64, rows)

	cols := make([][]float64, len(numeric))
	for j, name := range numeric {
		cols[j] = f.Column(name).Floats
	}

	for i := 0; i < rows; i++ {
		sum := 0.0
		for _, col := range cols {
			sum += col[i]
		}
		mean := sum / float64(len(cols))
		variance := 0.0
		for _, col := range cols {
			d := col[i] - mean
			variance += d * d
		}
		sums[i] = sum
		means[i] = mean
		stds[i] = math.Sqrt(variance / float64(len(cols)-1))
	}

	// Insertion order is part of the processed CSV contract: models are
	// trained and evaluated against it, so it must not vary between runs.
	added := []struct {
		name   string
		values []float64
	}{
		{"feature_sum", sums},
		{"feature_mean", means},
		{"feature_std", stds},
	}
	names := make([]string, len(added))
	for i, col := range added {
		if err := f.AddNumeric(col.name, col.values); err != nil {
			return nil, err
		}
		names[i] = col.name
	}
	return names, nil
}

// featureColumns returns the numeric columns excluding the target.
func featureColumns(f *frame.Frame, target string) []string {
	var out []string
	for _, name := range f.NumericNames() {
		if name != target {
			out = append(out, name)
		}
	}
	return out
}

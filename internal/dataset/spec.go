// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package dataset acquires the built-in datasets. Each dataset has a spec
// describing its remote source and schema; when the source is unreachable
// or fetching is disabled, a seeded synthetic generator produces data with
// the same schema so the rest of the pipeline can run offline.
package dataset

import "github.com/quarrydev/quarry/internal/frame"

// ProblemType values.
const (
	Regression     = "regression"
	Classification = "classification"
)

// Spec describes one built-in dataset.
type Spec struct {
	Name        string
	ProblemType string
	Target      string

	// SourceURL points at the remote CSV. The UCI archive files carry no
	// header row, so Columns supplies the schema. Empty means the dataset
	// has no stable remote source and is always synthesized.
	SourceURL string
	Columns   []string

	// TargetFirst marks sources where the class is the leading column.
	TargetFirst bool

	synthesize func(seed int64, rows int) *frame.Frame
	synthRows  int
}

// storedColumns returns the column names in the layout Quarry stores:
// the target last, even when the source file leads with it.
func (s *Spec) storedColumns() []string {
	if !s.TargetFirst {
		return s.Columns
	}
	out := make([]string, 0, len(s.Columns))
	out = append(out, s.Columns[1:]...)
	return append(out, s.Columns[0])
}

var specs = map[string]*Spec{
	"iris": {
		Name:        "iris",
		ProblemType: Classification,
		Target:      "species",
		SourceURL:   "https://archive.ics.uci.edu/ml/machine-learning-databases/iris/iris.data",
		Columns: []string{
			"sepal_length", "sepal_width", "petal_length", "petal_width", "species",
		},
		synthesize: synthesizeIris,
		synthRows:  150,
	},
	"wine": {
		Name:        "wine",
		ProblemType: Classification,
		Target:      "class",
		SourceURL:   "https://archive.ics.uci.edu/ml/machine-learning-databases/wine/wine.data",
		Columns: []string{
			"class",
			"alcohol", "malic_acid", "ash", "alcalinity_of_ash", "magnesium",
			"total_phenols", "flavanoids", "nonflavanoid_phenols", "proanthocyanins",
			"color_intensity", "hue", "od280_od315", "proline",
		},
		TargetFirst: true,
		synthesize:  synthesizeWine,
		synthRows:   178,
	},
	// The housing data has no stable headered CSV mirror, so it is always
	// generated locally.
	"california_housing": {
		Name:        "california_housing",
		ProblemType: Regression,
		Target:      "MedHouseVal",
		Columns: []string{
			"MedInc", "HouseAge", "AveRooms", "AveBedrms",
			"Population", "AveOccup", "Latitude", "Longitude", "MedHouseVal",
		},
		synthesize: synthesizeHousing,
		synthRows:  2000,
	},
}

// Lookup returns the spec for name, or nil when unknown.
func Lookup(name string) *Spec {
	return specs[name]
}

// Names returns all known dataset names in a stable order.
func Names() []string {
	return []string{"iris", "wine", "california_housing"}
}

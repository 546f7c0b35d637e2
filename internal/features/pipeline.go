// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"fmt"

	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/logging"
)

// targetCandidates are checked in order when auto-detecting the target
// column; the last column is the fallback.
var targetCandidates = []string{"target", "label", "class", "y", "price", "MedHouseVal"}

// classificationUniqueLimit: a numeric target with fewer distinct values
// than this is treated as categorical.
const classificationUniqueLimit = 20

// DetectTarget returns the target column using the candidate list, falling
// back to the last column.
func DetectTarget(f *frame.Frame) string {
	for _, candidate := range targetCandidates {
		if f.Has(candidate) {
			return candidate
		}
	}
	names := f.Names()
	return names[len(names)-1]
}

// DetectProblemType classifies the prediction task from the target column:
// string targets and low-cardinality numeric targets are classification,
// everything else regression.
func DetectProblemType(c *frame.Column) string {
	if c.Kind == frame.String || c.UniqueCount() < classificationUniqueLimit {
		return "classification"
	}
	return "regression"
}

// Options configures the preprocessing pipeline.
type Options struct {
	ImputeStrategy string // mean or median
	ScaleMethod    string // standard, minmax or robust
	SelectK        int    // applied only when more features exist
}

// Result is the outcome of Process.
type Result struct {
	Frame        *frame.Frame
	Target       string
	ProblemType  string
	TargetLabels []string // class names when the target was label-encoded
	Imputed      []string
	Encoded      []string
	Engineered   []string
	Selected     []string
	Scaler       *Scaler
}

// Process runs the full preprocessing pipeline on f in order: impute,
// encode categoricals, engineer features, scale, select. The target
// column is detected first and excluded from scaling and engineering.
func Process(f *frame.Frame, datasetName string, opts Options) (*Result, error) {
	if f.NumRows() == 0 || f.NumCols() == 0 {
		return nil, fmt.Errorf("features: empty frame for %s", datasetName)
	}

	target := DetectTarget(f)
	problemType := DetectProblemType(f.Column(target))
	log := logging.With().Str("dataset", datasetName).Str("target", target).Logger()

	imputed := Impute(f, opts.ImputeStrategy)
	if len(imputed) > 0 {
		log.Info().Strs("columns", imputed).Msg("Imputed missing values")
	}

	targetLabels, err := EncodeTarget(f, target)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodeCategoricals(f, target)
	if err != nil {
		return nil, err
	}
	if len(encoded) > 0 {
		log.Info().Strs("columns", encoded).Msg("Encoded categorical features")
	}

	engineered, err := Engineer(f, datasetName, target)
	if err != nil {
		return nil, err
	}
	if len(engineered) > 0 {
		log.Info().Int("count", len(engineered)).Msg("Engineered features")
	}

	scaler, err := NewScaler(opts.ScaleMethod)
	if err != nil {
		return nil, err
	}
	if err := scaler.FitTransform(f, target); err != nil {
		return nil, err
	}

	selected := featureColumns(f, target)
	if opts.SelectK > 0 && len(selected) > opts.SelectK {
		selected, err = SelectKBest(f, target, opts.SelectK, problemType == "classification")
		if err != nil {
			return nil, err
		}
		log.Info().Int("kept", len(selected)).Msg("Selected best features")
	}

	return &Result{
		Frame:        f,
		Target:       target,
		ProblemType:  problemType,
		TargetLabels: targetLabels,
		Imputed:      imputed,
		Encoded:      encoded,
		Engineered:   engineered,
		Selected:     selected,
		Scaler:       scaler,
	}, nil
}

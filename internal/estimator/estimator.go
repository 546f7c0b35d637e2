// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package estimator implements the models Quarry trains: ordinary least
// squares, multinomial logistic regression, CART decision trees, random
// forests and k-nearest neighbors. Feature matrices are row-major
// [][]float64 with math.NaN() marking missing values.
package estimator

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Model kind names used in result files and artifact keys.
const (
	KindLinear       = "linear_regression"
	KindLogistic     = "logistic_regression"
	KindRandomForest = "random_forest"
	KindKNN          = "knn"
)

// Regressor predicts continuous targets.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
	Kind() string
}

// Classifier predicts integer class labels.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	// PredictProba returns one row per sample; each row is a probability
	// distribution aligned with Classes().
	PredictProba(X [][]float64) [][]float64
	Classes() []int
	Kind() string
}

// Encode serializes a trained model with gob. All model types keep their
// learned state in exported fields, so plain gob encoding round-trips them.
func Encode(model interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model); err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, model interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(model); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	return nil
}

// DecodeRegressor reconstructs a regressor of the given kind from Encode output.
func DecodeRegressor(kind string, data []byte) (Regressor, error) {
	switch kind {
	case KindLinear:
		m := &LinearRegression{}
		return m, decode(data, m)
	case KindRandomForest:
		m := &ForestRegressor{}
		return m, decode(data, m)
	case KindKNN:
		m := &KNNRegressor{}
		return m, decode(data, m)
	default:
		return nil, fmt.Errorf("unknown regressor kind %q", kind)
	}
}

// DecodeClassifier reconstructs a classifier of the given kind from Encode output.
func DecodeClassifier(kind string, data []byte) (Classifier, error) {
	switch kind {
	case KindLogistic:
		m := &LogisticRegression{}
		return m, decode(data, m)
	case KindRandomForest:
		m := &ForestClassifier{}
		return m, decode(data, m)
	case KindKNN:
		m := &KNNClassifier{}
		return m, decode(data, m)
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", kind)
	}
}

func validateXY(X [][]float64, n int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty feature matrix")
	}
	if len(X) != n {
		return fmt.Errorf("X has %d rows, y has %d", len(X), n)
	}
	width := len(X[0])
	for i := range X {
		if len(X[i]) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(X[i]), width)
		}
	}
	return nil
}

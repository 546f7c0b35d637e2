// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearRegression fits ordinary least squares via QR decomposition.
type LinearRegression struct {
	Weights   []float64
	Intercept float64
}

// NewLinearRegression returns an untrained OLS model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Kind implements Regressor.
func (m *LinearRegression) Kind() string { return KindLinear }

// Fit solves min ||Xw - y|| with an intercept column appended to X.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("linear: %w", err)
	}
	n, p := len(X), len(X[0])
	if n <= p {
		return fmt.Errorf("linear: need more than %d samples for %d features", p, p)
	}

	design := mat.NewDense(n, p+1, nil)
	for i, row := range X {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}

	var qr mat.QR
	qr.Factorize(design)

	var solution mat.Dense
	if err := qr.SolveTo(&solution, false, mat.NewDense(n, 1, y)); err != nil {
		return fmt.Errorf("linear: least squares solve failed: %w", err)
	}

	m.Intercept = solution.At(0, 0)
	m.Weights = make([]float64, p)
	for j := 0; j < p; j++ {
		m.Weights[j] = solution.At(j+1, 0)
	}
	return nil
}

// Predict returns the fitted linear response for each row.
func (m *LinearRegression) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		sum := m.Intercept
		for j, v := range row {
			sum += m.Weights[j] * v
		}
		out[i] = sum
	}
	return out
}

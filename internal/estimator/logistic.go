// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"fmt"
	"math"
	"math/rand"
)

// LogisticRegression is a multinomial softmax classifier trained with
// full-batch gradient descent. Binary problems are a two-class special
// case of the same machinery.
type LogisticRegression struct {
	// Weights is classes x features; Intercepts is per class.
	Weights     [][]float64
	Intercepts  []float64
	ClassLabels []int

	LR     float64
	Epochs int
	Seed   int64
}

// NewLogisticRegression returns an untrained softmax classifier.
func NewLogisticRegression(lr float64, epochs int, seed int64) *LogisticRegression {
	return &LogisticRegression{LR: lr, Epochs: epochs, Seed: seed}
}

// Kind implements Classifier.
func (m *LogisticRegression) Kind() string { return KindLogistic }

// Classes implements Classifier.
func (m *LogisticRegression) Classes() []int { return m.ClassLabels }

// Fit trains with gradient descent on the cross-entropy loss.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("logistic: %w", err)
	}
	if m.LR <= 0 {
		m.LR = 0.1
	}
	if m.Epochs <= 0 {
		m.Epochs = 200
	}

	m.ClassLabels = uniqueLabels(y)
	k := len(m.ClassLabels)
	if k < 2 {
		return fmt.Errorf("logistic: need at least 2 classes, got %d", k)
	}
	p := len(X[0])
	n := len(X)

	classIdx := make(map[int]int, k)
	for i, label := range m.ClassLabels {
		classIdx[label] = i
	}

	rng := rand.New(rand.NewSource(m.Seed)) //nolint:gosec // deterministic initialization
	m.Weights = make([][]float64, k)
	m.Intercepts = make([]float64, k)
	for c := range m.Weights {
		m.Weights[c] = make([]float64, p)
		for j := range m.Weights[c] {
			m.Weights[c][j] = rng.NormFloat64() * 0.01
		}
	}

	gradW := make([][]float64, k)
	for c := range gradW {
		gradW[c] = make([]float64, p)
	}
	gradB := make([]float64, k)

	for epoch := 0; epoch < m.Epochs; epoch++ {
		for c := range gradW {
			gradB[c] = 0
			for j := range gradW[c] {
				gradW[c][j] = 0
			}
		}

		for i, row := range X {
			probs := m.softmax(row)
			target := classIdx[y[i]]
			for c := 0; c < k; c++ {
				d := probs[c]
				if c == target {
					d -= 1
				}
				gradB[c] += d
				for j, v := range row {
					gradW[c][j] += d * v
				}
			}
		}

		scale := m.LR / float64(n)
		for c := 0; c < k; c++ {
			m.Intercepts[c] -= scale * gradB[c]
			for j := 0; j < p; j++ {
				m.Weights[c][j] -= scale * gradW[c][j]
			}
		}
	}
	return nil
}

// Predict returns the argmax class per row.
func (m *LogisticRegression) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		probs := m.softmax(row)
		best := 0
		for c := 1; c < len(probs); c++ {
			if probs[c] > probs[best] {
				best = c
			}
		}
		out[i] = m.ClassLabels[best]
	}
	return out
}

// PredictProba returns the softmax distribution per row.
func (m *LogisticRegression) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = m.softmax(row)
	}
	return out
}

func (m *LogisticRegression) softmax(row []float64) []float64 {
	k := len(m.Weights)
	logits := make([]float64, k)
	maxLogit := math.Inf(-1)
	for c := 0; c < k; c++ {
		sum := m.Intercepts[c]
		for j, v := range row {
			sum += m.Weights[c][j] * v
		}
		logits[c] = sum
		if sum > maxLogit {
			maxLogit = sum
		}
	}

	total := 0.0
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		total += logits[c]
	}
	for c := range logits {
		logits[c] /= total
	}
	return logits
}

func uniqueLabels(y []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, label := range y {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

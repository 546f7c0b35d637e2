// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package vision provides the image classifier behind the serving API. The
// classifier is a random forest over compact image feature vectors; absent
// a real corpus it trains on synthetic per-class clusters so the API serves
// genuine model probabilities rather than canned values.
package vision

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"

	"github.com/quarrydev/quarry/internal/estimator"
)

// FeatureDim is the length of the image feature vectors the classifier
// consumes.
const FeatureDim = 8

// Labels are the classes the image classifier distinguishes.
var Labels = []string{"cats", "dogs", "birds", "fish"}

// Classifier recognizes image feature vectors.
type Classifier struct {
	Forest  *estimator.ForestClassifier
	Classes []string
	Dim     int
}

// NewClassifier returns an untrained classifier with the given forest size.
func NewClassifier(numEstimators int, seed int64) *Classifier {
	return &Classifier{
		Forest:  estimator.NewForestClassifier(numEstimators, 10, 1, seed, true),
		Classes: Labels,
		Dim:     FeatureDim,
	}
}

// Train fits the forest on feature vectors X with label indices y.
func (c *Classifier) Train(X [][]float64, y []int) error {
	return c.Forest.Fit(X, y)
}

// TrainSynthetic fits the classifier on seeded per-class Gaussian clusters,
// rows samples per class. It keeps the serving path exercising a real
// forest when no labeled corpus is available.
func (c *Classifier) TrainSynthetic(rows int, seed int64) error {
	if rows < 2 {
		return fmt.Errorf("vision: need at least 2 rows per class, got %d", rows)
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic synthesis
	n := rows * len(c.Classes)
	X := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for cls := range c.Classes {
		center := classCenter(cls, c.Dim)
		for i := 0; i < rows; i++ {
			row := make([]float64, c.Dim)
			for j := range row {
				row[j] = center[j] + rng.NormFloat64()*0.6
			}
			X = append(X, row)
			y = append(y, cls)
		}
	}
	return c.Train(X, y)
}

// classCenter spreads the class clusters apart so the synthetic problem is
// learnable but not trivial.
func classCenter(cls, dim int) []float64 {
	center := make([]float64, dim)
	for j := 0; j < dim; j++ {
		if j%len(Labels) == cls {
			center[j] = 2.5
		} else {
			center[j] = -0.5
		}
	}
	return center
}

// Predict returns the most likely label for one feature vector.
func (c *Classifier) Predict(features []float64) (string, error) {
	if err := c.checkInput(features); err != nil {
		return "", err
	}
	idx := c.Forest.Predict([][]float64{features})[0]
	return c.Classes[idx], nil
}

// Proba returns the per-class probabilities for one feature vector, indexed
// like Classes.
func (c *Classifier) Proba(features []float64) ([]float64, error) {
	if err := c.checkInput(features); err != nil {
		return nil, err
	}
	return c.Forest.PredictProba([][]float64{features})[0], nil
}

func (c *Classifier) checkInput(features []float64) error {
	if c.Forest == nil || len(c.Forest.Trees) == 0 {
		return fmt.Errorf("vision: classifier is not trained")
	}
	if len(features) != c.Dim {
		return fmt.Errorf("vision: expected %d features, got %d", c.Dim, len(features))
	}
	return nil
}

// Encode serializes the classifier for the artifact store.
func (c *Classifier) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("vision: encode classifier: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeClassifier restores a classifier serialized with Encode.
func DecodeClassifier(data []byte) (*Classifier, error) {
	var c Classifier
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, fmt.Errorf("vision: decode classifier: %w", err)
	}
	return &c, nil
}

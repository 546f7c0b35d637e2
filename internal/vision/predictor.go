// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package vision

import (
	"fmt"
	"sort"

	"github.com/quarrydev/quarry/internal/models"
)

// DefaultTopK is how many labels GetPredictions returns when the caller
// does not ask for a specific count.
const DefaultTopK = 3

// Predictor serves top-k predictions from a trained classifier.
type Predictor struct {
	classifier *Classifier
}

// NewPredictor wraps a trained classifier.
func NewPredictor(c *Classifier) *Predictor {
	return &Predictor{classifier: c}
}

// Labels returns the class names the predictor can emit.
func (p *Predictor) Labels() []string {
	return p.classifier.Classes
}

// FeatureDim returns the feature vector length the predictor expects.
func (p *Predictor) FeatureDim() int {
	return p.classifier.Dim
}

// GetPredictions scores one feature vector and returns the topK labels
// ordered by descending confidence. topK values outside [1, classes] are
// clamped.
func (p *Predictor) GetPredictions(features []float64, topK int) ([]models.Prediction, error) {
	proba, err := p.classifier.Proba(features)
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if topK > len(proba) {
		topK = len(proba)
	}

	ranked := make([]models.Prediction, len(proba))
	for i, conf := range proba {
		ranked[i] = models.Prediction{Label: p.classifier.Classes[i], Confidence: conf}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked[:topK], nil
}

// BatchPredict scores every feature vector in the batch. The result always
// has one prediction list per input row, in input order.
func (p *Predictor) BatchPredict(batch [][]float64, topK int) ([][]models.Prediction, error) {
	out := make([][]models.Prediction, len(batch))
	for i, features := range batch {
		preds, err := p.GetPredictions(features, topK)
		if err != nil {
			return nil, fmt.Errorf("batch row %d: %w", i, err)
		}
		out[i] = preds
	}
	return out, nil
}

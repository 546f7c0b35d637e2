// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
)

// neighbor pairs a squared distance with a training row index.
type neighbor struct {
	dist float64
	row  int
}

// nearest returns the indices of the k training rows closest to x.
// Inputs are expected to be scaled; raw features would let wide-range
// columns dominate the distance.
func nearest(train [][]float64, x []float64, k int) []int {
	nbrs := make([]neighbor, 0, k+1)
	for j, row := range train {
		d := euclidSquared(x, row)
		if len(nbrs) < k || d < nbrs[len(nbrs)-1].dist {
			nbrs = append(nbrs, neighbor{dist: d, row: j})
			sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].dist < nbrs[b].dist })
			if len(nbrs) > k {
				nbrs = nbrs[:k]
			}
		}
	}
	out := make([]int, len(nbrs))
	for i, nb := range nbrs {
		out[i] = nb.row
	}
	return out
}

func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		if math.IsNaN(d) {
			continue
		}
		sum += d * d
	}
	return sum
}

// parallelRows fans row indices [0,n) across GOMAXPROCS workers.
func parallelRows(n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start, end := w*chunk, (w+1)*chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// KNNRegressor predicts the mean target of the K nearest training rows.
type KNNRegressor struct {
	K      int
	XTrain [][]float64
	YTrain []float64
}

// NewKNNRegressor builds an untrained k-nearest-neighbors regressor.
func NewKNNRegressor(k int) *KNNRegressor {
	return &KNNRegressor{K: k}
}

// Kind implements Regressor.
func (m *KNNRegressor) Kind() string { return KindKNN }

// Fit stores the training data.
func (m *KNNRegressor) Fit(X [][]float64, y []float64) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("knn: %w", err)
	}
	if m.K < 1 {
		m.K = 5
	}
	if m.K > len(X) {
		m.K = len(X)
	}
	m.XTrain = X
	m.YTrain = y
	return nil
}

// Predict averages the K nearest targets per row.
func (m *KNNRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	parallelRows(len(X), func(i int) {
		sum := 0.0
		rows := nearest(m.XTrain, X[i], m.K)
		for _, j := range rows {
			sum += m.YTrain[j]
		}
		out[i] = sum / float64(len(rows))
	})
	return out
}

// KNNClassifier predicts the majority class of the K nearest training rows.
type KNNClassifier struct {
	K           int
	XTrain      [][]float64
	YTrain      []int
	ClassLabels []int
}

// NewKNNClassifier builds an untrained k-nearest-neighbors classifier.
func NewKNNClassifier(k int) *KNNClassifier {
	return &KNNClassifier{K: k}
}

// Kind implements Classifier.
func (m *KNNClassifier) Kind() string { return KindKNN }

// Classes implements Classifier.
func (m *KNNClassifier) Classes() []int { return m.ClassLabels }

// Fit stores the training data and the class list.
func (m *KNNClassifier) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("knn: %w", err)
	}
	if m.K < 1 {
		m.K = 5
	}
	if m.K > len(X) {
		m.K = len(X)
	}
	m.XTrain = X
	m.YTrain = y
	m.ClassLabels = uniqueLabels(y)
	return nil
}

// Predict returns the majority class among the K nearest rows.
func (m *KNNClassifier) Predict(X [][]float64) []int {
	probas := m.PredictProba(X)
	out := make([]int, len(X))
	for i, row := range probas {
		best := 0
		for c := 1; c < len(row); c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[i] = m.ClassLabels[best]
	}
	return out
}

// PredictProba returns neighbor vote fractions per class.
func (m *KNNClassifier) PredictProba(X [][]float64) [][]float64 {
	pos := make(map[int]int, len(m.ClassLabels))
	for i, label := range m.ClassLabels {
		pos[label] = i
	}
	out := make([][]float64, len(X))
	parallelRows(len(X), func(i int) {
		probas := make([]float64, len(m.ClassLabels))
		rows := nearest(m.XTrain, X[i], m.K)
		for _, j := range rows {
			probas[pos[m.YTrain[j]]]++
		}
		for c := range probas {
			probas[c] /= float64(len(rows))
		}
		out[i] = probas
	})
	return out
}

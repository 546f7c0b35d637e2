// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

func newBootstrapRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic bootstrap sampling
}

// forestConfig holds hyperparameters shared by both forest flavors.
type forestConfig struct {
	NumEstimators  int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
	Parallel       bool
}

func (c *forestConfig) normalize() {
	if c.NumEstimators <= 0 {
		c.NumEstimators = 100
	}
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
}

// maxFeatures returns the per-split feature sample size: sqrt(p) for
// classification, p/3 for regression, never below 1.
func maxFeatures(p int, regression bool) int {
	var k int
	if regression {
		k = p / 3
	} else {
		k = int(math.Sqrt(float64(p)))
	}
	if k < 1 {
		k = 1
	}
	return k
}

// fitTrees grows the ensemble. Each tree gets its own derived seed for the
// bootstrap sample and feature subsampling, so training is reproducible
// whether or not it runs in parallel.
func fitTrees(cfg forestConfig, n int, grow func(treeSeed int64, sample []int) error) error {
	errs := make([]error, cfg.NumEstimators)

	fitOne := func(i int) {
		treeSeed := cfg.Seed + int64(i)
		rng := newBootstrapRNG(treeSeed)
		sample := make([]int, n)
		for j := range sample {
			sample[j] = rng.Intn(n)
		}
		errs[i] = grow(treeSeed, sample)
	}

	if cfg.Parallel {
		var wg sync.WaitGroup
		for i := 0; i < cfg.NumEstimators; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				fitOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := 0; i < cfg.NumEstimators; i++ {
			fitOne(i)
		}
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ForestClassifier is a bootstrap ensemble of classification trees whose
// probability output averages the per-tree leaf distributions.
type ForestClassifier struct {
	Config      forestConfig
	Trees       []*Tree
	ClassLabels []int
}

// NewForestClassifier builds an untrained classification forest.
func NewForestClassifier(numEstimators, maxDepth, minSamplesLeaf int, seed int64, parallel bool) *ForestClassifier {
	return &ForestClassifier{Config: forestConfig{
		NumEstimators:  numEstimators,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: minSamplesLeaf,
		Seed:           seed,
		Parallel:       parallel,
	}}
}

// Kind implements Classifier.
func (f *ForestClassifier) Kind() string { return KindRandomForest }

// Classes implements Classifier.
func (f *ForestClassifier) Classes() []int { return f.ClassLabels }

// Fit grows NumEstimators trees on bootstrap samples.
func (f *ForestClassifier) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	f.Config.normalize()
	f.ClassLabels = uniqueLabels(y)
	f.Trees = make([]*Tree, f.Config.NumEstimators)

	p := len(X[0])
	return fitTrees(f.Config, len(X), func(treeSeed int64, sample []int) error {
		tree := &Tree{
			MaxDepth:       f.Config.MaxDepth,
			MinSamplesLeaf: f.Config.MinSamplesLeaf,
			MaxFeatures:    maxFeatures(p, false),
			Seed:           treeSeed,
			Regression:     false,
		}
		f.Trees[int(treeSeed-f.Config.Seed)] = tree
		return tree.fitIndexed(X, y, nil, sample, f.ClassLabels)
	})
}

// Predict returns the class with highest averaged probability per row.
func (f *ForestClassifier) Predict(X [][]float64) []int {
	probas := f.PredictProba(X)
	out := make([]int, len(X))
	for i, row := range probas {
		best := 0
		for c := 1; c < len(row); c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[i] = f.ClassLabels[best]
	}
	return out
}

// PredictProba averages the leaf distributions of all trees. Each output
// row sums to 1.
func (f *ForestClassifier) PredictProba(X [][]float64) [][]float64 {
	k := len(f.ClassLabels)
	out := make([][]float64, len(X))
	for i, row := range X {
		acc := make([]float64, k)
		for _, tree := range f.Trees {
			for c, p := range tree.ProbaRow(row) {
				acc[c] += p
			}
		}
		for c := range acc {
			acc[c] /= float64(len(f.Trees))
		}
		out[i] = acc
	}
	return out
}

// ForestRegressor is a bootstrap ensemble of regression trees. Predictions
// average the per-tree leaf means.
type ForestRegressor struct {
	Config forestConfig
	Trees  []*Tree
}

// NewForestRegressor builds an untrained regression forest.
func NewForestRegressor(numEstimators, maxDepth, minSamplesLeaf int, seed int64, parallel bool) *ForestRegressor {
	return &ForestRegressor{Config: forestConfig{
		NumEstimators:  numEstimators,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: minSamplesLeaf,
		Seed:           seed,
		Parallel:       parallel,
	}}
}

// Kind implements Regressor.
func (f *ForestRegressor) Kind() string { return KindRandomForest }

// Fit grows NumEstimators regression trees on bootstrap samples.
func (f *ForestRegressor) Fit(X [][]float64, y []float64) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	f.Config.normalize()
	f.Trees = make([]*Tree, f.Config.NumEstimators)

	p := len(X[0])
	return fitTrees(f.Config, len(X), func(treeSeed int64, sample []int) error {
		tree := &Tree{
			MaxDepth:       f.Config.MaxDepth,
			MinSamplesLeaf: f.Config.MinSamplesLeaf,
			MaxFeatures:    maxFeatures(p, true),
			Seed:           treeSeed,
			Regression:     true,
		}
		f.Trees[int(treeSeed-f.Config.Seed)] = tree
		return tree.fitIndexed(X, nil, y, sample, nil)
	})
}

// Predict averages all tree outputs per row.
func (f *ForestRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		sum := 0.0
		for _, tree := range f.Trees {
			sum += tree.PredictRow(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a CART tree. Fields are exported so trained
// trees gob-encode directly.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64 // x <= Threshold goes left
	Left      *TreeNode
	Right     *TreeNode

	N      int
	Probas []float64 // classification leaves, aligned with tree class list
	Value  float64   // regression leaves
}

// Tree is a CART decision tree usable for classification (gini impurity)
// or regression (variance reduction), selected by Regression.
type Tree struct {
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int
	MaxFeatures    int // 0 means all features
	Seed           int64
	Regression     bool

	Root        *TreeNode
	ClassLabels []int // classification only
}

// fitIndexed trains on the subset of rows named by idx, letting forests
// bootstrap without copying the data. classLabels fixes the proba column
// order; pass nil to infer from y.
func (t *Tree) fitIndexed(X [][]float64, yClass []int, yReg []float64, idx []int, classLabels []int) error {
	if len(idx) == 0 {
		return fmt.Errorf("tree: no training rows")
	}
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}
	p := len(X[0])

	if !t.Regression {
		if classLabels == nil {
			classLabels = uniqueLabels(yClass)
		}
		t.ClassLabels = classLabels
	}

	rng := rand.New(rand.NewSource(t.Seed)) //nolint:gosec // deterministic tree construction
	t.Root = t.build(X, yClass, yReg, idx, 0, p, rng)
	return nil
}

// Fit trains a classification tree on all rows.
func (t *Tree) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	t.Regression = false
	return t.fitIndexed(X, y, nil, allIndices(len(X)), nil)
}

// FitRegression trains a regression tree on all rows.
func (t *Tree) FitRegression(X [][]float64, y []float64) error {
	if err := validateXY(X, len(y)); err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	t.Regression = true
	return t.fitIndexed(X, nil, y, allIndices(len(X)), nil)
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (t *Tree) build(X [][]float64, yClass []int, yReg []float64, idx []int, depth, p int, rng *rand.Rand) *TreeNode {
	node := &TreeNode{N: len(idx)}

	leaf := func() *TreeNode {
		node.Leaf = true
		if t.Regression {
			node.Value = meanAt(yReg, idx)
		} else {
			node.Probas = t.classProbas(yClass, idx)
		}
		return node
	}

	if len(idx) < 2*t.MinSamplesLeaf {
		return leaf()
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return leaf()
	}
	if t.pure(yClass, yReg, idx) {
		return leaf()
	}

	features := allIndices(p)
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		rng.Shuffle(p, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.MaxFeatures]
	}

	best := t.bestSplit(X, yClass, yReg, idx, features)
	if best.feature < 0 {
		return leaf()
	}

	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = t.build(X, yClass, yReg, best.left, depth+1, p, rng)
	node.Right = t.build(X, yClass, yReg, best.right, depth+1, p, rng)
	return node
}

type split struct {
	score     float64 // impurity after split, lower is better
	feature   int
	threshold float64
	left      []int
	right     []int
}

// bestSplit scans every candidate threshold per feature. Rows with a
// missing value on the split feature are tried on both sides and placed
// wherever impurity is lower.
func (t *Tree) bestSplit(X [][]float64, yClass []int, yReg []float64, idx []int, features []int) split {
	best := split{score: math.Inf(1), feature: -1}

	for _, f := range features {
		valid := make([]int, 0, len(idx))
		missing := make([]int, 0)
		for _, i := range idx {
			if math.IsNaN(X[i][f]) {
				missing = append(missing, i)
			} else {
				valid = append(valid, i)
			}
		}
		if len(valid) < 2 {
			continue
		}
		sort.Slice(valid, func(a, b int) bool { return X[valid[a]][f] < X[valid[b]][f] })

		for s := 1; s < len(valid); s++ {
			lo, hi := X[valid[s-1]][f], X[valid[s]][f]
			if lo == hi {
				continue
			}
			threshold := (lo + hi) / 2

			for _, missLeft := range []bool{true, false} {
				left := append([]int(nil), valid[:s]...)
				right := append([]int(nil), valid[s:]...)
				if missLeft {
					left = append(left, missing...)
				} else {
					right = append(right, missing...)
				}
				if len(left) < t.MinSamplesLeaf || len(right) < t.MinSamplesLeaf {
					continue
				}
				score := t.weightedImpurity(yClass, yReg, left, right)
				if score < best.score {
					best = split{score: score, feature: f, threshold: threshold, left: left, right: right}
				}
				if len(missing) == 0 {
					break
				}
			}
		}
	}
	return best
}

func (t *Tree) weightedImpurity(yClass []int, yReg []float64, left, right []int) float64 {
	total := float64(len(left) + len(right))
	if t.Regression {
		return float64(len(left))/total*varianceAt(yReg, left) +
			float64(len(right))/total*varianceAt(yReg, right)
	}
	return float64(len(left))/total*t.gini(yClass, left) +
		float64(len(right))/total*t.gini(yClass, right)
}

func (t *Tree) pure(yClass []int, yReg []float64, idx []int) bool {
	if t.Regression {
		first := yReg[idx[0]]
		for _, i := range idx[1:] {
			if yReg[i] != first {
				return false
			}
		}
		return true
	}
	first := yClass[idx[0]]
	for _, i := range idx[1:] {
		if yClass[i] != first {
			return false
		}
	}
	return true
}

func (t *Tree) gini(y []int, idx []int) float64 {
	counts := make(map[int]int)
	for _, i := range idx {
		counts[y[i]]++
	}
	n := float64(len(idx))
	g := 1.0
	for _, c := range counts {
		p := float64(c) / n
		g -= p * p
	}
	return g
}

func (t *Tree) classProbas(y []int, idx []int) []float64 {
	probas := make([]float64, len(t.ClassLabels))
	pos := make(map[int]int, len(t.ClassLabels))
	for i, label := range t.ClassLabels {
		pos[label] = i
	}
	for _, i := range idx {
		probas[pos[y[i]]]++
	}
	for i := range probas {
		probas[i] /= float64(len(idx))
	}
	return probas
}

func meanAt(y []float64, idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func varianceAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	mean := meanAt(y, idx)
	sum := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sum += d * d
	}
	return sum / float64(len(idx))
}

// predictNode walks to the leaf for row x. Missing split values follow
// the larger child.
func (t *Tree) predictNode(x []float64) *TreeNode {
	node := t.Root
	for !node.Leaf {
		v := x[node.Feature]
		switch {
		case math.IsNaN(v):
			if node.Left.N >= node.Right.N {
				node = node.Left
			} else {
				node = node.Right
			}
		case v <= node.Threshold:
			node = node.Left
		default:
			node = node.Right
		}
	}
	return node
}

// PredictRow returns the regression value or majority class for one row.
func (t *Tree) PredictRow(x []float64) float64 {
	node := t.predictNode(x)
	if t.Regression {
		return node.Value
	}
	best := 0
	for i := 1; i < len(node.Probas); i++ {
		if node.Probas[i] > node.Probas[best] {
			best = i
		}
	}
	return float64(t.ClassLabels[best])
}

// ProbaRow returns the leaf class distribution for one row.
func (t *Tree) ProbaRow(x []float64) []float64 {
	return t.predictNode(x).Probas
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"fmt"
	"math/rand"
)

// SplitIndices shuffles [0,n) with the given seed and partitions it into
// train and test index sets. testSize is the test fraction; the same seed
// always yields the same partition.
func SplitIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("split: need at least 2 rows, got %d", n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("split: test size %v out of (0,1)", testSize)
	}

	numTest := int(float64(n) * testSize)
	if numTest < 1 {
		numTest = 1
	}
	if numTest >= n {
		numTest = n - 1
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic split
	perm := rng.Perm(n)
	return perm[numTest:], perm[:numTest], nil
}

// TakeRows gathers the rows of X named by idx.
func TakeRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

// TakeFloats gathers the elements of y named by idx.
func TakeFloats(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// TakeInts gathers the elements of y named by idx.
func TakeInts(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

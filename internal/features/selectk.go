// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/quarrydev/quarry/internal/frame"
)

// SelectKBest keeps the k feature columns with the highest univariate
// F-score against the target and drops the rest. Regression targets use
// the correlation F-test, classification targets one-way ANOVA. Returns
// the selected feature names in their original column order.
func SelectKBest(f *frame.Frame, target string, k int, classification bool) ([]string, error) {
	features := featureColumns(f, target)
	if k >= len(features) {
		return features, nil
	}

	y, err := f.Vector(target)
	if err != nil {
		return nil, fmt.Errorf("selectk: %w", err)
	}

	type scored struct {
		name  string
		order int
		score float64
	}
	scores := make([]scored, len(features))
	for i, name := range features {
		x := f.Column(name).Floats
		var score float64
		if classification {
			score = fClassif(x, y)
		} else {
			score = fRegression(x, y)
		}
		// A perfectly predictive feature yields an infinite F-score and
		// must rank first, not fall to the bottom with the NaN cases.
		if math.IsInf(score, 1) {
			score = math.MaxFloat64
		} else if math.IsNaN(score) || math.IsInf(score, -1) {
			score = 0
		}
		scores[i] = scored{name: name, order: i, score: score}
	}

	sort.Slice(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	keep := scores[:k]
	sort.Slice(keep, func(a, b int) bool { return keep[a].order < keep[b].order })

	kept := make(map[string]bool, k)
	selected := make([]string, len(keep))
	for i, s := range keep {
		kept[s.name] = true
		selected[i] = s.name
	}

	for _, name := range features {
		if !kept[name] {
			f.Drop(name)
		}
	}
	return selected, nil
}

// fRegression converts the Pearson correlation into an F-statistic with
// (1, n-2) degrees of freedom.
func fRegression(x, y []float64) float64 {
	n := float64(len(x))
	if n < 3 {
		return 0
	}
	r := pearson(x, y)
	denom := 1 - r*r
	if denom <= 0 {
		return math.Inf(1)
	}
	return r * r / denom * (n - 2)
}

// fClassif is the one-way ANOVA F-statistic of x grouped by class label.
func fClassif(x, y []float64) float64 {
	groups := make(map[float64][]float64)
	for i, label := range y {
		groups[label] = append(groups[label], x[i])
	}
	k := len(groups)
	n := len(x)
	if k < 2 || n <= k {
		return 0
	}

	grand := 0.0
	for _, v := range x {
		grand += v
	}
	grand /= float64(n)

	ssBetween, ssWithin := 0.0, 0.0
	for _, group := range groups {
		mean := 0.0
		for _, v := range group {
			mean += v
		}
		mean /= float64(len(group))
		d := mean - grand
		ssBetween += float64(len(group)) * d * d
		for _, v := range group {
			ssWithin += (v - mean) * (v - mean)
		}
	}
	if ssWithin == 0 {
		return math.Inf(1)
	}
	return (ssBetween / float64(k-1)) / (ssWithin / float64(n-k))
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	meanX, meanY := 0.0, 0.0
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	cov, varX, varY := 0.0, 0.0, 0.0
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package estimator

import (
	"math"
	"sort"
)

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		sum += d * d
	}
	return sum / float64(len(yTrue))
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 { return math.Sqrt(MSE(yTrue, yPred)) }

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yPred[i] - yTrue[i])
	}
	return sum / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant target yields 0.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	ssTot, ssRes := 0.0, 0.0
	for i := range yTrue {
		d := yTrue[i] - mean
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// PrecisionRecallF1 computes precision, recall and F1. Binary problems
// (two classes) treat the larger label as positive; multiclass problems
// return support-weighted averages across classes.
func PrecisionRecallF1(yTrue, yPred []int) (precision, recall, f1 float64) {
	classes := uniqueLabels(yTrue)
	if len(classes) == 0 {
		return 0, 0, 0
	}

	if len(classes) <= 2 {
		positive := classes[0]
		for _, c := range classes[1:] {
			if c > positive {
				positive = c
			}
		}
		return binaryPRF(yTrue, yPred, positive)
	}

	total := float64(len(yTrue))
	for _, c := range classes {
		p, r, f := binaryPRF(yTrue, yPred, c)
		support := 0.0
		for _, label := range yTrue {
			if label == c {
				support++
			}
		}
		weight := support / total
		precision += weight * p
		recall += weight * r
		f1 += weight * f
	}
	return precision, recall, f1
}

func binaryPRF(yTrue, yPred []int, positive int) (precision, recall, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		predPos := yPred[i] == positive
		truePos := yTrue[i] == positive
		switch {
		case predPos && truePos:
			tp++
		case predPos && !truePos:
			fp++
		case !predPos && truePos:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// ConfusionMatrix returns the sorted class labels seen in yTrue or yPred
// and the count matrix, where matrix[i][j] counts samples of true class
// labels[i] predicted as labels[j].
func ConfusionMatrix(yTrue, yPred []int) (labels []int, matrix [][]int) {
	seen := map[int]bool{}
	for _, v := range yTrue {
		seen[v] = true
	}
	for _, v := range yPred {
		seen[v] = true
	}
	labels = make([]int, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Ints(labels)

	index := make(map[int]int, len(labels))
	for i, v := range labels {
		index[v] = i
	}
	matrix = make([][]int, len(labels))
	for i := range matrix {
		matrix[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		matrix[index[yTrue[i]]][index[yPred[i]]]++
	}
	return labels, matrix
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package dataset

import (
	"math"
	"math/rand"

	"github.com/quarrydev/quarry/internal/frame"
)

// Synthesize generates a deterministic dataset matching the spec's schema.
// The same seed always yields the same frame.
func (s *Spec) Synthesize(seed int64) *frame.Frame {
	return s.synthesize(seed, s.synthRows)
}

// irisClusters holds per-class feature means and standard deviations in
// column order sepal_length, sepal_width, petal_length, petal_width.
// Values approximate Fisher's measurements.
var irisClusters = []struct {
	label string
	mean  [4]float64
	std   [4]float64
}{
	{"setosa", [4]float64{5.01, 3.43, 1.46, 0.25}, [4]float64{0.35, 0.38, 0.17, 0.11}},
	{"versicolor", [4]float64{5.94, 2.77, 4.26, 1.33}, [4]float64{0.52, 0.31, 0.47, 0.20}},
	{"virginica", [4]float64{6.59, 2.97, 5.55, 2.03}, [4]float64{0.64, 0.32, 0.55, 0.27}},
}

func synthesizeIris(seed int64, rows int) *frame.Frame {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic data generation
	perClass := rows / len(irisClusters)

	features := make([][]float64, 4)
	for j := range features {
		features[j] = make([]float64, 0, rows)
	}
	labels := make([]string, 0, rows)

	for _, cluster := range irisClusters {
		for i := 0; i < perClass; i++ {
			for j := 0; j < 4; j++ {
				v := cluster.mean[j] + rng.NormFloat64()*cluster.std[j]
				features[j] = append(features[j], round1(math.Max(v, 0.1)))
			}
			labels = append(labels, cluster.label)
		}
	}

	f := frame.New()
	names := []string{"sepal_length", "sepal_width", "petal_length", "petal_width"}
	for j, name := range names {
		_ = f.AddNumeric(name, features[j])
	}
	_ = f.AddString("species", labels)
	return f
}

// wineClusters offsets each class from shared base feature levels. The 13
// features follow the UCI wine chemistry schema.
var wineBase = []float64{13.0, 2.3, 2.4, 19.5, 99.7, 2.3, 2.0, 0.36, 1.6, 5.1, 0.96, 2.6, 746}
var wineSpread = []float64{0.8, 1.1, 0.27, 3.3, 14.3, 0.63, 1.0, 0.12, 0.57, 2.3, 0.23, 0.71, 315}

func synthesizeWine(seed int64, rows int) *frame.Frame {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic data generation
	numFeatures := len(wineBase)
	perClass := rows / 3

	classes := make([]float64, 0, rows)
	features := make([][]float64, numFeatures)
	for j := range features {
		features[j] = make([]float64, 0, rows)
	}

	for class := 1; class <= 3; class++ {
		// Shift each class along every axis so the classes are separable.
		shift := float64(class-2) * 0.9
		for i := 0; i < perClass; i++ {
			classes = append(classes, float64(class))
			for j := 0; j < numFeatures; j++ {
				v := wineBase[j] + shift*wineSpread[j] + rng.NormFloat64()*wineSpread[j]*0.6
				features[j] = append(features[j], math.Max(v, 0.01))
			}
		}
	}

	f := frame.New()
	names := []string{
		"alcohol", "malic_acid", "ash", "alcalinity_of_ash", "magnesium",
		"total_phenols", "flavanoids", "nonflavanoid_phenols", "proanthocyanins",
		"color_intensity", "hue", "od280_od315", "proline",
	}
	for j, name := range names {
		_ = f.AddNumeric(name, features[j])
	}
	_ = f.AddNumeric("class", classes)
	return f
}

func synthesizeHousing(seed int64, rows int) *frame.Frame {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic data generation

	medInc := make([]float64, rows)
	houseAge := make([]float64, rows)
	aveRooms := make([]float64, rows)
	aveBedrms := make([]float64, rows)
	population := make([]float64, rows)
	aveOccup := make([]float64, rows)
	latitude := make([]float64, rows)
	longitude := make([]float64, rows)
	medHouseVal := make([]float64, rows)

	for i := 0; i < rows; i++ {
		medInc[i] = math.Min(math.Exp(rng.NormFloat64()*0.5+1.2), 15)
		houseAge[i] = float64(1 + rng.Intn(52))
		aveRooms[i] = math.Max(rng.NormFloat64()*1.2+5.4, 1)
		aveBedrms[i] = math.Max(rng.NormFloat64()*0.15+1.1, 0.5)
		population[i] = math.Max(rng.NormFloat64()*900+1400, 3)
		aveOccup[i] = math.Max(rng.NormFloat64()*0.9+3.0, 0.7)
		latitude[i] = 32.5 + rng.Float64()*9.5
		longitude[i] = -124.3 + rng.Float64()*10.0

		// House value tracks income, room count and coastal proximity,
		// clipped like the census data at 5 ($500k).
		coast := math.Abs(longitude[i] + 118.0)
		value := 0.45*medInc[i] + 0.08*aveRooms[i] - 0.05*coast +
			0.002*houseAge[i] + rng.NormFloat64()*0.4 + 0.8
		medHouseVal[i] = math.Min(math.Max(value, 0.15), 5.0)
	}

	f := frame.New()
	_ = f.AddNumeric("MedInc", medInc)
	_ = f.AddNumeric("HouseAge", houseAge)
	_ = f.AddNumeric("AveRooms", aveRooms)
	_ = f.AddNumeric("AveBedrms", aveBedrms)
	_ = f.AddNumeric("Population", population)
	_ = f.AddNumeric("AveOccup", aveOccup)
	_ = f.AddNumeric("Latitude", latitude)
	_ = f.AddNumeric("Longitude", longitude)
	_ = f.AddNumeric("MedHouseVal", medHouseVal)
	return f
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

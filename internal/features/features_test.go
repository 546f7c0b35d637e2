// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/frame"
)

func TestImputeMeanAndMode(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("x", []float64{1, math.NaN(), 3}))
	require.NoError(t, f.AddString("c", []string{"a", "", "a"}))

	imputed := Impute(f, "mean")
	assert.ElementsMatch(t, []string{"x", "c"}, imputed)
	assert.InDelta(t, 2.0, f.Column("x").Floats[1], 1e-12)
	assert.Equal(t, "a", f.Column("c").Strings[1])
	assert.Zero(t, f.Column("x").NullCount())
}

func TestImputeMedian(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("x", []float64{1, 2, 100, math.NaN()}))
	Impute(f, "median")
	assert.InDelta(t, 2.0, f.Column("x").Floats[3], 1e-12)
}

func TestEncodeBinaryLabel(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddString("flag", []string{"no", "yes", "no"}))
	require.NoError(t, f.AddNumeric("y", []float64{0, 1, 0}))

	encoded, err := EncodeCategoricals(f, "y")
	require.NoError(t, err)
	assert.Equal(t, []string{"flag"}, encoded)

	c := f.Column("flag")
	assert.Equal(t, frame.Numeric, c.Kind)
	assert.Equal(t, []float64{0, 1, 0}, c.Floats)
}

func TestEncodeOneHotDropsFirst(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddString("color", []string{"blue", "green", "red", "green"}))
	require.NoError(t, f.AddNumeric("y", []float64{0, 1, 0, 1}))

	_, err := EncodeCategoricals(f, "y")
	require.NoError(t, err)

	assert.False(t, f.Has("color"))
	assert.False(t, f.Has("color_blue"), "first category is dropped")
	assert.Equal(t, []float64{0, 1, 0, 1}, f.Column("color_green").Floats)
	assert.Equal(t, []float64{0, 0, 1, 0}, f.Column("color_red").Floats)
}

func TestEncodeHighCardinalityUsesLabels(t *testing.T) {
	values := make([]string, 24)
	for i := range values {
		values[i] = string(rune('a' + i%12))
	}
	f := frame.New()
	require.NoError(t, f.AddString("code", values))
	require.NoError(t, f.AddNumeric("y", make([]float64, 24)))

	_, err := EncodeCategoricals(f, "y")
	require.NoError(t, err)
	c := f.Column("code")
	require.NotNil(t, c)
	assert.Equal(t, frame.Numeric, c.Kind)
	assert.Equal(t, 12, c.UniqueCount())
}

func TestEncodeTarget(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddString("species", []string{"virginica", "setosa", "setosa"}))

	labels, err := EncodeTarget(f, "species")
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "virginica"}, labels)
	assert.Equal(t, []float64{1, 0, 0}, f.Column("species").Floats)
}

func TestEngineerHousingFeatures(t *testing.T) {
	f := dataset.Lookup("california_housing").Synthesize(42)

	added, err := Engineer(f, "california_housing", "MedHouseVal")
	require.NoError(t, err)
	assert.Contains(t, added, "RoomsToBedrooms")
	assert.Contains(t, added, "PopulationDensity")
	assert.Contains(t, added, "DistanceFromCenter")
	assert.Contains(t, added, "feature_sum")

	rooms := f.Column("AveRooms").Floats[0]
	bedrms := f.Column("AveBedrms").Floats[0]
	assert.InDelta(t, rooms/(bedrms+1e-8), f.Column("RoomsToBedrooms").Floats[0], 1e-9)

	// Distance should be non-negative everywhere.
	for _, v := range f.Column("DistanceFromCenter").Floats {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestEngineerInteractions(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("a", []float64{2, 3}))
	require.NoError(t, f.AddNumeric("b", []float64{5, 7}))
	require.NoError(t, f.AddNumeric("class", []float64{0, 1}))

	added, err := Engineer(f, "iris", "class")
	require.NoError(t, err)
	assert.Contains(t, added, "interaction_a_b")
	assert.Equal(t, []float64{10, 21}, f.Column("interaction_a_b").Floats)
	// Only two feature columns: no aggregates.
	assert.False(t, f.Has("feature_sum"))
}

func TestAggregatesExcludeTarget(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("a", []float64{1, 1}))
	require.NoError(t, f.AddNumeric("b", []float64{2, 2}))
	require.NoError(t, f.AddNumeric("c", []float64{3, 3}))
	require.NoError(t, f.AddNumeric("MedHouseVal", []float64{100, 200}))

	_, err := Engineer(f, "california_housing", "MedHouseVal")
	require.NoError(t, err)
	require.True(t, f.Has("feature_sum"))
	assert.InDelta(t, 6.0, f.Column("feature_sum").Floats[0], 1e-12,
		"target must not leak into aggregates")
}

func TestAggregateColumnOrderIsStable(t *testing.T) {
	build := func() []string {
		f := frame.New()
		require.NoError(t, f.AddNumeric("a", []float64{1, 2}))
		require.NoError(t, f.AddNumeric("b", []float64{3, 4}))
		require.NoError(t, f.AddNumeric("c", []float64{5, 6}))
		require.NoError(t, f.AddNumeric("MedHouseVal", []float64{7, 8}))
		_, err := Engineer(f, "california_housing", "MedHouseVal")
		require.NoError(t, err)
		return f.Names()
	}

	first := build()
	for i := 0; i < 50; i++ {
		require.Equal(t, first, build(), "engineered column order must be deterministic")
	}
}

func TestStandardScaler(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("x", []float64{2, 4, 6}))
	require.NoError(t, f.AddNumeric("y", []float64{1, 2, 3}))

	s, err := NewScaler("standard")
	require.NoError(t, err)
	require.NoError(t, s.FitTransform(f, "y"))

	x := f.Column("x").Floats
	mean := (x[0] + x[1] + x[2]) / 3
	assert.InDelta(t, 0, mean, 1e-9)
	// Target untouched.
	assert.Equal(t, []float64{1, 2, 3}, f.Column("y").Floats)
}

func TestMinMaxScaler(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("x", []float64{10, 20, 30}))
	require.NoError(t, f.AddNumeric("y", []float64{0, 0, 1}))

	s, err := NewScaler("minmax")
	require.NoError(t, err)
	require.NoError(t, s.FitTransform(f, "y"))
	assert.Equal(t, []float64{0, 0.5, 1}, f.Column("x").Floats)
}

func TestScalerTransformRowMatchesFit(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("x", []float64{2, 4, 6}))
	require.NoError(t, f.AddNumeric("y", []float64{0, 0, 1}))

	s, err := NewScaler("standard")
	require.NoError(t, err)
	require.NoError(t, s.FitTransform(f, "y"))

	scaled, err := s.TransformRow([]string{"x"}, []float64{4})
	require.NoError(t, err)
	assert.InDelta(t, f.Column("x").Floats[1], scaled[0], 1e-12)

	_, err = s.TransformRow([]string{"unknown"}, []float64{1})
	require.Error(t, err)
}

func TestRejectsUnknownScaleMethod(t *testing.T) {
	_, err := NewScaler("zscore")
	require.Error(t, err)
}

func TestSelectKBestKeepsInformativeFeatures(t *testing.T) {
	n := 100
	signal := make([]float64, n)
	noise := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		signal[i] = float64(i)
		noise[i] = float64((i*7919)%13) - 6
		y[i] = 2 * float64(i)
	}
	f := frame.New()
	require.NoError(t, f.AddNumeric("signal", signal))
	require.NoError(t, f.AddNumeric("noise", noise))
	require.NoError(t, f.AddNumeric("y", y))

	selected, err := SelectKBest(f, "y", 1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"signal"}, selected)
	assert.False(t, f.Has("noise"))
	assert.True(t, f.Has("y"))
}

func TestSelectKBestKeepsPerfectlySeparatingFeature(t *testing.T) {
	// Zero within-group variance yields an infinite F-score; such a
	// feature must win the ranking, not be discarded.
	f := frame.New()
	require.NoError(t, f.AddNumeric("perfect", []float64{0, 0, 0, 0, 1, 1, 1, 1}))
	require.NoError(t, f.AddNumeric("noisy", []float64{0.1, 0.9, 0.4, 0.6, 0.2, 0.8, 0.3, 0.7}))
	require.NoError(t, f.AddNumeric("label", []float64{0, 0, 0, 0, 1, 1, 1, 1}))

	selected, err := SelectKBest(f, "label", 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"perfect"}, selected)
	assert.True(t, f.Has("perfect"))
	assert.False(t, f.Has("noisy"))
}

func TestDetectTarget(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.AddNumeric("a", []float64{1}))
	require.NoError(t, f.AddNumeric("MedHouseVal", []float64{1}))
	require.NoError(t, f.AddNumeric("z", []float64{1}))
	assert.Equal(t, "MedHouseVal", DetectTarget(f))

	g := frame.New()
	require.NoError(t, g.AddNumeric("a", []float64{1}))
	require.NoError(t, g.AddNumeric("b", []float64{1}))
	assert.Equal(t, "b", DetectTarget(g), "falls back to last column")
}

func TestDetectProblemType(t *testing.T) {
	str := &frame.Column{Name: "s", Kind: frame.String, Strings: []string{"a", "b"}}
	assert.Equal(t, "classification", DetectProblemType(str))

	few := make([]float64, 100)
	for i := range few {
		few[i] = float64(i % 3)
	}
	assert.Equal(t, "classification", DetectProblemType(&frame.Column{Name: "n", Kind: frame.Numeric, Floats: few}))

	many := make([]float64, 100)
	for i := range many {
		many[i] = float64(i) * 1.5
	}
	assert.Equal(t, "regression", DetectProblemType(&frame.Column{Name: "n", Kind: frame.Numeric, Floats: many}))
}

func TestProcessIrisEndToEnd(t *testing.T) {
	f := dataset.Lookup("iris").Synthesize(42)

	res, err := Process(f, "iris", Options{ImputeStrategy: "mean", ScaleMethod: "standard", SelectK: 15})
	require.NoError(t, err)

	assert.Equal(t, "species", res.Target)
	assert.Equal(t, "classification", res.ProblemType)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, res.TargetLabels)
	assert.LessOrEqual(t, len(res.Selected), 15)
	assert.NotEmpty(t, res.Engineered)

	// 4 base + 6 interactions + 3 aggregates = 13 features, so selection
	// leaves everything in place.
	assert.Len(t, res.Selected, 13)
}

func TestProcessHousingEndToEnd(t *testing.T) {
	f := dataset.Lookup("california_housing").Synthesize(42)

	res, err := Process(f, "california_housing", Options{ImputeStrategy: "mean", ScaleMethod: "standard", SelectK: 15})
	require.NoError(t, err)

	assert.Equal(t, "MedHouseVal", res.Target)
	assert.Equal(t, "regression", res.ProblemType)
	assert.Nil(t, res.TargetLabels)
	// 8 base + 3 domain + 3 aggregates = 14 features.
	assert.Len(t, res.Selected, 14)
}

func TestProcessWineSelectsTopFifteen(t *testing.T) {
	f := dataset.Lookup("wine").Synthesize(42)

	res, err := Process(f, "wine", Options{ImputeStrategy: "mean", ScaleMethod: "standard", SelectK: 15})
	require.NoError(t, err)

	assert.Equal(t, "class", res.Target)
	assert.Equal(t, "classification", res.ProblemType)
	// 13 base + 78 interactions + 3 aggregates, cut down to 15.
	assert.Len(t, res.Selected, 15)
	assert.Equal(t, 16, res.Frame.NumCols(), "15 features plus target")
}

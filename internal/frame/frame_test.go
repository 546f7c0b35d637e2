// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package frame

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `sepal_length,sepal_width,species
5.1,3.5,setosa
4.9,,setosa
6.3,3.3,virginica
5.8,2.7,?
`

func TestReadCSVInfersTypes(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, f.NumRows())
	assert.Equal(t, 3, f.NumCols())
	assert.Equal(t, []string{"sepal_length", "sepal_width", "species"}, f.Names())

	length := f.Column("sepal_length")
	require.NotNil(t, length)
	assert.Equal(t, Numeric, length.Kind)
	assert.InDelta(t, 5.1, length.Floats[0], 1e-12)

	width := f.Column("sepal_width")
	assert.Equal(t, Numeric, width.Kind)
	assert.True(t, math.IsNaN(width.Floats[1]), "blank numeric cell should be NaN")
	assert.Equal(t, 1, width.NullCount())

	species := f.Column("species")
	assert.Equal(t, String, species.Kind)
	assert.Equal(t, "", species.Strings[3], "? token should be missing")
	assert.Equal(t, 1, species.NullCount())
	assert.Equal(t, 2, species.UniqueCount())
}

func TestWriteCSVRoundTrip(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))

	again, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.Names(), again.Names())
	assert.Equal(t, f.NumRows(), again.NumRows())
	assert.True(t, math.IsNaN(again.Column("sepal_width").Floats[1]))
}

func TestAddColumnRejectsLengthMismatch(t *testing.T) {
	f := New()
	require.NoError(t, f.AddNumeric("a", []float64{1, 2, 3}))
	err := f.AddNumeric("b", []float64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 rows")
}

func TestAddColumnRejectsDuplicate(t *testing.T) {
	f := New()
	require.NoError(t, f.AddNumeric("a", []float64{1}))
	require.Error(t, f.AddNumeric("a", []float64{2}))
}

func TestDropReindexes(t *testing.T) {
	f := New()
	require.NoError(t, f.AddNumeric("a", []float64{1}))
	require.NoError(t, f.AddNumeric("b", []float64{2}))
	require.NoError(t, f.AddNumeric("c", []float64{3}))

	f.Drop("b")
	assert.Equal(t, []string{"a", "c"}, f.Names())
	require.NotNil(t, f.Column("c"))
	assert.InDelta(t, 3, f.Column("c").Floats[0], 1e-12)
	f.Drop("missing") // no-op
	assert.Equal(t, 2, f.NumCols())
}

func TestMatrixExtraction(t *testing.T) {
	f := New()
	require.NoError(t, f.AddNumeric("x1", []float64{1, 2}))
	require.NoError(t, f.AddNumeric("x2", []float64{3, 4}))
	require.NoError(t, f.AddString("label", []string{"a", "b"}))

	m, err := f.Matrix([]string{"x1", "x2"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.InDelta(t, 4, m.At(1, 1), 1e-12)

	_, err = f.Matrix([]string{"label"})
	require.Error(t, err)
}

func TestDescribe(t *testing.T) {
	f := New()
	require.NoError(t, f.AddNumeric("v", []float64{1, 2, 3, 4, math.NaN()}))

	summaries := f.Describe()
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1, s.Nulls)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.0, s.Min, 1e-12)
	assert.InDelta(t, 4.0, s.Max, 1e-12)
}

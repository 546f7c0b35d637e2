// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package frame implements the column-oriented table that flows between
// pipeline stages. A Frame holds typed columns: numeric columns store
// float64 values with NaN marking missing entries, string columns store
// raw text with "" marking missing entries.
package frame

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind discriminates column storage.
type Kind int

const (
	Numeric Kind = iota
	String
)

// Column is a single named column. Exactly one of Floats or Strings is
// populated, according to Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsMissing reports whether row i holds a missing value.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return c.Strings[i] == ""
}

// NullCount returns the number of missing values in the column.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// UniqueCount returns the number of distinct non-missing values.
func (c *Column) UniqueCount() int {
	if c.Kind == Numeric {
		seen := make(map[float64]struct{})
		for _, v := range c.Floats {
			if !math.IsNaN(v) {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{})
	for _, v := range c.Strings {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols  []*Column
	index map[string]int
}

// New returns an empty frame.
func New() *Frame {
	return &Frame{index: make(map[string]int)}
}

// NumRows returns the row count. An empty frame has zero rows.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or nil when absent.
func (f *Frame) Column(name string) *Column {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.cols[i]
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// AddColumn appends a column. The column length must match existing rows.
func (f *Frame) AddColumn(c *Column) error {
	if _, exists := f.index[c.Name]; exists {
		return fmt.Errorf("column %q already exists", c.Name)
	}
	if len(f.cols) > 0 && c.Len() != f.NumRows() {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.NumRows())
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// AddNumeric appends a numeric column from values.
func (f *Frame) AddNumeric(name string, values []float64) error {
	return f.AddColumn(&Column{Name: name, Kind: Numeric, Floats: values})
}

// AddString appends a string column from values.
func (f *Frame) AddString(name string, values []string) error {
	return f.AddColumn(&Column{Name: name, Kind: String, Strings: values})
}

// Drop removes the named column. Dropping a missing column is a no-op.
func (f *Frame) Drop(name string) {
	i, ok := f.index[name]
	if !ok {
		return
	}
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	delete(f.index, name)
	for j := i; j < len(f.cols); j++ {
		f.index[f.cols[j].Name] = j
	}
}

// Replace swaps the named column's contents in place, keeping its position.
func (f *Frame) Replace(c *Column) error {
	i, ok := f.index[c.Name]
	if !ok {
		return fmt.Errorf("column %q not found", c.Name)
	}
	if c.Len() != f.NumRows() {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.NumRows())
	}
	f.cols[i] = c
	return nil
}

// NumericNames returns names of all numeric columns in order.
func (f *Frame) NumericNames() []string {
	var names []string
	for _, c := range f.cols {
		if c.Kind == Numeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// Matrix extracts the named numeric columns into a dense row-major matrix.
// All named columns must exist and be numeric.
func (f *Frame) Matrix(names []string) (*mat.Dense, error) {
	rows := f.NumRows()
	m := mat.NewDense(rows, len(names), nil)
	for j, name := range names {
		c := f.Column(name)
		if c == nil {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if c.Kind != Numeric {
			return nil, fmt.Errorf("column %q is not numeric", name)
		}
		for i := 0; i < rows; i++ {
			m.Set(i, j, c.Floats[i])
		}
	}
	return m, nil
}

// Vector extracts one numeric column as a slice copy.
func (f *Frame) Vector(name string) ([]float64, error) {
	c := f.Column(name)
	if c == nil {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if c.Kind != Numeric {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	out := make([]float64, len(c.Floats))
	copy(out, c.Floats)
	return out, nil
}

// Select returns a new frame containing only the named columns, sharing
// the underlying column storage.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := New()
	for _, name := range names {
		c := f.Column(name)
		if c == nil {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if err := out.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

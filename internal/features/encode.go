// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"fmt"
	"sort"

	"github.com/quarrydev/quarry/internal/frame"
)

// EncodeCategoricals converts every string column except the target into
// numeric form by cardinality:
//   - up to 2 distinct values: label encoding in place
//   - up to 10 distinct values: one-hot columns named {col}_{value},
//     dropping the first category and the original column
//   - more: label encoding in place
//
// Returns the names of columns that were encoded.
func EncodeCategoricals(f *frame.Frame, target string) ([]string, error) {
	var encoded []string
	for _, name := range f.Names() {
		c := f.Column(name)
		if c.Kind != frame.String || name == target {
			continue
		}
		encoded = append(encoded, name)

		categories := sortedCategories(c.Strings)
		switch {
		case len(categories) <= 2:
			if err := labelEncodeColumn(f, c, categories); err != nil {
				return nil, err
			}
		case len(categories) <= 10:
			if err := oneHotEncodeColumn(f, c, categories); err != nil {
				return nil, err
			}
		default:
			if err := labelEncodeColumn(f, c, categories); err != nil {
				return nil, err
			}
		}
	}
	return encoded, nil
}

// EncodeTarget maps a string target column to integer class labels,
// returning the ordered label names. Numeric targets are returned as-is
// with nil labels.
func EncodeTarget(f *frame.Frame, target string) ([]string, error) {
	c := f.Column(target)
	if c == nil {
		return nil, fmt.Errorf("target column %q not found", target)
	}
	if c.Kind == frame.Numeric {
		return nil, nil
	}

	categories := sortedCategories(c.Strings)
	if err := labelEncodeColumn(f, c, categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// sortedCategories returns distinct non-missing values in lexical order so
// encodings are stable across runs.
func sortedCategories(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func labelEncodeColumn(f *frame.Frame, c *frame.Column, categories []string) error {
	codes := make(map[string]float64, len(categories))
	for i, v := range categories {
		codes[v] = float64(i)
	}
	values := make([]float64, len(c.Strings))
	for i, v := range c.Strings {
		values[i] = codes[v]
	}
	return f.Replace(&frame.Column{Name: c.Name, Kind: frame.Numeric, Floats: values})
}

func oneHotEncodeColumn(f *frame.Frame, c *frame.Column, categories []string) error {
	// Drop the first category; its identity is implied by all-zero rows.
	for _, category := range categories[1:] {
		values := make([]float64, len(c.Strings))
		for i, v := range c.Strings {
			if v == category {
				values[i] = 1
			}
		}
		if err := f.AddNumeric(c.Name+"_"+category, values); err != nil {
			return err
		}
	}
	f.Drop(c.Name)
	return nil
}

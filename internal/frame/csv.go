// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// missingTokens are cell values treated as missing during type inference.
var missingTokens = map[string]bool{
	"":    true,
	"na":  true,
	"n/a": true,
	"nan": true,
	"?":   true,
}

// ReadCSV parses a headered CSV into a frame. Column types are inferred:
// a column where every non-missing cell parses as a float becomes Numeric,
// anything else becomes String. Missing numeric cells become NaN.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("CSV has no header row")
	}

	header := records[0]
	rows := records[1:]

	f := New()
	for j, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", j)
		}

		numeric := true
		for _, row := range rows {
			cell := strings.TrimSpace(row[j])
			if missingTokens[strings.ToLower(cell)] {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
		}

		var col *Column
		if numeric {
			values := make([]float64, len(rows))
			for i, row := range rows {
				cell := strings.TrimSpace(row[j])
				if missingTokens[strings.ToLower(cell)] {
					values[i] = math.NaN()
					continue
				}
				values[i], _ = strconv.ParseFloat(cell, 64)
			}
			col = &Column{Name: name, Kind: Numeric, Floats: values}
		} else {
			values := make([]string, len(rows))
			for i, row := range rows {
				cell := strings.TrimSpace(row[j])
				if missingTokens[strings.ToLower(cell)] {
					cell = ""
				}
				values[i] = cell
			}
			col = &Column{Name: name, Kind: String, Strings: values}
		}
		if err := f.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ReadCSVFile opens and parses a CSV file.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck

	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// WriteCSV serializes the frame with a header row. NaN and empty string
// cells are written empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(f.Names()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	rows := f.NumRows()
	record := make([]string, f.NumCols())
	for i := 0; i < rows; i++ {
		for j, c := range f.cols {
			switch {
			case c.Kind == Numeric && math.IsNaN(c.Floats[i]):
				record[j] = ""
			case c.Kind == Numeric:
				record[j] = strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
			default:
				record[j] = c.Strings[i]
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the frame to path, creating or truncating the file.
func (f *Frame) WriteCSVFile(path string) error {
	file, err := os.Create(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck

	if err := f.WriteCSV(file); err != nil {
		return err
	}
	return file.Close()
}

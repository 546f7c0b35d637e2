// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package features

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/quarrydev/quarry/internal/dataset"
	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/models"
)

func processedCSVPath(dir, name string) string {
	return filepath.Join(dir, name+"_processed.csv")
}

func processedMetaPath(dir, name string) string {
	return filepath.Join(dir, name+"_processed_metadata.json")
}

// SaveProcessed writes the processed frame and its metadata next to each
// other in processedDir.
func SaveProcessed(processedDir, name string, res *Result) error {
	if err := res.Frame.WriteCSVFile(processedCSVPath(processedDir, name)); err != nil {
		return fmt.Errorf("write processed csv: %w", err)
	}
	features := make([]string, 0, res.Frame.NumCols()-1)
	for _, col := range res.Frame.Names() {
		if col != res.Target {
			features = append(features, col)
		}
	}
	meta := models.ProcessedMetadata{
		Dataset:          name,
		ProblemType:      res.ProblemType,
		Rows:             res.Frame.NumRows(),
		Features:         features,
		Target:           res.Target,
		TargetLabels:     res.TargetLabels,
		ImputedColumns:   res.Imputed,
		EncodedColumns:   res.Encoded,
		EngineeredCols:   res.Engineered,
		SelectedFeatures: res.Selected,
		ScaleMethod:      res.Scaler.Method,
		ProcessedAt:      time.Now().UTC(),
	}
	if err := dataset.WriteJSON(processedMetaPath(processedDir, name), meta); err != nil {
		return fmt.Errorf("write processed metadata: %w", err)
	}
	return nil
}

// LoadProcessed reads back a processed frame and its metadata.
func LoadProcessed(processedDir, name string) (*frame.Frame, *models.ProcessedMetadata, error) {
	f, err := frame.ReadCSVFile(processedCSVPath(processedDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("read processed csv: %w", err)
	}
	var meta models.ProcessedMetadata
	if err := dataset.ReadJSON(processedMetaPath(processedDir, name), &meta); err != nil {
		return nil, nil, fmt.Errorf("read processed metadata: %w", err)
	}
	return f, &meta, nil
}

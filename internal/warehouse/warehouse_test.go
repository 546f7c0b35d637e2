// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydev/quarry/internal/frame"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New()
	require.NoError(t, f.AddNumeric("x", []float64{1, 2, 3, 4}))
	require.NoError(t, f.AddNumeric("y", []float64{10, 20, 30, 40}))
	require.NoError(t, f.AddString("label", []string{"a", "b", "a", "b"}))
	return f
}

func TestLoadDatasetAndSummary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.LoadDataset(ctx, "iris", sampleFrame(t)))

	n, err := db.RowCount(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	stats, err := db.DatasetSummary(ctx, "iris", []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.InDelta(t, 2.5, stats[0].Mean, 1e-9)
	assert.InDelta(t, 1.0, stats[0].Min, 1e-9)
	assert.InDelta(t, 40.0, stats[1].Max, 1e-9)
	assert.Equal(t, 0, stats[0].Nulls)
}

func TestLoadDatasetReplacesSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.LoadDataset(ctx, "wine", sampleFrame(t)))

	small := frame.New()
	require.NoError(t, small.AddNumeric("x", []float64{7}))
	require.NoError(t, db.LoadDataset(ctx, "wine", small))

	n, err := db.RowCount(ctx, "wine")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunHistoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, db.RecordRun(ctx, RunRecord{
		RunID: "run-1", Stage: "train", Dataset: "iris",
		Success: true, Duration: 1200, RecordedAt: now,
	}))
	require.NoError(t, db.RecordRun(ctx, RunRecord{
		RunID: "run-1", Stage: "evaluate", Dataset: "iris",
		Success: false, Error: "no models", Duration: 5, RecordedAt: now,
	}))

	history, err := db.RunHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first.
	assert.Equal(t, "evaluate", history[0].Stage)
	assert.False(t, history[0].Success)
	assert.Equal(t, "no models", history[0].Error)
	assert.Equal(t, "train", history[1].Stage)
	assert.True(t, history[1].Success)
	assert.Empty(t, history[1].Error)
}

func TestRunHistoryLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordRun(ctx, RunRecord{
			RunID: "run-2", Stage: "prep", Dataset: "wine",
			Success: true, RecordedAt: time.Now().UTC(),
		}))
	}
	history, err := db.RunHistory(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

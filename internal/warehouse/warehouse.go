// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package warehouse records pipeline activity in an embedded DuckDB
// database: processed dataset snapshots for ad-hoc SQL analysis and a run
// history of every pipeline stage execution.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver

	"github.com/quarrydev/quarry/internal/frame"
	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
)

// Config tunes the embedded database.
type Config struct {
	Path      string
	MaxMemory string
	Threads   int
}

// DB wraps the DuckDB connection.
type DB struct {
	conn *sql.DB
}

// Open opens the warehouse at cfg.Path, creating the schema if needed.
// An empty path opens an in-memory database.
func Open(cfg Config) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	// Auto-install/auto-load stay off so opening never touches the network.
	connStr := fmt.Sprintf(
		"%s?threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	start := time.Now()
	_, err := db.conn.Exec(`
		CREATE SEQUENCE IF NOT EXISTS run_history_id_seq;
		CREATE TABLE IF NOT EXISTS run_history (
			id          BIGINT DEFAULT nextval('run_history_id_seq') PRIMARY KEY,
			run_id      VARCHAR NOT NULL,
			stage       VARCHAR NOT NULL,
			dataset     VARCHAR NOT NULL,
			success     BOOLEAN NOT NULL,
			error       VARCHAR,
			duration_ms BIGINT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		);
	`)
	metrics.RecordDBQuery("init", "run_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to initialize warehouse schema: %w", err)
	}
	return nil
}

// datasetTable maps a dataset name to its snapshot table.
func datasetTable(dataset string) string {
	return "dataset_" + strings.ReplaceAll(dataset, "-", "_")
}

// LoadDataset replaces the snapshot table for a dataset with the frame's
// contents. Only numeric columns are stored; string columns are kept as
// VARCHAR.
func (db *DB) LoadDataset(ctx context.Context, dataset string, f *frame.Frame) error {
	table := datasetTable(dataset)
	start := time.Now()
	err := db.loadDataset(ctx, table, f)
	metrics.RecordDBQuery("load", table, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to load dataset %s into warehouse: %w", dataset, err)
	}
	logging.Debug().Str("dataset", dataset).Int("rows", f.NumRows()).Msg("Dataset snapshot loaded into warehouse")
	return nil
}

func (db *DB) loadDataset(ctx context.Context, table string, f *frame.Frame) error {
	if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}

	names := f.Names()
	defs := make([]string, len(names))
	for i, name := range names {
		sqlType := "DOUBLE"
		if f.Column(name).Kind == frame.String {
			sqlType = "VARCHAR"
		}
		defs[i] = quoteIdent(name) + " " + sqlType
	}
	if _, err := db.conn.ExecContext(ctx, "CREATE TABLE "+table+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return err
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(names)), ",") + ")"
	insert := "INSERT INTO " + table + " VALUES " + placeholders

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]interface{}, len(names))
	for i := 0; i < f.NumRows(); i++ {
		for j, name := range names {
			c := f.Column(name)
			if c.IsMissing(i) {
				args[j] = nil
			} else if c.Kind == frame.Numeric {
				args[j] = c.Floats[i]
			} else {
				args[j] = c.Strings[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ColumnStat is one row of DatasetSummary.
type ColumnStat struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Nulls  int     `json:"null_count"`
}

// DatasetSummary computes per-column aggregates for a loaded snapshot via
// SQL, for the report command.
func (db *DB) DatasetSummary(ctx context.Context, dataset string, columns []string) ([]ColumnStat, error) {
	table := datasetTable(dataset)
	out := make([]ColumnStat, 0, len(columns))

	start := time.Now()
	var err error
	for _, col := range columns {
		q := quoteIdent(col)
		query := fmt.Sprintf("SELECT avg(%s), min(%s), max(%s), count(*) - count(%s) FROM %s",
			q, q, q, q, table)
		stat := ColumnStat{Column: col}
		if scanErr := db.conn.QueryRowContext(ctx, query).Scan(&stat.Mean, &stat.Min, &stat.Max, &stat.Nulls); scanErr != nil {
			err = scanErr
			break
		}
		out = append(out, stat)
	}
	metrics.RecordDBQuery("summary", table, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize dataset %s: %w", dataset, err)
	}
	return out, nil
}

// RowCount returns the number of rows in a dataset snapshot.
func (db *DB) RowCount(ctx context.Context, dataset string) (int, error) {
	table := datasetTable(dataset)
	start := time.Now()
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n)
	metrics.RecordDBQuery("count", table, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count dataset %s: %w", dataset, err)
	}
	return n, nil
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Dataset    string    `json:"dataset"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Duration   int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordRun appends one stage execution to the run history.
func (db *DB) RecordRun(ctx context.Context, rec RunRecord) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO run_history (run_id, stage, dataset, success, error, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Stage, rec.Dataset, rec.Success, rec.Error, rec.Duration, rec.RecordedAt)
	metrics.RecordDBQuery("insert", "run_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RunHistory returns the most recent stage executions, newest first.
func (db *DB) RunHistory(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, stage, dataset, success, coalesce(error, ''), duration_ms, recorded_at
		FROM run_history ORDER BY id DESC LIMIT ?`, limit)
	metrics.RecordDBQuery("select", "run_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.Stage, &rec.Dataset, &rec.Success, &rec.Error, &rec.Duration, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run history: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// quoteIdent quotes a column identifier for DuckDB.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

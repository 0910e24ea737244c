// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/mobi2epub/internal/ports/secondary"
)

// HistoryRepository implements secondary.HistoryRepository with SQLite.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new SQLite history repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordRun persists a finished run and its outcomes in one transaction.
func (r *HistoryRepository) RecordRun(ctx context.Context, run *secondary.RunRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, finished_at, total, processed, succeeded, skipped, failed, cancelled) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Total, run.Processed, run.Succeeded, run.Skipped, run.Failed, run.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for _, o := range run.Outcomes {
		var outputPath, detail sql.NullString
		if o.OutputPath != "" {
			outputPath = sql.NullString{String: o.OutputPath, Valid: true}
		}
		if o.Detail != "" {
			detail = sql.NullString{String: o.Detail, Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO outcomes (run_id, seq, source, output_path, status, detail) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID, o.Seq, o.Source, outputPath, o.Status, detail,
		)
		if err != nil {
			return fmt.Errorf("failed to record outcome %d: %w", o.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns retrieves the most recent runs, newest first.
func (r *HistoryRepository) ListRuns(ctx context.Context, limit int) ([]*secondary.RunRecord, error) {
	query := "SELECT id, started_at, finished_at, total, processed, succeeded, skipped, failed, cancelled FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*secondary.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a run by its ID, including its outcomes.
func (r *HistoryRepository) GetRun(ctx context.Context, id string) (*secondary.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, started_at, finished_at, total, processed, succeeded, skipped, failed, cancelled FROM runs WHERE id = ?",
		id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT seq, source, output_path, status, detail FROM outcomes WHERE run_id = ? ORDER BY seq",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o          secondary.OutcomeRecord
			outputPath sql.NullString
			detail     sql.NullString
		)
		if err := rows.Scan(&o.Seq, &o.Source, &outputPath, &o.Status, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.OutputPath = outputPath.String
		o.Detail = detail.String
		run.Outcomes = append(run.Outcomes, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}

	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*secondary.RunRecord, error) {
	run := &secondary.RunRecord{}
	err := s.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Processed, &run.Succeeded, &run.Skipped, &run.Failed, &run.Cancelled)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Ensure HistoryRepository implements the interface
var _ secondary.HistoryRepository = (*HistoryRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunJournal = (*RunRepo)(nil)

// Record timestamps carry no zone, so they are stored without one.
const recordTimestampLayout = "2006-01-02T15:04:05.000"

type scanner interface {
	Scan(dest ...any) error
}

// RunRepo implements driven.RunJournal using SQLite.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// RecordRun stores the summary and its per-file outcomes in one transaction.
// A summary without an ID is assigned a random one.
func (r *RunRepo) RecordRun(ctx context.Context, summary model.RunSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", summary.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, discovered, malformed, stale, applied, failed, aborted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID,
		formatTime(summary.StartedAt),
		formatTime(summary.FinishedAt),
		summary.Discovered, summary.Malformed, summary.Stale, summary.Applied, summary.Failed,
		summary.Aborted,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_records (run_id, position, file_name, username, status, detail, record_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range summary.Outcomes {
		var ts sql.NullString
		if !o.RecordTimestamp.IsZero() {
			ts = sql.NullString{String: o.RecordTimestamp.Format(recordTimestampLayout), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, summary.ID, i, o.FileName, o.Username, string(o.Status), o.Detail, ts); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", summary.ID, err)
	}

	return nil
}

// ListRuns returns the most recent runs first, each with its outcomes. A
// non-positive limit returns every run.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Reader.QueryContext(ctx, `
		SELECT id, started_at, finished_at, discovered, malformed, stale, applied, failed, aborted
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []model.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		outcomes, err := r.listOutcomes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Outcomes = outcomes
	}

	return runs, nil
}

func (r *RunRepo) listOutcomes(ctx context.Context, runID string) ([]model.RecordOutcome, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `
		SELECT file_name, username, status, detail, record_timestamp
		FROM run_records
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var outcomes []model.RecordOutcome
	for rows.Next() {
		var o model.RecordOutcome
		var status string
		var ts sql.NullString
		if err := rows.Scan(&o.FileName, &o.Username, &status, &o.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = model.RecordStatus(status)
		if ts.Valid {
			o.RecordTimestamp, err = time.Parse(recordTimestampLayout, ts.String)
			if err != nil {
				return nil, fmt.Errorf("parse record_timestamp: %w", err)
			}
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return outcomes, nil
}

func scanRun(s scanner) (*model.RunSummary, error) {
	var run model.RunSummary
	var startedAt, finishedAt string

	err := s.Scan(
		&run.ID, &startedAt, &finishedAt,
		&run.Discovered, &run.Malformed, &run.Stale, &run.Applied, &run.Failed,
		&run.Aborted,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}

	run.FinishedAt, err = parseTime(finishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	return &run, nil
}

// timeLayout keeps all nine fractional digits so stored timestamps have a
// fixed width and ORDER BY on the text column is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime tries the layouts SQLite and formatTime are known to produce.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

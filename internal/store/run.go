// Package store persists analysis runs and their reports.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an analysis run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// AnalysisRun is one persisted analysis, including its report once done.
type AnalysisRun struct {
	ID          string          `json:"id"`
	ThreadID    string          `json:"thread_id"`
	Regions     []string        `json:"regions"`
	DateRange   string          `json:"date_range,omitempty"`
	Status      RunStatus       `json:"status"`
	Report      json.RawMessage `json:"report,omitempty"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunStore provides CRUD operations on the analysis_runs table.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// DB returns the underlying database connection.
func (s *RunStore) DB() *sql.DB {
	return s.db
}

// Create inserts a new running analysis run.
func (s *RunStore) Create(ctx context.Context, threadID string, regions []string, dateRange string) (*AnalysisRun, error) {
	now := time.Now().UTC()
	regionsJSON, err := json.Marshal(regions)
	if err != nil {
		return nil, fmt.Errorf("marshal regions: %w", err)
	}

	run := &AnalysisRun{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Regions:   regions,
		DateRange: dateRange,
		Status:    RunStatusRunning,
		StartedAt: now,
		CreatedAt: now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, thread_id, regions, date_range, status, started_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ThreadID, string(regionsJSON), run.DateRange,
		string(run.Status), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis run: %w", err)
	}
	return run, nil
}

// Complete marks a run done and stores its report.
func (s *RunStore) Complete(ctx context.Context, id string, report json.RawMessage) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, report = ?, completed_at = ? WHERE id = ?`,
		string(RunStatusDone), string(report), now, id,
	)
	if err != nil {
		return fmt.Errorf("complete analysis run: %w", err)
	}
	return nil
}

// Fail marks a run failed with the given error message.
func (s *RunStore) Fail(ctx context.Context, id string, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(RunStatusFailed), errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("fail analysis run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns sql.ErrNoRows when absent.
func (s *RunStore) GetByID(ctx context.Context, id string) (*AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, thread_id, regions, date_range, status, report, error, started_at, completed_at, created_at
		 FROM analysis_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRecent returns the most recent runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, regions, date_range, status, report, error, started_at, completed_at, created_at
		 FROM analysis_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*AnalysisRun, error) {
	var r AnalysisRun
	var status string
	var regionsJSON string
	var dateRange sql.NullString
	var reportJSON sql.NullString
	var errMsg sql.NullString
	var startedAt, createdAt string
	var completedAt *string

	err := s.Scan(&r.ID, &r.ThreadID, &regionsJSON, &dateRange, &status,
		&reportJSON, &errMsg, &startedAt, &completedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis run: %w", err)
	}

	if err := json.Unmarshal([]byte(regionsJSON), &r.Regions); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	if dateRange.Valid {
		r.DateRange = dateRange.String
	}
	if reportJSON.Valid && reportJSON.String != "" {
		r.Report = json.RawMessage(reportJSON.String)
	}
	if errMsg.Valid {
		v := errMsg.String
		r.Error = &v
	}

	r.Status = RunStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		r.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		r.CreatedAt = t
	}
	if completedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *completedAt); err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

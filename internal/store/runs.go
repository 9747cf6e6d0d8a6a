package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run status values for sync_metadata.status.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// errMessageLimit truncates stored failure messages so one giant wrapped
// error cannot bloat the audit table.
const errMessageLimit = 500

// SyncRun is one row of sync_metadata: the durable audit record for a
// single sync pass.
type SyncRun struct {
	ID              int64
	StartedAt       string
	CompletedAt     string
	Status          string
	HostsChanged    int
	PoliciesChanged int
	ResultsChanged  int
	DurationMS      int64
	ErrorMessage    string
}

// RunCounts carries the change counters written when a run completes.
type RunCounts struct {
	HostsChanged    int
	PoliciesChanged int
	ResultsChanged  int
}

// CreateSyncRun inserts a new run record with status running and returns
// its sync_id. Exactly one terminal update (Complete or Fail) follows.
func (s *Store) CreateSyncRun(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_metadata (started_at, status) VALUES (?, ?)`,
		time.Now().Format(time.RFC3339), RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("store: creating sync run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: sync run id: %w", err)
	}

	return id, nil
}

// CompleteSyncRun finalizes a run as success with its change counters and
// measured duration.
func (s *Store) CompleteSyncRun(ctx context.Context, syncID int64, counts RunCounts, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_metadata
		SET completed_at = ?, status = ?,
		    hosts_changed = ?, policies_changed = ?, results_changed = ?,
		    duration_ms = ?
		WHERE sync_id = ?`,
		time.Now().Format(time.RFC3339), RunStatusSuccess,
		counts.HostsChanged, counts.PoliciesChanged, counts.ResultsChanged,
		duration.Milliseconds(), syncID,
	)
	if err != nil {
		return fmt.Errorf("store: completing sync run %d: %w", syncID, err)
	}

	return nil
}

// FailSyncRun finalizes a run as failed, recording a truncated error
// message, the counters accumulated before the failure, and the duration.
func (s *Store) FailSyncRun(ctx context.Context, syncID int64, counts RunCounts, runErr error, duration time.Duration) error {
	msg := runErr.Error()
	if len(msg) > errMessageLimit {
		msg = msg[:errMessageLimit]
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_metadata
		SET completed_at = ?, status = ?, error_message = ?,
		    hosts_changed = ?, policies_changed = ?, results_changed = ?,
		    duration_ms = ?
		WHERE sync_id = ?`,
		time.Now().Format(time.RFC3339), RunStatusFailed, msg,
		counts.HostsChanged, counts.PoliciesChanged, counts.ResultsChanged,
		duration.Milliseconds(), syncID,
	)
	if err != nil {
		return fmt.Errorf("store: failing sync run %d: %w", syncID, err)
	}

	return nil
}

// RecentRuns returns the most recent sync runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sync_id, started_at, COALESCE(completed_at, ''), status,
		       hosts_changed, policies_changed, results_changed,
		       COALESCE(duration_ms, 0), COALESCE(error_message, '')
		FROM sync_metadata
		ORDER BY sync_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: querying recent runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun

	for rows.Next() {
		var r SyncRun

		if err := rows.Scan(&r.ID, &r.StartedAt, &r.CompletedAt, &r.Status,
			&r.HostsChanged, &r.PoliciesChanged, &r.ResultsChanged,
			&r.DurationMS, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("store: scanning sync run: %w", err)
		}

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reading recent runs: %w", err)
	}

	return runs, nil
}

// GetSyncRun returns one run record by ID.
func (s *Store) GetSyncRun(ctx context.Context, syncID int64) (*SyncRun, error) {
	var r SyncRun

	err := s.db.QueryRowContext(ctx, `
		SELECT sync_id, started_at, COALESCE(completed_at, ''), status,
		       hosts_changed, policies_changed, results_changed,
		       COALESCE(duration_ms, 0), COALESCE(error_message, '')
		FROM sync_metadata WHERE sync_id = ?`, syncID).
		Scan(&r.ID, &r.StartedAt, &r.CompletedAt, &r.Status,
			&r.HostsChanged, &r.PoliciesChanged, &r.ResultsChanged,
			&r.DurationMS, &r.ErrorMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: sync run %d not found", syncID)
		}

		return nil, fmt.Errorf("store: querying sync run %d: %w", syncID, err)
	}

	return &r, nil
}

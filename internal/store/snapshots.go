package store

import (
	"context"
	"fmt"
)

// Snapshot is one compliance rollup row. TeamID nil means the global scope.
type Snapshot struct {
	Date         string
	TeamID       *int64
	Score        float64
	PassingHosts int64
}

// ResultTally is a (total, passing) pair over policy_results rows.
type ResultTally struct {
	Total   int64
	Passing int64
}

// GlobalResultTally counts all policy_results rows and the passing subset.
func (s *Store) GlobalResultTally(ctx context.Context) (ResultTally, error) {
	var t ResultTally

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END), 0)
		FROM policy_results`).Scan(&t.Total, &t.Passing)
	if err != nil {
		return ResultTally{}, fmt.Errorf("store: querying global result tally: %w", err)
	}

	return t, nil
}

// TeamResultTallies groups policy_results by the owning host's team.
// Hosts without a team are excluded; they only count toward the global
// tally.
func (s *Store) TeamResultTallies(ctx context.Context) (map[int64]ResultTally, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.team_id,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN pr.status = 'pass' THEN 1 ELSE 0 END), 0)
		FROM policy_results pr
		JOIN fleet_hosts h ON pr.host_id = h.host_id
		WHERE h.team_id IS NOT NULL
		GROUP BY h.team_id`)
	if err != nil {
		return nil, fmt.Errorf("store: querying team result tallies: %w", err)
	}
	defer rows.Close()

	tallies := make(map[int64]ResultTally)

	for rows.Next() {
		var teamID int64
		var t ResultTally

		if err := rows.Scan(&teamID, &t.Total, &t.Passing); err != nil {
			return nil, fmt.Errorf("store: scanning team result tally: %w", err)
		}

		tallies[teamID] = t
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reading team result tallies: %w", err)
	}

	return tallies, nil
}

// UpsertSnapshot writes one rollup row, replacing any existing row for the
// same (date, scope). The COALESCE unique index covers the NULL team scope,
// so re-running a day overwrites instead of appending.
func (s *Store) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_snapshots (snapshot_date, team_id, compliance_score, passing_hosts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (snapshot_date, COALESCE(team_id, -1)) DO UPDATE SET
			compliance_score = excluded.compliance_score,
			passing_hosts = excluded.passing_hosts`,
		snap.Date, nullInt64(snap.TeamID), snap.Score, snap.PassingHosts,
	)
	if err != nil {
		return fmt.Errorf("store: upserting snapshot %s: %w", snap.Date, err)
	}

	return nil
}

// SnapshotsForDate returns every rollup row for one date, global scope
// first. Used by tests and the status view.
func (s *Store) SnapshotsForDate(ctx context.Context, date string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_date, team_id, compliance_score, passing_hosts
		FROM compliance_snapshots
		WHERE snapshot_date = ?
		ORDER BY team_id IS NOT NULL, team_id`, date)
	if err != nil {
		return nil, fmt.Errorf("store: querying snapshots for %s: %w", date, err)
	}
	defer rows.Close()

	var snaps []Snapshot

	for rows.Next() {
		var snap Snapshot
		var teamID *int64

		if err := rows.Scan(&snap.Date, &teamID, &snap.Score, &snap.PassingHosts); err != nil {
			return nil, fmt.Errorf("store: scanning snapshot: %w", err)
		}

		snap.TeamID = teamID
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reading snapshots: %w", err)
	}

	return snaps, nil
}

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
)

// PolicyRow is a policy ready for persistence: the fetched policy plus the
// CIS control token the engine extracted from its name or description
// (nil when no token was found).
type PolicyRow struct {
	Policy     fleet.Policy
	CISControl *string
}

// PolicyCounts is the stored aggregate outcome pair for one policy,
// derived from policy_results. It is the policy's change fingerprint.
type PolicyCounts struct {
	Pass int64
	Fail int64
}

// PolicyResultCounts aggregates stored policy_results into per-policy
// pass/fail counts for comparison against the API's reported counts.
// Policies with no stored rows are absent from the map; the detector
// treats absence as (0, 0).
func (s *Store) PolicyResultCounts(ctx context.Context) (map[int64]PolicyCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id,
		       SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'fail' THEN 1 ELSE 0 END)
		FROM policy_results
		GROUP BY policy_id`)
	if err != nil {
		return nil, fmt.Errorf("store: querying policy result counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]PolicyCounts)

	for rows.Next() {
		var id int64
		var c PolicyCounts

		if err := rows.Scan(&id, &c.Pass, &c.Fail); err != nil {
			return nil, fmt.Errorf("store: scanning policy result counts: %w", err)
		}

		counts[id] = c
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reading policy result counts: %w", err)
	}

	return counts, nil
}

// UpsertPolicies writes the full policy set, insert-or-update keyed on
// policy_id. Category and severity keep their stored defaults; the Fleet
// API does not report them.
func (s *Store) UpsertPolicies(ctx context.Context, policies []PolicyRow) error {
	if len(policies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin policy upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cis_policies (
			policy_id, policy_name, cis_control, description, resolution, query, platform
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (policy_id) DO UPDATE SET
			policy_name = excluded.policy_name,
			cis_control = excluded.cis_control,
			description = excluded.description,
			resolution = excluded.resolution,
			query = excluded.query,
			platform = excluded.platform`)
	if err != nil {
		return fmt.Errorf("store: prepare policy upsert: %w", err)
	}
	defer stmt.Close()

	err = chunk(policies, upsertChunkSize, func(batch []PolicyRow) error {
		for i := range batch {
			row := &batch[i]
			p := &row.Policy

			var control any
			if row.CISControl != nil {
				control = *row.CISControl
			}

			_, execErr := stmt.ExecContext(ctx,
				p.ID, p.Name, control, nullString(p.Description),
				nullString(p.Resolution), nullString(p.Query), p.Platform,
			)
			if execErr != nil {
				return fmt.Errorf("store: upsert policy %d: %w", p.ID, execErr)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit policy upsert: %w", err)
	}

	s.logger.Debug("policies upserted", slog.Int("count", len(policies)))

	return nil
}

// ReplacePolicyResults performs a full-replace for the changed policies:
// existing rows for exactly those policy IDs are cleared, then the freshly
// fetched rows inserted. The (policy_id, host_id) primary key absorbs a
// host appearing in both the passing and failing fetch of one cycle.
func (s *Store) ReplacePolicyResults(ctx context.Context, policyIDs []int64, results []fleet.PolicyResult) error {
	if len(policyIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin policy result replace: %w", err)
	}
	defer tx.Rollback()

	err = chunk(policyIDs, upsertChunkSize, func(batch []int64) error {
		placeholders, args := placeholderArgs(batch)

		if _, execErr := tx.ExecContext(ctx,
			"DELETE FROM policy_results WHERE policy_id IN ("+placeholders+")", args...); execErr != nil {
			return fmt.Errorf("store: clearing policy results: %w", execErr)
		}

		return nil
	})
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO policy_results (policy_id, host_id, status, checked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (policy_id, host_id) DO UPDATE SET
			status = excluded.status,
			checked_at = excluded.checked_at`)
	if err != nil {
		return fmt.Errorf("store: prepare policy result insert: %w", err)
	}
	defer stmt.Close()

	err = chunk(results, upsertChunkSize, func(batch []fleet.PolicyResult) error {
		for i := range batch {
			r := &batch[i]

			_, execErr := stmt.ExecContext(ctx, r.PolicyID, r.HostID, string(r.Status), r.CheckedAt)
			if execErr != nil {
				return fmt.Errorf("store: insert policy result (%d,%d): %w", r.PolicyID, r.HostID, execErr)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit policy result replace: %w", err)
	}

	s.logger.Debug("policy results replaced",
		slog.Int("policies", len(policyIDs)),
		slog.Int("results", len(results)),
	)

	return nil
}

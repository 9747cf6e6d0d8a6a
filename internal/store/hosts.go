package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
)

// HostSeenTimes returns last_seen per stored host, the fingerprint map the
// change detector compares against the fetched set.
func (s *Store) HostSeenTimes(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host_id, COALESCE(last_seen, '') FROM fleet_hosts`)
	if err != nil {
		return nil, fmt.Errorf("store: querying host seen times: %w", err)
	}
	defer rows.Close()

	seen := make(map[int64]string)

	for rows.Next() {
		var id int64
		var lastSeen string

		if err := rows.Scan(&id, &lastSeen); err != nil {
			return nil, fmt.Errorf("store: scanning host seen time: %w", err)
		}

		seen[id] = lastSeen
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reading host seen times: %w", err)
	}

	return seen, nil
}

// UpsertHosts writes the fetched host set in chunks, insert-or-update keyed
// on host_id. Every fetched host is written whether or not its fingerprint
// changed; change classification only gates the expensive detail fetches.
func (s *Store) UpsertHosts(ctx context.Context, hosts []fleet.Host) error {
	if len(hosts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin host upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fleet_hosts (
			host_id, hostname, uuid, platform, platform_version,
			osquery_version, team_id, team_name, online_status, last_seen, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (host_id) DO UPDATE SET
			hostname = excluded.hostname,
			uuid = excluded.uuid,
			platform = excluded.platform,
			platform_version = excluded.platform_version,
			osquery_version = excluded.osquery_version,
			team_id = excluded.team_id,
			team_name = excluded.team_name,
			online_status = excluded.online_status,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("store: prepare host upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)

	err = chunk(hosts, upsertChunkSize, func(batch []fleet.Host) error {
		for i := range batch {
			h := &batch[i]

			_, execErr := stmt.ExecContext(ctx,
				h.ID, h.Hostname, nullString(h.UUID), nullString(h.Platform),
				nullString(h.PlatformVersion), nullString(h.OsqueryVersion),
				nullInt64(h.TeamID), nullString(h.TeamName),
				nullString(h.Status), nullString(h.SeenTime), now,
			)
			if execErr != nil {
				return fmt.Errorf("store: upsert host %d: %w", h.ID, execErr)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit host upsert: %w", err)
	}

	s.logger.Debug("hosts upserted", slog.Int("count", len(hosts)))

	return nil
}

// DeleteStaleHosts removes hosts present in the store but absent from the
// fetched ID set, along with their dependent rows. Dependents go first
// (policy_results, then host_labels, then the host row) so referential
// integrity never depends on a cascade. Returns the number of hosts removed.
func (s *Store) DeleteStaleHosts(ctx context.Context, fetchedIDs []int64) (int, error) {
	stored, err := s.HostSeenTimes(ctx)
	if err != nil {
		return 0, err
	}

	fetched := make(map[int64]struct{}, len(fetchedIDs))
	for _, id := range fetchedIDs {
		fetched[id] = struct{}{}
	}

	var stale []int64

	for id := range stored {
		if _, ok := fetched[id]; !ok {
			stale = append(stale, id)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin stale host delete: %w", err)
	}
	defer tx.Rollback()

	err = chunk(stale, upsertChunkSize, func(batch []int64) error {
		placeholders, args := placeholderArgs(batch)

		for _, q := range []string{
			"DELETE FROM policy_results WHERE host_id IN (" + placeholders + ")",
			"DELETE FROM host_labels WHERE host_id IN (" + placeholders + ")",
			"DELETE FROM fleet_hosts WHERE host_id IN (" + placeholders + ")",
		} {
			if _, execErr := tx.ExecContext(ctx, q, args...); execErr != nil {
				return fmt.Errorf("store: deleting stale hosts: %w", execErr)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit stale host delete: %w", err)
	}

	s.logger.Info("stale hosts removed", slog.Int("count", len(stale)))

	return len(stale), nil
}

// ReplaceHostLabels swaps the label associations for the given hosts: the
// old rows for exactly those hosts are deleted, then the freshly fetched
// pairs inserted. Hosts outside hostIDs keep their rows untouched.
func (s *Store) ReplaceHostLabels(ctx context.Context, hostIDs []int64, assocs []fleet.HostLabel) error {
	if len(hostIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin host label replace: %w", err)
	}
	defer tx.Rollback()

	err = chunk(hostIDs, upsertChunkSize, func(batch []int64) error {
		placeholders, args := placeholderArgs(batch)

		if _, execErr := tx.ExecContext(ctx,
			"DELETE FROM host_labels WHERE host_id IN ("+placeholders+")", args...); execErr != nil {
			return fmt.Errorf("store: clearing host labels: %w", execErr)
		}

		return nil
	})
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO host_labels (host_id, label_id) VALUES (?, ?)
		ON CONFLICT (host_id, label_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("store: prepare host label insert: %w", err)
	}
	defer stmt.Close()

	for i := range assocs {
		a := &assocs[i]
		if _, err := stmt.ExecContext(ctx, a.HostID, a.LabelID); err != nil {
			return fmt.Errorf("store: insert host label (%d,%d): %w", a.HostID, a.LabelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit host label replace: %w", err)
	}

	s.logger.Debug("host labels replaced",
		slog.Int("hosts", len(hostIDs)),
		slog.Int("associations", len(assocs)),
	)

	return nil
}

// placeholderArgs builds a "?, ?, ..." list and matching args slice for an
// IN clause.
func placeholderArgs(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

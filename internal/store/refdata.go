package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
)

// UpsertTeams writes the full team set, insert-or-update keyed on team_id.
func (s *Store) UpsertTeams(ctx context.Context, teams []fleet.Team) error {
	if len(teams) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin team upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fleet_teams (team_id, team_name, description, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id) DO UPDATE SET
			team_name = excluded.team_name,
			description = excluded.description,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("store: prepare team upsert: %w", err)
	}
	defer stmt.Close()

	for i := range teams {
		t := &teams[i]
		if _, err := stmt.ExecContext(ctx, t.ID, t.Name, nullString(t.Description), nullString(t.CreatedAt)); err != nil {
			return fmt.Errorf("store: upsert team %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit team upsert: %w", err)
	}

	s.logger.Debug("teams upserted", slog.Int("count", len(teams)))

	return nil
}

// UpsertLabels writes the full label set, insert-or-update keyed on label_id.
func (s *Store) UpsertLabels(ctx context.Context, labels []fleet.Label) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin label upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fleet_labels (label_id, label_name, label_type, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (label_id) DO UPDATE SET
			label_name = excluded.label_name,
			label_type = excluded.label_type,
			description = excluded.description`)
	if err != nil {
		return fmt.Errorf("store: prepare label upsert: %w", err)
	}
	defer stmt.Close()

	for i := range labels {
		l := &labels[i]
		if _, err := stmt.ExecContext(ctx, l.ID, l.Name, l.Type, nullString(l.Description)); err != nil {
			return fmt.Errorf("store: upsert label %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit label upsert: %w", err)
	}

	s.logger.Debug("labels upserted", slog.Int("count", len(labels)))

	return nil
}

// nullString converts an empty string to SQL NULL.
func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// nullInt64 converts a nil pointer to SQL NULL.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *v, Valid: true}
}

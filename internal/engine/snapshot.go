package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetmirror/fleetmirror/internal/store"
)

// snapshotDateLayout keys compliance_snapshots rows by calendar day.
const snapshotDateLayout = "2006-01-02"

// writeSnapshot computes today's compliance rollup, the passing percentage
// over all current policy results, globally and per team, and overwrites
// any rows already written for today. Safe to invoke any number of times
// per day.
func (e *Engine) writeSnapshot(ctx context.Context) error {
	date := time.Now().Format(snapshotDateLayout)

	global, err := e.store.GlobalResultTally(ctx)
	if err != nil {
		return err
	}

	if err := e.store.UpsertSnapshot(ctx, store.Snapshot{
		Date:         date,
		Score:        score(global),
		PassingHosts: global.Passing,
	}); err != nil {
		return err
	}

	teams, err := e.store.TeamResultTallies(ctx)
	if err != nil {
		return err
	}

	for teamID, tally := range teams {
		tid := teamID

		if err := e.store.UpsertSnapshot(ctx, store.Snapshot{
			Date:         date,
			TeamID:       &tid,
			Score:        score(tally),
			PassingHosts: tally.Passing,
		}); err != nil {
			return err
		}
	}

	e.logger.Info("compliance snapshot written",
		slog.String("date", date),
		slog.Float64("global_score", score(global)),
		slog.Int("team_scopes", len(teams)),
	)

	return nil
}

// score converts a tally to a 0–100 passing percentage. An empty tally
// scores zero rather than dividing by zero.
func score(t store.ResultTally) float64 {
	if t.Total == 0 {
		return 0
	}

	return float64(t.Passing) / float64(t.Total) * 100
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetmirror/fleetmirror/internal/engine"
	"github.com/fleetmirror/fleetmirror/internal/fleet"
	"github.com/fleetmirror/fleetmirror/internal/store"
)

// timeRound trims durations to a readable precision in CLI output.
const timeRound = time.Millisecond

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one sync pass and exit",
		RunE:  runOnce,
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	eng, st, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := eng.RunOnce(ctx)
	if err != nil {
		return err
	}

	printReport(cmd, report)

	return nil
}

// buildEngine wires the client, store, and engine from the resolved config.
func buildEngine(ctx context.Context, logger *slog.Logger) (*engine.Engine, *store.Store, error) {
	client := fleet.NewClient(fleet.Options{
		BaseURL:   resolvedCfg.FleetURL,
		Token:     resolvedCfg.FleetToken,
		Timeout:   resolvedCfg.RequestTimeout,
		TLSVerify: resolvedCfg.TLSVerify,
		Logger:    logger,
	})

	st, err := store.Open(ctx, resolvedCfg.DBPath, logger)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(client, st, engine.Config{
		Workers:      resolvedCfg.Workers,
		HostsPerPage: resolvedCfg.HostsPerPage,
	}, logger)

	return eng, st, nil
}

func printReport(cmd *cobra.Command, r *engine.Report) {
	if r.NoOp {
		fmt.Fprintf(cmd.OutOrStdout(), "sync %d: no-op (no API token configured)\n", r.SyncID)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"sync %d: %s in %s: hosts %d/%d changed (%d stale removed), policies %d/%d changed, %d results\n",
		r.SyncID, r.Status, r.Duration.Round(timeRound),
		r.HostsChanged, r.HostsFetched, r.StaleHostsRemoved,
		r.PoliciesChanged, r.PoliciesFetched, r.ResultsChanged,
	)

	if r.LabelFetchFailed > 0 || r.ResultFetchFailed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(),
			"warning: %d label fetches and %d result fetches failed\n",
			r.LabelFetchFailed, r.ResultFetchFailed,
		)
	}
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetmirror/fleetmirror/internal/store"
)

const statusRunLimit = 10

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recent sync runs",
		Long:  "Display the most recent sync run records: status, change counts, duration, and any failure message.",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	st, err := store.Open(ctx, resolvedCfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.RecentRuns(ctx, statusRunLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sync runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tHOSTS\tPOLICIES\tRESULTS\tDURATION\tERROR")

	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt, r.Status,
			r.HostsChanged, r.PoliciesChanged, r.ResultsChanged,
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
			r.ErrorMessage,
		)
	}

	return w.Flush()
}

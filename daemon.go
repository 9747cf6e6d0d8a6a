package main

import (
	"github.com/spf13/cobra"

	"github.com/fleetmirror/fleetmirror/internal/engine"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run sync passes on a recurring schedule until signalled",
		Long: `Run an immediate sync pass, then one pass per configured interval.

SIGINT or SIGTERM stops the daemon between passes; a pass already in
progress always finishes and records a terminal status first.`,
		RunE: runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	ctx := shutdownContext(cmd.Context(), logger)

	eng, st, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	engine.RunLoop(ctx, eng, resolvedCfg.Interval, logger)

	return nil
}

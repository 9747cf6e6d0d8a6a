package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetmirror/fleetmirror/internal/store"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the mirror database and apply schema migrations",
		Long:  "Opens the configured database path, applies any pending schema migrations, and exits. Sync commands do this implicitly; init-db exists for provisioning steps that prepare the database ahead of time.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			st, err := store.Open(cmd.Context(), resolvedCfg.DBPath, logger)
			if err != nil {
				return err
			}

			if err := st.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s\n", resolvedCfg.DBPath)

			return nil
		},
	}
}

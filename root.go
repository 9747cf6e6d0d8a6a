// fleetmirror mirrors a Fleet server's teams, hosts, labels, policies, and
// policy results into a local SQLite database for a reporting layer to
// query. The sync is differential: each pass fetches only what changed
// since the last pass.
package main

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fleetmirror/fleetmirror/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE, available to all subcommands.
var resolvedCfg *config.Resolved

// newRootCmd builds the fully-assembled root command. Called once from
// main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fleetmirror",
		Short:   "Differential Fleet-to-SQLite compliance mirror",
		Long:    "fleetmirror keeps a local SQLite mirror of a Fleet server's inventory and policy compliance state, syncing differentially so an unchanged fleet costs almost nothing per pass.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagConfigPath)
			if err != nil {
				return err
			}

			resolvedCfg = cfg

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "fleetmirror.toml", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInitDBCmd())

	return cmd
}

// buildLogger creates the process logger. Level follows --verbose/--quiet;
// the handler is human-readable text on a terminal and JSON when stderr is
// redirected (log collectors prefer structured lines).
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

package cli

import (
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var verbose bool
var configPath string

var rootCmd = &cobra.Command{
	Use:   "citriage",
	Short: "citriage — automated triage for failing CI runs",
	Long: `citriage inspects a pull request's failed GitHub Actions run, classifies
the failure from the logs, and proposes minimal fixes as a pull request
a human reviews and merges. It never merges anything itself.

Logs are redacted before they touch disk; artifacts land in
~/.citriage/runs/ and the audit history in ~/.citriage/citriage.db.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		cmd.SetContext(clog.WithLogger(cmd.Context(), logger))
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to citriage.yaml (default: ./citriage.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
}

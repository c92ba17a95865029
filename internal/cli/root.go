// Package cli implements the jobmon command line interface.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/jobmon/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the jobmon CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobmon",
		Short: "jobmon — dependency-aware pipeline job monitor",
		Long: "jobmon submits pipeline jobs to a scheduler backend (serial, AWS Batch,\n" +
			"LSF, or SGE), tracks them through completion, validates their output, and\n" +
			"resubmits failures.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newSchedulersCmd(),
		newVersionCmd(),
	)

	return root
}

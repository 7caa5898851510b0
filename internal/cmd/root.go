// Package cmd implements the timeline command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "timeline",
		Short: "Hierarchical project timeline scheduler",
		Long: `timeline edits project schedules kept in YAML or JSON files.

It keeps summary tasks rolled up from their children, pushes successors when
predecessors move, honors date rules and deadlines, and rejects edits that
would break the hierarchy or create dependency cycles.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.projectPath, "project", "p", "timeline.yaml", "project file (.yaml, .yml or .json)")
	flags.StringVar(&a.configPath, "config", "", "config file (default .timeline/config.yaml next to the project)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newValidateCmd(a),
		newShowCmd(a),
		newCriticalCmd(a),
		newUpdateCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newLinkCmd(a),
		newUnlinkCmd(a),
		newMoveCmd(a),
		newViewCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newStoreCmd(a),
		newVersionCmd(),
	)
	return root
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

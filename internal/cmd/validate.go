package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/errors"
)

func newValidateCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a project file",
		Long: `Load the project, settle rollups and links, and report data anomalies and missed
deadlines. Structural problems (unknown parents, cycles, bad dependency types)
fail the command. With --strict, anomalies and missed deadlines fail it too.`,
		Args: cobra.NoArgs,
		RunE: a.runE("validate", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return a.validate(ctx, cmd, strict)
		}),
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on anomalies and missed deadlines")
	return cmd
}

func (a *app) validate(ctx context.Context, cmd *cobra.Command, strict bool) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ed := s.editor

	anomalies := ed.Anomalies()
	missed := ed.MissedDeadlines()
	for _, an := range anomalies {
		fmt.Fprintf(out, "⚠ %s on %s: %s\n", an.Kind, an.TaskID, an.Detail)
	}
	for _, m := range missed {
		fmt.Fprintf(out, "⚠ %s of %s is %s, target %s (%s late)\n",
			m.Rule.Type, m.TaskID, date(m.Actual), date(m.Rule.Date), m.Late)
	}

	if strict && len(anomalies)+len(missed) > 0 {
		return errors.Newf(errors.ErrCodeRuleViolation, "%d anomalies, %d missed deadlines", len(anomalies), len(missed))
	}
	fmt.Fprintf(out, "✓ %s: %d tasks, %d dependencies\n", s.path, len(ed.Tasks()), len(ed.Dependencies()))
	return nil
}

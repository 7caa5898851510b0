package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var asJSON, all bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the task outline",
		Long: `Print the flattened outline with kind, dates and progress. Critical tasks
are marked with '*'. Collapsed rows hide their subtrees unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: a.runE("show", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			ed := s.editor
			tasks := ed.GetFlattenedVisible()
			if all {
				tasks = ed.Tasks()
			}
			rows := outlineRows(ed, tasks)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			if err := printOutline(cmd.OutOrStdout(), ed, rows); err != nil {
				return err
			}
			if start, end, ok := ed.GetRange(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s → %s\n", date(start), date(end))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "include rows hidden under collapsed parents")
	return cmd
}

func newCriticalCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "critical",
		Short: "List the tasks that drive the finish date",
		Args:  cobra.NoArgs,
		RunE: a.runE("critical", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			ids := s.editor.GetCriticalPathIDs()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), ids)
			}
			for _, id := range ids {
				t, _ := s.editor.GetTaskByID(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s → %s\n", id, date(t.Start), date(t.End))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

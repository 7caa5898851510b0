package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/errors"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage schedule checkpoints",
		Long: `Every edit made through timeline checkpoints the schedule it replaces.
Checkpoints are kept in the history directory (see config) and pruned to the
configured count. Identical schedules are stored once.`,
	}
	cmd.AddCommand(
		newHistorySaveCmd(a),
		newHistoryListCmd(a),
		newHistoryRestoreCmd(a),
		newHistoryPruneCmd(a),
	)
	return cmd
}

func newHistorySaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save [label]",
		Short: "Checkpoint the current schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.runE("history.save", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			label := strings.Join(args, " ")
			entry, saved, err := a.history().Save(s.editor.CaptureState(), label)
			if err != nil {
				a.metrics.RecordSnapshot("checkpoint", "failed")
				return err
			}
			out := cmd.OutOrStdout()
			if !saved {
				a.metrics.RecordSnapshot("checkpoint", "skipped")
				fmt.Fprintf(out, "Schedule unchanged since checkpoint %s\n", entry.ID)
				return nil
			}
			a.metrics.RecordSnapshot("checkpoint", "saved")
			fmt.Fprintf(out, "✓ checkpoint %s\n", entry.ID)
			return nil
		}),
	}
}

func newHistoryListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List checkpoints, oldest first",
		Args:    cobra.NoArgs,
		RunE: a.runE("history.list", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			entries, err := a.history().List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				for _, e := range entries {
					e.State.Tasks, e.State.Dependencies, e.State.ExpandedRows = nil, nil, nil
				}
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No checkpoints")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTASKS\tDEPS\tLABEL")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Tasks, e.Dependencies, e.Label)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON without their schedules")
	return cmd
}

func newHistoryRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [checkpoint]",
		Short: "Replace the schedule with a checkpoint (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.runE("history.restore", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			h := a.history()
			entry, err := h.Latest()
			if len(args) == 1 {
				entry, err = h.Load(args[0])
			}
			if err != nil {
				return err
			}
			if entry == nil {
				return errors.New(errors.ErrCodeFileNotFound, "no checkpoints to restore").
					WithSuggestion("Run 'timeline history save' first")
			}
			s, err := a.openOrCreate(ctx, "")
			if err != nil {
				return err
			}
			return a.restore(cmd, s, entry.State, "restore "+entry.ID)
		}),
	}
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest checkpoints",
		Args:  cobra.NoArgs,
		RunE: a.runE("history.prune", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = a.cfg.History.Keep
			}
			removed, err := a.history().Prune(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ removed %d checkpoint(s)\n", len(removed))
			return nil
		}),
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "checkpoints to keep (default: history.keep from config)")
	return cmd
}

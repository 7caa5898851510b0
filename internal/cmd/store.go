package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/store"
	"github.com/felixgeelhaar/timeline/internal/telemetry"
)

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Keep named schedules in a SQLite database",
		Long: `Save project schedules into the database configured by store.path and
load them back. Each name holds one schedule; saving again replaces it.`,
	}
	cmd.AddCommand(
		newStoreSaveCmd(a),
		newStoreLoadCmd(a),
		newStoreListCmd(a),
		newStoreDeleteCmd(a),
	)
	return cmd
}

// withStore opens the configured database for the duration of fn.
func (a *app) withStore(fn func(st *store.SQLiteStore) error) error {
	st, err := store.Open(a.cfg.Store.Path, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("closing store")
		}
	}()
	return fn(st)
}

// storeName picks the name a schedule is stored under.
func storeName(args []string, s *session) string {
	if len(args) > 0 {
		return args[0]
	}
	if s.project.Name != "" {
		return s.project.Name
	}
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newStoreSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save [name]",
		Short: "Store the current schedule (default name: the project name)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.runE("store.save", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			name := storeName(args, s)
			return a.withStore(func(st *store.SQLiteStore) error {
				if err := st.SaveSnapshot(ctx, name, s.editor.CaptureState()); err != nil {
					a.metrics.RecordSnapshot("store", "failed")
					return err
				}
				a.metrics.RecordSnapshot("store", "saved")
				fmt.Fprintf(cmd.OutOrStdout(), "✓ stored %s\n", name)
				return nil
			})
		}),
	}
}

func newStoreLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <name>",
		Short: "Replace the project file's schedule with a stored one",
		Long: `Load a stored schedule into the project file, creating the file when it
does not exist. The replaced schedule is checkpointed first.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE("store.load", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			name := args[0]
			return a.withStore(func(st *store.SQLiteStore) error {
				snap, err := telemetry.Trace(ctx, "store.load", func(ctx context.Context) (model.Snapshot, error) {
					return st.LoadSnapshot(ctx, name)
				})
				if err != nil {
					a.metrics.RecordSnapshot("store", "failed")
					return err
				}
				a.metrics.RecordSnapshot("store", "loaded")
				s, err := a.openOrCreate(ctx, name)
				if err != nil {
					return err
				}
				return a.restore(cmd, s, snap, "load "+name)
			})
		}),
	}
}

func newStoreListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored schedules",
		Args:    cobra.NoArgs,
		RunE: a.runE("store.list", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.SQLiteStore) error {
				projects, err := st.Projects(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, projects)
				}
				if len(projects) == 0 {
					fmt.Fprintln(out, "No stored schedules")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSAVED\tTASKS\tDEPS")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n",
						p.Name, p.SavedAt.Local().Format("2006-01-02 15:04:05"), p.Tasks, p.Dependencies)
				}
				return tw.Flush()
			})
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newStoreDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>...",
		Aliases: []string{"rm"},
		Short:   "Delete stored schedules",
		Args:    cobra.MinimumNArgs(1),
		RunE: a.runE("store.delete", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.SQLiteStore) error {
				for _, name := range args {
					if err := st.DeleteProject(ctx, name); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %s\n", name)
				}
				return nil
			})
		}),
	}
}

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/editor"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/project"
	"github.com/felixgeelhaar/timeline/internal/tui"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		id, name, parent, start, end string
		index                        int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		Long: `Add a task under --parent (or at the root). Without --id a UUID is
assigned. Without --index the task is appended after its siblings.`,
		Example: `  timeline add --id qa --name "QA" --parent build --start 2025-03-20 --end 2025-03-25`,
		Args:    cobra.NoArgs,
		RunE: a.runE("add", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			from, err := parseFlagDate("start", start)
			if err != nil {
				return err
			}
			to := from
			if end != "" {
				if to, err = parseFlagDate("end", end); err != nil {
					return err
				}
			}
			t := model.Task{
				ID:         domain.TaskID(id),
				Name:       name,
				ParentID:   domain.TaskID(parent),
				OrderIndex: index,
				Start:      from,
				End:        to,
			}
			_, err = a.apply(ctx, cmd, s, "add", func(ed *editor.Editor) (*editor.Commit, error) {
				return ed.AddTasks(t)
			})
			return err
		}),
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "task id (default: generated)")
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&parent, "parent", "", "parent task id")
	f.StringVar(&start, "start", "", "start date")
	f.StringVar(&end, "end", "", "end date (default: start, a milestone)")
	f.IntVar(&index, "index", -1, "position among siblings (default: last)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <task>...",
		Aliases: []string{"rm"},
		Short:   "Delete tasks with their subtrees and dependencies",
		Args:    cobra.MinimumNArgs(1),
		RunE: a.runE("remove", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			if !yes && a.prompt() {
				ok, err := tui.PromptForConfirmation(fmt.Sprintf("Delete %s and everything under it?", strings.Join(args, ", ")), false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Schedule left unchanged.")
					return nil
				}
			}
			_, err = a.apply(ctx, cmd, s, "remove", func(ed *editor.Editor) (*editor.Commit, error) {
				return ed.DeleteTasks(taskIDs(args)...)
			})
			return err
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newLinkCmd(a *app) *cobra.Command {
	var (
		id, typ, lag string
	)
	cmd := &cobra.Command{
		Use:   "link <from> <to>",
		Short: "Add or replace a dependency",
		Long: `Link two tasks. The type is one of end-start (FS, default), start-start (SS),
end-end (FF) or start-end (SF). Lag is a Go duration or a day count like 2d.
Links that would close a cycle, join a task to its own ancestor or descendant,
or point a task at itself are rejected. Successors are pushed at once.`,
		Example: `  timeline link design build
  timeline link build qa --type SS --lag 2d`,
		Args: cobra.ExactArgs(2),
		RunE: a.runE("link", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			dt, err := domain.ParseDependencyType(typ)
			if err != nil {
				return errors.Wrap(errors.ErrCodeDependencyType, "invalid --type", err)
			}
			var l project.Lag
			if lag != "" {
				if l, err = project.ParseLag(lag); err != nil {
					return errors.Wrap(errors.ErrCodeDependencyType, "invalid --lag", err)
				}
			}
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			d := model.Dependency{
				ID:            domain.DependencyID(id),
				PredecessorID: domain.TaskID(args[0]),
				SuccessorID:   domain.TaskID(args[1]),
				Type:          dt,
				Lag:           time.Duration(l),
			}
			_, err = a.apply(ctx, cmd, s, "link", func(ed *editor.Editor) (*editor.Commit, error) {
				return ed.UpsertDependency(d)
			})
			return err
		}),
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "dependency id (default: generated)")
	f.StringVar(&typ, "type", string(domain.EndToStart), "dependency type")
	f.StringVar(&lag, "lag", "", "lag between the linked endpoints")
	return cmd
}

func newUnlinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <dependency>...",
		Short: "Remove dependencies by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.runE("unlink", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			ids := make([]domain.DependencyID, len(args))
			for i, arg := range args {
				ids[i] = domain.DependencyID(arg)
			}
			_, err = a.apply(ctx, cmd, s, "unlink", func(ed *editor.Editor) (*editor.Commit, error) {
				return ed.DeleteDependencies(ids...)
			})
			return err
		}),
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task> <up|down|left|right|to INDEX|above TARGET|below TARGET|inside TARGET>",
		Short: "Reorder or reparent a task",
		Long: `Move a task within the outline.

  up, down        swap with the previous or next sibling
  left            outdent: become the next sibling of the current parent
  right           indent: become the last child of the previous sibling
  to INDEX        move to a sibling position (0-based)
  above TARGET    drop before TARGET
  below TARGET    drop after TARGET
  inside TARGET   drop as TARGET's last child

Moves that would nest a task under itself, exceed the depth limit, place it
under a parent that does not accept its kind, or under a task it is linked
to, are rejected.`,
		Example: `  timeline move qa right
  timeline move qa inside build
  timeline move launch to 0`,
		Args: cobra.RangeArgs(2, 3),
		RunE: a.runE("move", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			fn, err := moveFor(domain.TaskID(args[0]), args[1:])
			if err != nil {
				return err
			}
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			_, err = a.apply(ctx, cmd, s, "move", fn)
			return err
		}),
	}
}

// moveFor resolves the direction arguments of `move` into an editor call.
func moveFor(id domain.TaskID, args []string) (mutation, error) {
	dir := strings.ToLower(args[0])
	needs := 0
	switch dir {
	case "to", "above", "below", "inside":
		needs = 1
	}
	if len(args)-1 != needs {
		return nil, errors.Newf(errors.ErrCodeInvalidSelection, "move %s takes %d argument(s)", dir, needs)
	}

	switch dir {
	case "up":
		return func(ed *editor.Editor) (*editor.Commit, error) { return ed.MoveUp(id) }, nil
	case "down":
		return func(ed *editor.Editor) (*editor.Commit, error) { return ed.MoveDown(id) }, nil
	case "left":
		return func(ed *editor.Editor) (*editor.Commit, error) { return ed.MoveLeft(id) }, nil
	case "right":
		return func(ed *editor.Editor) (*editor.Commit, error) { return ed.MoveRight(id) }, nil
	case "to":
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSelection, "invalid index", err)
		}
		return func(ed *editor.Editor) (*editor.Commit, error) { return ed.MoveTo(id, index) }, nil
	default:
		pos, err := domain.ParseDropPosition(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSelection, "unknown direction", err).
				WithSuggestion("Use up, down, left, right, to, above, below or inside")
		}
		target := domain.TaskID(args[1])
		return func(ed *editor.Editor) (*editor.Commit, error) { return ed.Drop(id, target, pos) }, nil
	}
}

func taskIDs(args []string) []domain.TaskID {
	ids := make([]domain.TaskID, len(args))
	for i, arg := range args {
		ids[i] = domain.TaskID(arg)
	}
	return ids
}

package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
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

type updateOptions struct {
	name       string
	start      string
	end        string
	progress   int
	rules      []string
	clearRules bool
	policy     string
	dryRun     bool
}

func newUpdateCmd(a *app) *cobra.Command {
	var o updateOptions
	cmd := &cobra.Command{
		Use:   "update <task>",
		Short: "Change a task's name, dates, progress or rules",
		Long: `Update one task. Date edits are previewed first: if the new dates would
break an incoming dependency, the edit is rejected unless --policy says
otherwise (force, or delete-violated to drop the broken links). On a terminal
you are asked what to do instead.

Moving a summary shifts its whole subtree. Successors are pushed and parents
re-rolled after every accepted edit.

Rules are given as TYPE=DATE, e.g. --rule StartNoEarlierThan=2025-03-10, or
Segment=START..END for a work segment.`,
		Example: `  timeline update design --start 2025-03-10
  timeline update build --end 2025-04-01 --policy force
  timeline update launch --rule TargetEnd=2025-05-01 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE("update", func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return a.update(ctx, cmd, domain.TaskID(args[0]), o)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&o.name, "name", "", "new display name")
	f.StringVar(&o.start, "start", "", "new start date (2006-01-02 or RFC3339)")
	f.StringVar(&o.end, "end", "", "new end date")
	f.IntVar(&o.progress, "progress", -1, "new progress percentage (0-100)")
	f.StringArrayVar(&o.rules, "rule", nil, "add a rule TYPE=DATE (repeatable)")
	f.BoolVar(&o.clearRules, "clear-rules", false, "drop existing rules before adding --rule values")
	f.StringVar(&o.policy, "policy", "", "violation policy: reject, delete-violated or force")
	f.BoolVar(&o.dryRun, "dry-run", false, "preview the edit without saving")
	return cmd
}

func (a *app) update(ctx context.Context, cmd *cobra.Command, id domain.TaskID, o updateOptions) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	current, ok := s.editor.GetTaskByID(id)
	if !ok {
		return errors.NewTaskNotFoundError(id.String())
	}
	patch, err := buildPatch(cmd, current, o)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return errors.New(errors.ErrCodeInvalidTaskField, "nothing to update").
			WithSuggestion("Pass at least one of --name, --start, --end, --progress or --rule")
	}
	if o.policy != "" {
		p, err := editor.ParsePolicy(o.policy)
		if err != nil {
			return err
		}
		s.editor.SetPolicy(p)
	}

	if o.dryRun {
		preview, err := s.editor.PreviewUpdate(id, patch)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), preview)
	}

	_, err = a.apply(ctx, cmd, s, "update", func(ed *editor.Editor) (*editor.Commit, error) {
		return ed.UpdateTask(id, patch)
	})
	var verr *editor.ViolationError
	if !stderrors.As(err, &verr) || o.policy != "" || !a.prompt() {
		return err
	}

	policy, perr := tui.PromptForPolicy(verr)
	if perr != nil {
		return perr
	}
	if policy == editor.PolicyReject {
		fmt.Fprintln(cmd.OutOrStdout(), "Schedule left unchanged.")
		return nil
	}
	s.editor.SetPolicy(policy)
	_, err = a.apply(ctx, cmd, s, "update", func(ed *editor.Editor) (*editor.Commit, error) {
		return ed.UpdateTask(id, patch)
	})
	return err
}

func buildPatch(cmd *cobra.Command, current model.Task, o updateOptions) (model.TaskPatch, error) {
	var patch model.TaskPatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		patch.Name = &o.name
	}
	if flags.Changed("start") {
		d, err := parseFlagDate("start", o.start)
		if err != nil {
			return patch, err
		}
		patch.Start = &d
	}
	if flags.Changed("end") {
		d, err := parseFlagDate("end", o.end)
		if err != nil {
			return patch, err
		}
		patch.End = &d
	}
	if flags.Changed("progress") {
		patch.Progress = &o.progress
	}
	if o.clearRules || len(o.rules) > 0 {
		var rules []model.Rule
		if !o.clearRules {
			rules = append(rules, current.Rules...)
		}
		for _, spec := range o.rules {
			r, err := parseRule(spec)
			if err != nil {
				return patch, err
			}
			rules = append(rules, r)
		}
		patch.Rules = &rules
	}
	return patch, nil
}

func parseFlagDate(flag, value string) (time.Time, error) {
	d, err := project.ParseDate(value)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrCodeInvalidTaskField, fmt.Sprintf("invalid --%s", flag), err)
	}
	return d.Time, nil
}

// parseRule parses TYPE=DATE or Segment=START..END.
func parseRule(spec string) (model.Rule, error) {
	typ, value, ok := strings.Cut(spec, "=")
	if !ok {
		return model.Rule{}, errors.Newf(errors.ErrCodeInvalidRule, "rule %q is not TYPE=DATE", spec)
	}
	rt, err := domain.ParseRuleType(strings.TrimSpace(typ))
	if err != nil {
		return model.Rule{}, errors.Wrap(errors.ErrCodeInvalidRule, "invalid --rule", err).
			WithSuggestion("Rule types: MustStartOn, MustFinishOn, StartNoEarlierThan, StartNoLaterThan, " +
				"FinishNoEarlierThan, FinishNoLaterThan, TargetStart, TargetEnd, Segment")
	}
	if rt == domain.SegmentWork {
		from, to, ok := strings.Cut(value, "..")
		if !ok {
			return model.Rule{}, errors.Newf(errors.ErrCodeInvalidRule, "segment %q is not START..END", value)
		}
		start, err := parseFlagDate("rule", from)
		if err != nil {
			return model.Rule{}, err
		}
		end, err := parseFlagDate("rule", to)
		if err != nil {
			return model.Rule{}, err
		}
		return model.NewSegment(start, end), nil
	}
	d, err := parseFlagDate("rule", value)
	if err != nil {
		return model.Rule{}, err
	}
	return model.NewRule(rt, d), nil
}

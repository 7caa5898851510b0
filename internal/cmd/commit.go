package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/timeline/internal/checkpoint"
	"github.com/felixgeelhaar/timeline/internal/editor"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/telemetry"
)

// mutation is one editor call made by a command.
type mutation func(ed *editor.Editor) (*editor.Commit, error)

// apply runs fn against the opened project, checkpoints the previous state,
// saves the file and prints the commit. Rejections leave the file untouched.
func (a *app) apply(ctx context.Context, cmd *cobra.Command, s *session, op string, fn mutation) (*editor.Commit, error) {
	before := s.editor.CaptureState()

	_, span := telemetry.StartOperationSpan(ctx, op)
	c, err := fn(s.editor)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return nil, err
	}
	telemetry.RecordCounts(span, map[string]int64{
		"changed":       int64(len(c.Changed)),
		"passes":        int64(c.Passes),
		"edges_visited": int64(c.EdgesVisited),
	})
	telemetry.RecordSuccess(span)
	span.End()

	a.checkpoint(before, op)
	if err := a.save(s); err != nil {
		return nil, err
	}
	printCommit(cmd.OutOrStdout(), c)
	return c, nil
}

func (a *app) history() *checkpoint.Manager {
	return checkpoint.NewManager(a.cfg.History.Dir, a.log)
}

// checkpoint records snap in history before an edit is written. Failures
// are logged; they never block the edit.
func (a *app) checkpoint(snap model.Snapshot, label string) {
	h := a.history()
	_, saved, err := h.Save(snap, "before "+label)
	switch {
	case err != nil:
		a.metrics.RecordSnapshot("checkpoint", "failed")
		a.log.WithError(err).Warn("checkpoint failed")
		return
	case saved:
		a.metrics.RecordSnapshot("checkpoint", "saved")
	default:
		a.metrics.RecordSnapshot("checkpoint", "skipped")
	}
	if _, err := h.Prune(a.cfg.History.Keep); err != nil {
		a.log.WithError(err).Warn("checkpoint prune failed")
	}
}

package editor

import (
	"github.com/felixgeelhaar/timeline/internal/dependency"
	"github.com/felixgeelhaar/timeline/internal/errors"
)

// reject logs and counts a refused mutation and hands err back.
func (e *Editor) reject(op string, err error) error {
	code := errors.CodeOf(err)
	e.log.WithError(err).Info("mutation rejected", "operation", op)
	if e.metrics != nil {
		e.metrics.RecordMutation(op, string(code))
	}
	return err
}

func (e *Editor) committed(c *Commit) *Commit {
	e.log.Debug("mutation committed", "operation", c.Operation, "changed", len(c.Changed),
		"removed", len(c.Removed), "passes", c.Passes)
	if e.metrics != nil {
		e.metrics.RecordMutation(c.Operation, "")
	}
	return c
}

func (e *Editor) recordPass(pass dependency.PassResult, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordPass(err == nil, pass.EdgesVisited(), len(pass.Moved), len(pass.Blocked))
	if len(pass.RolledUp) > 0 {
		e.metrics.RecordRollup(len(pass.RolledUp))
	}
}

func (e *Editor) recordRollup(changed int) {
	if e.metrics != nil && changed > 0 {
		e.metrics.RecordRollup(changed)
	}
}

func (e *Editor) recordError(err error) {
	if e.metrics == nil {
		return
	}
	if code := errors.CodeOf(err); code != "" {
		e.metrics.RecordError(string(code), code.Family())
	}
}

package project

import (
	"fmt"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
)

// Validate checks ids, parents, kinds, rules and dependency endpoints.
// Dates are only required to be present; an end before the start is a data
// anomaly reported later, not a load error.
func (f *File) Validate() error {
	if len(f.Tasks) == 0 {
		return errors.New(errors.ErrCodeInvalidTaskField, "project must have at least one task")
	}

	ids := make(map[string]bool, len(f.Tasks))
	for i, t := range f.Tasks {
		if err := t.Validate(); err != nil {
			return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("task at index %d (%s) is invalid", i, t.ID), err)
		}
		if ids[t.ID] {
			return errors.Newf(errors.ErrCodeDuplicateTask, "duplicate task ID %q at index %d", t.ID, i)
		}
		ids[t.ID] = true
	}

	for i, t := range f.Tasks {
		if t.Parent != "" && !ids[t.Parent] {
			return errors.Newf(errors.ErrCodeUnknownParent, "task at index %d (%s) has parent %q that does not exist", i, t.ID, t.Parent)
		}
	}

	deps := make(map[string]bool, len(f.Dependencies))
	for i, d := range f.Dependencies {
		if d.Type != "" {
			if _, err := domain.ParseDependencyType(d.Type); err != nil {
				return errors.Wrap(errors.ErrCodeDependencyType, fmt.Sprintf("dependency at index %d", i), err)
			}
		}
		if !ids[d.From] || !ids[d.To] {
			return errors.Newf(errors.ErrCodeDependencyEndpoint, "dependency at index %d references unknown task (%s -> %s)", i, d.From, d.To)
		}
		if d.From == d.To {
			return errors.Newf(errors.ErrCodeSelfDependency, "dependency at index %d links %s to itself", i, d.From)
		}
		if d.ID != "" {
			if deps[d.ID] {
				return errors.Newf(errors.ErrCodeInvalidTaskField, "duplicate dependency ID %q at index %d", d.ID, i)
			}
			deps[d.ID] = true
		}
	}

	for _, id := range f.Collapsed {
		if !ids[id] {
			return errors.Newf(errors.ErrCodeTaskNotFound, "collapsed row %q does not exist", id)
		}
	}
	return nil
}

// Validate checks a single task entry.
func (t *TaskSpec) Validate() error {
	if _, err := domain.NewTaskID(t.ID); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidTaskField, "invalid task ID", err)
	}
	if t.Parent != "" {
		if _, err := domain.NewTaskID(t.Parent); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidTaskField, "invalid parent ID", err)
		}
		if t.Parent == t.ID {
			return errors.New(errors.ErrCodeParentCycle, "task is its own parent")
		}
	}
	if t.Start.IsZero() || t.End.IsZero() {
		return errors.New(errors.ErrCodeInvalidTaskField, "start and end are required")
	}
	if t.Accepts != nil {
		for _, k := range *t.Accepts {
			if _, err := domain.ParseTaskKind(k); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidTaskField, "invalid accepted child kind", err)
			}
		}
	}
	for i, rs := range t.Rules {
		if _, err := domain.ParseRuleType(rs.Type); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRule, fmt.Sprintf("rule at index %d", i), err)
		}
		if err := rs.rule().Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRule, fmt.Sprintf("rule at index %d", i), err)
		}
	}
	return nil
}


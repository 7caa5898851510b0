package editor

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/timeline/internal/dependency"
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// UpdateTask applies patch to id as a direct user edit.
//
// A start edit pins an implicit StartNoEarlierThan at the new start; an
// end-only edit pins an implicit FinishNoEarlierThan at the new end. A
// summary date edit shifts its whole subtree by one delta and is rejected
// with RULE-002 when a descendant's own rules would clamp that shift. The
// edit is previewed first and a failing preview is handled by the violation
// policy. On commit the change is propagated to successors and rolled up.
func (e *Editor) UpdateTask(id domain.TaskID, patch model.TaskPatch) (*Commit, error) {
	const op = "update_task"
	t, ok := e.tree.Get(id)
	if !ok {
		return nil, e.reject(op, e.notFound(id))
	}
	if patch.ParentID != nil || patch.OrderIndex != nil {
		return nil, e.reject(op, errors.Newf(errors.ErrCodeInvalidTaskField, "update of %s changes its position", id).
			WithSuggestion("Use move up/down/left/right or drop to re-parent or reorder"))
	}
	if patch.Rules != nil {
		if err := validateRules(id, *patch.Rules); err != nil {
			return nil, e.reject(op, err)
		}
	}
	if err := e.deps.CheckAcyclic(); err != nil {
		e.recordError(err)
		return nil, e.reject(op, err)
	}

	summary := e.tree.HasChildren(id)
	delta, drive := shiftOf(t, patch)
	if summary && delta != 0 {
		if blockers := e.deps.ShiftBlockers(id, delta, drive); len(blockers) > 0 {
			return nil, e.reject(op, errors.Newf(errors.ErrCodeSummaryBlocked,
				"moving %s by %s would clamp descendants %v", id, delta, blockers).
				WithSuggestion("Relax the constraints of the listed descendants first"))
		}
	}

	preview, err := e.deps.CheckRulesBeforeUpdate(id, patch)
	if err != nil {
		return nil, e.reject(op, err)
	}

	c := newCommit(op)
	if !preview.OK() {
		switch {
		case e.policy == PolicyForce:
			c.Anomalies = preview.Anomalies
			e.log.Warn("committing update despite preview findings", "task_id", id,
				"violations", len(preview.Violations), "anomalies", len(preview.Anomalies))
		case e.policy == PolicyDeleteViolated && len(preview.Anomalies) == 0:
			c.RemovedDependencies = e.deps.Delete(preview.ViolatedIDs()...)
			e.log.Info("deleted violated dependencies", "task_id", id, "count", len(c.RemovedDependencies))
		default:
			return nil, e.reject(op, &ViolationError{
				TaskID:     id,
				Violations: preview.Violations,
				Anomalies:  preview.Anomalies,
			})
		}
	}

	patch = pinned(t, patch)

	var seeds []domain.TaskID
	if summary && patch.MovesDates() {
		rest := patch
		rest.Start, rest.End = nil, nil
		if _, err := e.tree.Update(id, rest); err != nil {
			return nil, e.reject(op, err)
		}
		if delta != 0 {
			seeds = e.deps.ShiftSubtree(id, delta)
		}
	} else {
		if _, err := e.tree.Update(id, patch); err != nil {
			return nil, e.reject(op, err)
		}
		if patch.MovesDates() {
			seeds = []domain.TaskID{id}
		}
	}
	c.touch(id)
	c.touch(seeds...)

	if len(seeds) > 0 {
		if err := e.propagate(c, seeds); err != nil {
			return nil, e.reject(op, err)
		}
		return e.committed(c), nil
	}

	var rolled []domain.TaskID
	if summary {
		rolled = e.roll.Resolve(id)
	} else {
		rolled = e.roll.ResolveChain(id)
	}
	c.touch(rolled...)
	e.recordRollup(len(rolled))
	if err := e.settle(c, rolled); err != nil {
		return nil, e.reject(op, err)
	}
	return e.committed(c), nil
}

// PreviewUpdate simulates patch without committing anything.
func (e *Editor) PreviewUpdate(id domain.TaskID, patch model.TaskPatch) (dependency.Preview, error) {
	if !e.tree.Has(id) {
		return dependency.Preview{}, e.notFound(id)
	}
	return e.deps.CheckRulesBeforeUpdate(id, patch)
}

// AddTasks inserts tasks and rolls up their new parents. Tasks with unknown
// parents or duplicate ids are skipped and logged.
func (e *Editor) AddTasks(tasks ...model.Task) (*Commit, error) {
	const op = "add_tasks"
	for _, t := range tasks {
		if err := validateRules(t.ID, t.Rules); err != nil {
			return nil, e.reject(op, err)
		}
	}

	c := newCommit(op)
	ids := e.tree.Add(tasks...)
	c.touch(ids...)

	var rolled []domain.TaskID
	for _, id := range ids {
		rolled = append(rolled, e.roll.ResolveChain(id)...)
	}
	c.touch(rolled...)
	e.recordRollup(len(rolled))
	if err := e.settle(c, rolled); err != nil {
		return nil, e.reject(op, err)
	}
	return e.committed(c), nil
}

// DeleteTasks removes each id with its whole subtree and every dependency
// that references a removed task, then rolls up the former parents.
func (e *Editor) DeleteTasks(ids ...domain.TaskID) (*Commit, error) {
	const op = "delete_tasks"
	var parents []domain.TaskID
	for _, id := range ids {
		if t, ok := e.tree.Get(id); ok && t.ParentID != "" {
			parents = append(parents, t.ParentID)
		}
	}

	c := newCommit(op)
	c.Removed = e.tree.Delete(ids...)
	c.RemovedDependencies = e.deps.RemoveForTasks(c.Removed...)

	var rolled []domain.TaskID
	for _, p := range parents {
		if e.tree.Has(p) {
			rolled = append(rolled, e.roll.Resolve(p)...)
		}
	}
	c.touch(rolled...)
	e.recordRollup(len(rolled))
	if err := e.settle(c, rolled); err != nil {
		return nil, e.reject(op, err)
	}
	return e.committed(c), nil
}

// UpsertDependency validates and stores d, then propagates from its
// predecessor so the successor honours the new link.
func (e *Editor) UpsertDependency(d model.Dependency) (*Commit, error) {
	const op = "upsert_dependency"
	saved, err := e.deps.Upsert(d)
	if err != nil {
		return nil, e.reject(op, err)
	}

	c := newCommit(op)
	c.Dependencies = []model.Dependency{saved}
	if err := e.propagate(c, []domain.TaskID{saved.PredecessorID}); err != nil {
		return nil, e.reject(op, err)
	}
	return e.committed(c), nil
}

// DeleteDependencies removes the given dependencies. Dates are left as
// they are.
func (e *Editor) DeleteDependencies(ids ...domain.DependencyID) (*Commit, error) {
	c := newCommit("delete_dependencies")
	c.RemovedDependencies = e.deps.Delete(ids...)
	return e.committed(c), nil
}

// SetExpanded sets the outline expansion state of id.
func (e *Editor) SetExpanded(id domain.TaskID, expanded bool) (*Commit, error) {
	const op = "set_expanded"
	if !e.tree.Has(id) {
		return nil, e.reject(op, e.notFound(id))
	}
	e.tree.SetExpanded(id, expanded)
	c := newCommit(op)
	c.touch(id)
	return e.committed(c), nil
}

// ExpandAll expands every row.
func (e *Editor) ExpandAll() {
	e.tree.ExpandAll()
}

// CollapseAll collapses every row that has children.
func (e *Editor) CollapseAll() {
	e.tree.CollapseAll()
}

// propagate runs a pass seeded with moved and then settles.
func (e *Editor) propagate(c *Commit, moved []domain.TaskID) error {
	pass, err := e.deps.EnforceAll(moved)
	e.recordPass(pass, err)
	if err != nil {
		e.recordError(err)
		return err
	}
	c.absorb(pass)
	return e.settle(c, pass.RolledUp)
}

// settle re-runs propagation from summaries whose rolled-up aggregates
// changed and that have successors, until nothing changes or the round
// limit is hit.
func (e *Editor) settle(c *Commit, rolled []domain.TaskID) error {
	rounds := 0
	for next := e.drivers(rolled); len(next) > 0; next = e.drivers(rolled) {
		if rounds == e.maxSettleRounds {
			e.log.Warn("settle round limit reached", "rounds", rounds, "pending", next)
			break
		}
		rounds++
		pass, err := e.deps.EnforceAll(next)
		e.recordPass(pass, err)
		if err != nil {
			e.recordError(err)
			return err
		}
		c.absorb(pass)
		rolled = pass.RolledUp
	}
	if e.metrics != nil {
		e.metrics.RecordSettle(rounds)
	}
	return nil
}

// drivers filters ids down to parents that have outgoing dependencies.
func (e *Editor) drivers(ids []domain.TaskID) []domain.TaskID {
	var out []domain.TaskID
	for _, id := range ids {
		if e.tree.HasChildren(id) && len(e.deps.Outgoing(id)) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// shiftOf returns the uniform delta a date patch implies and the endpoint
// that drives it.
func shiftOf(t *model.Task, patch model.TaskPatch) (time.Duration, domain.Endpoint) {
	switch {
	case patch.Start != nil:
		return patch.Start.Sub(t.Start), domain.EndpointStart
	case patch.End != nil:
		return patch.End.Sub(t.End), domain.EndpointEnd
	default:
		return 0, domain.EndpointStart
	}
}

// pinned adds the implicit rule a direct date edit synthesizes.
func pinned(t *model.Task, patch model.TaskPatch) model.TaskPatch {
	if !patch.MovesDates() {
		return patch
	}
	rules := t.Rules
	if patch.Rules != nil {
		rules = *patch.Rules
	}
	if patch.Start != nil {
		rules = model.PinImplicit(rules, domain.StartNoEarlierThan, *patch.Start)
	} else {
		rules = model.PinImplicit(rules, domain.FinishNoEarlierThan, *patch.End)
	}
	patch.Rules = &rules
	return patch
}

func validateRules(id domain.TaskID, rules []model.Rule) error {
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRule, fmt.Sprintf("rule %d of %s is invalid", i, id), err)
		}
	}
	return nil
}

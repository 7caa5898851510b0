package dependency

import (
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// PassResult reports what one propagation pass did.
type PassResult struct {
	Moved     []domain.TaskID // tasks whose dates the pass changed, in visit order
	Blocked   []domain.TaskID // summaries left in place because a descendant would clamp
	Conflicts []domain.TaskID // tasks whose soft bounds could not be reconciled
	Visited   []model.EdgeKey // edges evaluated, in order
	RolledUp  []domain.TaskID // summaries whose aggregates changed afterwards
}

// EdgesVisited returns the number of edge evaluations in the pass.
func (r PassResult) EdgesVisited() int {
	return len(r.Visited)
}

// Changed reports whether the pass moved or rolled up anything.
func (r PassResult) Changed() bool {
	return len(r.Moved) > 0 || len(r.RolledUp) > 0
}

// EnforceAll settles every dependency in topological order. Moved ids are
// treated as direct edits: they are seeded first and their own incoming
// edges are not re-evaluated. Every other task with incoming edges is
// evaluated when the order reaches it. A task with a predecessor that moved
// in this pass takes exactly the date its edges require; any other task is
// only pushed later, so EnforceAll(nil) repairs broken links without pulling
// in slack. A cycle in the committed graph aborts the pass with a DEP-002
// error before anything is written.
func (e *Engine) EnforceAll(moved []domain.TaskID) (PassResult, error) {
	var res PassResult
	if err := e.CheckAcyclic(); err != nil {
		return res, err
	}

	explicit := make(map[domain.TaskID]bool, len(moved))
	changed := make(map[domain.TaskID]bool, len(moved))
	for _, id := range moved {
		explicit[id] = true
		changed[id] = true
	}
	visited := make(map[model.EdgeKey]bool)
	touched := make(map[domain.TaskID]bool)
	markMoved := func(id domain.TaskID) {
		changed[id] = true
		if !touched[id] {
			touched[id] = true
			res.Moved = append(res.Moved, id)
		}
	}

	for _, id := range e.topoOrder(moved) {
		if explicit[id] {
			continue
		}
		t, ok := e.tree.Get(id)
		if !ok {
			continue
		}

		proposed, drive, ok := e.propose(t, visited, &res)
		if !ok {
			continue
		}
		if !e.anyPredecessorIn(id, changed) && !proposed.Start.After(t.Start) {
			continue
		}
		r := ApplyConstraint(e.RulesFor(t), proposed, drive)
		if r.Conflict {
			res.Conflicts = append(res.Conflicts, id)
		}
		if r.Span.Equal(SpanOf(t)) {
			continue
		}

		if e.tree.HasChildren(id) {
			delta := r.Start.Sub(t.Start)
			if delta == 0 {
				continue
			}
			if blockers := e.ShiftBlockers(id, delta, drive); len(blockers) > 0 {
				e.log.Info("summary shift blocked by descendant constraints",
					"task_id", id, "blockers", blockers)
				res.Blocked = append(res.Blocked, id)
				continue
			}
			for _, s := range e.ShiftSubtree(id, delta) {
				markMoved(s)
			}
			continue
		}

		e.tree.SetSpan(id, r.Start, r.End)
		markMoved(id)
	}

	seen := make(map[domain.TaskID]bool)
	for _, id := range append(append([]domain.TaskID(nil), moved...), res.Moved...) {
		for _, s := range e.roll.ResolveChain(id) {
			if !seen[s] {
				seen[s] = true
				res.RolledUp = append(res.RolledUp, s)
			}
		}
	}

	e.log.Debug("propagation pass finished", "seeds", len(moved), "moved", len(res.Moved),
		"edges", res.EdgesVisited(), "blocked", len(res.Blocked))
	return res, nil
}

// propose evaluates every not-yet-visited incoming edge of t once and returns
// the span implied by the latest required start, plus the endpoint the
// winning edge drives.
func (e *Engine) propose(t *model.Task, visited map[model.EdgeKey]bool, res *PassResult) (Span, domain.Endpoint, bool) {
	dur := t.Duration()
	var best time.Time
	drive := domain.EndpointStart
	have := false

	for _, i := range e.in[t.ID] {
		d := e.deps[i]
		key := d.Key()
		if visited[key] {
			continue
		}
		visited[key] = true
		res.Visited = append(res.Visited, key)

		anchor, target, ok := e.Required(d)
		if !ok {
			continue
		}
		start := anchor
		if target == domain.EndpointEnd {
			start = anchor.Add(-dur)
		}
		if !have || start.After(best) {
			best, drive, have = start, target, true
		}
	}
	return Span{Start: best, End: best.Add(dur)}, drive, have
}

func (e *Engine) anyPredecessorIn(id domain.TaskID, set map[domain.TaskID]bool) bool {
	for _, i := range e.in[id] {
		if set[e.deps[i].PredecessorID] {
			return true
		}
	}
	return false
}

// topoOrder returns every task in Kahn order over the dependency edges plus
// parent-before-child ordering edges. Zero in-degree seeds are taken moved
// ids first, then in flattened order. If the ordering edges close a cycle the
// dependency edges alone are used.
func (e *Engine) topoOrder(moved []domain.TaskID) []domain.TaskID {
	flat := e.tree.Flatten()
	if order := e.kahn(flat, moved, true); len(order) == len(flat) {
		return order
	}
	return e.kahn(flat, moved, false)
}

func (e *Engine) kahn(flat []*model.Task, moved []domain.TaskID, withHierarchy bool) []domain.TaskID {
	indeg := make(map[domain.TaskID]int, len(flat))
	next := make(map[domain.TaskID][]domain.TaskID, len(flat))
	add := func(a, b domain.TaskID) {
		next[a] = append(next[a], b)
		indeg[b]++
	}
	for _, d := range e.deps {
		add(d.PredecessorID, d.SuccessorID)
	}
	if withHierarchy {
		for _, t := range flat {
			if t.ParentID != "" {
				add(t.ParentID, t.ID)
			}
		}
	}

	queue := make([]domain.TaskID, 0, len(flat))
	queued := make(map[domain.TaskID]bool, len(flat))
	seed := func(id domain.TaskID) {
		if !queued[id] && indeg[id] == 0 && e.tree.Has(id) {
			queued[id] = true
			queue = append(queue, id)
		}
	}
	for _, id := range moved {
		seed(id)
	}
	for _, t := range flat {
		seed(t.ID)
	}

	order := make([]domain.TaskID, 0, len(flat))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, n := range next[id] {
			indeg[n]--
			if indeg[n] == 0 && !queued[n] {
				queued[n] = true
				queue = append(queue, n)
			}
		}
	}
	return order
}

// RulesFor returns the active constraint inputs for t: its own rules plus
// the bounds its summary ancestors impose.
func (e *Engine) RulesFor(t *model.Task) []model.Rule {
	rules := append([]model.Rule(nil), t.Rules...)
	return append(rules, AncestorRules(e.tree.Ancestors(t.ID))...)
}

// ShiftBlockers returns the descendants of id whose own constraints would
// clamp a uniform shift by delta. An empty result means the shift is allowed.
func (e *Engine) ShiftBlockers(id domain.TaskID, delta time.Duration, drive domain.Endpoint) []domain.TaskID {
	var blockers []domain.TaskID
	for _, d := range e.tree.Descendants(id) {
		shifted := SpanOf(d).Shift(delta)
		if r := ApplyConstraint(d.Rules, shifted, drive); !r.Span.Equal(shifted) {
			blockers = append(blockers, d.ID)
		}
	}
	return blockers
}

// ShiftSubtree moves id and every descendant by delta and returns the moved
// ids, id first.
func (e *Engine) ShiftSubtree(id domain.TaskID, delta time.Duration) []domain.TaskID {
	t, ok := e.tree.Get(id)
	if !ok {
		return nil
	}
	moved := []domain.TaskID{id}
	for _, d := range e.tree.Descendants(id) {
		e.tree.SetSpan(d.ID, d.Start.Add(delta), d.End.Add(delta))
		moved = append(moved, d.ID)
	}
	e.tree.SetSpan(id, t.Start.Add(delta), t.End.Add(delta))
	return moved
}

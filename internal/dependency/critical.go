package dependency

import (
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// CriticalPath returns the tasks that drive the finish date, in flattened
// order. The anchor is the non-summary task with the latest end (first in
// flattened order on ties), so a parent of milestones only can anchor; every task on a predecessor chain ending at the
// anchor is critical, and so is every ancestor of a critical task.
//
// This is reachability from a single anchor, not float analysis: parallel
// chains that do not reach the anchor are not reported.
func (e *Engine) CriticalPath() []domain.TaskID {
	flat := e.tree.Flatten()

	var anchor *model.Task
	for _, t := range flat {
		if t.IsSummary() {
			continue
		}
		if anchor == nil || t.End.After(anchor.End) {
			anchor = t
		}
	}
	if anchor == nil {
		return nil
	}

	critical := map[domain.TaskID]bool{anchor.ID: true}
	chain := []domain.TaskID{anchor.ID}
	queue := []domain.TaskID{anchor.ID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, i := range e.in[cur] {
			p := e.deps[i].PredecessorID
			if !critical[p] {
				critical[p] = true
				chain = append(chain, p)
				queue = append(queue, p)
			}
		}
	}

	for _, id := range chain {
		for _, a := range e.tree.Ancestors(id) {
			critical[a.ID] = true
		}
	}

	out := make([]domain.TaskID, 0, len(critical))
	for _, t := range flat {
		if critical[t.ID] {
			out = append(out, t.ID)
		}
	}
	return out
}

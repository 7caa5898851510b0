// Package rollup recomputes the aggregate span and progress of parent tasks.
package rollup

import (
	"math"
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// Tree is the part of the hierarchy store the rollup engine reads and writes.
type Tree interface {
	Get(id domain.TaskID) (*model.Task, bool)
	Children(id domain.TaskID) []*model.Task
	Flatten() []*model.Task
	SetSpan(id domain.TaskID, start, end time.Time) bool
	SetProgress(id domain.TaskID, progress int) bool
}

// Engine settles parent aggregates from their children.
type Engine struct {
	tree Tree
	log  *log.Logger
}

// New creates a rollup engine over tree. It panics on a nil tree.
func New(tree Tree, logger *log.Logger) *Engine {
	if tree == nil {
		panic("rollup: nil tree")
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{tree: tree, log: logger.WithComponent("rollup")}
}

// Resolve recomputes id from its children, then walks up through every
// ancestor. Childless tasks are left untouched. Returns the ids whose fields
// changed, nearest first.
func (e *Engine) Resolve(id domain.TaskID) []domain.TaskID {
	var changed []domain.TaskID
	for cur := id; cur != ""; {
		t, ok := e.tree.Get(cur)
		if !ok {
			break
		}
		if e.settle(t) {
			changed = append(changed, cur)
		}
		cur = t.ParentID
	}
	return changed
}

// ResolveChain settles the ancestors of id, starting at its parent.
func (e *Engine) ResolveChain(id domain.TaskID) []domain.TaskID {
	t, ok := e.tree.Get(id)
	if !ok || t.ParentID == "" {
		return nil
	}
	return e.Resolve(t.ParentID)
}

// ResolveAll settles every parent bottom-up.
func (e *Engine) ResolveAll() []domain.TaskID {
	flat := e.tree.Flatten()
	var changed []domain.TaskID
	for i := len(flat) - 1; i >= 0; i-- {
		if e.settle(flat[i]) {
			changed = append(changed, flat[i].ID)
		}
	}
	if len(changed) > 0 {
		e.log.Debug("rolled up summaries", "changed", len(changed))
	}
	return changed
}

// settle writes min start, max end and rounded mean progress of t's children
// onto t. It reports whether anything changed.
func (e *Engine) settle(t *model.Task) bool {
	start, end, progress, ok := Aggregate(e.tree, t.ID)
	if !ok {
		return false
	}

	changed := false
	if !t.Start.Equal(start) || !t.End.Equal(end) {
		e.tree.SetSpan(t.ID, start, end)
		changed = true
	}
	if t.Progress != progress {
		e.tree.SetProgress(t.ID, progress)
		changed = true
	}
	return changed
}

// Aggregate reports what Resolve would write for id without changing it.
// ok is false for childless or unknown tasks.
func Aggregate(tree Tree, id domain.TaskID) (start, end time.Time, progress int, ok bool) {
	kids := tree.Children(id)
	if len(kids) == 0 {
		return start, end, 0, false
	}
	start, end = kids[0].Start, kids[0].End
	sum := 0
	for _, c := range kids {
		if c.Start.Before(start) {
			start = c.Start
		}
		if c.End.After(end) {
			end = c.End
		}
		sum += c.Progress
	}
	return start, end, int(math.Round(float64(sum) / float64(len(kids)))), true
}

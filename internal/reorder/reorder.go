// Package reorder validates and performs structural changes to the task tree:
// sibling reordering, re-parenting and drag-drop placement.
package reorder

import (
	"sort"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/hierarchy"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// DefaultMaxDepth is the default number of hierarchy levels.
const DefaultMaxDepth = 10

// Graph answers dependency connectivity questions.
type Graph interface {
	Connected(a, b domain.TaskID) bool
}

// Roller settles summary aggregates.
type Roller interface {
	Resolve(id domain.TaskID) []domain.TaskID
	ResolveChain(id domain.TaskID) []domain.TaskID
}

// Placement is where a moved task ended up.
type Placement struct {
	NewIndex    int           `json:"new_index"`
	NewParentID domain.TaskID `json:"new_parent_id"`

	// RolledUp lists summaries whose aggregates changed after the move.
	RolledUp []domain.TaskID `json:"-"`
}

// Engine performs validated structural moves.
type Engine struct {
	tree     *hierarchy.Store
	deps     Graph
	roll     Roller
	maxDepth int
	log      *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth limits the hierarchy to n levels. Zero means unlimited.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// New creates a reorder engine. It panics on nil collaborators.
func New(tree *hierarchy.Store, deps Graph, roll Roller, logger *log.Logger, opts ...Option) *Engine {
	if tree == nil || deps == nil || roll == nil {
		panic("reorder: nil collaborator")
	}
	if logger == nil {
		logger = log.Discard()
	}
	e := &Engine{tree: tree, deps: deps, roll: roll, maxDepth: DefaultMaxDepth, log: logger.WithComponent("reorder")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the configured level limit.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

func (e *Engine) get(id domain.TaskID) (*model.Task, error) {
	t, ok := e.tree.Get(id)
	if !ok {
		e.log.Warn("move of unknown task ignored", "task_id", id)
		return nil, errors.NewTaskNotFoundError(id.String())
	}
	return t, nil
}

// MoveUp swaps id with its previous sibling.
func (e *Engine) MoveUp(id domain.TaskID) (Placement, error) {
	t, err := e.get(id)
	if err != nil {
		return Placement{}, err
	}
	if t.OrderIndex == 0 {
		return Placement{}, errors.Newf(errors.ErrCodeNoMove, "%s is already the first sibling", id)
	}
	return e.MoveTo(id, t.OrderIndex-1)
}

// MoveDown swaps id with its next sibling.
func (e *Engine) MoveDown(id domain.TaskID) (Placement, error) {
	t, err := e.get(id)
	if err != nil {
		return Placement{}, err
	}
	if t.OrderIndex >= len(e.tree.Siblings(id))-1 {
		return Placement{}, errors.Newf(errors.ErrCodeNoMove, "%s is already the last sibling", id)
	}
	return e.MoveTo(id, t.OrderIndex+1)
}

// MoveTo places id at index within its sibling group. The index is clamped.
func (e *Engine) MoveTo(id domain.TaskID, index int) (Placement, error) {
	t, err := e.get(id)
	if err != nil {
		return Placement{}, err
	}
	if _, err := e.tree.Update(id, model.TaskPatch{OrderIndex: &index}); err != nil {
		return Placement{}, err
	}
	return Placement{NewIndex: t.OrderIndex, NewParentID: t.ParentID}, nil
}

// MoveLeft lifts id one level, placing it right after its old parent.
func (e *Engine) MoveLeft(id domain.TaskID) (Placement, error) {
	t, err := e.get(id)
	if err != nil {
		return Placement{}, err
	}
	parent, ok := e.tree.Parent(id)
	if !ok {
		return Placement{}, errors.Newf(errors.ErrCodeNoMove, "%s is already at the top level", id)
	}
	if err := e.Validate(t.ID, parent.ParentID); err != nil {
		return Placement{}, err
	}
	return e.place(t, parent.ParentID, parent.OrderIndex+1)
}

// MoveRight makes the selection the last children of the sibling just above
// the first selected task. The selection must be contiguous siblings and
// must not include the first sibling.
func (e *Engine) MoveRight(ids ...domain.TaskID) (Placement, error) {
	sel, err := e.selection(ids)
	if err != nil {
		return Placement{}, err
	}
	target := e.tree.Siblings(sel[0].ID)[sel[0].OrderIndex-1]
	for _, t := range sel {
		if err := e.Validate(t.ID, target.ID); err != nil {
			return Placement{}, err
		}
	}

	var first Placement
	for i, t := range sel {
		p, err := e.place(t, target.ID, -1)
		if err != nil {
			return Placement{}, err
		}
		if i == 0 {
			first = p
		} else {
			first.RolledUp = append(first.RolledUp, p.RolledUp...)
		}
	}
	return first, nil
}

// selection resolves ids into an ordered run of contiguous siblings that
// does not start at the first sibling.
func (e *Engine) selection(ids []domain.TaskID) ([]*model.Task, error) {
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSelection, "empty selection")
	}
	sel := make([]*model.Task, 0, len(ids))
	seen := make(map[domain.TaskID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, err := e.get(id)
		if err != nil {
			return nil, err
		}
		if len(sel) > 0 && t.ParentID != sel[0].ParentID {
			return nil, errors.New(errors.ErrCodeInvalidSelection, "selection spans more than one sibling group")
		}
		sel = append(sel, t)
	}
	sortByOrder(sel)
	for i := 1; i < len(sel); i++ {
		if sel[i].OrderIndex != sel[i-1].OrderIndex+1 {
			return nil, errors.New(errors.ErrCodeInvalidSelection, "selection is not contiguous").
				WithSuggestion("Select a run of adjacent siblings")
		}
	}
	if sel[0].OrderIndex == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSelection, "the first sibling has no sibling above to move under")
	}
	return sel, nil
}

func sortByOrder(ts []*model.Task) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].OrderIndex < ts[j].OrderIndex })
}

// Drop places source relative to target and performs the move.
func (e *Engine) Drop(source, target domain.TaskID, pos domain.DropPosition) (Placement, error) {
	parent, index, err := e.Evaluate(source, target, pos)
	if err != nil {
		return Placement{}, err
	}
	t, _ := e.tree.Get(source)
	return e.place(t, parent, index)
}

// Evaluate computes and validates where a drop would land without changing
// anything.
func (e *Engine) Evaluate(source, target domain.TaskID, pos domain.DropPosition) (domain.TaskID, int, error) {
	src, err := e.get(source)
	if err != nil {
		return "", 0, err
	}
	tgt, err := e.get(target)
	if err != nil {
		return "", 0, err
	}
	if source == target || e.tree.IsDescendant(target, source) {
		return "", 0, errors.Newf(errors.ErrCodeMoveIntoSelf, "cannot drop %s onto its own subtree", source)
	}

	var parent domain.TaskID
	var index int
	switch pos {
	case domain.DropInside:
		parent, index = tgt.ID, e.tree.ChildCount(tgt.ID)
	case domain.DropAbove, domain.DropBelow:
		parent, index = tgt.ParentID, tgt.OrderIndex
		if src.ParentID == tgt.ParentID && src.OrderIndex < tgt.OrderIndex {
			index--
		}
		if pos == domain.DropBelow {
			index++
		}
	default:
		_, err := domain.ParseDropPosition(string(pos))
		return "", 0, errors.Wrap(errors.ErrCodeNoMove, "invalid drop position", err)
	}

	if parent != src.ParentID {
		if err := e.Validate(source, parent); err != nil {
			return "", 0, err
		}
	}
	return parent, index, nil
}

// Validate checks that source may become a child of parent. The empty parent
// is the top level and accepts everything. Checks run in order and the first
// failure is returned.
func (e *Engine) Validate(source, parent domain.TaskID) error {
	src, err := e.get(source)
	if err != nil {
		return err
	}
	if parent == "" {
		return nil
	}
	p, err := e.get(parent)
	if err != nil {
		return err
	}

	if parent == source || e.tree.IsDescendant(parent, source) {
		return errors.Newf(errors.ErrCodeMoveIntoSelf, "cannot move %s into its own subtree", source)
	}
	if !p.Kind.CanHaveChildren() || (p.AcceptedChildKinds != nil && len(p.AcceptedChildKinds) == 0) {
		return errors.Newf(errors.ErrCodeParentNoChildren, "%s cannot have children", parent)
	}
	if !p.Accepts(src.Kind) {
		return errors.Newf(errors.ErrCodeChildKindRejected, "%s does not accept %s children", parent, src.Kind)
	}
	if e.maxDepth > 0 {
		if depth := p.Level + 2 + e.height(source); depth > e.maxDepth {
			return errors.Newf(errors.ErrCodeDepthExceeded, "moving %s under %s needs %d levels, limit is %d",
				source, parent, depth, e.maxDepth)
		}
	}
	if e.deps.Connected(source, parent) {
		return errors.Newf(errors.ErrCodeLinkedToParent, "%s and %s are linked by a dependency", source, parent).
			WithSuggestion("Remove the dependency before nesting the tasks")
	}
	for _, a := range e.tree.Ancestors(parent) {
		if e.deps.Connected(source, a.ID) {
			return errors.Newf(errors.ErrCodeLinkedToParent, "%s and ancestor %s are linked by a dependency", source, a.ID)
		}
	}
	return nil
}

// height returns how many levels lie below id.
func (e *Engine) height(id domain.TaskID) int {
	t, _ := e.tree.Get(id)
	h := 0
	for _, d := range e.tree.Descendants(id) {
		if l := d.Level - t.Level; l > h {
			h = l
		}
	}
	return h
}

// place re-parents t under parent at index (negative = last child) and rolls
// up both the old and the new parent chains.
func (e *Engine) place(t *model.Task, parent domain.TaskID, index int) (Placement, error) {
	oldParent := t.ParentID
	patch := model.TaskPatch{ParentID: &parent, OrderIndex: &index}
	if _, err := e.tree.Update(t.ID, patch); err != nil {
		return Placement{}, err
	}

	var rolled []domain.TaskID
	if oldParent != "" && oldParent != parent {
		rolled = append(rolled, e.roll.Resolve(oldParent)...)
	}
	rolled = append(rolled, e.roll.ResolveChain(t.ID)...)

	e.log.Debug("task placed", "task_id", t.ID, "parent_id", t.ParentID, "index", t.OrderIndex)
	return Placement{NewIndex: t.OrderIndex, NewParentID: t.ParentID, RolledUp: rolled}, nil
}

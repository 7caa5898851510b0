// Package hierarchy owns the task arena and its derived parent/child index.
package hierarchy

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// Store is an arena of tasks keyed by id. The child index, levels, paths and
// kinds are derived and rebuilt lazily after Add or Delete.
type Store struct {
	tasks     map[domain.TaskID]*model.Task
	seq       map[domain.TaskID]int // insertion order, breaks OrderIndex ties
	nextSeq   int
	children  map[domain.TaskID][]domain.TaskID // "" holds the roots
	dirty     bool
	collapsed map[domain.TaskID]bool
	log       *log.Logger
}

// New creates an empty store. A nil logger discards output.
func New(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		tasks:     make(map[domain.TaskID]*model.Task),
		seq:       make(map[domain.TaskID]int),
		children:  make(map[domain.TaskID][]domain.TaskID),
		collapsed: make(map[domain.TaskID]bool),
		log:       logger.WithComponent("hierarchy"),
	}
}

// UpsertAll replaces the arena with tasks and rebuilds the index. Empty ids
// are assigned a UUID. On error the store is left unchanged.
func (s *Store) UpsertAll(tasks []model.Task) error {
	arena := make(map[domain.TaskID]*model.Task, len(tasks))
	seq := make(map[domain.TaskID]int, len(tasks))

	for i := range tasks {
		t := tasks[i].Clone()
		if t.ID == "" {
			t.ID = domain.TaskID(uuid.NewString())
		}
		if err := t.ID.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidTaskField, "invalid task id", err)
		}
		if _, dup := arena[t.ID]; dup {
			return errors.Newf(errors.ErrCodeDuplicateTask, "duplicate task id: %s", t.ID)
		}
		arena[t.ID] = &t
		seq[t.ID] = i
	}

	for id, t := range arena {
		if t.ParentID == "" {
			continue
		}
		if _, ok := arena[t.ParentID]; !ok {
			return errors.Newf(errors.ErrCodeUnknownParent, "task %s references unknown parent %s", id, t.ParentID).
				WithSuggestion("Add the parent task or clear parent_id")
		}
	}

	if path := findParentCycle(arena); path != nil {
		return errors.Newf(errors.ErrCodeParentCycle, "parent relation contains a cycle: %v", path)
	}

	collapsed := make(map[domain.TaskID]bool)
	for id := range s.collapsed {
		if _, ok := arena[id]; ok {
			collapsed[id] = true
		}
	}

	s.tasks = arena
	s.seq = seq
	s.nextSeq = len(tasks)
	s.collapsed = collapsed
	s.rebuild()

	s.log.Debug("upserted tasks", "count", len(arena))
	return nil
}

// findParentCycle walks each parent chain and returns the ids of the first
// cycle it finds, or nil.
func findParentCycle(arena map[domain.TaskID]*model.Task) []domain.TaskID {
	done := make(map[domain.TaskID]bool, len(arena))
	for id := range arena {
		onChain := make(map[domain.TaskID]bool)
		var chain []domain.TaskID
		for cur := id; cur != "" && !done[cur]; cur = arena[cur].ParentID {
			if onChain[cur] {
				return append(chain, cur)
			}
			onChain[cur] = true
			chain = append(chain, cur)
		}
		for _, c := range chain {
			done[c] = true
		}
	}
	return nil
}

// ensure rebuilds the derived index if a structural mutation invalidated it.
func (s *Store) ensure() {
	if s.dirty {
		s.rebuild()
	}
}

// rebuild groups tasks by parent, sorts each group by OrderIndex (ties by
// insertion order), renumbers densely, then derives level, path and kind.
func (s *Store) rebuild() {
	s.children = make(map[domain.TaskID][]domain.TaskID, len(s.tasks))
	for id, t := range s.tasks {
		s.children[t.ParentID] = append(s.children[t.ParentID], id)
	}
	for parent := range s.children {
		s.sortGroup(parent)
	}

	var walk func(id domain.TaskID, level int, path []domain.TaskID)
	walk = func(id domain.TaskID, level int, path []domain.TaskID) {
		t := s.tasks[id]
		t.Level = level
		t.Path = append(append(make([]domain.TaskID, 0, len(path)+1), path...), id)
		for _, c := range s.children[id] {
			walk(c, level+1, t.Path)
		}
		s.deriveKind(t)
	}
	for _, root := range s.children[""] {
		walk(root, 0, nil)
	}
	s.dirty = false
}

func (s *Store) sortGroup(parent domain.TaskID) {
	group := s.children[parent]
	sort.SliceStable(group, func(i, j int) bool {
		a, b := s.tasks[group[i]], s.tasks[group[j]]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})
	s.renumber(parent)
}

func (s *Store) renumber(parent domain.TaskID) {
	for i, id := range s.children[parent] {
		s.tasks[id].OrderIndex = i
	}
}

// deriveKind sets t.Kind from its span and its children's kinds.
func (s *Store) deriveKind(t *model.Task) {
	kids := s.children[t.ID]
	if len(kids) == 0 {
		if t.Start.Equal(t.End) {
			t.Kind = domain.KindMilestone
		} else {
			t.Kind = domain.KindTask
		}
		return
	}
	for _, c := range kids {
		if s.tasks[c].Kind != domain.KindMilestone {
			t.Kind = domain.KindSummary
			return
		}
	}
	t.Kind = domain.KindMilestone
}

// rederiveUp re-derives the kind of id and every ancestor.
func (s *Store) rederiveUp(id domain.TaskID) {
	for cur := id; cur != ""; {
		t, ok := s.tasks[cur]
		if !ok {
			return
		}
		s.deriveKind(t)
		cur = t.ParentID
	}
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	return len(s.tasks)
}

// Has reports whether id is in the arena.
func (s *Store) Has(id domain.TaskID) bool {
	_, ok := s.tasks[id]
	return ok
}

// Get returns the live task for id. Callers outside the engines must not
// write through the pointer.
func (s *Store) Get(id domain.TaskID) (*model.Task, bool) {
	s.ensure()
	t, ok := s.tasks[id]
	return t, ok
}

// Children returns the ordered children of id. The empty id yields the roots.
func (s *Store) Children(id domain.TaskID) []*model.Task {
	s.ensure()
	return s.resolve(s.children[id])
}

// ChildCount returns the number of children of id.
func (s *Store) ChildCount(id domain.TaskID) int {
	s.ensure()
	return len(s.children[id])
}

// HasChildren reports whether id has at least one child.
func (s *Store) HasChildren(id domain.TaskID) bool {
	return s.ChildCount(id) > 0
}

// Descendants returns the subtree below id in depth-first pre-order.
func (s *Store) Descendants(id domain.TaskID) []*model.Task {
	s.ensure()
	var out []*model.Task
	var walk func(domain.TaskID)
	walk = func(p domain.TaskID) {
		for _, c := range s.children[p] {
			out = append(out, s.tasks[c])
			walk(c)
		}
	}
	walk(id)
	return out
}

// IsDescendant reports whether id lies strictly below ancestor.
func (s *Store) IsDescendant(id, ancestor domain.TaskID) bool {
	for cur := s.parentID(id); cur != ""; cur = s.parentID(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (s *Store) parentID(id domain.TaskID) domain.TaskID {
	if t, ok := s.tasks[id]; ok {
		return t.ParentID
	}
	return ""
}

// Parent returns the parent of id, if any.
func (s *Store) Parent(id domain.TaskID) (*model.Task, bool) {
	s.ensure()
	t, ok := s.tasks[id]
	if !ok || t.ParentID == "" {
		return nil, false
	}
	p, ok := s.tasks[t.ParentID]
	return p, ok
}

// Siblings returns the ordered sibling group of id, including id itself.
func (s *Store) Siblings(id domain.TaskID) []*model.Task {
	s.ensure()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	return s.resolve(s.children[t.ParentID])
}

// Ancestors returns the ancestors of id, nearest first.
func (s *Store) Ancestors(id domain.TaskID) []*model.Task {
	s.ensure()
	var out []*model.Task
	for cur := s.parentID(id); cur != ""; cur = s.parentID(cur) {
		out = append(out, s.tasks[cur])
	}
	return out
}

func (s *Store) resolve(ids []domain.TaskID) []*model.Task {
	out := make([]*model.Task, len(ids))
	for i, id := range ids {
		out[i] = s.tasks[id]
	}
	return out
}

// Update applies patch to id. A changed parent is patched incrementally into
// the two affected sibling groups; a changed OrderIndex is clamped and the
// group re-sorted. A missing id is a logged no-op and reports false.
func (s *Store) Update(id domain.TaskID, patch model.TaskPatch) (bool, error) {
	s.ensure()
	t, ok := s.tasks[id]
	if !ok {
		s.log.Warn("update of unknown task ignored", "task_id", id)
		return false, nil
	}

	if patch.ParentID != nil && *patch.ParentID != t.ParentID {
		newParent := *patch.ParentID
		if newParent != "" {
			if _, ok := s.tasks[newParent]; !ok {
				return false, errors.NewTaskNotFoundError(newParent.String())
			}
			if newParent == id || s.IsDescendant(newParent, id) {
				return false, errors.Newf(errors.ErrCodeParentCycle, "cannot move %s under its own subtree", id)
			}
		}
	}

	structural := patch
	structural.ParentID, structural.OrderIndex = nil, nil
	structural.Apply(t)

	switch {
	case patch.ParentID != nil && *patch.ParentID != t.ParentID:
		index := -1
		if patch.OrderIndex != nil {
			index = *patch.OrderIndex
		}
		s.reparent(t, *patch.ParentID, index)
	case patch.OrderIndex != nil:
		s.moveWithinGroup(t, *patch.OrderIndex)
	}

	if patch.MovesDates() {
		s.rederiveUp(id)
	}
	return true, nil
}

// moveWithinGroup places t at index (clamped) inside its sibling group.
func (s *Store) moveWithinGroup(t *model.Task, index int) {
	if index < 0 {
		index = 0
	}
	group := removeID(s.children[t.ParentID], t.ID)
	s.children[t.ParentID] = insertID(group, t.ID, index)
	s.renumber(t.ParentID)
}

// reparent detaches t from its group and inserts it under parent at index
// (clamped; negative appends). Only the two groups and the moved subtree's
// derived fields are touched.
func (s *Store) reparent(t *model.Task, parent domain.TaskID, index int) {
	old := t.ParentID
	s.children[old] = removeID(s.children[old], t.ID)
	if len(s.children[old]) == 0 && old != "" {
		delete(s.children, old)
	}
	s.renumber(old)

	t.ParentID = parent
	s.children[parent] = insertID(s.children[parent], t.ID, index)
	s.renumber(parent)

	level, path := 0, []domain.TaskID(nil)
	if p, ok := s.tasks[parent]; ok {
		level, path = p.Level+1, p.Path
	}
	var walk func(id domain.TaskID, level int, path []domain.TaskID)
	walk = func(id domain.TaskID, level int, path []domain.TaskID) {
		n := s.tasks[id]
		n.Level = level
		n.Path = append(append(make([]domain.TaskID, 0, len(path)+1), path...), id)
		for _, c := range s.children[id] {
			walk(c, level+1, n.Path)
		}
	}
	walk(t.ID, level, path)

	s.rederiveUp(old)
	s.rederiveUp(parent)
}

func removeID(ids []domain.TaskID, id domain.TaskID) []domain.TaskID {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// insertID inserts id at index, clamped to [0, len]; negative appends.
func insertID(ids []domain.TaskID, id domain.TaskID, index int) []domain.TaskID {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	out := make([]domain.TaskID, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	return append(out, ids[index:]...)
}

// Add inserts tasks at their OrderIndex within the parent's group (clamped;
// negative appends). Unknown parents and duplicate ids are skipped with a log
// line. Returns the ids of the inserted tasks.
func (s *Store) Add(tasks ...model.Task) []domain.TaskID {
	s.ensure()
	var added []domain.TaskID
	for i := range tasks {
		t := tasks[i].Clone()
		if t.ID == "" {
			t.ID = domain.TaskID(uuid.NewString())
		}
		if err := t.ID.Validate(); err != nil {
			s.log.Warn("skipping task with invalid id", "error", err)
			continue
		}
		if _, dup := s.tasks[t.ID]; dup {
			s.log.Warn("skipping duplicate task", "task_id", t.ID)
			continue
		}
		if t.ParentID != "" {
			if _, ok := s.tasks[t.ParentID]; !ok {
				s.log.Warn("skipping task with unknown parent", "task_id", t.ID, "parent_id", t.ParentID)
				continue
			}
		}

		s.tasks[t.ID] = &t
		s.seq[t.ID] = s.nextSeq
		s.nextSeq++
		s.children[t.ParentID] = insertID(s.children[t.ParentID], t.ID, t.OrderIndex)
		s.renumber(t.ParentID)
		added = append(added, t.ID)
	}
	if len(added) > 0 {
		s.dirty = true
	}
	return added
}

// Delete removes each id together with its whole subtree and returns every
// removed id. Unknown ids are logged and skipped.
func (s *Store) Delete(ids ...domain.TaskID) []domain.TaskID {
	s.ensure()
	var removed []domain.TaskID
	gone := make(map[domain.TaskID]bool)
	for _, id := range ids {
		if gone[id] {
			continue
		}
		if _, ok := s.tasks[id]; !ok {
			s.log.Warn("delete of unknown task ignored", "task_id", id)
			continue
		}
		subtree := append([]domain.TaskID{id}, descendantIDs(s.children, id)...)
		for _, d := range subtree {
			if gone[d] {
				continue
			}
			gone[d] = true
			delete(s.tasks, d)
			delete(s.seq, d)
			delete(s.collapsed, d)
			removed = append(removed, d)
		}
		s.dirty = true
	}
	return removed
}

func descendantIDs(children map[domain.TaskID][]domain.TaskID, id domain.TaskID) []domain.TaskID {
	var out []domain.TaskID
	for _, c := range children[id] {
		out = append(out, c)
		out = append(out, descendantIDs(children, c)...)
	}
	return out
}

// Flatten returns every task in depth-first order, ignoring expansion.
func (s *Store) Flatten() []*model.Task {
	return s.flatten(false)
}

// FlattenVisible returns tasks in depth-first order, emitting children only
// when every ancestor is expanded.
func (s *Store) FlattenVisible() []*model.Task {
	return s.flatten(true)
}

func (s *Store) flatten(visibleOnly bool) []*model.Task {
	s.ensure()
	out := make([]*model.Task, 0, len(s.tasks))
	var walk func(domain.TaskID)
	walk = func(p domain.TaskID) {
		for _, c := range s.children[p] {
			out = append(out, s.tasks[c])
			if visibleOnly && s.collapsed[c] {
				continue
			}
			walk(c)
		}
	}
	walk("")
	return out
}

// SetExpanded sets the expansion state of id. Unknown ids are ignored.
func (s *Store) SetExpanded(id domain.TaskID, expanded bool) {
	if _, ok := s.tasks[id]; !ok {
		s.log.Warn("expand of unknown task ignored", "task_id", id)
		return
	}
	if expanded {
		delete(s.collapsed, id)
	} else {
		s.collapsed[id] = true
	}
}

// Expanded reports whether id is expanded. Tasks are expanded by default.
func (s *Store) Expanded(id domain.TaskID) bool {
	return !s.collapsed[id]
}

// ExpandedIDs returns the expanded tasks that have children, in flattened
// order. The result is never nil, so an all-collapsed tree stays distinct
// from a state that carries no expansion at all.
func (s *Store) ExpandedIDs() []domain.TaskID {
	out := []domain.TaskID{}
	for _, t := range s.Flatten() {
		if len(s.children[t.ID]) > 0 && !s.collapsed[t.ID] {
			out = append(out, t.ID)
		}
	}
	return out
}

// ExpandAll expands every task.
func (s *Store) ExpandAll() {
	s.collapsed = make(map[domain.TaskID]bool)
}

// CollapseAll collapses every task that has children.
func (s *Store) CollapseAll() {
	s.ensure()
	for parent := range s.children {
		if parent != "" {
			s.collapsed[parent] = true
		}
	}
}

// SetSpan writes start and end of id and re-derives kinds up the ancestor
// chain. It reports false for unknown ids.
func (s *Store) SetSpan(id domain.TaskID, start, end time.Time) bool {
	s.ensure()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.Start, t.End = start, end
	s.rederiveUp(id)
	return true
}

// SetProgress writes the progress of id.
func (s *Store) SetProgress(id domain.TaskID, progress int) bool {
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.Progress = progress
	return true
}

// Range returns the earliest start and latest end over all tasks. ok is
// false for an empty store.
func (s *Store) Range() (start, end time.Time, ok bool) {
	for _, t := range s.tasks {
		if !ok || t.Start.Before(start) {
			start = t.Start
		}
		if !ok || t.End.After(end) {
			end = t.End
		}
		ok = true
	}
	return start, end, ok
}

// Tasks returns deep copies of every task in flattened order.
func (s *Store) Tasks() []model.Task {
	flat := s.Flatten()
	out := make([]model.Task, len(flat))
	for i, t := range flat {
		out[i] = t.Clone()
	}
	return out
}

// Clone returns an independent copy of the store for simulation.
func (s *Store) Clone() *Store {
	s.ensure()
	c := &Store{
		tasks:     make(map[domain.TaskID]*model.Task, len(s.tasks)),
		seq:       make(map[domain.TaskID]int, len(s.seq)),
		nextSeq:   s.nextSeq,
		children:  make(map[domain.TaskID][]domain.TaskID, len(s.children)),
		collapsed: make(map[domain.TaskID]bool, len(s.collapsed)),
		log:       s.log,
	}
	for id, t := range s.tasks {
		cp := t.Clone()
		c.tasks[id] = &cp
	}
	for id, n := range s.seq {
		c.seq[id] = n
	}
	for p, ids := range s.children {
		c.children[p] = append([]domain.TaskID(nil), ids...)
	}
	for id := range s.collapsed {
		c.collapsed[id] = true
	}
	return c
}

// String summarizes the store for debugging.
func (s *Store) String() string {
	return fmt.Sprintf("hierarchy.Store{tasks: %d, roots: %d}", len(s.tasks), len(s.children[""]))
}

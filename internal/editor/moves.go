package editor

import (
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/reorder"
)

// MoveUp swaps id with its previous sibling.
func (e *Editor) MoveUp(id domain.TaskID) (*Commit, error) {
	return e.move("move_up", []domain.TaskID{id}, func() (reorder.Placement, error) {
		return e.moves.MoveUp(id)
	})
}

// MoveDown swaps id with its next sibling.
func (e *Editor) MoveDown(id domain.TaskID) (*Commit, error) {
	return e.move("move_down", []domain.TaskID{id}, func() (reorder.Placement, error) {
		return e.moves.MoveDown(id)
	})
}

// MoveTo places id at index inside its sibling group.
func (e *Editor) MoveTo(id domain.TaskID, index int) (*Commit, error) {
	return e.move("move_to", []domain.TaskID{id}, func() (reorder.Placement, error) {
		return e.moves.MoveTo(id, index)
	})
}

// MoveLeft outdents id to sit right after its former parent.
func (e *Editor) MoveLeft(id domain.TaskID) (*Commit, error) {
	return e.move("move_left", []domain.TaskID{id}, func() (reorder.Placement, error) {
		return e.moves.MoveLeft(id)
	})
}

// MoveRight indents the contiguous selection under the sibling before it.
func (e *Editor) MoveRight(ids ...domain.TaskID) (*Commit, error) {
	return e.move("move_right", ids, func() (reorder.Placement, error) {
		return e.moves.MoveRight(ids...)
	})
}

// Drop places source relative to target.
func (e *Editor) Drop(source, target domain.TaskID, pos domain.DropPosition) (*Commit, error) {
	return e.move("drop", []domain.TaskID{source}, func() (reorder.Placement, error) {
		return e.moves.Drop(source, target, pos)
	})
}

func (e *Editor) move(op string, ids []domain.TaskID, fn func() (reorder.Placement, error)) (*Commit, error) {
	p, err := fn()
	if err != nil {
		return nil, e.reject(op, err)
	}

	c := newCommit(op)
	c.Placement = &p
	c.touch(ids...)
	c.touch(p.RolledUp...)
	e.recordRollup(len(p.RolledUp))
	if err := e.settle(c, p.RolledUp); err != nil {
		return nil, e.reject(op, err)
	}
	return e.committed(c), nil
}

// DragSession is an editor-bound drag and drop gesture. Evaluations are
// side-effect free; only Commit mutates.
type DragSession struct {
	ed *Editor
	s  *reorder.Session
}

// BeginDrag starts a drag of source.
func (e *Editor) BeginDrag(source domain.TaskID) (*DragSession, error) {
	s, err := e.moves.BeginDrag(source)
	if err != nil {
		return nil, e.reject("begin_drag", err)
	}
	return &DragSession{ed: e, s: s}, nil
}

// State returns the gesture state.
func (d *DragSession) State() reorder.State {
	return d.s.State()
}

// Source returns the dragged task.
func (d *DragSession) Source() domain.TaskID {
	return d.s.Source()
}

// Over evaluates dropping onto target at pos.
func (d *DragSession) Over(target domain.TaskID, pos domain.DropPosition) (reorder.Evaluation, error) {
	return d.s.Over(target, pos)
}

// Commit performs the last allowed evaluation.
func (d *DragSession) Commit() (*Commit, error) {
	return d.ed.move("drop", []domain.TaskID{d.s.Source()}, d.s.Commit)
}

// Cancel abandons the gesture.
func (d *DragSession) Cancel() {
	d.s.Cancel()
}

package reorder

import (
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
)

// State is the phase of a drag gesture.
type State int

// Drag states
const (
	StateIdle State = iota
	StateDragging
	StateEvaluating
	StateCommitted
	StateCancelled
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateEvaluating:
		return "evaluating"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Evaluation is the verdict for the current drop target.
type Evaluation struct {
	Target   domain.TaskID
	Position domain.DropPosition
	ParentID domain.TaskID
	Index    int
	Err      error // nil when the drop is allowed
}

// Allowed reports whether the drop would be accepted.
func (ev Evaluation) Allowed() bool {
	return ev.Err == nil
}

// Session tracks one drag gesture: idle, dragging a source, evaluating a
// target, then committed or cancelled. Nothing is written before Commit.
type Session struct {
	engine *Engine
	state  State
	source domain.TaskID
	last   Evaluation
}

// NewSession returns an idle session.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e}
}

// BeginDrag starts a session dragging source.
func (e *Engine) BeginDrag(source domain.TaskID) (*Session, error) {
	s := e.NewSession()
	if err := s.Start(source); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// Source returns the dragged task.
func (s *Session) Source() domain.TaskID {
	return s.source
}

// Last returns the most recent evaluation.
func (s *Session) Last() Evaluation {
	return s.last
}

// Start moves an idle session into dragging.
func (s *Session) Start(source domain.TaskID) error {
	if s.state != StateIdle {
		return s.transitionError("start")
	}
	if _, err := s.engine.get(source); err != nil {
		return err
	}
	s.source = source
	s.state = StateDragging
	return nil
}

// Over evaluates dropping the source at pos relative to target. It may be
// called any number of times while dragging and never changes the tree.
func (s *Session) Over(target domain.TaskID, pos domain.DropPosition) (Evaluation, error) {
	if s.state != StateDragging && s.state != StateEvaluating {
		return Evaluation{}, s.transitionError("evaluate")
	}
	parent, index, err := s.engine.Evaluate(s.source, target, pos)
	s.last = Evaluation{Target: target, Position: pos, ParentID: parent, Index: index, Err: err}
	s.state = StateEvaluating
	return s.last, nil
}

// Commit performs the last evaluated drop.
func (s *Session) Commit() (Placement, error) {
	if s.state != StateEvaluating {
		return Placement{}, s.transitionError("commit")
	}
	if s.last.Err != nil {
		return Placement{}, s.last.Err
	}
	p, err := s.engine.Drop(s.source, s.last.Target, s.last.Position)
	if err != nil {
		return Placement{}, err
	}
	s.state = StateCommitted
	return p, nil
}

// Cancel abandons the gesture. Cancelling a finished session is a no-op.
func (s *Session) Cancel() {
	if s.state == StateCommitted {
		return
	}
	s.state = StateCancelled
}

func (s *Session) transitionError(action string) error {
	return errors.Newf(errors.ErrCodeDragState, "cannot %s a drag session in state %s", action, s.state)
}

package model

import (
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
)

// Task represents a schedulable unit in the timeline hierarchy
type Task struct {
	ID                 domain.TaskID     `json:"id" yaml:"id"`
	Name               string            `json:"name,omitempty" yaml:"name,omitempty"`
	ParentID           domain.TaskID     `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	OrderIndex         int               `json:"order_index" yaml:"order_index"`
	Start              time.Time         `json:"start" yaml:"start"`
	End                time.Time         `json:"end" yaml:"end"`
	Progress           int               `json:"progress" yaml:"progress"`
	Kind               domain.TaskKind   `json:"kind,omitempty" yaml:"kind,omitempty"` // derived, never trusted from input
	Rules              []Rule            `json:"rules,omitempty" yaml:"rules,omitempty"`
	AcceptedChildKinds []domain.TaskKind `json:"accepted_child_kinds" yaml:"accepted_child_kinds,omitempty"` // null = undeclared, [] = none

	// Derived on rebuild
	Level int             `json:"-" yaml:"-"`
	Path  []domain.TaskID `json:"-" yaml:"-"`
}

// Duration returns End - Start.
func (t *Task) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// IsSummary reports whether the derived kind is summary.
func (t *Task) IsSummary() bool {
	return t.Kind == domain.KindSummary
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() Task {
	c := *t
	if t.Rules != nil {
		c.Rules = make([]Rule, len(t.Rules))
		copy(c.Rules, t.Rules)
	}
	if t.AcceptedChildKinds != nil {
		c.AcceptedChildKinds = make([]domain.TaskKind, len(t.AcceptedChildKinds))
		copy(c.AcceptedChildKinds, t.AcceptedChildKinds)
	}
	if t.Path != nil {
		c.Path = make([]domain.TaskID, len(t.Path))
		copy(c.Path, t.Path)
	}
	return c
}

// Accepts reports whether a child of the given kind may be placed under t.
// An undeclared allow-list accepts every kind; an empty one accepts none.
func (t *Task) Accepts(kind domain.TaskKind) bool {
	if t.AcceptedChildKinds == nil {
		return true
	}
	for _, k := range t.AcceptedChildKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ActiveRules returns the active rules of the given category.
func (t *Task) ActiveRules(category domain.RuleCategory) []Rule {
	var out []Rule
	for _, r := range t.Rules {
		if r.Active && r.Type.Category() == category {
			out = append(out, r)
		}
	}
	return out
}

// TaskPatch carries the fields of an update. Nil fields are left untouched.
type TaskPatch struct {
	Name               *string
	ParentID           *domain.TaskID
	OrderIndex         *int
	Start              *time.Time
	End                *time.Time
	Progress           *int
	Rules              *[]Rule
	AcceptedChildKinds *[]domain.TaskKind
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Name == nil && p.ParentID == nil && p.OrderIndex == nil && p.Start == nil &&
		p.End == nil && p.Progress == nil && p.Rules == nil && p.AcceptedChildKinds == nil
}

// MovesDates reports whether the patch touches start or end.
func (p TaskPatch) MovesDates() bool {
	return p.Start != nil || p.End != nil
}

// Apply writes the non-nil fields onto t. Structural fields (ParentID,
// OrderIndex) are copied as-is; index maintenance is the caller's job.
func (p TaskPatch) Apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.ParentID != nil {
		t.ParentID = *p.ParentID
	}
	if p.OrderIndex != nil {
		t.OrderIndex = *p.OrderIndex
	}
	if p.Start != nil {
		t.Start = *p.Start
	}
	if p.End != nil {
		t.End = *p.End
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.Rules != nil {
		t.Rules = append([]Rule(nil), (*p.Rules)...)
	}
	if p.AcceptedChildKinds != nil {
		t.AcceptedChildKinds = append([]domain.TaskKind{}, (*p.AcceptedChildKinds)...)
	}
}

// Span returns a patch moving both dates.
func Span(start, end time.Time) TaskPatch {
	return TaskPatch{Start: &start, End: &end}
}

package domain

import "fmt"

// TaskKind is the derived shape of a task in the hierarchy.
type TaskKind string

// Task kinds
const (
	KindTask      TaskKind = "task"      // leaf with a span
	KindSummary   TaskKind = "summary"   // derives its span from children
	KindMilestone TaskKind = "milestone" // zero duration, or an all-milestone subtree
)

// AllTaskKinds lists every kind in declaration order.
var AllTaskKinds = []TaskKind{KindTask, KindSummary, KindMilestone}

// ParseTaskKind creates a TaskKind value object with validation
func ParseTaskKind(value string) (TaskKind, error) {
	k := TaskKind(value)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate checks if the kind is valid
func (k TaskKind) Validate() error {
	switch k {
	case KindTask, KindSummary, KindMilestone:
		return nil
	default:
		return fmt.Errorf("invalid task kind %q: must be task, summary, or milestone", string(k))
	}
}

// String returns the string representation
func (k TaskKind) String() string {
	return string(k)
}

// CanHaveChildren reports whether a task of this kind may receive children.
func (k TaskKind) CanHaveChildren() bool {
	return k != KindMilestone
}

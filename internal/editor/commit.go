package editor

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/timeline/internal/dependency"
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/reorder"
)

// ViolationPolicy decides what UpdateTask does when the preview of an edit
// fails.
type ViolationPolicy int

const (
	// PolicyReject refuses the edit and returns a *ViolationError.
	PolicyReject ViolationPolicy = iota
	// PolicyDeleteViolated removes the violated dependencies, then commits.
	// Anomalies still reject.
	PolicyDeleteViolated
	// PolicyForce commits regardless and reports what was found.
	PolicyForce
)

var policyNames = map[ViolationPolicy]string{
	PolicyReject:         "reject",
	PolicyDeleteViolated: "delete-violated",
	PolicyForce:          "force",
}

// String returns the flag spelling of the policy.
func (p ViolationPolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ViolationPolicy(%d)", int(p))
}

// ParsePolicy parses a policy name as printed by String.
func ParsePolicy(s string) (ViolationPolicy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return PolicyReject, errors.Newf(errors.ErrCodeConfigInvalid, "unknown violation policy %q", s).
		WithSuggestion("Use one of: reject, delete-violated, force")
}

// Commit describes the effect of one accepted mutation.
type Commit struct {
	Operation string `json:"operation"`

	// Changed lists every task whose fields the mutation wrote, directly,
	// by propagation or by rollup, in first-touch order.
	Changed []domain.TaskID `json:"changed,omitempty"`
	Removed []domain.TaskID `json:"removed,omitempty"`

	Dependencies        []model.Dependency `json:"dependencies,omitempty"`
	RemovedDependencies []model.Dependency `json:"removed_dependencies,omitempty"`

	Placement *reorder.Placement `json:"placement,omitempty"`

	Blocked   []domain.TaskID      `json:"blocked,omitempty"`
	Conflicts []domain.TaskID      `json:"conflicts,omitempty"`
	Anomalies []dependency.Anomaly `json:"anomalies,omitempty"`

	Passes       int `json:"passes"`
	EdgesVisited int `json:"edges_visited"`

	seen map[domain.TaskID]bool
}

func newCommit(op string) *Commit {
	return &Commit{Operation: op, seen: make(map[domain.TaskID]bool)}
}

func (c *Commit) touch(ids ...domain.TaskID) {
	for _, id := range ids {
		if !c.seen[id] {
			c.seen[id] = true
			c.Changed = append(c.Changed, id)
		}
	}
}

func (c *Commit) absorb(pass dependency.PassResult) {
	c.Passes++
	c.EdgesVisited += pass.EdgesVisited()
	c.touch(pass.Moved...)
	c.touch(pass.RolledUp...)
	c.Blocked = append(c.Blocked, pass.Blocked...)
	c.Conflicts = append(c.Conflicts, pass.Conflicts...)
}

// Touched reports whether id was written by the mutation.
func (c *Commit) Touched(id domain.TaskID) bool {
	return c.seen[id]
}

// ViolationError rejects an edit whose preview found violated dependencies
// or data anomalies. It unwraps to a RULE-001 TimelineError.
type ViolationError struct {
	TaskID     domain.TaskID
	Violations []dependency.Violation
	Anomalies  []dependency.Anomaly
}

func (e *ViolationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] update of %s rejected: %d violated dependencies, %d anomalies",
		errors.ErrCodeRuleViolation, e.TaskID, len(e.Violations), len(e.Anomalies))
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  %s %s -> %s requires %s, got %s", v.Dependency.Type,
			v.Dependency.PredecessorID, v.Dependency.SuccessorID,
			v.Required.Format("2006-01-02"), v.Actual.Format("2006-01-02"))
	}
	for _, a := range e.Anomalies {
		fmt.Fprintf(&b, "\n  %s on %s: %s", a.Kind, a.TaskID, a.Detail)
	}
	return b.String()
}

// Unwrap exposes the rule-violation code to errors.Is and errors.CodeOf.
func (e *ViolationError) Unwrap() error {
	return errors.New(errors.ErrCodeRuleViolation, "preview found violations").
		WithSuggestion("Retry with --policy force or --policy delete-violated")
}

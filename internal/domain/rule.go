package domain

import "fmt"

// RuleCategory groups rule types by how the engine treats them.
type RuleCategory string

// Rule categories
const (
	CategoryConstraint RuleCategory = "Constraint" // clamps dates
	CategoryDeadline   RuleCategory = "Deadline"   // advisory only
	CategorySegment    RuleCategory = "Segment"    // sub-interval of work
)

// RuleType is the concrete restriction a rule expresses.
type RuleType string

// Rule types
const (
	MustStartOn         RuleType = "MustStartOn"
	MustFinishOn        RuleType = "MustFinishOn"
	StartNoEarlierThan  RuleType = "StartNoEarlierThan"
	StartNoLaterThan    RuleType = "StartNoLaterThan"
	FinishNoEarlierThan RuleType = "FinishNoEarlierThan"
	FinishNoLaterThan   RuleType = "FinishNoLaterThan"
	TargetStart         RuleType = "TargetStart"
	TargetEnd           RuleType = "TargetEnd"
	SegmentWork         RuleType = "Segment"
)

// AllRuleTypes lists every rule type.
var AllRuleTypes = []RuleType{
	MustStartOn, MustFinishOn,
	StartNoEarlierThan, StartNoLaterThan, FinishNoEarlierThan, FinishNoLaterThan,
	TargetStart, TargetEnd,
	SegmentWork,
}

// ParseRuleType creates a RuleType with validation
func ParseRuleType(value string) (RuleType, error) {
	t := RuleType(value)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Validate checks if the rule type is valid
func (t RuleType) Validate() error {
	if t.Category() == "" {
		return fmt.Errorf("invalid rule type %q", string(t))
	}
	return nil
}

// String returns the string representation
func (t RuleType) String() string {
	return string(t)
}

// Category returns the category a rule type belongs to, or "" for unknown types.
func (t RuleType) Category() RuleCategory {
	switch t {
	case MustStartOn, MustFinishOn,
		StartNoEarlierThan, StartNoLaterThan, FinishNoEarlierThan, FinishNoLaterThan:
		return CategoryConstraint
	case TargetStart, TargetEnd:
		return CategoryDeadline
	case SegmentWork:
		return CategorySegment
	default:
		return ""
	}
}

// IsHardLock reports whether the rule pins a date exactly.
func (t RuleType) IsHardLock() bool {
	return t == MustStartOn || t == MustFinishOn
}

// Bounds returns the endpoint a constraint type restricts. The second result is
// false for types that never clamp.
func (t RuleType) Bounds() (Endpoint, bool) {
	switch t {
	case MustStartOn, StartNoEarlierThan, StartNoLaterThan:
		return EndpointStart, true
	case MustFinishOn, FinishNoEarlierThan, FinishNoLaterThan:
		return EndpointEnd, true
	default:
		return EndpointStart, false
	}
}

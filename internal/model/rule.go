package model

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
)

// Rule is a per-task date restriction
type Rule struct {
	Type     domain.RuleType `json:"type" yaml:"type"`
	Date     time.Time       `json:"date" yaml:"date"`
	EndDate  time.Time       `json:"end_date,omitempty" yaml:"end_date,omitempty"` // Segment only
	Active   bool            `json:"active" yaml:"active"`
	Implicit bool            `json:"implicit,omitempty" yaml:"implicit,omitempty"`
}

// Category returns the category of the rule type.
func (r Rule) Category() domain.RuleCategory {
	return r.Type.Category()
}

// Validate checks the rule type and dates
func (r Rule) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return fmt.Errorf("rule %s has no date", r.Type)
	}
	if r.Type == domain.SegmentWork {
		if r.EndDate.IsZero() {
			return fmt.Errorf("segment rule has no end date")
		}
		if r.EndDate.Before(r.Date) {
			return fmt.Errorf("segment ends %s before it starts %s", r.EndDate.Format(time.DateOnly), r.Date.Format(time.DateOnly))
		}
	}
	return nil
}

// NewRule creates an active explicit rule.
func NewRule(typ domain.RuleType, date time.Time) Rule {
	return Rule{Type: typ, Date: date, Active: true}
}

// NewSegment creates an active segment covering [start, end].
func NewSegment(start, end time.Time) Rule {
	return Rule{Type: domain.SegmentWork, Date: start, EndDate: end, Active: true}
}

// PinImplicit replaces any implicit rule of the same type with a new implicit
// pin at date, leaving explicit rules untouched.
func PinImplicit(rules []Rule, typ domain.RuleType, date time.Time) []Rule {
	out := make([]Rule, 0, len(rules)+1)
	for _, r := range rules {
		if r.Implicit && r.Type == typ {
			continue
		}
		out = append(out, r)
	}
	return append(out, Rule{Type: typ, Date: date, Active: true, Implicit: true})
}

package dependency

import (
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/rollup"
)

// AnomalyKind classifies data problems found after a simulation.
type AnomalyKind string

// Anomaly kinds
const (
	AnomalyEndBeforeStart   AnomalyKind = "end-before-start"
	AnomalyInvalidDate      AnomalyKind = "invalid-date"
	AnomalyProgressRange    AnomalyKind = "progress-out-of-range"
	AnomalySegmentOverlap   AnomalyKind = "segment-overlap"
	AnomalySegmentOutOfSpan AnomalyKind = "segment-outside-span"
)

// Anomaly is a flagged, uncorrected data problem on one task.
type Anomaly struct {
	TaskID domain.TaskID `json:"task_id"`
	Kind   AnomalyKind   `json:"kind"`
	Detail string        `json:"detail"`
}

// Violation is an incoming dependency the simulated dates fail.
type Violation struct {
	Dependency model.Dependency `json:"dependency"`
	Required   time.Time        `json:"required"`
	Actual     time.Time        `json:"actual"`
}

// Preview is the non-mutating outcome of simulating a patch.
type Preview struct {
	Tasks      []model.Task `json:"tasks"`
	Violations []Violation  `json:"violations,omitempty"`
	Anomalies  []Anomaly    `json:"anomalies,omitempty"`
}

// OK reports whether the simulation found neither violations nor anomalies.
func (p Preview) OK() bool {
	return len(p.Violations) == 0 && len(p.Anomalies) == 0
}

// ViolatedIDs returns the ids of the violated dependencies.
func (p Preview) ViolatedIDs() []domain.DependencyID {
	ids := make([]domain.DependencyID, len(p.Violations))
	for i, v := range p.Violations {
		ids[i] = v.Dependency.ID
	}
	return ids
}

// CheckRulesBeforeUpdate simulates patch on a copy of the hierarchy. A summary
// move shifts its descendants by the same delta and ancestors are rolled up.
// Every affected task's incoming dependencies are then checked against the
// simulated dates. Committed state is never touched.
func (e *Engine) CheckRulesBeforeUpdate(id domain.TaskID, patch model.TaskPatch) (Preview, error) {
	orig, ok := e.tree.Get(id)
	if !ok {
		return Preview{}, errors.NewTaskNotFoundError(id.String())
	}

	sim := e.tree.Clone()
	roll := rollup.New(sim, nil)
	affected := []domain.TaskID{id}

	delta, cascade := cascadeDelta(orig, patch)
	cascade = cascade && sim.HasChildren(id)
	if _, err := sim.Update(id, patch); err != nil {
		return Preview{}, err
	}
	if cascade {
		for _, d := range sim.Descendants(id) {
			sim.SetSpan(d.ID, d.Start.Add(delta), d.End.Add(delta))
			affected = append(affected, d.ID)
		}
		roll.Resolve(id)
	}
	for _, a := range sim.Ancestors(id) {
		affected = append(affected, a.ID)
	}
	roll.ResolveChain(id)

	var p Preview
	for _, aid := range affected {
		t, ok := sim.Get(aid)
		if !ok {
			continue
		}
		p.Tasks = append(p.Tasks, t.Clone())
		p.Anomalies = append(p.Anomalies, Anomalies(t)...)

		for _, i := range e.in[aid] {
			d := e.deps[i]
			pred, ok := sim.Get(d.PredecessorID)
			if !ok {
				continue
			}
			required := d.Anchor(pred)
			actual := t.Start
			if d.Type.Target() == domain.EndpointEnd {
				actual = t.End
			}
			if actual.Before(required) {
				p.Violations = append(p.Violations, Violation{Dependency: d, Required: required, Actual: actual})
			}
		}
	}
	return p, nil
}

// cascadeDelta returns the shift a summary patch implies for its
// descendants: the start delta, or the end delta for an end-only edit.
func cascadeDelta(t *model.Task, patch model.TaskPatch) (time.Duration, bool) {
	switch {
	case patch.Start != nil:
		return patch.Start.Sub(t.Start), !patch.Start.Equal(t.Start)
	case patch.End != nil:
		return patch.End.Sub(t.End), !patch.End.Equal(t.End)
	default:
		return 0, false
	}
}

// Anomalies returns the data problems of a single task.
func Anomalies(t *model.Task) []Anomaly {
	var out []Anomaly
	add := func(kind AnomalyKind, format string, args ...any) {
		out = append(out, Anomaly{TaskID: t.ID, Kind: kind, Detail: fmt.Sprintf(format, args...)})
	}

	if t.Start.IsZero() || t.End.IsZero() {
		add(AnomalyInvalidDate, "start or end is unset")
	} else if t.End.Before(t.Start) {
		add(AnomalyEndBeforeStart, "ends %s before it starts %s", t.End.Format(time.DateOnly), t.Start.Format(time.DateOnly))
	}
	if t.Progress < 0 || t.Progress > 100 {
		add(AnomalyProgressRange, "progress %d is outside 0-100", t.Progress)
	}

	var segments []model.Rule
	for _, r := range t.Rules {
		if r.Active && r.Type == domain.SegmentWork {
			segments = append(segments, r)
		}
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Date.Before(segments[j].Date) })
	for i, s := range segments {
		if s.Date.Before(t.Start) || s.EndDate.After(t.End) {
			add(AnomalySegmentOutOfSpan, "segment %s..%s lies outside the task span",
				s.Date.Format(time.DateOnly), s.EndDate.Format(time.DateOnly))
		}
		if i > 0 && s.Date.Before(segments[i-1].EndDate) {
			add(AnomalySegmentOverlap, "segment starting %s overlaps the previous one", s.Date.Format(time.DateOnly))
		}
	}
	return out
}

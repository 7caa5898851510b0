package editor

import (
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// CaptureState returns a deep copy of the whole schedule for history.
func (e *Editor) CaptureState() model.Snapshot {
	return model.Snapshot{
		Tasks:        e.tree.Tasks(),
		Dependencies: e.deps.All(),
		ExpandedRows: e.tree.ExpandedIDs(),
	}
}

// RestoreState replaces the schedule wholesale with s. A nil ExpandedRows
// leaves every row expanded. On error nothing changes.
func (e *Editor) RestoreState(s model.Snapshot) error {
	if err := e.Load(s.Tasks, s.Dependencies); err != nil {
		return err
	}
	if s.ExpandedRows == nil {
		e.tree.ExpandAll()
	} else {
		e.tree.CollapseAll()
		for _, id := range s.ExpandedRows {
			if e.tree.Has(id) {
				e.tree.SetExpanded(id, true)
			}
		}
	}
	e.log.Info("state restored", "tasks", s.TaskCount(), "expanded", len(s.ExpandedRows))
	return nil
}

// MissedDeadline is an active target rule the task currently misses.
type MissedDeadline struct {
	TaskID domain.TaskID `json:"task_id"`
	Rule   model.Rule    `json:"rule"`
	Actual time.Time     `json:"actual"`
	Late   time.Duration `json:"late"`
}

// MissedDeadlines reports every active TargetStart or TargetEnd the
// schedule misses, in outline order. Deadlines never move dates.
func (e *Editor) MissedDeadlines() []MissedDeadline {
	var out []MissedDeadline
	for _, t := range e.tree.Flatten() {
		for _, r := range t.ActiveRules(domain.CategoryDeadline) {
			actual := t.Start
			if r.Type == domain.TargetEnd {
				actual = t.End
			}
			if actual.After(r.Date) {
				out = append(out, MissedDeadline{TaskID: t.ID, Rule: r, Actual: actual, Late: actual.Sub(r.Date)})
			}
		}
	}
	return out
}

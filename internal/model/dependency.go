package model

import (
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
)

// Dependency is a directed temporal relation between two tasks
type Dependency struct {
	ID            domain.DependencyID   `json:"id" yaml:"id"`
	PredecessorID domain.TaskID         `json:"predecessor_id" yaml:"predecessor_id"`
	SuccessorID   domain.TaskID         `json:"successor_id" yaml:"successor_id"`
	Type          domain.DependencyType `json:"type" yaml:"type"`
	Lag           time.Duration         `json:"lag" yaml:"lag"`
}

// EdgeKey identifies an edge by type and endpoints.
type EdgeKey struct {
	Type          domain.DependencyType
	PredecessorID domain.TaskID
	SuccessorID   domain.TaskID
}

// Key returns the edge key of the dependency.
func (d Dependency) Key() EdgeKey {
	return EdgeKey{Type: d.Type, PredecessorID: d.PredecessorID, SuccessorID: d.SuccessorID}
}

// Touches reports whether the dependency references id at either end.
func (d Dependency) Touches(id domain.TaskID) bool {
	return d.PredecessorID == id || d.SuccessorID == id
}

// Anchor returns the predecessor date the dependency measures from, plus lag.
func (d Dependency) Anchor(pred *Task) time.Time {
	if d.Type.Source() == domain.EndpointEnd {
		return pred.End.Add(d.Lag)
	}
	return pred.Start.Add(d.Lag)
}

package model

import "github.com/felixgeelhaar/timeline/internal/domain"

// Snapshot is the wholesale state handed to history and persistence collaborators
type Snapshot struct {
	Tasks        []Task          `json:"tasks" yaml:"tasks"`
	Dependencies []Dependency    `json:"dependencies" yaml:"dependencies"`
	ExpandedRows []domain.TaskID `json:"expanded_rows" yaml:"expanded_rows"`
}

// TaskCount returns the number of tasks in the snapshot.
func (s Snapshot) TaskCount() int {
	return len(s.Tasks)
}

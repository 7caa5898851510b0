package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// TaskID is the stable identifier of a task. It never changes once assigned.
type TaskID string

// DependencyID is the stable identifier of a dependency edge.
type DependencyID string

// maxIDLength is the maximum allowed length for an identifier
const maxIDLength = 128

// NewTaskID creates a new TaskID value object with validation
func NewTaskID(value string) (TaskID, error) {
	id := TaskID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the task ID is valid
func (t TaskID) Validate() error {
	return validateID("task", string(t))
}

// String returns the string representation
func (t TaskID) String() string {
	return string(t)
}

// IsRoot reports whether the id is the empty parent id used for top-level tasks.
func (t TaskID) IsRoot() bool {
	return t == ""
}

// Validate checks if the dependency ID is valid
func (d DependencyID) Validate() error {
	return validateID("dependency", string(d))
}

// String returns the string representation
func (d DependencyID) String() string {
	return string(d)
}

func validateID(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}

	if len(s) > maxIDLength {
		return fmt.Errorf("%s ID %q exceeds maximum length of %d characters", kind, s, maxIDLength)
	}

	if strings.TrimSpace(s) != s {
		return fmt.Errorf("%s ID %q cannot have leading or trailing whitespace", kind, s)
	}

	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s ID %q cannot contain control characters", kind, s)
		}
	}

	return nil
}

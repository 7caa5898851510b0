package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Hierarchy errors (TREE-001 to TREE-099)
	ErrCodeTaskNotFound     ErrorCode = "TREE-001"
	ErrCodeDuplicateTask    ErrorCode = "TREE-002"
	ErrCodeUnknownParent    ErrorCode = "TREE-003"
	ErrCodeParentCycle      ErrorCode = "TREE-004"
	ErrCodeInvalidTaskField ErrorCode = "TREE-005"

	// Dependency errors (DEP-001 to DEP-099)
	ErrCodeDependencyCycle     ErrorCode = "DEP-001"
	ErrCodeCommittedCycle      ErrorCode = "DEP-002"
	ErrCodeSelfDependency      ErrorCode = "DEP-003"
	ErrCodeDependencyEndpoint  ErrorCode = "DEP-004"
	ErrCodeDependencyType      ErrorCode = "DEP-005"
	ErrCodeHierarchyDependency ErrorCode = "DEP-006"
	ErrCodeDependencyNotFound  ErrorCode = "DEP-007"

	// Constraint errors (RULE-001 to RULE-099)
	ErrCodeRuleViolation  ErrorCode = "RULE-001"
	ErrCodeSummaryBlocked ErrorCode = "RULE-002"
	ErrCodeInvalidRule    ErrorCode = "RULE-003"

	// Reorder errors (MOVE-001 to MOVE-099)
	ErrCodeMoveIntoSelf      ErrorCode = "MOVE-001"
	ErrCodeParentNoChildren  ErrorCode = "MOVE-002"
	ErrCodeChildKindRejected ErrorCode = "MOVE-003"
	ErrCodeDepthExceeded     ErrorCode = "MOVE-004"
	ErrCodeLinkedToParent    ErrorCode = "MOVE-005"
	ErrCodeInvalidSelection  ErrorCode = "MOVE-006"
	ErrCodeNoMove            ErrorCode = "MOVE-007"
	ErrCodeDragState         ErrorCode = "MOVE-008"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
	ErrCodeStoreFailed     ErrorCode = "IO-007"

	// Configuration errors (CFG-001 to CFG-099)
	ErrCodeConfigInvalid ErrorCode = "CFG-001"
)

// TimelineError represents an enhanced error with code, suggestions, and cause
type TimelineError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *TimelineError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TimelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TimelineError carrying the same code.
func (e *TimelineError) Is(target error) bool {
	t, ok := target.(*TimelineError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// New creates a new TimelineError
func New(code ErrorCode, message string) *TimelineError {
	return &TimelineError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new TimelineError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *TimelineError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new TimelineError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *TimelineError {
	return &TimelineError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *TimelineError) WithSuggestion(suggestion string) *TimelineError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *TimelineError) WithSuggestions(suggestions ...string) *TimelineError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// Code returns a sentinel usable with errors.Is to match any error of the given code.
func Code(code ErrorCode) *TimelineError {
	return &TimelineError{Code: code}
}

// CodeOf extracts the code of the first TimelineError in err's chain.
// It returns an empty code when err carries none.
func CodeOf(err error) ErrorCode {
	var te *TimelineError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ""
}

// Family returns the prefix of a code, e.g. "MOVE" for "MOVE-004".
func (c ErrorCode) Family() string {
	if i := strings.IndexByte(string(c), '-'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// Common error constructors for frequently used errors

// NewTaskNotFoundError creates a task not found error
func NewTaskNotFoundError(id string) *TimelineError {
	return New(ErrCodeTaskNotFound, fmt.Sprintf("task not found: %s", id)).
		WithSuggestion("Run 'timeline show' to list task ids")
}

// NewDependencyCycleError creates an error for an edge that would close a cycle
func NewDependencyCycleError(pred, succ string) *TimelineError {
	return New(ErrCodeDependencyCycle, fmt.Sprintf("dependency %s -> %s would create a cycle", pred, succ)).
		WithSuggestion("Remove one of the dependencies on the existing path first")
}

// NewCommittedCycleError reports a cycle found in already-committed data
func NewCommittedCycleError(path []string) *TimelineError {
	return New(ErrCodeCommittedCycle, fmt.Sprintf("dependency graph contains a cycle: %s", strings.Join(path, " -> "))).
		WithSuggestion("The stored schedule is corrupt; delete one dependency on the cycle and reload")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *TimelineError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *TimelineError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}

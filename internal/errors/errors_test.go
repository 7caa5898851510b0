package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeTaskNotFound, "test error message")

	if err.Code != ErrCodeTaskNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeTaskNotFound, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *TimelineError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeDepthExceeded, "too deep"),
			wantCode: "MOVE-004",
			wantMsg:  "too deep",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			wantCode: "IO-002",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestion(t *testing.T) {
	err := New(ErrCodeTaskNotFound, "task not found").
		WithSuggestion("Check the task id")

	if len(err.Suggestions) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("error string should contain suggestions section")
	}

	if !strings.Contains(errStr, "Check the task id") {
		t.Errorf("error string should contain suggestion text")
	}
}

func TestWithSuggestions(t *testing.T) {
	err := New(ErrCodeRuleViolation, "rule violated").
		WithSuggestions("Suggestion 1", "Suggestion 2", "Suggestion 3")

	if len(err.Suggestions) != 3 {
		t.Errorf("expected 3 suggestions, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	for _, suggestion := range err.Suggestions {
		if !strings.Contains(errStr, suggestion) {
			t.Errorf("error string should contain suggestion: %s", suggestion)
		}
	}
}

func TestCodeSentinel(t *testing.T) {
	err := fmt.Errorf("moving task: %w", New(ErrCodeDepthExceeded, "depth 5 exceeds 4"))

	if !errors.Is(err, Code(ErrCodeDepthExceeded)) {
		t.Errorf("errors.Is should match the code sentinel through wrapping")
	}
	if errors.Is(err, Code(ErrCodeLinkedToParent)) {
		t.Errorf("errors.Is should not match a different code")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), ""},
		{"direct", New(ErrCodeDependencyCycle, "cycle"), ErrCodeDependencyCycle},
		{"wrapped", fmt.Errorf("ctx: %w", New(ErrCodeFileMarshal, "x")), ErrCodeFileMarshal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFamily(t *testing.T) {
	if got := ErrCodeDepthExceeded.Family(); got != "MOVE" {
		t.Errorf("Family() = %q, want MOVE", got)
	}
	if got := ErrorCode("plain").Family(); got != "plain" {
		t.Errorf("Family() = %q, want plain", got)
	}
}

func TestNewDependencyCycleError(t *testing.T) {
	err := NewDependencyCycleError("b", "a")

	if err.Code != ErrCodeDependencyCycle {
		t.Errorf("expected code %s, got %s", ErrCodeDependencyCycle, err.Code)
	}
	if !strings.Contains(err.Message, "b -> a") {
		t.Errorf("error message should contain the edge, got %q", err.Message)
	}
}

func TestNewCommittedCycleError(t *testing.T) {
	err := NewCommittedCycleError([]string{"a", "b", "a"})

	if err.Code != ErrCodeCommittedCycle {
		t.Errorf("expected code %s, got %s", ErrCodeCommittedCycle, err.Code)
	}
	if !strings.Contains(err.Message, "a -> b -> a") {
		t.Errorf("error message should contain the cycle path, got %q", err.Message)
	}
}

func TestNewFileUnmarshalError(t *testing.T) {
	cause := fmt.Errorf("invalid YAML syntax at line 5")
	err := NewFileUnmarshalError("/path/to/project.yaml", "YAML", cause)

	if err.Code != ErrCodeFileUnmarshal {
		t.Errorf("expected code %s, got %s", ErrCodeFileUnmarshal, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be preserved")
	}

	if !strings.Contains(err.Message, "/path/to/project.yaml") {
		t.Errorf("error message should contain file path")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "read failed", cause)

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap should return the cause")
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeTaskNotFound,
		ErrCodeDuplicateTask,
		ErrCodeUnknownParent,
		ErrCodeParentCycle,
		ErrCodeDependencyCycle,
		ErrCodeCommittedCycle,
		ErrCodeSelfDependency,
		ErrCodeRuleViolation,
		ErrCodeSummaryBlocked,
		ErrCodeMoveIntoSelf,
		ErrCodeDepthExceeded,
		ErrCodeFileNotFound,
		ErrCodeConfigInvalid,
	}

	for _, code := range codes {
		parts := strings.Split(string(code), "-")
		if len(parts) != 2 {
			t.Errorf("error code %s should have format CATEGORY-NNN", code)
			continue
		}
		if len(parts[1]) != 3 {
			t.Errorf("error code %s should have 3-digit number", code)
		}
	}
}

package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/timeline/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates an error carrying no known code
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2

	// Rejected indicates the editor refused a mutation (rule, move or hierarchy check)
	Rejected = 3

	// CycleDetected indicates a dependency or parent cycle
	CycleDetected = 4

	// IOError indicates a file or store failure
	IOError = 5

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code using its TimelineError
// code when present, and cobra's usage messages otherwise.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := errors.CodeOf(err); code {
	case "":
	case errors.ErrCodeDependencyCycle, errors.ErrCodeCommittedCycle, errors.ErrCodeParentCycle:
		return CycleDetected
	default:
		switch code.Family() {
		case "IO":
			return IOError
		case "CFG":
			return UsageError
		case "TREE", "DEP", "RULE", "MOVE":
			return Rejected
		}
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())
	for _, usage := range []string{"unknown command", "unknown flag", "unknown shorthand flag",
		"invalid argument", "required flag", "accepts ", "requires at least", "requires at most"} {
		if strings.Contains(errMsg, usage) {
			return UsageError
		}
	}
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case Rejected:
		return "Edit rejected"
	case CycleDetected:
		return "Cycle detected"
	case IOError:
		return "File or store error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}

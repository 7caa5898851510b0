package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/timeline/internal/editor"
)

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	return confirmed, nil
}

// PromptForPolicy shows what a rejected update violated and asks how to
// proceed. Choosing "reject" keeps the schedule unchanged.
func PromptForPolicy(verr *editor.ViolationError) (editor.ViolationPolicy, error) {
	options := []huh.Option[editor.ViolationPolicy]{
		huh.NewOption("Keep the schedule unchanged", editor.PolicyReject),
		huh.NewOption("Apply anyway and report the violations", editor.PolicyForce),
	}
	// Anomalies reject under delete-violated, so only offer it when it can succeed
	if len(verr.Anomalies) == 0 {
		options = append(options,
			huh.NewOption("Delete the violated dependencies, then apply", editor.PolicyDeleteViolated))
	}

	policy := editor.PolicyReject
	sel := huh.NewSelect[editor.ViolationPolicy]().
		Title(fmt.Sprintf("Updating %s breaks the schedule", verr.TaskID)).
		Description(DescribeViolations(verr)).
		Options(options...).
		Value(&policy)

	if err := huh.NewForm(huh.NewGroup(sel)).Run(); err != nil {
		return editor.PolicyReject, fmt.Errorf("prompt failed: %w", err)
	}
	return policy, nil
}

// DescribeViolations renders one line per violated dependency and anomaly.
func DescribeViolations(verr *editor.ViolationError) string {
	var lines []string
	for _, v := range verr.Violations {
		lines = append(lines, fmt.Sprintf("%s %s → %s needs %s, would be %s",
			v.Dependency.Type, v.Dependency.PredecessorID, v.Dependency.SuccessorID,
			v.Required.Format(time.DateOnly), v.Actual.Format(time.DateOnly)))
	}
	for _, a := range verr.Anomalies {
		lines = append(lines, fmt.Sprintf("%s on %s: %s", a.Kind, a.TaskID, a.Detail))
	}
	return strings.Join(lines, "\n")
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	for _, envVar := range []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	} {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}

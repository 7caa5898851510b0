package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/project"
)

const launchYAML = `name: launch
tasks:
  - {id: plan, name: Planning, start: 2025-03-03, end: 2025-03-05}
  - {id: build, name: Build, start: 2025-03-05, end: 2025-03-10}
  - {id: ship, name: Ship, start: 2025-03-10, end: 2025-03-11}
dependencies:
  - {id: d1, from: plan, to: build}
  - {id: d2, from: build, to: ship}
`

func writeProject(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(launchYAML), 0o644))
	return path
}

func run(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(&app{prompt: func() bool { return false }})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--project", path, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := project.ParseDate(s)
	require.NoError(t, err)
	return d.Time
}

func load(t *testing.T, path string) *project.Project {
	t.Helper()
	p, err := project.Load(path)
	require.NoError(t, err)
	return p
}

func find(t *testing.T, p *project.Project, id string) model.Task {
	t.Helper()
	for _, task := range p.Tasks {
		if task.ID == domain.TaskID(id) {
			return task
		}
	}
	t.Fatalf("task %s not in project", id)
	return model.Task{}
}

func TestValidate(t *testing.T) {
	path := writeProject(t)

	out, err := run(t, path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "3 tasks, 2 dependencies")
}

func TestValidateMissingFile(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "none.yaml"), "validate")
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeProject(t)
	root := newRootCommand(&app{})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--project", path, "--log-level", "loud", "validate"})

	err := root.ExecuteContext(context.Background())
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestShowJSON(t *testing.T) {
	path := writeProject(t)

	out, err := run(t, path, "show", "--json")
	require.NoError(t, err)

	var rows []outlineRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, domain.TaskID("plan"), rows[0].ID)
	assert.Equal(t, "2025-03-10", rows[2].Start)
	for _, r := range rows {
		assert.True(t, r.Critical, "%s should be critical", r.ID)
	}
}

func TestUpdatePushesSuccessors(t *testing.T) {
	path := writeProject(t)

	out, err := run(t, path, "update", "build", "--end", "2025-03-12")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ update")

	p := load(t, path)
	assert.Equal(t, mustDate(t, "2025-03-12"), find(t, p, "build").End)
	assert.Equal(t, mustDate(t, "2025-03-12"), find(t, p, "ship").Start)
}

func TestUpdateRejectsViolation(t *testing.T) {
	path := writeProject(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = run(t, path, "update", "ship", "--start", "2025-03-08")
	assert.Equal(t, errors.ErrCodeRuleViolation, errors.CodeOf(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpdateForce(t *testing.T) {
	path := writeProject(t)

	_, err := run(t, path, "update", "ship", "--start", "2025-03-08", "--policy", "force")
	require.NoError(t, err)
	assert.Equal(t, mustDate(t, "2025-03-08"), find(t, load(t, path), "ship").Start)
}

func TestUpdateDryRunLeavesFile(t *testing.T) {
	path := writeProject(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err := run(t, path, "update", "build", "--end", "2025-03-12", "--dry-run")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpdateNeedsAChange(t *testing.T) {
	path := writeProject(t)

	_, err := run(t, path, "update", "build")
	assert.Equal(t, errors.ErrCodeInvalidTaskField, errors.CodeOf(err))

	_, err = run(t, path, "update", "nope", "--name", "x")
	assert.Equal(t, errors.ErrCodeTaskNotFound, errors.CodeOf(err))
}

func TestStructuralEdits(t *testing.T) {
	path := writeProject(t)

	_, err := run(t, path, "add", "--id", "docs", "--name", "Docs", "--start", "2025-03-04", "--end", "2025-03-06")
	require.NoError(t, err)
	p := load(t, path)
	require.Len(t, p.Tasks, 4)
	assert.Equal(t, "Docs", find(t, p, "docs").Name)

	_, err = run(t, path, "link", "docs", "ship", "--id", "d3", "--type", "FF")
	require.NoError(t, err)
	p = load(t, path)
	require.Len(t, p.Dependencies, 3)
	assert.Equal(t, domain.EndToEnd, p.Dependencies[2].Type)

	_, err = run(t, path, "link", "ship", "plan")
	assert.Equal(t, errors.ErrCodeDependencyCycle, errors.CodeOf(err))

	_, err = run(t, path, "move", "docs", "to", "0")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskID("docs"), load(t, path).Tasks[0].ID)

	_, err = run(t, path, "move", "docs", "inside", "docs")
	assert.Equal(t, errors.ErrCodeMoveIntoSelf, errors.CodeOf(err))

	_, err = run(t, path, "unlink", "d3")
	require.NoError(t, err)
	assert.Len(t, load(t, path).Dependencies, 2)

	out, err := run(t, path, "remove", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "removed:   docs")
	assert.Len(t, load(t, path).Tasks, 3)
}

func TestRemoveKeepsOneTask(t *testing.T) {
	path := writeProject(t)

	_, err := run(t, path, "remove", "plan", "build", "ship")
	assert.Equal(t, errors.ErrCodeInvalidTaskField, errors.CodeOf(err))
	assert.Len(t, load(t, path).Tasks, 3)
}

func TestHistoryRestore(t *testing.T) {
	path := writeProject(t)

	_, err := run(t, path, "update", "build", "--end", "2025-03-12")
	require.NoError(t, err)

	out, err := run(t, path, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "before update")

	_, err = run(t, path, "history", "restore")
	require.NoError(t, err)
	p := load(t, path)
	assert.Equal(t, mustDate(t, "2025-03-10"), find(t, p, "build").End)
	assert.Equal(t, mustDate(t, "2025-03-10"), find(t, p, "ship").Start)

	out, err = run(t, path, "history", "prune", "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 checkpoint(s)")
}

func TestHistoryRestoreWithoutCheckpoints(t *testing.T) {
	path := writeProject(t)

	_, err := run(t, path, "history", "restore")
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}

func TestStoreRoundTrip(t *testing.T) {
	path := writeProject(t)

	out, err := run(t, path, "store", "save")
	require.NoError(t, err)
	assert.Contains(t, out, "stored launch")

	out, err = run(t, path, "store", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "launch")

	other := filepath.Join(filepath.Dir(path), "copy.yaml")
	_, err = run(t, other, "store", "load", "launch")
	require.NoError(t, err)
	p := load(t, other)
	assert.Equal(t, "launch", p.Name)
	assert.Len(t, p.Tasks, 3)
	assert.Len(t, p.Dependencies, 2)

	_, err = run(t, path, "store", "delete", "launch")
	require.NoError(t, err)
	_, err = run(t, path, "store", "load", "launch")
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}

func TestMetricsOut(t *testing.T) {
	path := writeProject(t)
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := run(t, path, "--metrics-out", metricsPath, "validate")
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `command="validate"`)
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "unused.yaml", "version", "--json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
}

func TestMoveFor(t *testing.T) {
	tests := []struct {
		args []string
		code errors.ErrorCode
	}{
		{[]string{"up"}, ""},
		{[]string{"right"}, ""},
		{[]string{"to", "2"}, ""},
		{[]string{"inside", "p"}, ""},
		{[]string{"to"}, errors.ErrCodeInvalidSelection},
		{[]string{"to", "two"}, errors.ErrCodeInvalidSelection},
		{[]string{"up", "p"}, errors.ErrCodeInvalidSelection},
		{[]string{"sideways", "p"}, errors.ErrCodeInvalidSelection},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			fn, err := moveFor("a", tt.args)
			if tt.code == "" {
				require.NoError(t, err)
				assert.NotNil(t, fn)
				return
			}
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

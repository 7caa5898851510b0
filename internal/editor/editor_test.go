package editor

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/metrics"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/reorder"
)

func day(n int) time.Time {
	return time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func task(id, parent string, start, end int, rules ...model.Rule) model.Task {
	return model.Task{
		ID:       domain.TaskID(id),
		Name:     id,
		ParentID: domain.TaskID(parent),
		Start:    day(start),
		End:      day(end),
		Rules:    rules,
	}
}

func link(id, pred, succ string, typ domain.DependencyType) model.Dependency {
	return model.Dependency{
		ID:            domain.DependencyID(id),
		PredecessorID: domain.TaskID(pred),
		SuccessorID:   domain.TaskID(succ),
		Type:          typ,
	}
}

func open(t *testing.T, tasks []model.Task, deps []model.Dependency, opts ...Option) *Editor {
	t.Helper()
	e, err := Open(tasks, deps, opts...)
	require.NoError(t, err)
	return e
}

func span(t *testing.T, e *Editor, id string) (int, int) {
	t.Helper()
	task, ok := e.GetTaskByID(domain.TaskID(id))
	require.True(t, ok, "task %s", id)
	return int(task.Start.Sub(day(0)).Hours() / 24), int(task.End.Sub(day(0)).Hours() / 24)
}

func ptr[T any](v T) *T {
	return &v
}

func TestOpenRollsUpAndDerives(t *testing.T) {
	e := open(t, []model.Task{
		task("p", "", 0, 0),
		task("a", "p", 2, 5),
		task("b", "p", 4, 9),
		task("m", "", 3, 3),
	}, nil)

	start, end := span(t, e, "p")
	assert.Equal(t, 2, start)
	assert.Equal(t, 9, end)

	p, _ := e.GetTaskByID("p")
	m, _ := e.GetTaskByID("m")
	assert.Equal(t, domain.KindSummary, p.Kind)
	assert.Equal(t, domain.KindMilestone, m.Kind)

	first, last, ok := e.GetRange()
	require.True(t, ok)
	assert.Equal(t, day(2), first)
	assert.Equal(t, day(9), last)
}

func TestOpenRejectsBadInput(t *testing.T) {
	_, err := Open([]model.Task{task("a", "", 0, 1), task("a", "", 0, 1)}, nil)
	assert.Equal(t, errors.ErrCodeDuplicateTask, errors.CodeOf(err))

	_, err = Open([]model.Task{task("a", "", 0, 1), task("b", "", 1, 2)}, []model.Dependency{
		link("1", "a", "b", domain.EndToStart),
		link("2", "b", "a", domain.EndToStart),
	})
	assert.Equal(t, errors.ErrCodeCommittedCycle, errors.CodeOf(err))
}

func TestLoadFailureKeepsState(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 1)}, nil)

	err := e.Load([]model.Task{task("x", "missing", 0, 1)}, nil)
	assert.Equal(t, errors.ErrCodeUnknownParent, errors.CodeOf(err))

	_, ok := e.GetTaskByID("a")
	assert.True(t, ok)
}

func TestOpenRepairsBrokenLinks(t *testing.T) {
	e := open(t, []model.Task{
		task("A", "", 0, 10),
		task("B", "", 5, 8),
		task("C", "", 20, 22),
		task("D", "", 15, 16),
	}, []model.Dependency{
		link("ab", "A", "B", domain.EndToStart),
		link("bc", "B", "C", domain.EndToStart),
		link("ad", "A", "D", domain.EndToStart),
	})

	for id, want := range map[string][2]int{"B": {10, 13}, "C": {13, 15}, "D": {15, 16}} {
		start, end := span(t, e, id)
		assert.Equal(t, want, [2]int{start, end}, id)
	}
}

func TestRestoreStateRepairsBrokenLinks(t *testing.T) {
	e := open(t, []model.Task{task("A", "", 0, 3)}, nil)

	snap := model.Snapshot{
		Tasks:        []model.Task{task("A", "", 0, 10), task("P", "", 0, 0), task("B", "P", 5, 8)},
		Dependencies: []model.Dependency{link("ab", "A", "B", domain.EndToStart)},
	}
	require.NoError(t, e.RestoreState(snap))

	for id, want := range map[string][2]int{"B": {10, 13}, "P": {10, 13}} {
		start, end := span(t, e, id)
		assert.Equal(t, want, [2]int{start, end}, id)
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	e := open(t, []model.Task{task("p", "", 0, 5), task("a", "p", 0, 5)}, nil)

	got, _ := e.GetTaskByID("a")
	got.Name = "changed"
	kids := e.GetChildren("p")
	kids[0].Name = "changed"

	again, _ := e.GetTaskByID("a")
	assert.Equal(t, "a", again.Name)
}

func TestUpdateTaskPropagatesFinishToStart(t *testing.T) {
	e := open(t, []model.Task{task("A", "", 0, 10), task("B", "", 10, 15)},
		[]model.Dependency{link("ab", "A", "B", domain.EndToStart)})

	c, err := e.UpdateTask("A", model.TaskPatch{End: ptr(day(12))})
	require.NoError(t, err)

	start, end := span(t, e, "B")
	assert.Equal(t, 12, start)
	assert.Equal(t, 17, end)
	assert.Equal(t, 1, c.EdgesVisited)
	assert.True(t, c.Touched("B"))
}

func TestUpdateTaskSoftFloorClamps(t *testing.T) {
	e := open(t, []model.Task{
		task("A", "", 0, 10),
		task("B", "", 11, 16, model.NewRule(domain.StartNoEarlierThan, day(11))),
	}, []model.Dependency{link("ab", "A", "B", domain.EndToStart)})

	_, err := e.UpdateTask("A", model.TaskPatch{End: ptr(day(9))})
	require.NoError(t, err)

	start, end := span(t, e, "B")
	assert.Equal(t, 11, start)
	assert.Equal(t, 16, end)
}

func TestUpdateTaskPinsImplicitRules(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 5)}, nil)

	_, err := e.UpdateTask("a", model.TaskPatch{Start: ptr(day(2))})
	require.NoError(t, err)
	_, err = e.UpdateTask("a", model.TaskPatch{Start: ptr(day(3))})
	require.NoError(t, err)
	_, err = e.UpdateTask("a", model.TaskPatch{End: ptr(day(8))})
	require.NoError(t, err)

	a, _ := e.GetTaskByID("a")
	require.Len(t, a.Rules, 2)
	assert.Equal(t, domain.StartNoEarlierThan, a.Rules[0].Type)
	assert.Equal(t, day(3), a.Rules[0].Date)
	assert.True(t, a.Rules[0].Implicit)
	assert.Equal(t, domain.FinishNoEarlierThan, a.Rules[1].Type)
	assert.Equal(t, day(8), a.Rules[1].Date)
}

func TestUpdateTaskViolationPolicies(t *testing.T) {
	tasks := []model.Task{task("A", "", 0, 10), task("B", "", 10, 15)}
	deps := []model.Dependency{link("ab", "A", "B", domain.EndToStart)}
	patch := model.TaskPatch{Start: ptr(day(8))}

	t.Run("reject", func(t *testing.T) {
		e := open(t, tasks, deps)
		_, err := e.UpdateTask("B", patch)

		var ve *ViolationError
		require.True(t, stderrors.As(err, &ve))
		assert.Len(t, ve.Violations, 1)
		assert.Equal(t, errors.ErrCodeRuleViolation, errors.CodeOf(err))
		start, _ := span(t, e, "B")
		assert.Equal(t, 10, start)
	})

	t.Run("delete violated", func(t *testing.T) {
		e := open(t, tasks, deps, WithViolationPolicy(PolicyDeleteViolated))
		c, err := e.UpdateTask("B", patch)
		require.NoError(t, err)

		assert.Len(t, c.RemovedDependencies, 1)
		assert.Empty(t, e.Dependencies())
		start, _ := span(t, e, "B")
		assert.Equal(t, 8, start)
	})

	t.Run("force", func(t *testing.T) {
		e := open(t, tasks, deps, WithViolationPolicy(PolicyForce))
		_, err := e.UpdateTask("B", patch)
		require.NoError(t, err)

		assert.Len(t, e.Dependencies(), 1)
		start, _ := span(t, e, "B")
		assert.Equal(t, 8, start)
	})
}

func TestUpdateTaskRejectsAnomaliesUnderDeletePolicy(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 5)}, nil, WithViolationPolicy(PolicyDeleteViolated))

	_, err := e.UpdateTask("a", model.TaskPatch{Progress: ptr(140)})

	var ve *ViolationError
	require.True(t, stderrors.As(err, &ve))
	assert.Len(t, ve.Anomalies, 1)
}

func TestUpdateTaskShiftsSummarySubtree(t *testing.T) {
	e := open(t, []model.Task{
		task("P", "", 0, 10),
		task("a", "P", 0, 5),
		task("b", "P", 5, 10),
	}, nil)

	c, err := e.UpdateTask("P", model.TaskPatch{Start: ptr(day(3))})
	require.NoError(t, err)

	for id, want := range map[string][2]int{"P": {3, 13}, "a": {3, 8}, "b": {8, 13}} {
		start, end := span(t, e, id)
		assert.Equal(t, want, [2]int{start, end}, id)
		assert.True(t, c.Touched(domain.TaskID(id)), id)
	}
}

func TestUpdateTaskSummaryBlocked(t *testing.T) {
	e := open(t, []model.Task{
		task("P", "", 0, 10),
		task("a", "P", 0, 5, model.NewRule(domain.MustStartOn, day(0))),
		task("b", "P", 5, 10),
	}, nil)

	_, err := e.UpdateTask("P", model.TaskPatch{Start: ptr(day(2))})
	assert.Equal(t, errors.ErrCodeSummaryBlocked, errors.CodeOf(err))

	start, end := span(t, e, "b")
	assert.Equal(t, [2]int{5, 10}, [2]int{start, end})
}

func TestUpdateTaskSettlesThroughRollup(t *testing.T) {
	e := open(t, []model.Task{
		task("S", "", 0, 5),
		task("x", "S", 0, 5),
		task("T", "", 5, 8),
	}, []model.Dependency{link("st", "S", "T", domain.EndToStart)})

	c, err := e.UpdateTask("x", model.TaskPatch{End: ptr(day(7))})
	require.NoError(t, err)

	start, end := span(t, e, "T")
	assert.Equal(t, [2]int{7, 10}, [2]int{start, end})
	assert.Equal(t, 2, c.Passes)
}

func TestUpdateTaskProgressRollsUp(t *testing.T) {
	e := open(t, []model.Task{
		task("P", "", 0, 10),
		task("a", "P", 0, 5),
		task("b", "P", 5, 10),
	}, nil)

	c, err := e.UpdateTask("a", model.TaskPatch{Progress: ptr(50)})
	require.NoError(t, err)

	p, _ := e.GetTaskByID("P")
	assert.Equal(t, 25, p.Progress)
	assert.Equal(t, []domain.TaskID{"a", "P"}, c.Changed)
}

func TestUpdateTaskRejections(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 5), task("b", "", 0, 5)}, nil)

	tests := []struct {
		name  string
		id    domain.TaskID
		patch model.TaskPatch
		code  errors.ErrorCode
	}{
		{"unknown task", "zz", model.TaskPatch{Name: ptr("x")}, errors.ErrCodeTaskNotFound},
		{"structural field", "a", model.TaskPatch{ParentID: ptr(domain.TaskID("b"))}, errors.ErrCodeInvalidTaskField},
		{"invalid rule", "a", model.TaskPatch{Rules: &[]model.Rule{{Type: domain.MustStartOn, Active: true}}}, errors.ErrCodeInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.UpdateTask(tt.id, tt.patch)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestPreviewUpdateDoesNotMutate(t *testing.T) {
	e := open(t, []model.Task{task("A", "", 0, 10), task("B", "", 10, 15)},
		[]model.Dependency{link("ab", "A", "B", domain.EndToStart)})

	p, err := e.PreviewUpdate("B", model.TaskPatch{Start: ptr(day(4))})
	require.NoError(t, err)
	assert.False(t, p.OK())

	start, _ := span(t, e, "B")
	assert.Equal(t, 10, start)

	_, err = e.PreviewUpdate("nope", model.TaskPatch{})
	assert.Equal(t, errors.ErrCodeTaskNotFound, errors.CodeOf(err))
}

func TestAddTasksRollsUpParent(t *testing.T) {
	e := open(t, []model.Task{task("P", "", 0, 5), task("a", "P", 0, 5)}, nil)

	c, err := e.AddTasks(task("b", "P", 4, 12), task("orphan", "missing", 0, 1))
	require.NoError(t, err)

	assert.True(t, c.Touched("b"))
	assert.True(t, c.Touched("P"))
	assert.False(t, c.Touched("orphan"))
	_, end := span(t, e, "P")
	assert.Equal(t, 12, end)
}

func TestDeleteSummaryCascades(t *testing.T) {
	e := open(t, []model.Task{
		task("S", "", 0, 10),
		task("x", "S", 0, 4),
		task("y", "S", 4, 10),
		task("z", "y", 4, 10),
		task("w", "", 10, 12),
		task("v", "", 12, 14),
	}, []model.Dependency{
		link("xw", "x", "w", domain.EndToStart),
		link("zw", "z", "w", domain.EndToStart),
		link("wv", "w", "v", domain.EndToStart),
	})

	c, err := e.DeleteTasks("S")
	require.NoError(t, err)

	assert.ElementsMatch(t, []domain.TaskID{"S", "x", "y", "z"}, c.Removed)
	assert.Len(t, c.RemovedDependencies, 2)
	require.Len(t, e.Dependencies(), 1)
	assert.Equal(t, domain.DependencyID("wv"), e.Dependencies()[0].ID)
	for _, id := range c.Removed {
		_, ok := e.GetTaskByID(id)
		assert.False(t, ok, id)
	}
}

func TestDeleteChildRollsUpParent(t *testing.T) {
	e := open(t, []model.Task{task("P", "", 0, 10), task("a", "P", 0, 4), task("b", "P", 4, 10)}, nil)

	c, err := e.DeleteTasks("b")
	require.NoError(t, err)

	assert.True(t, c.Touched("P"))
	_, end := span(t, e, "P")
	assert.Equal(t, 4, end)
}

func TestUpsertDependencyPropagates(t *testing.T) {
	e := open(t, []model.Task{task("A", "", 0, 10), task("B", "", 5, 8)}, nil)

	c, err := e.UpsertDependency(link("", "A", "B", domain.EndToStart))
	require.NoError(t, err)

	require.Len(t, c.Dependencies, 1)
	assert.NotEmpty(t, c.Dependencies[0].ID)
	start, end := span(t, e, "B")
	assert.Equal(t, [2]int{10, 13}, [2]int{start, end})

	_, err = e.UpsertDependency(link("", "B", "A", domain.EndToStart))
	assert.Equal(t, errors.ErrCodeDependencyCycle, errors.CodeOf(err))
}

func TestDeleteDependencies(t *testing.T) {
	e := open(t, []model.Task{task("A", "", 0, 10), task("B", "", 10, 12)},
		[]model.Dependency{link("ab", "A", "B", domain.EndToStart)})

	c, err := e.DeleteDependencies("ab", "unknown")
	require.NoError(t, err)
	assert.Len(t, c.RemovedDependencies, 1)
	assert.Empty(t, e.Dependencies())
}

func TestMoveRightRollsUpNewParent(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 5), task("b", "", 2, 9)}, nil)

	c, err := e.MoveRight("b")
	require.NoError(t, err)

	require.NotNil(t, c.Placement)
	assert.Equal(t, domain.TaskID("a"), c.Placement.NewParentID)
	assert.True(t, c.Touched("a"))
	start, end := span(t, e, "a")
	assert.Equal(t, [2]int{2, 9}, [2]int{start, end})
}

func TestMoveRejectionsAreTyped(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 5), task("b", "", 5, 9)}, nil)

	_, err := e.MoveUp("a")
	assert.Equal(t, errors.ErrCodeNoMove, errors.CodeOf(err))
	_, err = e.MoveLeft("a")
	assert.Equal(t, errors.ErrCodeNoMove, errors.CodeOf(err))
	_, err = e.Drop("a", "a", domain.DropInside)
	assert.Equal(t, errors.ErrCodeMoveIntoSelf, errors.CodeOf(err))
}

func TestMovesReorderSiblings(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 1), task("b", "", 0, 1), task("c", "", 0, 1)}, nil)

	_, err := e.MoveDown("a")
	require.NoError(t, err)
	_, err = e.MoveTo("c", 0)
	require.NoError(t, err)

	var got []domain.TaskID
	for _, task := range e.GetChildren("") {
		got = append(got, task.ID)
	}
	assert.Equal(t, []domain.TaskID{"c", "b", "a"}, got)
}

func TestDragSession(t *testing.T) {
	e := open(t, []model.Task{task("a", "", 0, 5), task("b", "", 5, 9), task("c", "", 1, 3)}, nil)

	d, err := e.BeginDrag("c")
	require.NoError(t, err)

	ev, err := d.Over("a", domain.DropInside)
	require.NoError(t, err)
	assert.True(t, ev.Allowed())
	assert.Equal(t, reorder.StateEvaluating, d.State())

	c, err := d.Commit()
	require.NoError(t, err)
	assert.Equal(t, domain.TaskID("a"), c.Placement.NewParentID)
	assert.Equal(t, reorder.StateCommitted, d.State())

	parent, ok := e.GetTaskByID("c")
	require.True(t, ok)
	assert.Equal(t, domain.TaskID("a"), parent.ParentID)

	_, err = e.BeginDrag("missing")
	assert.Equal(t, errors.ErrCodeTaskNotFound, errors.CodeOf(err))
}

func TestSetExpandedAndVisibleRows(t *testing.T) {
	e := open(t, []model.Task{task("p", "", 0, 5), task("a", "p", 0, 5), task("q", "", 0, 1)}, nil)

	_, err := e.SetExpanded("p", false)
	require.NoError(t, err)
	assert.Len(t, e.GetFlattenedVisible(), 2)

	e.ExpandAll()
	assert.Len(t, e.GetFlattenedVisible(), 3)

	_, err = e.SetExpanded("zz", true)
	assert.Equal(t, errors.ErrCodeTaskNotFound, errors.CodeOf(err))
}

func TestCaptureAndRestoreState(t *testing.T) {
	e := open(t, []model.Task{
		task("p", "", 0, 5),
		task("a", "p", 0, 5),
		task("q", "", 5, 7),
		task("r", "q", 5, 7),
	}, []model.Dependency{link("ar", "a", "r", domain.EndToStart)})
	_, err := e.SetExpanded("p", false)
	require.NoError(t, err)

	snap := e.CaptureState()
	assert.Equal(t, 4, snap.TaskCount())
	assert.Equal(t, []domain.TaskID{"q"}, snap.ExpandedRows)

	_, err = e.DeleteTasks("p")
	require.NoError(t, err)
	e.ExpandAll()

	require.NoError(t, e.RestoreState(snap))
	assert.Len(t, e.Tasks(), 4)
	assert.Len(t, e.Dependencies(), 1)
	assert.False(t, e.Expanded("p"))
	assert.True(t, e.Expanded("q"))
}

func TestCaptureAndRestoreAllCollapsed(t *testing.T) {
	e := open(t, []model.Task{task("P", "", 0, 5), task("C", "P", 0, 5)}, nil)
	_, err := e.SetExpanded("P", false)
	require.NoError(t, err)

	snap := e.CaptureState()
	assert.NotNil(t, snap.ExpandedRows)
	assert.Empty(t, snap.ExpandedRows)

	e.ExpandAll()
	require.NoError(t, e.RestoreState(snap))
	assert.False(t, e.Expanded("P"))
	assert.Len(t, e.GetFlattenedVisible(), 1)
}

func TestCriticalPathThroughEditor(t *testing.T) {
	e := open(t, []model.Task{
		task("a", "", 0, 5),
		task("b", "", 5, 10),
		task("c", "", 0, 2),
	}, []model.Dependency{link("ab", "a", "b", domain.EndToStart)})

	assert.Equal(t, []domain.TaskID{"a", "b"}, e.GetCriticalPathIDs())
}

func TestMissedDeadlines(t *testing.T) {
	e := open(t, []model.Task{
		task("a", "", 0, 5, model.NewRule(domain.TargetEnd, day(4))),
		task("b", "", 2, 6, model.NewRule(domain.TargetStart, day(3))),
		task("c", "", 0, 5, model.Rule{Type: domain.TargetEnd, Date: day(1)}),
	}, nil)

	missed := e.MissedDeadlines()
	require.Len(t, missed, 1)
	assert.Equal(t, domain.TaskID("a"), missed[0].TaskID)
	assert.Equal(t, 24*time.Hour, missed[0].Late)
}

func TestMetricsRecorded(t *testing.T) {
	_, m := metrics.NewRegistry()
	e := open(t, []model.Task{task("A", "", 0, 10), task("B", "", 10, 15)},
		[]model.Dependency{link("ab", "A", "B", domain.EndToStart)}, WithMetrics(m))

	_, err := e.UpdateTask("A", model.TaskPatch{End: ptr(day(11))})
	require.NoError(t, err)
	_, err = e.MoveUp("A")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("update_task", "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("move_up", "MOVE-007")))
	// one settle pass on open, one for the update
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PropagationPasses.WithLabelValues("true")))
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []ViolationPolicy{PolicyReject, PolicyDeleteViolated, PolicyForce} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("maybe")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestNewPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil, nil, nil) })
}

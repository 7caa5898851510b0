package dependency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/hierarchy"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/rollup"
)

func task(id, parent string, start, end int, rules ...model.Rule) model.Task {
	return model.Task{
		ID:       domain.TaskID(id),
		ParentID: domain.TaskID(parent),
		Start:    day(start),
		End:      day(end),
		Rules:    rules,
	}
}

func link(id, pred, succ string, typ domain.DependencyType, lagDays int) model.Dependency {
	return model.Dependency{
		ID:            domain.DependencyID(id),
		PredecessorID: domain.TaskID(pred),
		SuccessorID:   domain.TaskID(succ),
		Type:          typ,
		Lag:           time.Duration(lagDays) * 24 * time.Hour,
	}
}

func setup(t *testing.T, tasks []model.Task, deps ...model.Dependency) (*hierarchy.Store, *Engine) {
	t.Helper()
	tree := hierarchy.New(nil)
	require.NoError(t, tree.UpsertAll(tasks))
	roll := rollup.New(tree, nil)
	roll.ResolveAll()
	e := New(tree, roll, nil)
	require.NoError(t, e.Load(deps))
	return tree, e
}

func TestUpsertValidation(t *testing.T) {
	tasks := []model.Task{
		task("p", "", 0, 10),
		task("a", "p", 0, 5),
		task("b", "p", 5, 10),
		task("c", "", 10, 12),
	}

	tests := []struct {
		name string
		dep  model.Dependency
		code errors.ErrorCode
	}{
		{"unknown type", link("x", "a", "c", "finish-start", 0), errors.ErrCodeDependencyType},
		{"unknown endpoint", link("x", "a", "ghost", domain.EndToStart, 0), errors.ErrCodeDependencyEndpoint},
		{"self loop", link("x", "a", "a", domain.EndToStart, 0), errors.ErrCodeSelfDependency},
		{"summary to child", link("x", "p", "a", domain.StartToStart, 0), errors.ErrCodeHierarchyDependency},
		{"child to summary", link("x", "b", "p", domain.EndToEnd, 0), errors.ErrCodeHierarchyDependency},
		{"cycle", link("x", "c", "a", domain.EndToStart, 0), errors.ErrCodeDependencyCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := setup(t, tasks, link("ac", "a", "c", domain.EndToStart, 0))
			_, err := e.Upsert(tt.dep)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, 1, e.Len())
		})
	}
}

func TestUpsertAssignsAndReplaces(t *testing.T) {
	_, e := setup(t, []model.Task{task("a", "", 0, 1), task("b", "", 1, 2), task("c", "", 2, 3)})

	d, err := e.Upsert(link("", "a", "b", domain.EndToStart, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)

	d.SuccessorID = "c"
	_, err = e.Upsert(d)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Len())
	assert.Empty(t, e.Incoming("b"))
	assert.Len(t, e.Incoming("c"), 1)
	assert.Len(t, e.Outgoing("a"), 1)

	got, ok := e.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, domain.TaskID("c"), got.SuccessorID)
}

func TestReplaceDoesNotCountOwnEdgeAsCycle(t *testing.T) {
	_, e := setup(t, []model.Task{task("a", "", 0, 1), task("b", "", 1, 2)},
		link("ab", "a", "b", domain.EndToStart, 0))

	_, err := e.Upsert(link("ab", "b", "a", domain.EndToStart, 0))
	require.NoError(t, err, "reversing an edge in place replaces it")
	assert.Equal(t, domain.TaskID("b"), e.All()[0].PredecessorID)
}

// Scenario C: the reverse of an existing direct or transitive link is refused
func TestWouldCreateCycle(t *testing.T) {
	_, e := setup(t,
		[]model.Task{task("a", "", 0, 1), task("b", "", 1, 2), task("c", "", 2, 3), task("d", "", 0, 1)},
		link("ab", "a", "b", domain.EndToStart, 0),
		link("bc", "b", "c", domain.EndToStart, 0),
	)

	assert.True(t, e.WouldCreateCycle("b", "a"))
	assert.True(t, e.WouldCreateCycle("c", "a"))
	assert.True(t, e.WouldCreateCycle("a", "a"))
	assert.False(t, e.WouldCreateCycle("a", "c"))
	assert.False(t, e.WouldCreateCycle("d", "a"))

	_, err := e.Upsert(link("", "b", "a", domain.StartToStart, 0))
	assert.True(t, errors.CodeOf(err) == errors.ErrCodeDependencyCycle)
}

func TestConnected(t *testing.T) {
	_, e := setup(t,
		[]model.Task{task("a", "", 0, 1), task("b", "", 1, 2), task("c", "", 2, 3), task("d", "", 0, 1)},
		link("ab", "a", "b", domain.EndToStart, 0),
		link("bc", "b", "c", domain.EndToStart, 0),
	)

	assert.True(t, e.Connected("a", "c"))
	assert.True(t, e.Connected("c", "a"))
	assert.False(t, e.Connected("a", "d"))
	assert.False(t, e.Connected("a", "a"))
}

func TestDeleteAndRemoveForTasks(t *testing.T) {
	_, e := setup(t,
		[]model.Task{task("a", "", 0, 1), task("b", "", 1, 2), task("c", "", 2, 3)},
		link("ab", "a", "b", domain.EndToStart, 0),
		link("bc", "b", "c", domain.EndToStart, 0),
		link("ac", "a", "c", domain.StartToStart, 0),
	)

	removed := e.Delete("ab", "ghost")
	require.Len(t, removed, 1)
	assert.Equal(t, domain.DependencyID("ab"), removed[0].ID)

	removed = e.RemoveForTasks("c")
	assert.Len(t, removed, 2)
	assert.Zero(t, e.Len())
}

func TestLoadRejectsCommittedCycle(t *testing.T) {
	_, e := setup(t, []model.Task{task("a", "", 0, 1), task("b", "", 1, 2)},
		link("ab", "a", "b", domain.EndToStart, 0))

	err := e.Load([]model.Dependency{
		link("ab", "a", "b", domain.EndToStart, 0),
		link("ba", "b", "a", domain.EndToStart, 0),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCommittedCycle, errors.CodeOf(err))
	assert.Equal(t, 1, e.Len(), "previous graph is kept")
}

func TestLoadSkipsUnknownEndpoints(t *testing.T) {
	_, e := setup(t, []model.Task{task("a", "", 0, 1)})
	require.NoError(t, e.Load([]model.Dependency{link("", "a", "ghost", domain.EndToStart, 0)}))
	assert.Zero(t, e.Len())
}

func TestNewPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil, nil) })
}

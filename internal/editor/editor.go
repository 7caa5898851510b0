// Package editor composes the hierarchy, rollup, dependency and reorder
// engines into the single mutation surface of a timeline.
package editor

import (
	"time"

	"github.com/felixgeelhaar/timeline/internal/dependency"
	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/hierarchy"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/metrics"
	"github.com/felixgeelhaar/timeline/internal/model"
	"github.com/felixgeelhaar/timeline/internal/reorder"
	"github.com/felixgeelhaar/timeline/internal/rollup"
)

// DefaultMaxSettleRounds bounds the repeated propagation after rollup.
const DefaultMaxSettleRounds = 8

// Editor owns the schedule state. It is not safe for concurrent use.
type Editor struct {
	tree  *hierarchy.Store
	roll  *rollup.Engine
	deps  *dependency.Engine
	moves *reorder.Engine

	log     *log.Logger
	metrics *metrics.Metrics

	policy          ViolationPolicy
	maxSettleRounds int
	maxDepth        int
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records mutations and passes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithViolationPolicy sets how UpdateTask treats a failing preview.
func WithViolationPolicy(p ViolationPolicy) Option {
	return func(e *Editor) {
		e.policy = p
	}
}

// WithMaxSettleRounds bounds the propagation rounds run for summaries whose
// rolled-up span changed. Values below 1 keep the default.
func WithMaxSettleRounds(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.maxSettleRounds = n
		}
	}
}

// WithMaxDepth sets the hierarchy depth limit used by Open. Zero means
// unlimited.
func WithMaxDepth(n int) Option {
	return func(e *Editor) {
		e.maxDepth = n
	}
}

// New wires an editor from already constructed engines. It panics if any
// engine is nil.
func New(tree *hierarchy.Store, roll *rollup.Engine, deps *dependency.Engine, moves *reorder.Engine, opts ...Option) *Editor {
	if tree == nil || roll == nil || deps == nil || moves == nil {
		panic("editor: nil engine")
	}
	e := &Editor{
		tree:            tree,
		roll:            roll,
		deps:            deps,
		moves:           moves,
		log:             log.Discard(),
		policy:          PolicyReject,
		maxSettleRounds: DefaultMaxSettleRounds,
		maxDepth:        reorder.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("editor")
	return e
}

// Open builds every engine, loads tasks and dependencies and returns the
// editor. Summaries are rolled up on load and broken links are repaired by
// pushing their successors later.
func Open(tasks []model.Task, deps []model.Dependency, opts ...Option) (*Editor, error) {
	base := &Editor{log: log.Discard(), maxDepth: reorder.DefaultMaxDepth}
	for _, opt := range opts {
		opt(base)
	}

	tree := hierarchy.New(base.log)
	roll := rollup.New(tree, base.log)
	graph := dependency.New(tree, roll, base.log)
	moves := reorder.New(tree, graph, roll, base.log, reorder.WithMaxDepth(base.maxDepth))

	e := New(tree, roll, graph, moves, opts...)
	if err := e.Load(tasks, deps); err != nil {
		return nil, err
	}
	return e, nil
}

// Load replaces the whole state. On error nothing changes.
func (e *Editor) Load(tasks []model.Task, deps []model.Dependency) error {
	prev, prevDeps := e.tree.Tasks(), e.deps.All()
	if err := e.tree.UpsertAll(tasks); err != nil {
		e.recordError(err)
		return err
	}
	if err := e.deps.Load(deps); err != nil {
		_ = e.tree.UpsertAll(prev)
		e.recordError(err)
		return err
	}
	rolled := e.roll.ResolveAll()
	e.recordRollup(len(rolled))

	// repair links the loaded dates break
	settled := newCommit("load")
	if err := e.propagate(settled, nil); err != nil {
		_ = e.tree.UpsertAll(prev)
		_ = e.deps.Load(prevDeps)
		return err
	}
	if len(settled.Changed) > 0 {
		e.log.Warn("loaded schedule broke its dependencies; dates adjusted", "tasks", settled.Changed)
	}
	e.log.Info("schedule loaded", "tasks", e.tree.Len(), "dependencies", e.deps.Len())
	return nil
}

// Policy returns the active violation policy.
func (e *Editor) Policy() ViolationPolicy {
	return e.policy
}

// SetPolicy changes the violation policy for later updates.
func (e *Editor) SetPolicy(p ViolationPolicy) {
	e.policy = p
}

// MaxDepth returns the hierarchy depth limit enforced by moves.
func (e *Editor) MaxDepth() int {
	return e.moves.MaxDepth()
}

// GetTaskByID returns a copy of the task.
func (e *Editor) GetTaskByID(id domain.TaskID) (model.Task, bool) {
	t, ok := e.tree.Get(id)
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// GetChildren returns copies of the ordered children of id. The empty id
// lists the roots.
func (e *Editor) GetChildren(id domain.TaskID) []model.Task {
	return clones(e.tree.Children(id))
}

// GetAllDescendants returns copies of every descendant of id in pre-order.
func (e *Editor) GetAllDescendants(id domain.TaskID) []model.Task {
	return clones(e.tree.Descendants(id))
}

// GetFlattenedVisible returns copies of the visible outline rows.
func (e *Editor) GetFlattenedVisible() []model.Task {
	return clones(e.tree.FlattenVisible())
}

// Tasks returns copies of every task in outline order.
func (e *Editor) Tasks() []model.Task {
	return e.tree.Tasks()
}

// GetCriticalPathIDs returns the critical tasks in outline order.
func (e *Editor) GetCriticalPathIDs() []domain.TaskID {
	return e.deps.CriticalPath()
}

// GetRange returns the earliest start and latest end of the schedule.
func (e *Editor) GetRange() (start, end time.Time, ok bool) {
	return e.tree.Range()
}

// Dependencies returns a copy of every dependency.
func (e *Editor) Dependencies() []model.Dependency {
	return e.deps.All()
}

// Incoming returns the dependencies whose successor is id.
func (e *Editor) Incoming(id domain.TaskID) []model.Dependency {
	return e.deps.Incoming(id)
}

// Outgoing returns the dependencies whose predecessor is id.
func (e *Editor) Outgoing(id domain.TaskID) []model.Dependency {
	return e.deps.Outgoing(id)
}

// Expanded reports whether id is expanded in the outline.
func (e *Editor) Expanded(id domain.TaskID) bool {
	return e.tree.Expanded(id)
}

// Anomalies returns the data problems of every task.
func (e *Editor) Anomalies() []dependency.Anomaly {
	var out []dependency.Anomaly
	for _, t := range e.tree.Flatten() {
		out = append(out, dependency.Anomalies(t)...)
	}
	return out
}

func clones(ts []*model.Task) []model.Task {
	out := make([]model.Task, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}

func (e *Editor) notFound(id domain.TaskID) error {
	e.log.Warn("task not found", "task_id", id)
	return errors.NewTaskNotFoundError(id.String())
}

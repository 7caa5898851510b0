// Package dependency owns the dependency graph between tasks, clamps dates
// through task constraints and propagates moves to a fixed point.
package dependency

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/hierarchy"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// Roller settles summary aggregates after dates change.
type Roller interface {
	Resolve(id domain.TaskID) []domain.TaskID
	ResolveChain(id domain.TaskID) []domain.TaskID
}

// Engine owns the dependency list. Tasks are read from and written to the
// hierarchy store it was constructed with.
type Engine struct {
	tree *hierarchy.Store
	roll Roller
	log  *log.Logger

	deps []model.Dependency
	in   map[domain.TaskID][]int
	out  map[domain.TaskID][]int
}

// New creates a dependency engine. It panics on a nil store or roller.
func New(tree *hierarchy.Store, roll Roller, logger *log.Logger) *Engine {
	if tree == nil || roll == nil {
		panic("dependency: nil store or roller")
	}
	if logger == nil {
		logger = log.Discard()
	}
	e := &Engine{tree: tree, roll: roll, log: logger.WithComponent("dependency")}
	e.reindex()
	return e
}

func (e *Engine) reindex() {
	e.in = make(map[domain.TaskID][]int)
	e.out = make(map[domain.TaskID][]int)
	for i, d := range e.deps {
		e.out[d.PredecessorID] = append(e.out[d.PredecessorID], i)
		e.in[d.SuccessorID] = append(e.in[d.SuccessorID], i)
	}
}

// Load replaces the dependency list wholesale. Edges with unknown endpoints
// are skipped with a log line; a cycle in the loaded data is returned as a
// DEP-002 error and the previous list is kept.
func (e *Engine) Load(deps []model.Dependency) error {
	prev := e.deps
	e.deps = make([]model.Dependency, 0, len(deps))
	for _, d := range deps {
		if d.ID == "" {
			d.ID = domain.DependencyID(uuid.NewString())
		}
		if !e.tree.Has(d.PredecessorID) || !e.tree.Has(d.SuccessorID) {
			e.log.Warn("skipping dependency with unknown endpoint", "dependency_id", d.ID,
				"predecessor", d.PredecessorID, "successor", d.SuccessorID)
			continue
		}
		e.deps = append(e.deps, d)
	}
	e.reindex()

	if err := e.CheckAcyclic(); err != nil {
		e.deps = prev
		e.reindex()
		return err
	}
	return nil
}

// All returns a copy of every dependency in insertion order.
func (e *Engine) All() []model.Dependency {
	return append([]model.Dependency(nil), e.deps...)
}

// Len returns the number of dependencies.
func (e *Engine) Len() int {
	return len(e.deps)
}

// Get returns the dependency with id.
func (e *Engine) Get(id domain.DependencyID) (model.Dependency, bool) {
	for _, d := range e.deps {
		if d.ID == id {
			return d, true
		}
	}
	return model.Dependency{}, false
}

// Incoming returns the dependencies whose successor is id.
func (e *Engine) Incoming(id domain.TaskID) []model.Dependency {
	return e.pick(e.in[id])
}

// Outgoing returns the dependencies whose predecessor is id.
func (e *Engine) Outgoing(id domain.TaskID) []model.Dependency {
	return e.pick(e.out[id])
}

func (e *Engine) pick(idx []int) []model.Dependency {
	out := make([]model.Dependency, len(idx))
	for i, n := range idx {
		out[i] = e.deps[n]
	}
	return out
}

// Validate checks d against the current graph without storing it.
func (e *Engine) Validate(d model.Dependency) error {
	if err := d.Type.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeDependencyType, "invalid dependency type", err)
	}
	for _, id := range []domain.TaskID{d.PredecessorID, d.SuccessorID} {
		if !e.tree.Has(id) {
			return errors.Newf(errors.ErrCodeDependencyEndpoint, "dependency endpoint not found: %s", id)
		}
	}
	if d.PredecessorID == d.SuccessorID {
		return errors.Newf(errors.ErrCodeSelfDependency, "task %s cannot depend on itself", d.PredecessorID)
	}
	if e.tree.IsDescendant(d.PredecessorID, d.SuccessorID) || e.tree.IsDescendant(d.SuccessorID, d.PredecessorID) {
		return errors.Newf(errors.ErrCodeHierarchyDependency,
			"%s and %s are in the same ancestor chain", d.PredecessorID, d.SuccessorID).
			WithSuggestion("Dependencies between a summary and its own descendants are implied by rollup")
	}
	if e.wouldCreateCycle(d.PredecessorID, d.SuccessorID, d.ID) {
		return errors.NewDependencyCycleError(d.PredecessorID.String(), d.SuccessorID.String())
	}
	return nil
}

// Upsert stores d, replacing an existing dependency with the same id. An empty
// id is assigned a UUID. The stored dependency is returned.
func (e *Engine) Upsert(d model.Dependency) (model.Dependency, error) {
	if d.ID == "" {
		d.ID = domain.DependencyID(uuid.NewString())
	}
	if err := e.Validate(d); err != nil {
		e.log.Debug("dependency rejected", "dependency_id", d.ID, "error", err)
		return model.Dependency{}, err
	}

	replaced := false
	for i := range e.deps {
		if e.deps[i].ID == d.ID {
			e.deps[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		e.deps = append(e.deps, d)
	}
	e.reindex()

	e.log.Debug("dependency stored", "dependency_id", d.ID, "type", d.Type,
		"predecessor", d.PredecessorID, "successor", d.SuccessorID, "replaced", replaced)
	return d, nil
}

// Delete removes the dependencies with the given ids and returns the removed
// ones. Unknown ids are logged and skipped.
func (e *Engine) Delete(ids ...domain.DependencyID) []model.Dependency {
	drop := make(map[domain.DependencyID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	removed := e.filter(func(d model.Dependency) bool { return drop[d.ID] })
	if len(removed) < len(drop) {
		found := make(map[domain.DependencyID]bool, len(removed))
		for _, d := range removed {
			found[d.ID] = true
		}
		for id := range drop {
			if !found[id] {
				e.log.Warn("delete of unknown dependency ignored", "dependency_id", id)
			}
		}
	}
	return removed
}

// RemoveForTasks removes every dependency that references any of the ids.
func (e *Engine) RemoveForTasks(ids ...domain.TaskID) []model.Dependency {
	gone := make(map[domain.TaskID]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	return e.filter(func(d model.Dependency) bool {
		return gone[d.PredecessorID] || gone[d.SuccessorID]
	})
}

func (e *Engine) filter(remove func(model.Dependency) bool) []model.Dependency {
	var removed []model.Dependency
	kept := e.deps[:0:0]
	for _, d := range e.deps {
		if remove(d) {
			removed = append(removed, d)
			continue
		}
		kept = append(kept, d)
	}
	e.deps = kept
	e.reindex()
	return removed
}

// WouldCreateCycle reports whether adding pred -> succ would close a cycle:
// a breadth-first walk from succ over successor edges reaches pred.
func (e *Engine) WouldCreateCycle(pred, succ domain.TaskID) bool {
	return e.wouldCreateCycle(pred, succ, "")
}

func (e *Engine) wouldCreateCycle(pred, succ domain.TaskID, ignore domain.DependencyID) bool {
	if pred == succ {
		return true
	}
	seen := map[domain.TaskID]bool{succ: true}
	queue := []domain.TaskID{succ}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, i := range e.out[cur] {
			d := e.deps[i]
			if ignore != "" && d.ID == ignore {
				continue
			}
			if d.SuccessorID == pred {
				return true
			}
			if !seen[d.SuccessorID] {
				seen[d.SuccessorID] = true
				queue = append(queue, d.SuccessorID)
			}
		}
	}
	return false
}

// Connected reports whether a directed path links a to b or b to a.
func (e *Engine) Connected(a, b domain.TaskID) bool {
	return e.reaches(a, b) || e.reaches(b, a)
}

func (e *Engine) reaches(from, to domain.TaskID) bool {
	if from == to {
		return false
	}
	return e.wouldCreateCycle(to, from, "")
}

// CheckAcyclic runs a depth-first search with a recursion stack over the
// committed graph and returns a DEP-002 error naming the first cycle found.
func (e *Engine) CheckAcyclic() error {
	path := e.findCycle()
	if path == nil {
		return nil
	}
	ids := make([]string, len(path))
	for i, id := range path {
		ids[i] = id.String()
	}
	err := errors.NewCommittedCycleError(ids)
	e.log.LogError(err)
	return err
}

func (e *Engine) findCycle() []domain.TaskID {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[domain.TaskID]int)
	var stack []domain.TaskID
	var cycle []domain.TaskID

	var visit func(domain.TaskID) bool
	visit = func(id domain.TaskID) bool {
		state[id] = onStack
		stack = append(stack, id)
		for _, i := range e.out[id] {
			next := e.deps[i].SuccessorID
			switch state[next] {
			case onStack:
				for j, s := range stack {
					if s == next {
						cycle = append(append([]domain.TaskID(nil), stack[j:]...), next)
						break
					}
				}
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, d := range e.deps {
		if state[d.PredecessorID] == unvisited && visit(d.PredecessorID) {
			return cycle
		}
	}
	return nil
}

// Required returns the successor date d demands given the predecessor's
// current span, and which successor endpoint it constrains.
func (e *Engine) Required(d model.Dependency) (time.Time, domain.Endpoint, bool) {
	pred, ok := e.tree.Get(d.PredecessorID)
	if !ok {
		return time.Time{}, domain.EndpointStart, false
	}
	return d.Anchor(pred), d.Type.Target(), true
}

package reorder

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/hierarchy"
)

// TestMovesKeepOrderContiguousProperty runs random gestures, accepted or
// rejected, and checks every sibling group stays a dense 0..n-1 sequence.
func TestMovesKeepOrderContiguousProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree, _, e := fixture(t)
		ids := []domain.TaskID{"P", "a", "b", "b1", "c", "d", "M", "L"}
		positions := []domain.DropPosition{domain.DropAbove, domain.DropBelow, domain.DropInside}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(rt, "id")
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				_, _ = e.MoveUp(id)
			case 1:
				_, _ = e.MoveDown(id)
			case 2:
				_, _ = e.MoveLeft(id)
			case 3:
				_, _ = e.MoveRight(id)
			case 4:
				_, _ = e.MoveTo(id, rapid.IntRange(-3, 10).Draw(rt, "index"))
			case 5:
				target := rapid.SampledFrom(ids).Draw(rt, "target")
				_, _ = e.Drop(id, target, rapid.SampledFrom(positions).Draw(rt, "pos"))
			}
			assertContiguous(rt, tree)
		}
	})
}

func assertContiguous(t *rapid.T, tree *hierarchy.Store) {
	parents := []domain.TaskID{""}
	for _, task := range tree.Flatten() {
		parents = append(parents, task.ID)
	}
	for _, p := range parents {
		for i, c := range tree.Children(p) {
			if c.OrderIndex != i {
				t.Fatalf("group %q: %s has OrderIndex %d at position %d", p, c.ID, c.OrderIndex, i)
			}
		}
	}
	if len(tree.Flatten()) != 8 {
		t.Fatalf("moves must never drop tasks, have %d", len(tree.Flatten()))
	}
}

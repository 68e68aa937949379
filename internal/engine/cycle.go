package engine

import "github.com/roach88/recalc/internal/ir"

// CycleGuard tracks the chain of task targets from the root of a cascade to
// the task currently being expanded.
//
// Cycles occur when an attribute transitively depends on itself:
//
//	C2.a3 ← C2.a3                   (self dependency)
//	X ← Y ← Z ← X                   (mutual recursion)
//
// The guard is path-scoped, not build-scoped. Two sibling branches that
// both reach the same attribute are each allowed to expand it; only an
// ancestor/descendant repeat is a cycle.
//
// CRITICAL DISTINCTION from de-duplication:
//   - De-duplication: "Is this target already a sibling at this level?" (grouping)
//   - Cycle Guard: "Is this target already an ancestor of this task?" (path)
//
// Thread-safety: CycleGuard is NOT safe for concurrent use. Each build owns
// its own guard.
type CycleGuard struct {
	path []ir.AttributeRef
}

// NewCycleGuard creates an empty guard.
func NewCycleGuard() *CycleGuard {
	return &CycleGuard{}
}

// Enter pushes ref onto the path.
//
// Returns false, without pushing, if ref is already on the path. Callers
// must pair every successful Enter with exactly one Leave.
func (g *CycleGuard) Enter(ref ir.AttributeRef) bool {
	if g.Contains(ref) {
		return false
	}
	g.path = append(g.path, ref)
	return true
}

// Leave pops the most recently entered ref. Leave on an empty guard is a no-op.
func (g *CycleGuard) Leave() {
	if len(g.path) == 0 {
		return
	}
	g.path = g.path[:len(g.path)-1]
}

// Contains reports whether ref is on the current path.
func (g *CycleGuard) Contains(ref ir.AttributeRef) bool {
	for _, r := range g.path {
		if r == ref {
			return true
		}
	}
	return false
}

// Path returns a copy of the current path, root first.
func (g *CycleGuard) Path() []ir.AttributeRef {
	out := make([]ir.AttributeRef, len(g.path))
	copy(out, g.path)
	return out
}

// Depth returns the number of refs on the path.
func (g *CycleGuard) Depth() int {
	return len(g.path)
}

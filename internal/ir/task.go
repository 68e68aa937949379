package ir

import "strings"

// RecomputeTask is one node of a cascade: recompute Target for every record
// in RecordIDs, then run Dependents.
//
// A task is transient. It exists for one cascade build and its consumption
// by an executor; it is never persisted.
//
// INVARIANTS:
//   - RecordIDs is never empty
//   - at most one task per Target among siblings
//   - Dependents must run after their parent (they read its fresh values)
type RecomputeTask struct {
	Target     AttributeRef     `json:"target"`
	RecordIDs  RecordSet        `json:"record_ids"`
	Dependents []*RecomputeTask `json:"dependents"`
}

// CollectionID returns the collection owning the target, if it is a collection attribute.
func (t *RecomputeTask) CollectionID() (string, bool) {
	if t.Target.Kind != OwnerCollection {
		return "", false
	}
	return t.Target.OwnerID, true
}

// LinkTypeID returns the link type owning the target, if it is a link attribute.
func (t *RecomputeTask) LinkTypeID() (string, bool) {
	if t.Target.Kind != OwnerLinkType {
		return "", false
	}
	return t.Target.OwnerID, true
}

// Walk visits every task of the forest depth-first, parents before
// dependents. depth is 0 for root tasks. Returning false from fn skips the
// task's dependents.
func Walk(forest []*RecomputeTask, fn func(task *RecomputeTask, depth int) bool) {
	var visit func(tasks []*RecomputeTask, depth int)
	visit = func(tasks []*RecomputeTask, depth int) {
		for _, t := range tasks {
			if fn(t, depth) {
				visit(t.Dependents, depth+1)
			}
		}
	}
	visit(forest, 0)
}

// Flatten returns every task of the forest in pre-order. The result is a
// valid work queue: each task appears after all of its ancestors.
func Flatten(forest []*RecomputeTask) []*RecomputeTask {
	var out []*RecomputeTask
	Walk(forest, func(t *RecomputeTask, _ int) bool {
		out = append(out, t)
		return true
	})
	return out
}

// CountTasks returns the total number of tasks in the forest.
func CountTasks(forest []*RecomputeTask) int {
	n := 0
	Walk(forest, func(*RecomputeTask, int) bool {
		n++
		return true
	})
	return n
}

// CanonicalForest converts a forest into plain maps and slices accepted by
// MarshalCanonical. Dependents are always present, as an empty array for leaves.
func CanonicalForest(forest []*RecomputeTask) []any {
	out := make([]any, 0, len(forest))
	for _, t := range forest {
		ids := make([]any, 0, t.RecordIDs.Len())
		for _, id := range t.RecordIDs.IDs() {
			ids = append(ids, id)
		}
		out = append(out, map[string]any{
			"target":     t.Target.String(),
			"record_ids": ids,
			"dependents": CanonicalForest(t.Dependents),
		})
	}
	return out
}

// FormatForest renders the forest as an indented tree, one task per line:
//
//	collection:C2.a2 {c2a,c2b}
//	  collection:C1.a1 {c1a,c1b}
func FormatForest(forest []*RecomputeTask) string {
	var b strings.Builder
	Walk(forest, func(t *RecomputeTask, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(t.Target.String())
		b.WriteByte(' ')
		b.WriteString(t.RecordIDs.String())
		b.WriteByte('\n')
		return true
	})
	return b.String()
}

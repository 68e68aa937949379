// Package engine builds cascades: given a set of changed records and the
// dependency edges that read the changed attribute, it produces the forest
// of RecomputeTasks that must run, parents before dependents.
//
// ARCHITECTURE:
//
// The Builder is a pure, synchronous, read-only computation over two
// injected collaborators:
//   - EdgeSource: which attributes are computed from a given attribute
//   - RelationResolver: which documents and link instances are connected
//
// A build proceeds level by level:
//  1. Edges are grouped by target in first-seen order; duplicates collapse
//  2. Each edge resolves the changed ids to affected target ids through a
//     single traversal table keyed by (source kind, target kind, via != "")
//  3. The resolved sets of a group are unioned; empty groups are dropped
//  4. Every materialized task recurses on EdgesBySource(task.Target) with
//     its own record ids as the new changed set
//
// CRITICAL PATTERNS:
//
// Cycle Guard:
// Each build owns a path stack of task targets. A group whose target is
// already on the current root-to-leaf path is not materialized, so every
// build terminates for any cyclic edge configuration. Sibling branches do
// not share guard state.
//
// Unresolvable Edges:
// A malformed edge or a collaborator error resolves to the empty set for
// that edge only. It is logged, counted and reported; the build never fails.
//
// Determinism:
// Sibling order follows the first appearance of each target in the input
// edge order. Record ids are sorted sets.
package engine

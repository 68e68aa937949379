// Package ir provides the canonical data types for recalc.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the data model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - AttributeRef is a comparable value type and is used as a map key
//   - Via == "" on a DependencyEdge means a same-owner dependency
//   - RecordSet is immutable and always sorted, so every traversal result
//     is deterministic
//   - All JSON tags use snake_case
package ir

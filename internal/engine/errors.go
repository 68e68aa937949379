package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/recalc/internal/ir"
)

// ErrKindMismatch marks an edge whose source kind does not match the record
// space of the changed ids it was asked to resolve.
var ErrKindMismatch = errors.New("source kind does not match changed record space")

// UnresolvableEdgeError is the only abnormal condition of a build: an edge
// whose affected records could not be computed. The edge resolves to the
// empty set and the build continues.
//
// Causes include:
//   - Structurally invalid edge (see ir.DependencyEdge.Validate)
//   - Source kind not matching the changed record space
//   - Relation resolver failure
type UnresolvableEdgeError struct {
	Edge ir.DependencyEdge
	Err  error
}

// Error implements the error interface.
func (e *UnresolvableEdgeError) Error() string {
	if e.Edge.Via != "" {
		return fmt.Sprintf("unresolvable edge %s <- %s via %s: %v", e.Edge.Target, e.Edge.Source, e.Edge.Via, e.Err)
	}
	return fmt.Sprintf("unresolvable edge %s <- %s: %v", e.Edge.Target, e.Edge.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnresolvableEdgeError) Unwrap() error {
	return e.Err
}

// EdgeLookupError records a failed EdgesBySource call. The task whose
// dependents were being looked up keeps an empty dependents list.
type EdgeLookupError struct {
	Source ir.AttributeRef
	Err    error
}

// Error implements the error interface.
func (e *EdgeLookupError) Error() string {
	return fmt.Sprintf("lookup edges from %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EdgeLookupError) Unwrap() error {
	return e.Err
}

// IsUnresolvableEdge returns true if the error is an UnresolvableEdgeError.
// Uses errors.As to handle wrapped errors.
func IsUnresolvableEdge(err error) bool {
	var ue *UnresolvableEdgeError
	return errors.As(err, &ue)
}

// IsEdgeLookupError returns true if the error is an EdgeLookupError.
// Uses errors.As to handle wrapped errors.
func IsEdgeLookupError(err error) bool {
	var le *EdgeLookupError
	return errors.As(err, &le)
}

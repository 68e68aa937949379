package ir

import (
	"errors"
	"fmt"
)

// ErrInvalidEdge is returned (wrapped) by DependencyEdge.Validate.
var ErrInvalidEdge = errors.New("invalid dependency edge")

// Validate checks the structural invariants of an edge. It does not consult
// the schema; whether Via actually connects both ends is checked by the
// compiler against link type definitions.
//
// Rules:
//   - both refs have a known kind and non-empty ids
//   - Via == "" only for same-owner edges
//   - a link type target is reached via its own link type
//   - a link type source feeding a collection is read via its own link type
func (e DependencyEdge) Validate() error {
	for _, side := range []struct {
		name string
		ref  AttributeRef
	}{{"target", e.Target}, {"source", e.Source}} {
		if !side.ref.Kind.Valid() {
			return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidEdge, side.name, side.ref.Kind)
		}
		if side.ref.OwnerID == "" || side.ref.AttributeID == "" {
			return fmt.Errorf("%w: %s %s is incomplete", ErrInvalidEdge, side.name, side.ref)
		}
	}

	if e.Via == "" {
		if !e.SameOwner() {
			return fmt.Errorf("%w: %s <- %s crosses owners without a link type", ErrInvalidEdge, e.Target, e.Source)
		}
		return nil
	}

	if e.Target.Kind == OwnerLinkType && e.Via != e.Target.OwnerID {
		return fmt.Errorf("%w: link target %s must be reached via %s, not %s", ErrInvalidEdge, e.Target, e.Target.OwnerID, e.Via)
	}
	if e.Source.Kind == OwnerLinkType && e.Target.Kind == OwnerCollection && e.Via != e.Source.OwnerID {
		return fmt.Errorf("%w: link source %s must be read via %s, not %s", ErrInvalidEdge, e.Source, e.Source.OwnerID, e.Via)
	}
	return nil
}

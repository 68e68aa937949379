package engine

import (
	"context"
	"fmt"

	"github.com/roach88/recalc/internal/ir"
)

// traversal names how changed source records map to target records.
type traversal int

const (
	// traverseIdentity: same owner, the changed records are the affected records.
	traverseIdentity traversal = iota
	// traversePeers: collection → collection, the documents on the target
	// side of link instances incident to the changed documents.
	traversePeers
	// traverseIncidentLinks: collection → link type, the link instances
	// incident to the changed documents.
	traverseIncidentLinks
	// traverseEndpoints: link type → collection, the target-side endpoint
	// documents of the changed link instances.
	traverseEndpoints
	// traverseAdjacentLinks: link type → other link type, the instances of
	// the target link type sharing a document with a changed link instance.
	traverseAdjacentLinks
)

func (t traversal) String() string {
	switch t {
	case traverseIdentity:
		return "identity"
	case traversePeers:
		return "peers"
	case traverseIncidentLinks:
		return "incident_links"
	case traverseEndpoints:
		return "endpoints"
	case traverseAdjacentLinks:
		return "adjacent_links"
	default:
		return fmt.Sprintf("traversal(%d)", int(t))
	}
}

// traversalFor selects the traversal of a structurally valid edge, keyed by
// (source kind, target kind, via != "").
func traversalFor(e ir.DependencyEdge) traversal {
	if e.Via == "" {
		return traverseIdentity
	}
	switch {
	case e.Source.Kind == ir.OwnerCollection && e.Target.Kind == ir.OwnerCollection:
		return traversePeers
	case e.Source.Kind == ir.OwnerCollection && e.Target.Kind == ir.OwnerLinkType:
		return traverseIncidentLinks
	case e.Source.Kind == ir.OwnerLinkType && e.Target.Kind == ir.OwnerCollection:
		return traverseEndpoints
	case e.Source.OwnerID == e.Target.OwnerID:
		// Another attribute of the same link instance.
		return traverseIdentity
	default:
		return traverseAdjacentLinks
	}
}

// resolveEdge maps the changed records of the edge's source to the affected
// records of its target. kind is the record space of changed.
//
// Empty inputs, and empty intermediate sets, short-circuit without calling
// the resolver.
func resolveEdge(ctx context.Context, r RelationResolver, kind ir.OwnerKind, e ir.DependencyEdge, changed ir.RecordSet) (ir.RecordSet, error) {
	if err := e.Validate(); err != nil {
		return ir.RecordSet{}, err
	}
	if e.Source.Kind != kind {
		return ir.RecordSet{}, fmt.Errorf("%w: source is %s, changed ids are %s ids", ErrKindMismatch, e.Source.Kind, kind)
	}
	if changed.IsEmpty() {
		return ir.RecordSet{}, nil
	}

	switch traversalFor(e) {
	case traverseIdentity:
		return changed, nil

	case traversePeers:
		links, err := r.LinkInstancesFor(ctx, e.Via, changed)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("link instances of %s: %w", e.Via, err)
		}
		if links.IsEmpty() {
			return ir.RecordSet{}, nil
		}
		docs, err := r.DocumentsFor(ctx, e.Via, e.Target.OwnerID, links)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("documents of %s: %w", e.Via, err)
		}
		if e.Source.OwnerID == e.Target.OwnerID {
			// A link type from a collection to itself returns both ends;
			// the changed documents are not their own peers.
			docs = docs.Minus(changed)
		}
		return docs, nil

	case traverseIncidentLinks:
		links, err := r.LinkInstancesFor(ctx, e.Via, changed)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("link instances of %s: %w", e.Via, err)
		}
		return links, nil

	case traverseEndpoints:
		docs, err := r.DocumentsFor(ctx, e.Via, e.Target.OwnerID, changed)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("documents of %s: %w", e.Via, err)
		}
		return docs, nil

	case traverseAdjacentLinks:
		docs, err := r.DocumentsFor(ctx, e.Source.OwnerID, "", changed)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("documents of %s: %w", e.Source.OwnerID, err)
		}
		if docs.IsEmpty() {
			return ir.RecordSet{}, nil
		}
		links, err := r.LinkInstancesFor(ctx, e.Via, docs)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("link instances of %s: %w", e.Via, err)
		}
		return links, nil
	}
	return ir.RecordSet{}, fmt.Errorf("no traversal for %s <- %s", e.Target, e.Source)
}

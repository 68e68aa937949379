package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/recalc/internal/ir"
)

// Call records one resolver invocation made against a Graph.
type Call struct {
	Method       string // "LinkInstancesFor" or "DocumentsFor"
	LinkTypeID   string
	CollectionID string
	IDs          ir.RecordSet
}

// Graph is an in-memory edge source and relation resolver seeded with fixed
// data. It implements engine.EdgeSource, engine.RelationResolver and
// engine.Catalog.
//
// Every resolver call is recorded so tests can assert that a traversal did
// (or did not) consult the resolver. Failures can be injected per link type
// and per edge lookup.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Graph struct {
	mu         sync.Mutex
	linkTypes  map[string][2]string
	documents  map[string]string // document id -> collection id
	links      map[string]ir.LinkInstance
	edges      []ir.DependencyEdge
	failLinks  map[string]error
	failLookup map[ir.AttributeRef]error
	calls      []Call
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		linkTypes:  make(map[string][2]string),
		documents:  make(map[string]string),
		links:      make(map[string]ir.LinkInstance),
		failLinks:  make(map[string]error),
		failLookup: make(map[ir.AttributeRef]error),
	}
}

// LinkType declares a link type connecting collections a and b.
func (g *Graph) LinkType(id, a, b string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.linkTypes[id] = [2]string{a, b}
	return g
}

// Documents declares documents of a collection.
func (g *Graph) Documents(collectionID string, ids ...string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.documents[id] = collectionID
	}
	return g
}

// Link declares a link instance of linkTypeID between docA and docB.
func (g *Graph) Link(id, linkTypeID, docA, docB string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links[id] = ir.LinkInstance{ID: id, LinkTypeID: linkTypeID, DocumentIDs: [2]string{docA, docB}}
	return g
}

// Unlink removes a link instance, as a user deleting it would.
func (g *Graph) Unlink(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.links, id)
	return g
}

// Edges appends dependency edges. Duplicates are kept, as a store without
// uniqueness constraints would.
func (g *Graph) Edges(edges ...ir.DependencyEdge) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, edges...)
	return g
}

// FailLinkType makes every resolver call for linkTypeID return err.
func (g *Graph) FailLinkType(linkTypeID string, err error) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failLinks[linkTypeID] = err
	return g
}

// FailEdgeLookup makes EdgesBySource(ref) return err.
func (g *Graph) FailEdgeLookup(ref ir.AttributeRef, err error) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failLookup[ref] = err
	return g
}

// Calls returns the resolver calls made so far, in order.
func (g *Graph) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// ResetCalls clears the recorded resolver calls.
func (g *Graph) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// EdgesBySource returns the edges whose source is ref, in insertion order.
func (g *Graph) EdgesBySource(_ context.Context, ref ir.AttributeRef) ([]ir.DependencyEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.failLookup[ref]; err != nil {
		return nil, err
	}
	out := []ir.DependencyEdge{}
	for _, e := range g.edges {
		if e.Source == ref {
			out = append(out, e)
		}
	}
	return out, nil
}

// LinkInstancesFor returns the link instances of linkTypeID incident to any
// of documentIDs.
func (g *Graph) LinkInstancesFor(_ context.Context, linkTypeID string, documentIDs ir.RecordSet) (ir.RecordSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "LinkInstancesFor", LinkTypeID: linkTypeID, IDs: documentIDs})
	if err := g.failLinks[linkTypeID]; err != nil {
		return ir.RecordSet{}, err
	}

	var found []string
	for _, l := range g.sortedLinks() {
		if l.LinkTypeID != linkTypeID {
			continue
		}
		if documentIDs.Contains(l.DocumentIDs[0]) || documentIDs.Contains(l.DocumentIDs[1]) {
			found = append(found, l.ID)
		}
	}
	return ir.NewRecordSet(found...), nil
}

// DocumentsFor returns the endpoints of linkInstanceIDs that belong to
// collectionID, or both endpoints when collectionID is "".
func (g *Graph) DocumentsFor(_ context.Context, linkTypeID, collectionID string, linkInstanceIDs ir.RecordSet) (ir.RecordSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "DocumentsFor", LinkTypeID: linkTypeID, CollectionID: collectionID, IDs: linkInstanceIDs})
	if err := g.failLinks[linkTypeID]; err != nil {
		return ir.RecordSet{}, err
	}
	if _, ok := g.linkTypes[linkTypeID]; !ok {
		return ir.RecordSet{}, nil
	}

	var found []string
	for _, l := range g.sortedLinks() {
		if l.LinkTypeID != linkTypeID || !linkInstanceIDs.Contains(l.ID) {
			continue
		}
		for _, doc := range l.DocumentIDs {
			if collectionID == "" || g.documents[doc] == collectionID {
				found = append(found, doc)
			}
		}
	}
	return ir.NewRecordSet(found...), nil
}

// Records returns the documents of a collection or the link instances of a
// link type.
func (g *Graph) Records(_ context.Context, kind ir.OwnerKind, ownerID string) (ir.RecordSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var found []string
	switch kind {
	case ir.OwnerCollection:
		for id, c := range g.documents {
			if c == ownerID {
				found = append(found, id)
			}
		}
	case ir.OwnerLinkType:
		for id, l := range g.links {
			if l.LinkTypeID == ownerID {
				found = append(found, id)
			}
		}
	}
	return ir.NewRecordSet(found...), nil
}

// DerivedAttributes returns the distinct edge targets owned by ownerID, in
// first-seen order.
func (g *Graph) DerivedAttributes(_ context.Context, kind ir.OwnerKind, ownerID string) ([]ir.AttributeRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[ir.AttributeRef]bool)
	var out []ir.AttributeRef
	for _, e := range g.edges {
		if e.Target.Kind != kind || e.Target.OwnerID != ownerID || seen[e.Target] {
			continue
		}
		seen[e.Target] = true
		out = append(out, e.Target)
	}
	return out, nil
}

// EdgesVia returns the edges that traverse linkTypeID, in insertion order.
func (g *Graph) EdgesVia(_ context.Context, linkTypeID string) ([]ir.DependencyEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := []ir.DependencyEdge{}
	for _, e := range g.edges {
		if e.Via == linkTypeID {
			out = append(out, e)
		}
	}
	return out, nil
}

// sortedLinks returns link instances ordered by id. Caller holds g.mu.
func (g *Graph) sortedLinks() []ir.LinkInstance {
	out := make([]ir.LinkInstance, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

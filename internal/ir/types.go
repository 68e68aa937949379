package ir

// DependencyEdge states that Target is computed from Source, reached via
// the link type Via. Via is empty for a same-owner dependency.
//
// Edges are written by schema editing code and only read by the cascade
// builder. Multiple edges may share the same Target.
type DependencyEdge struct {
	Target AttributeRef `json:"target" yaml:"target"`
	Source AttributeRef `json:"source" yaml:"source"`
	Via    string       `json:"via,omitempty" yaml:"via,omitempty"`
}

// Edge is shorthand for constructing a DependencyEdge.
func Edge(target, source AttributeRef, via string) DependencyEdge {
	return DependencyEdge{Target: target, Source: source, Via: via}
}

// SameOwner reports whether source and target live on the same owner.
func (e DependencyEdge) SameOwner() bool {
	return e.Source.Kind == e.Target.Kind && e.Source.OwnerID == e.Target.OwnerID
}

// Schema is a compiled workspace definition: collections, link types and
// the derived attributes declared on them.
type Schema struct {
	Collections []Collection `json:"collections"`
	LinkTypes   []LinkType   `json:"link_types"`
}

// Collection is a table of documents.
type Collection struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// LinkType is a typed relation between two collections (or a collection and itself).
type LinkType struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Collections [2]string   `json:"collections"`
	Attributes  []Attribute `json:"attributes"`
}

// Connects reports whether the link type has collectionID as one of its ends.
func (lt LinkType) Connects(collectionID string) bool {
	return lt.Collections[0] == collectionID || lt.Collections[1] == collectionID
}

// Attribute is a field slot on a collection or link type.
// A non-empty From makes the attribute derived.
type Attribute struct {
	ID   string            `json:"id"`
	Name string            `json:"name,omitempty"`
	From []AttributeSource `json:"from,omitempty"`
}

// Derived reports whether the attribute is computed from other attributes.
func (a Attribute) Derived() bool {
	return len(a.From) > 0
}

// AttributeSource is one reference inside a derived attribute's formula.
// Exactly one of Collection and LinkType is set.
type AttributeSource struct {
	Collection string `json:"collection,omitempty"`
	LinkType   string `json:"link_type,omitempty"`
	Attribute  string `json:"attribute"`
	Via        string `json:"via,omitempty"`
}

// Ref returns the attribute reference the source points at.
func (s AttributeSource) Ref() AttributeRef {
	if s.LinkType != "" {
		return LinkTypeAttr(s.LinkType, s.Attribute)
	}
	return CollectionAttr(s.Collection, s.Attribute)
}

// Collection returns the collection with the given id.
func (s *Schema) Collection(id string) (Collection, bool) {
	for _, c := range s.Collections {
		if c.ID == id {
			return c, true
		}
	}
	return Collection{}, false
}

// LinkType returns the link type with the given id.
func (s *Schema) LinkType(id string) (LinkType, bool) {
	for _, lt := range s.LinkTypes {
		if lt.ID == id {
			return lt, true
		}
	}
	return LinkType{}, false
}

// HasAttribute reports whether ref names an attribute declared in the schema.
func (s *Schema) HasAttribute(ref AttributeRef) bool {
	var attrs []Attribute
	switch ref.Kind {
	case OwnerCollection:
		c, ok := s.Collection(ref.OwnerID)
		if !ok {
			return false
		}
		attrs = c.Attributes
	case OwnerLinkType:
		lt, ok := s.LinkType(ref.OwnerID)
		if !ok {
			return false
		}
		attrs = lt.Attributes
	default:
		return false
	}
	for _, a := range attrs {
		if a.ID == ref.AttributeID {
			return true
		}
	}
	return false
}

// DerivedTargets returns every derived attribute in declaration order
// (collections first, then link types).
func (s *Schema) DerivedTargets() []AttributeRef {
	var refs []AttributeRef
	for _, c := range s.Collections {
		for _, a := range c.Attributes {
			if a.Derived() {
				refs = append(refs, CollectionAttr(c.ID, a.ID))
			}
		}
	}
	for _, lt := range s.LinkTypes {
		for _, a := range lt.Attributes {
			if a.Derived() {
				refs = append(refs, LinkTypeAttr(lt.ID, a.ID))
			}
		}
	}
	return refs
}

// Edges derives the dependency edges declared by the schema, in declaration order.
func (s *Schema) Edges() []DependencyEdge {
	var edges []DependencyEdge
	add := func(target AttributeRef, from []AttributeSource) {
		for _, src := range from {
			edges = append(edges, Edge(target, src.Ref(), src.Via))
		}
	}
	for _, c := range s.Collections {
		for _, a := range c.Attributes {
			add(CollectionAttr(c.ID, a.ID), a.From)
		}
	}
	for _, lt := range s.LinkTypes {
		for _, a := range lt.Attributes {
			add(LinkTypeAttr(lt.ID, a.ID), a.From)
		}
	}
	return edges
}

// EdgesForTarget returns the declared edges whose target is ref.
func (s *Schema) EdgesForTarget(ref AttributeRef) []DependencyEdge {
	var out []DependencyEdge
	for _, e := range s.Edges() {
		if e.Target == ref {
			out = append(out, e)
		}
	}
	return out
}

// Document is one record in a collection.
type Document struct {
	ID           string `json:"id" yaml:"id"`
	CollectionID string `json:"collection_id" yaml:"collection"`
}

// LinkInstance connects two documents through a link type.
type LinkInstance struct {
	ID          string    `json:"id" yaml:"id"`
	LinkTypeID  string    `json:"link_type_id" yaml:"link_type"`
	DocumentIDs [2]string `json:"document_ids" yaml:"documents"`
}

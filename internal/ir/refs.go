package ir

import (
	"fmt"
	"strings"
)

// OwnerKind identifies what owns an attribute: a collection or a link type.
type OwnerKind string

const (
	// OwnerCollection marks attributes of documents in a collection.
	OwnerCollection OwnerKind = "collection"
	// OwnerLinkType marks attributes of link instances of a link type.
	OwnerLinkType OwnerKind = "link_type"
)

// Valid reports whether k is one of the known owner kinds.
func (k OwnerKind) Valid() bool {
	return k == OwnerCollection || k == OwnerLinkType
}

// AttributeRef identifies one attribute slot: owner kind, owner id, attribute id.
// Equality is structural, so it is safe to use as a map key.
type AttributeRef struct {
	Kind        OwnerKind `json:"kind" yaml:"kind"`
	OwnerID     string    `json:"owner" yaml:"owner"`
	AttributeID string    `json:"attribute" yaml:"attribute"`
}

// CollectionAttr returns a reference to a collection attribute.
func CollectionAttr(collectionID, attributeID string) AttributeRef {
	return AttributeRef{Kind: OwnerCollection, OwnerID: collectionID, AttributeID: attributeID}
}

// LinkTypeAttr returns a reference to a link type attribute.
func LinkTypeAttr(linkTypeID, attributeID string) AttributeRef {
	return AttributeRef{Kind: OwnerLinkType, OwnerID: linkTypeID, AttributeID: attributeID}
}

// IsZero reports whether r is the zero reference.
func (r AttributeRef) IsZero() bool {
	return r == AttributeRef{}
}

// String renders the reference as "kind:owner.attribute".
//
//	collection:C2.a2
//	link_type:L12.weight
func (r AttributeRef) String() string {
	return fmt.Sprintf("%s:%s.%s", r.Kind, r.OwnerID, r.AttributeID)
}

// ParseAttributeRef parses the String form of an AttributeRef.
// The attribute id is everything after the last dot, so owner ids may contain dots.
func ParseAttributeRef(s string) (AttributeRef, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return AttributeRef{}, fmt.Errorf("attribute ref %q: missing kind prefix", s)
	}
	k := OwnerKind(kind)
	if !k.Valid() {
		return AttributeRef{}, fmt.Errorf("attribute ref %q: unknown owner kind %q", s, kind)
	}
	dot := strings.LastIndex(rest, ".")
	if dot <= 0 || dot == len(rest)-1 {
		return AttributeRef{}, fmt.Errorf("attribute ref %q: expected owner.attribute", s)
	}
	return AttributeRef{Kind: k, OwnerID: rest[:dot], AttributeID: rest[dot+1:]}, nil
}

// ParseOwner parses an owner reference of the form "kind:owner", e.g.
// "collection:C2" or "link_type:L12".
func ParseOwner(s string) (OwnerKind, string, error) {
	kind, owner, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("owner %q: missing kind prefix", s)
	}
	k := OwnerKind(kind)
	if !k.Valid() {
		return "", "", fmt.Errorf("owner %q: unknown owner kind %q", s, kind)
	}
	if owner == "" {
		return "", "", fmt.Errorf("owner %q: missing owner id", s)
	}
	return k, owner, nil
}

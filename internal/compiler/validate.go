package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/recalc/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Identifier errors (E201-E203)
	ErrInvalidIdentifier = "E201" // id is not a valid identifier
	ErrDuplicateID       = "E202" // duplicate collection, link type or attribute id
	ErrEmptyLinkEnd      = "E203" // link type end is empty

	// Reference errors (E210-E219)
	ErrUnknownCollection = "E210" // reference to an undeclared collection
	ErrUnknownLinkType   = "E211" // reference to an undeclared link type
	ErrUnknownAttribute  = "E212" // reference to an undeclared attribute

	// Edge errors (E220-E229)
	ErrInvalidEdge         = "E220" // edge violates the structural invariants
	ErrViaDoesNotConnect   = "E221" // via link type does not connect source and target
	ErrSelfLinkUnsupported = "E222" // same-collection source via a link type that is not a self link
)

// identifierPattern matches collection, link type and attribute ids.
// Dots and colons are reserved by the "kind:owner.attribute" ref form.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema against the reference and edge rules.
// Returns all errors found (does not fail-fast), in declaration order.
func Validate(schema *ir.Schema) []ValidationError {
	var errs []ValidationError

	// E201, E202: ids
	seen := make(map[string]bool)
	for i, c := range schema.Collections {
		field := fmt.Sprintf("collection.%s", c.ID)
		errs = append(errs, validateID(field, c.ID)...)
		if seen["c:"+c.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("collections[%d]", i),
				Message: fmt.Sprintf("duplicate collection id %q", c.ID),
				Code:    ErrDuplicateID,
			})
		}
		seen["c:"+c.ID] = true
		errs = append(errs, validateAttributeIDs(field, c.Attributes)...)
	}
	for i, lt := range schema.LinkTypes {
		field := fmt.Sprintf("link_type.%s", lt.ID)
		errs = append(errs, validateID(field, lt.ID)...)
		if seen["l:"+lt.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("link_types[%d]", i),
				Message: fmt.Sprintf("duplicate link type id %q", lt.ID),
				Code:    ErrDuplicateID,
			})
		}
		seen["l:"+lt.ID] = true
		errs = append(errs, validateAttributeIDs(field, lt.Attributes)...)

		// E203, E210: both ends must name declared collections
		for j, end := range lt.Collections {
			endField := fmt.Sprintf("%s.collections[%d]", field, j)
			if end == "" {
				errs = append(errs, ValidationError{
					Field:   endField,
					Message: "link type end is empty",
					Code:    ErrEmptyLinkEnd,
				})
				continue
			}
			if _, ok := schema.Collection(end); !ok {
				errs = append(errs, ValidationError{
					Field:   endField,
					Message: fmt.Sprintf("unknown collection %q", end),
					Code:    ErrUnknownCollection,
				})
			}
		}
	}

	// E210-E222: every derived attribute source
	for _, target := range schema.DerivedTargets() {
		for i, e := range schema.EdgesForTarget(target) {
			field := fmt.Sprintf("%s:%s.attribute.%s.from[%d]", target.Kind, target.OwnerID, target.AttributeID, i)
			errs = append(errs, validateEdge(schema, field, e)...)
		}
	}

	return errs
}

// validateID checks one collection or link type id.
func validateID(field, id string) []ValidationError {
	if identifierPattern.MatchString(id) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("invalid identifier %q", id),
		Code:    ErrInvalidIdentifier,
	}}
}

// validateAttributeIDs checks attribute ids of one owner for format and uniqueness.
func validateAttributeIDs(owner string, attrs []ir.Attribute) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for _, a := range attrs {
		field := fmt.Sprintf("%s.attribute.%s", owner, a.ID)
		errs = append(errs, validateID(field, a.ID)...)
		if seen[a.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate attribute id %q", a.ID),
				Code:    ErrDuplicateID,
			})
		}
		seen[a.ID] = true
	}
	return errs
}

// validateEdge checks that an edge's source and via exist and that via
// actually connects the two owners.
func validateEdge(schema *ir.Schema, field string, e ir.DependencyEdge) []ValidationError {
	// E220: structural invariants
	if err := e.Validate(); err != nil {
		return []ValidationError{{Field: field, Message: err.Error(), Code: ErrInvalidEdge}}
	}

	// E210-E212: source must exist
	if refErr, ok := validateRef(schema, field, e.Source); !ok {
		return []ValidationError{refErr}
	}

	if e.Via == "" {
		return nil
	}

	// E211: via must exist
	via, ok := schema.LinkType(e.Via)
	if !ok {
		return []ValidationError{{
			Field:   field + ".via",
			Message: fmt.Sprintf("unknown link type %q", e.Via),
			Code:    ErrUnknownLinkType,
		}}
	}

	// E221, E222: via must connect source and target
	var errs []ValidationError
	src, tgt := e.Source, e.Target
	switch {
	case src.Kind == ir.OwnerCollection && tgt.Kind == ir.OwnerCollection:
		if src.OwnerID == tgt.OwnerID && !(via.Collections[0] == src.OwnerID && via.Collections[1] == src.OwnerID) {
			errs = append(errs, ValidationError{
				Field:   field + ".via",
				Message: fmt.Sprintf("link type %s does not link %s to itself", via.ID, src.OwnerID),
				Code:    ErrSelfLinkUnsupported,
			})
		} else if !linksBoth(via, src.OwnerID, tgt.OwnerID) {
			errs = append(errs, viaDoesNotConnect(field, via.ID, src.OwnerID, tgt.OwnerID))
		}
	case src.Kind == ir.OwnerCollection && tgt.Kind == ir.OwnerLinkType:
		if !via.Connects(src.OwnerID) {
			errs = append(errs, viaDoesNotConnect(field, via.ID, src.OwnerID, tgt.OwnerID))
		}
	case src.Kind == ir.OwnerLinkType && tgt.Kind == ir.OwnerCollection:
		if !via.Connects(tgt.OwnerID) {
			errs = append(errs, viaDoesNotConnect(field, via.ID, src.OwnerID, tgt.OwnerID))
		}
	case src.OwnerID != tgt.OwnerID:
		srcLT, _ := schema.LinkType(src.OwnerID)
		if !via.Connects(srcLT.Collections[0]) && !via.Connects(srcLT.Collections[1]) {
			errs = append(errs, ValidationError{
				Field:   field + ".via",
				Message: fmt.Sprintf("link types %s and %s share no collection", src.OwnerID, via.ID),
				Code:    ErrViaDoesNotConnect,
			})
		}
	}

	return errs
}

// validateRef checks that ref names a declared attribute of a declared owner.
func validateRef(schema *ir.Schema, field string, ref ir.AttributeRef) (ValidationError, bool) {
	switch ref.Kind {
	case ir.OwnerCollection:
		if _, ok := schema.Collection(ref.OwnerID); !ok {
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown collection %q", ref.OwnerID),
				Code:    ErrUnknownCollection,
			}, false
		}
	case ir.OwnerLinkType:
		if _, ok := schema.LinkType(ref.OwnerID); !ok {
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown link type %q", ref.OwnerID),
				Code:    ErrUnknownLinkType,
			}, false
		}
	}
	if !schema.HasAttribute(ref) {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown attribute %s", ref),
			Code:    ErrUnknownAttribute,
		}, false
	}
	return ValidationError{}, true
}

// linksBoth reports whether lt has a and b as its two ends, in either order.
func linksBoth(lt ir.LinkType, a, b string) bool {
	return (lt.Collections[0] == a && lt.Collections[1] == b) ||
		(lt.Collections[0] == b && lt.Collections[1] == a)
}

func viaDoesNotConnect(field, via, source, target string) ValidationError {
	return ValidationError{
		Field:   field + ".via",
		Message: fmt.Sprintf("link type %s does not connect %s and %s", via, source, target),
		Code:    ErrViaDoesNotConnect,
	}
}

package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recalc/internal/ir"
)

// CompileSchema parses a CUE value into an ir.Schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the workspace root, holding "collection" and
// "link_type" structs:
//
//	collection: C2: {
//		name: "Orders"
//		attribute: a2: from: [{collection: "C4", attribute: "a4", via: "L24"}]
//	}
//	link_type: L24: collections: ["C2", "C4"]
//
// Collections and link types keep their CUE declaration order, which is
// also the order of Schema.Edges.
func CompileSchema(v cue.Value) (*ir.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &ir.Schema{
		Collections: []ir.Collection{},
		LinkTypes:   []ir.LinkType{},
	}

	collections := v.LookupPath(cue.ParsePath("collection"))
	if collections.Exists() {
		iter, err := collections.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			c, err := parseCollection(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			schema.Collections = append(schema.Collections, c)
		}
	}

	linkTypes := v.LookupPath(cue.ParsePath("link_type"))
	if linkTypes.Exists() {
		iter, err := linkTypes.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			lt, err := parseLinkType(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			schema.LinkTypes = append(schema.LinkTypes, lt)
		}
	}

	if len(schema.Collections) == 0 {
		return nil, &CompileError{
			Field:   "collection",
			Message: "at least one collection is required",
			Pos:     v.Pos(),
		}
	}

	return schema, nil
}

// CompileBytes compiles CUE source text into a Schema. filename is used
// for error positions only.
func CompileBytes(src []byte, filename string) (*ir.Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileSchema(v)
}

// parseCollection extracts one collection definition.
func parseCollection(id string, v cue.Value) (ir.Collection, error) {
	c := ir.Collection{ID: id, Attributes: []ir.Attribute{}}

	name, err := optionalString(v, "name")
	if err != nil {
		return c, err
	}
	c.Name = name

	c.Attributes, err = parseAttributes(v)
	if err != nil {
		return c, err
	}
	return c, nil
}

// parseLinkType extracts one link type definition. "collections" is
// required and must name exactly two collections (possibly the same one).
func parseLinkType(id string, v cue.Value) (ir.LinkType, error) {
	lt := ir.LinkType{ID: id, Attributes: []ir.Attribute{}}

	name, err := optionalString(v, "name")
	if err != nil {
		return lt, err
	}
	lt.Name = name

	endsVal := v.LookupPath(cue.ParsePath("collections"))
	if !endsVal.Exists() {
		return lt, &CompileError{
			Field:   "collections",
			Message: fmt.Sprintf("link type %q must name its two collections", id),
			Pos:     v.Pos(),
		}
	}
	var ends []string
	if err := endsVal.Decode(&ends); err != nil {
		return lt, formatCUEError(err)
	}
	if len(ends) != 2 {
		return lt, &CompileError{
			Field:   "collections",
			Message: fmt.Sprintf("link type %q must name exactly two collections, got %d", id, len(ends)),
			Pos:     endsVal.Pos(),
		}
	}
	lt.Collections = [2]string{ends[0], ends[1]}

	lt.Attributes, err = parseAttributes(v)
	if err != nil {
		return lt, err
	}
	return lt, nil
}

// parseAttributes extracts the attribute definitions of a collection or
// link type. An attribute without "from" is a plain (non-derived) field.
func parseAttributes(v cue.Value) ([]ir.Attribute, error) {
	attrs := []ir.Attribute{}

	attrsVal := v.LookupPath(cue.ParsePath("attribute"))
	if !attrsVal.Exists() {
		return attrs, nil
	}

	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		attr := ir.Attribute{ID: iter.Label()}
		attrVal := iter.Value()

		attr.Name, err = optionalString(attrVal, "name")
		if err != nil {
			return nil, err
		}

		fromVal := attrVal.LookupPath(cue.ParsePath("from"))
		if fromVal.Exists() {
			attr.From, err = parseSources(fromVal)
			if err != nil {
				return nil, err
			}
			if len(attr.From) == 0 {
				return nil, &CompileError{
					Field:   "from",
					Message: fmt.Sprintf("attribute %q: from must list at least one source", attr.ID),
					Pos:     fromVal.Pos(),
				}
			}
		}

		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// parseSources extracts the referenced attributes of a derived attribute.
func parseSources(v cue.Value) ([]ir.AttributeSource, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var sources []ir.AttributeSource
	for iter.Next() {
		src, err := parseSource(iter.Value())
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// parseSource extracts one source reference. Exactly one of "collection"
// and "link_type" must be set.
func parseSource(v cue.Value) (ir.AttributeSource, error) {
	var src ir.AttributeSource
	var err error

	if src.Collection, err = optionalString(v, "collection"); err != nil {
		return src, err
	}
	if src.LinkType, err = optionalString(v, "link_type"); err != nil {
		return src, err
	}
	if src.Via, err = optionalString(v, "via"); err != nil {
		return src, err
	}

	switch {
	case src.Collection == "" && src.LinkType == "":
		return src, &CompileError{
			Field:   "from",
			Message: "source must set collection or link_type",
			Pos:     v.Pos(),
		}
	case src.Collection != "" && src.LinkType != "":
		return src, &CompileError{
			Field:   "from",
			Message: "source must set only one of collection and link_type",
			Pos:     v.Pos(),
		}
	}

	attrVal := v.LookupPath(cue.ParsePath("attribute"))
	if !attrVal.Exists() {
		return src, &CompileError{
			Field:   "from.attribute",
			Message: "source attribute is required",
			Pos:     v.Pos(),
		}
	}
	if src.Attribute, err = attrVal.String(); err != nil {
		return src, formatCUEError(err)
	}

	return src, nil
}

// optionalString returns the string at path, or "" if it does not exist.
func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

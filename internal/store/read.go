package store

import (
	"context"
	"fmt"

	"github.com/roach88/recalc/internal/ir"
)

// ReadLinkType retrieves a link type with its attribute slots.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadLinkType(ctx context.Context, id string) (ir.LinkType, error) {
	return readLinkType(ctx, s.db, id)
}

func readLinkType(ctx context.Context, db execer, id string) (ir.LinkType, error) {
	var lt ir.LinkType
	err := db.QueryRowContext(ctx, `
		SELECT id, name, collection_a, collection_b
		FROM link_types
		WHERE id = ?
	`, id).Scan(&lt.ID, &lt.Name, &lt.Collections[0], &lt.Collections[1])
	if err != nil {
		return ir.LinkType{}, fmt.Errorf("read link type %s: %w", id, err)
	}
	attrs, err := readAttributes(ctx, db, ir.OwnerLinkType, id)
	if err != nil {
		return ir.LinkType{}, err
	}
	lt.Attributes = attrs
	return lt, nil
}

// ReadSchema reconstructs the stored workspace structure. Collections and
// link types are ordered by id; each derived attribute's sources are
// rebuilt from its dependency edges in insertion order.
func (s *Store) ReadSchema(ctx context.Context) (*ir.Schema, error) {
	schema := &ir.Schema{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM collections ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read schema: query collections: %w", err)
	}
	for rows.Next() {
		var c ir.Collection
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read schema: scan collection: %w", err)
		}
		schema.Collections = append(schema.Collections, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("read schema: iterate collections: %w", err)
	}
	rows.Close()

	for i := range schema.Collections {
		c := &schema.Collections[i]
		if c.Attributes, err = s.readAttributesWithSources(ctx, ir.OwnerCollection, c.ID); err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id FROM link_types ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read schema: query link types: %w", err)
	}
	linkTypeIDs, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	for _, id := range linkTypeIDs {
		lt, err := s.ReadLinkType(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		if lt.Attributes, err = s.readAttributesWithSources(ctx, ir.OwnerLinkType, id); err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		schema.LinkTypes = append(schema.LinkTypes, lt)
	}

	return schema, nil
}

func (s *Store) readAttributesWithSources(ctx context.Context, kind ir.OwnerKind, ownerID string) ([]ir.Attribute, error) {
	attrs, err := readAttributes(ctx, s.db, kind, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range attrs {
		ref := ir.AttributeRef{Kind: kind, OwnerID: ownerID, AttributeID: attrs[i].ID}
		edges, err := s.EdgesByTarget(ctx, ref)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			src := ir.AttributeSource{Attribute: e.Source.AttributeID, Via: e.Via}
			if e.Source.Kind == ir.OwnerLinkType {
				src.LinkType = e.Source.OwnerID
			} else {
				src.Collection = e.Source.OwnerID
			}
			attrs[i].From = append(attrs[i].From, src)
		}
	}
	return attrs, nil
}

func readAttributes(ctx context.Context, db execer, kind ir.OwnerKind, ownerID string) ([]ir.Attribute, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT attribute_id, name
		FROM attributes
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY attribute_id COLLATE BINARY ASC
	`, string(kind), ownerID)
	if err != nil {
		return nil, fmt.Errorf("query attributes of %s %s: %w", kind, ownerID, err)
	}
	defer rows.Close()

	var attrs []ir.Attribute
	for rows.Next() {
		var a ir.Attribute
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attributes: %w", err)
	}
	return attrs, nil
}

// ReadDocuments returns the ids of every document in a collection.
func (s *Store) ReadDocuments(ctx context.Context, collectionID string) (ir.RecordSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM documents
		WHERE collection_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, collectionID)
	if err != nil {
		return ir.RecordSet{}, fmt.Errorf("read documents of %s: %w", collectionID, err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return ir.RecordSet{}, fmt.Errorf("read documents of %s: %w", collectionID, err)
	}
	return ir.NewRecordSet(ids...), nil
}

// ReadLinkInstances returns the ids of every link instance of a link type.
func (s *Store) ReadLinkInstances(ctx context.Context, linkTypeID string) (ir.RecordSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM link_instances
		WHERE link_type_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, linkTypeID)
	if err != nil {
		return ir.RecordSet{}, fmt.Errorf("read link instances of %s: %w", linkTypeID, err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return ir.RecordSet{}, fmt.Errorf("read link instances of %s: %w", linkTypeID, err)
	}
	return ir.NewRecordSet(ids...), nil
}

// Records returns the documents of a collection or the link instances of a
// link type.
func (s *Store) Records(ctx context.Context, kind ir.OwnerKind, ownerID string) (ir.RecordSet, error) {
	switch kind {
	case ir.OwnerCollection:
		return s.ReadDocuments(ctx, ownerID)
	case ir.OwnerLinkType:
		return s.ReadLinkInstances(ctx, ownerID)
	default:
		return ir.RecordSet{}, fmt.Errorf("records of %s: unknown owner kind %q", ownerID, kind)
	}
}

// Stats summarizes how many rows each table holds.
type Stats struct {
	Collections   int `json:"collections"`
	LinkTypes     int `json:"link_types"`
	Attributes    int `json:"attributes"`
	Documents     int `json:"documents"`
	LinkInstances int `json:"link_instances"`
	Edges         int `json:"edges"`
}

// ReadStats counts the rows of every table.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"collections", &st.Collections},
		{"link_types", &st.LinkTypes},
		{"attributes", &st.Attributes},
		{"documents", &st.Documents},
		{"link_instances", &st.LinkInstances},
		{"dependency_edges", &st.Edges},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return st, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/recalc/internal/ir"
)

// LinkInstancesFor returns the ids of link instances of linkTypeID that have
// any of documentIDs as an endpoint. An unknown link type or an empty input
// yields the empty set.
func (s *Store) LinkInstancesFor(ctx context.Context, linkTypeID string, documentIDs ir.RecordSet) (ir.RecordSet, error) {
	if documentIDs.IsEmpty() {
		return ir.RecordSet{}, nil
	}

	var found []string
	for _, chunk := range chunks(documentIDs.IDs(), maxQueryParams) {
		in := placeholders(len(chunk))
		args := append([]any{linkTypeID}, stringArgs(chunk)...)
		args = append(args, stringArgs(chunk)...)

		rows, err := s.db.QueryContext(ctx, `
			SELECT id FROM link_instances
			WHERE link_type_id = ?
			  AND (document_a IN (`+in+`) OR document_b IN (`+in+`))
			ORDER BY id COLLATE BINARY ASC
		`, args...)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("link instances for %s: %w", linkTypeID, err)
		}
		ids, err := collectIDs(rows)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("link instances for %s: %w", linkTypeID, err)
		}
		found = append(found, ids...)
	}
	return ir.NewRecordSet(found...), nil
}

// DocumentsFor returns the endpoint documents of the given link instances of
// linkTypeID that belong to collectionID. An empty collectionID returns both
// endpoints. For a link type connecting a collection to itself both
// endpoints always match.
//
// An unknown link type, or a collection that is not one of its ends, yields
// the empty set.
func (s *Store) DocumentsFor(ctx context.Context, linkTypeID, collectionID string, linkInstanceIDs ir.RecordSet) (ir.RecordSet, error) {
	if linkInstanceIDs.IsEmpty() {
		return ir.RecordSet{}, nil
	}

	lt, err := s.ReadLinkType(ctx, linkTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RecordSet{}, nil
	}
	if err != nil {
		return ir.RecordSet{}, fmt.Errorf("documents for %s: %w", linkTypeID, err)
	}

	includeA := collectionID == "" || lt.Collections[0] == collectionID
	includeB := collectionID == "" || lt.Collections[1] == collectionID
	if !includeA && !includeB {
		return ir.RecordSet{}, nil
	}

	var found []string
	for _, chunk := range chunks(linkInstanceIDs.IDs(), maxQueryParams) {
		args := append([]any{linkTypeID}, stringArgs(chunk)...)
		rows, err := s.db.QueryContext(ctx, `
			SELECT document_a, document_b FROM link_instances
			WHERE link_type_id = ? AND id IN (`+placeholders(len(chunk))+`)
			ORDER BY id COLLATE BINARY ASC
		`, args...)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("documents for %s: %w", linkTypeID, err)
		}
		ends, err := collectEndpoints(rows, includeA, includeB)
		if err != nil {
			return ir.RecordSet{}, fmt.Errorf("documents for %s: %w", linkTypeID, err)
		}
		found = append(found, ends...)
	}
	return ir.NewRecordSet(found...), nil
}

func collectEndpoints(rows *sql.Rows, includeA, includeB bool) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("scan endpoints: %w", err)
		}
		if includeA {
			ids = append(ids, a)
		}
		if includeB {
			ids = append(ids, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return ids, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/recalc/internal/ir"
)

// CreateEdges inserts a batch of dependency edges atomically.
// Every edge is validated before anything is written; an invalid edge fails
// the whole batch with an error wrapping ir.ErrInvalidEdge.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - an edge that already
// exists keeps its original position in insertion order.
func (s *Store) CreateEdges(ctx context.Context, edges []ir.DependencyEdge) error {
	for _, e := range edges {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("create edges: %w", err)
		}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertEdges(ctx, tx, edges)
	})
	if err != nil {
		return fmt.Errorf("create edges: %w", err)
	}
	return nil
}

func insertEdges(ctx context.Context, db execer, edges []ir.DependencyEdge) error {
	for _, e := range edges {
		args, err := edgeArgs(e)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO dependency_edges
			(id, target_kind, target_owner, target_attribute,
			 source_kind, source_owner, source_attribute, via_link_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, args...)
		if err != nil {
			return fmt.Errorf("insert edge %s <- %s: %w", e.Target, e.Source, err)
		}
	}
	return nil
}

// EdgesBySource returns every edge whose source is ref, in insertion order.
// Returns an empty slice (not nil) when nothing depends on ref.
func (s *Store) EdgesBySource(ctx context.Context, ref ir.AttributeRef) ([]ir.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM dependency_edges
		WHERE source_kind = ? AND source_owner = ? AND source_attribute = ?
		ORDER BY seq ASC
	`, string(ref.Kind), ref.OwnerID, ref.AttributeID)
	if err != nil {
		return nil, fmt.Errorf("query edges by source: %w", err)
	}
	return collectEdges(rows)
}

// EdgesByTarget returns every edge whose target is ref, in insertion order.
func (s *Store) EdgesByTarget(ctx context.Context, ref ir.AttributeRef) ([]ir.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM dependency_edges
		WHERE target_kind = ? AND target_owner = ? AND target_attribute = ?
		ORDER BY seq ASC
	`, string(ref.Kind), ref.OwnerID, ref.AttributeID)
	if err != nil {
		return nil, fmt.Errorf("query edges by target: %w", err)
	}
	return collectEdges(rows)
}

// EdgesVia returns every edge that traverses linkTypeID, in insertion order.
func (s *Store) EdgesVia(ctx context.Context, linkTypeID string) ([]ir.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM dependency_edges
		WHERE via_link_type = ?
		ORDER BY seq ASC
	`, linkTypeID)
	if err != nil {
		return nil, fmt.Errorf("query edges via %s: %w", linkTypeID, err)
	}
	return collectEdges(rows)
}

// DerivedAttributes returns the attributes of an owner that are the target
// of at least one edge, ordered by their first edge.
func (s *Store) DerivedAttributes(ctx context.Context, kind ir.OwnerKind, ownerID string) ([]ir.AttributeRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_attribute
		FROM dependency_edges
		WHERE target_kind = ? AND target_owner = ?
		GROUP BY target_attribute
		ORDER BY MIN(seq) ASC
	`, string(kind), ownerID)
	if err != nil {
		return nil, fmt.Errorf("query derived attributes of %s %s: %w", kind, ownerID, err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("query derived attributes of %s %s: %w", kind, ownerID, err)
	}
	refs := make([]ir.AttributeRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, ir.AttributeRef{Kind: kind, OwnerID: ownerID, AttributeID: id})
	}
	return refs, nil
}

// ReadAllEdges returns every stored edge in insertion order.
func (s *Store) ReadAllEdges(ctx context.Context) ([]ir.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM dependency_edges
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all edges: %w", err)
	}
	return collectEdges(rows)
}

// DeleteEdgesByTarget removes every edge computing ref.
// Used when a derived attribute's formula is removed or replaced.
// Returns the number of edges deleted.
func (s *Store) DeleteEdgesByTarget(ctx context.Context, ref ir.AttributeRef) (int64, error) {
	n, err := deleteEdgesByTarget(ctx, s.db, ref)
	if err != nil {
		return 0, fmt.Errorf("delete edges by target: %w", err)
	}
	return n, nil
}

func deleteEdgesByTarget(ctx context.Context, db execer, ref ir.AttributeRef) (int64, error) {
	return execCount(ctx, db, `
		DELETE FROM dependency_edges
		WHERE target_kind = ? AND target_owner = ? AND target_attribute = ?
	`, string(ref.Kind), ref.OwnerID, ref.AttributeID)
}

// DeleteEdgesInvolvingCollection removes every edge whose target or source
// is an attribute of the collection.
func (s *Store) DeleteEdgesInvolvingCollection(ctx context.Context, collectionID string) (int64, error) {
	n, err := deleteEdgesInvolvingOwner(ctx, s.db, ir.OwnerCollection, collectionID)
	if err != nil {
		return 0, fmt.Errorf("delete edges involving collection %s: %w", collectionID, err)
	}
	return n, nil
}

// DeleteEdgesInvolvingLinkType removes every edge whose target or source is
// an attribute of the link type, or that traverses it.
func (s *Store) DeleteEdgesInvolvingLinkType(ctx context.Context, linkTypeID string) (int64, error) {
	n, err := deleteEdgesInvolvingLinkType(ctx, s.db, linkTypeID)
	if err != nil {
		return 0, fmt.Errorf("delete edges involving link type %s: %w", linkTypeID, err)
	}
	return n, nil
}

func deleteEdgesInvolvingLinkType(ctx context.Context, db execer, linkTypeID string) (int64, error) {
	owned, err := deleteEdgesInvolvingOwner(ctx, db, ir.OwnerLinkType, linkTypeID)
	if err != nil {
		return 0, err
	}
	via, err := execCount(ctx, db, `
		DELETE FROM dependency_edges WHERE via_link_type = ?
	`, linkTypeID)
	if err != nil {
		return 0, err
	}
	return owned + via, nil
}

func deleteEdgesInvolvingOwner(ctx context.Context, db execer, kind ir.OwnerKind, ownerID string) (int64, error) {
	return execCount(ctx, db, `
		DELETE FROM dependency_edges
		WHERE (target_kind = ? AND target_owner = ?)
		   OR (source_kind = ? AND source_owner = ?)
	`, string(kind), ownerID, string(kind), ownerID)
}

// DeleteEdgesInvolvingAttribute removes every edge whose target or source is ref.
func (s *Store) DeleteEdgesInvolvingAttribute(ctx context.Context, ref ir.AttributeRef) (int64, error) {
	n, err := deleteEdgesInvolvingAttribute(ctx, s.db, ref)
	if err != nil {
		return 0, fmt.Errorf("delete edges involving attribute %s: %w", ref, err)
	}
	return n, nil
}

func deleteEdgesInvolvingAttribute(ctx context.Context, db execer, ref ir.AttributeRef) (int64, error) {
	return execCount(ctx, db, `
		DELETE FROM dependency_edges
		WHERE (target_kind = ? AND target_owner = ? AND target_attribute = ?)
		   OR (source_kind = ? AND source_owner = ? AND source_attribute = ?)
	`,
		string(ref.Kind), ref.OwnerID, ref.AttributeID,
		string(ref.Kind), ref.OwnerID, ref.AttributeID,
	)
}

// ReplaceEdgesForTarget swaps the edges computing target for a new set in one
// transaction. This is what editing a derived attribute's formula does.
// Every edge must have target as its Target.
func (s *Store) ReplaceEdgesForTarget(ctx context.Context, target ir.AttributeRef, edges []ir.DependencyEdge) error {
	for _, e := range edges {
		if e.Target != target {
			return fmt.Errorf("replace edges for %s: edge targets %s", target, e.Target)
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("replace edges for %s: %w", target, err)
		}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := deleteEdgesByTarget(ctx, tx, target); err != nil {
			return err
		}
		return insertEdges(ctx, tx, edges)
	})
	if err != nil {
		return fmt.Errorf("replace edges for %s: %w", target, err)
	}
	return nil
}

func execCount(ctx context.Context, db execer, query string, args ...any) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

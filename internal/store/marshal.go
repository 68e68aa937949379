package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/recalc/internal/ir"
)

// edgeColumns lists the columns scanned by scanEdge, in order.
const edgeColumns = `target_kind, target_owner, target_attribute,
		source_kind, source_owner, source_attribute, via_link_type`

// maxQueryParams keeps id lists below SQLite's bound parameter limit.
const maxQueryParams = 400

// edgeArgs flattens an edge into insert arguments, id first.
func edgeArgs(e ir.DependencyEdge) ([]any, error) {
	id, err := ir.EdgeID(e)
	if err != nil {
		return nil, fmt.Errorf("marshal edge: %w", err)
	}
	return []any{
		id,
		string(e.Target.Kind), e.Target.OwnerID, e.Target.AttributeID,
		string(e.Source.Kind), e.Source.OwnerID, e.Source.AttributeID,
		e.Via,
	}, nil
}

// scanEdge reads one row selected with edgeColumns.
func scanEdge(rows *sql.Rows) (ir.DependencyEdge, error) {
	var (
		e                      ir.DependencyEdge
		targetKind, sourceKind string
	)
	err := rows.Scan(
		&targetKind, &e.Target.OwnerID, &e.Target.AttributeID,
		&sourceKind, &e.Source.OwnerID, &e.Source.AttributeID,
		&e.Via,
	)
	if err != nil {
		return ir.DependencyEdge{}, fmt.Errorf("scan edge: %w", err)
	}
	e.Target.Kind = ir.OwnerKind(targetKind)
	e.Source.Kind = ir.OwnerKind(sourceKind)
	return e, nil
}

// collectEdges drains rows into a slice. Returns an empty slice (not nil)
// when there are no rows.
func collectEdges(rows *sql.Rows) ([]ir.DependencyEdge, error) {
	defer rows.Close()

	edges := []ir.DependencyEdge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// collectIDs drains single-column string rows.
func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// chunks splits ids into slices of at most size elements.
func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

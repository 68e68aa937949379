package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/recalc/internal/ir"
)

// WriteCollection upserts a collection and its attribute slots.
// Attribute formulas are not stored here; see ApplySchema and the edge operations.
func (s *Store) WriteCollection(ctx context.Context, c ir.Collection) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return writeCollection(ctx, tx, c)
	})
	if err != nil {
		return fmt.Errorf("write collection %s: %w", c.ID, err)
	}
	return nil
}

func writeCollection(ctx context.Context, db execer, c ir.Collection) error {
	if c.ID == "" {
		return errors.New("collection id is required")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO collections (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, c.ID, c.Name)
	if err != nil {
		return err
	}
	return writeAttributes(ctx, db, ir.OwnerCollection, c.ID, c.Attributes)
}

// WriteLinkType upserts a link type and its attribute slots.
// Both end collections must already exist.
func (s *Store) WriteLinkType(ctx context.Context, lt ir.LinkType) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return writeLinkType(ctx, tx, lt)
	})
	if err != nil {
		return fmt.Errorf("write link type %s: %w", lt.ID, err)
	}
	return nil
}

func writeLinkType(ctx context.Context, db execer, lt ir.LinkType) error {
	if lt.ID == "" {
		return errors.New("link type id is required")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO link_types (id, name, collection_a, collection_b) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			collection_a = excluded.collection_a,
			collection_b = excluded.collection_b
	`, lt.ID, lt.Name, lt.Collections[0], lt.Collections[1])
	if err != nil {
		return err
	}
	return writeAttributes(ctx, db, ir.OwnerLinkType, lt.ID, lt.Attributes)
}

func writeAttributes(ctx context.Context, db execer, kind ir.OwnerKind, ownerID string, attrs []ir.Attribute) error {
	for _, a := range attrs {
		derived := 0
		if a.Derived() {
			derived = 1
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO attributes (owner_kind, owner_id, attribute_id, name, derived)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(owner_kind, owner_id, attribute_id) DO UPDATE SET
				name = excluded.name,
				derived = excluded.derived
		`, string(kind), ownerID, a.ID, a.Name, derived)
		if err != nil {
			return fmt.Errorf("write attribute %s.%s: %w", ownerID, a.ID, err)
		}
	}
	return nil
}

// ApplySchema persists a compiled schema: collections, link types, attribute
// slots, and the dependency edges of every declared attribute. The edges of
// each attribute are replaced, so re-applying an edited schema drops edges
// of removed formula references. Runs in a single transaction.
func (s *Store) ApplySchema(ctx context.Context, schema *ir.Schema) error {
	edges := schema.Edges()
	for _, e := range edges {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range schema.Collections {
			if err := writeCollection(ctx, tx, c); err != nil {
				return fmt.Errorf("collection %s: %w", c.ID, err)
			}
		}
		for _, lt := range schema.LinkTypes {
			if err := writeLinkType(ctx, tx, lt); err != nil {
				return fmt.Errorf("link type %s: %w", lt.ID, err)
			}
		}

		var targets []ir.AttributeRef
		for _, c := range schema.Collections {
			for _, a := range c.Attributes {
				targets = append(targets, ir.CollectionAttr(c.ID, a.ID))
			}
		}
		for _, lt := range schema.LinkTypes {
			for _, a := range lt.Attributes {
				targets = append(targets, ir.LinkTypeAttr(lt.ID, a.ID))
			}
		}
		for _, target := range targets {
			if _, err := deleteEdgesByTarget(ctx, tx, target); err != nil {
				return fmt.Errorf("clear edges for %s: %w", target, err)
			}
		}
		return insertEdges(ctx, tx, edges)
	})
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WriteDocument inserts a document. Uses ON CONFLICT(id) DO NOTHING for
// idempotency; the collection must exist.
func (s *Store) WriteDocument(ctx context.Context, doc ir.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, collection_id) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, doc.ID, doc.CollectionID)
	if err != nil {
		return fmt.Errorf("write document %s: %w", doc.ID, err)
	}
	return nil
}

// WriteLinkInstance inserts a link instance. The documents must belong to
// the link type's two collections; if they are given in reverse order they
// are swapped so document_a always lives in the link type's first collection.
func (s *Store) WriteLinkInstance(ctx context.Context, link ir.LinkInstance) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		lt, err := readLinkType(ctx, tx, link.LinkTypeID)
		if err != nil {
			return fmt.Errorf("read link type: %w", err)
		}
		colA, err := documentCollection(ctx, tx, link.DocumentIDs[0])
		if err != nil {
			return err
		}
		colB, err := documentCollection(ctx, tx, link.DocumentIDs[1])
		if err != nil {
			return err
		}

		docA, docB := link.DocumentIDs[0], link.DocumentIDs[1]
		switch {
		case colA == lt.Collections[0] && colB == lt.Collections[1]:
		case colA == lt.Collections[1] && colB == lt.Collections[0]:
			docA, docB = docB, docA
		default:
			return fmt.Errorf("documents %s (%s) and %s (%s) do not match link type ends %s, %s",
				link.DocumentIDs[0], colA, link.DocumentIDs[1], colB, lt.Collections[0], lt.Collections[1])
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO link_instances (id, link_type_id, document_a, document_b)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, link.ID, link.LinkTypeID, docA, docB)
		return err
	})
	if err != nil {
		return fmt.Errorf("write link instance %s: %w", link.ID, err)
	}
	return nil
}

func documentCollection(ctx context.Context, db execer, documentID string) (string, error) {
	var collectionID string
	err := db.QueryRowContext(ctx, `
		SELECT collection_id FROM documents WHERE id = ?
	`, documentID).Scan(&collectionID)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", documentID, err)
	}
	return collectionID, nil
}

// DeleteLinkInstance removes a link instance. Deleting a missing instance is a no-op.
func (s *Store) DeleteLinkInstance(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM link_instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete link instance %s: %w", id, err)
	}
	return nil
}

// DeleteDocument removes a document and, through foreign keys, every link
// instance attached to it.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// DeleteCollection removes a collection together with its documents,
// attribute slots, the link types attached to it, and every dependency edge
// involving any of them.
func (s *Store) DeleteCollection(ctx context.Context, collectionID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM link_types
			WHERE collection_a = ? OR collection_b = ?
			ORDER BY id COLLATE BINARY ASC
		`, collectionID, collectionID)
		if err != nil {
			return fmt.Errorf("query link types: %w", err)
		}
		linkTypeIDs, err := collectIDs(rows)
		if err != nil {
			return err
		}
		for _, id := range linkTypeIDs {
			if err := deleteLinkType(ctx, tx, id); err != nil {
				return err
			}
		}

		if _, err := deleteEdgesInvolvingOwner(ctx, tx, ir.OwnerCollection, collectionID); err != nil {
			return fmt.Errorf("delete edges: %w", err)
		}
		if err := deleteAttributes(ctx, tx, ir.OwnerCollection, collectionID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, collectionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionID, err)
	}
	return nil
}

// DeleteLinkType removes a link type with its instances, attribute slots,
// and every dependency edge that involves or traverses it.
func (s *Store) DeleteLinkType(ctx context.Context, linkTypeID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteLinkType(ctx, tx, linkTypeID)
	})
	if err != nil {
		return fmt.Errorf("delete link type %s: %w", linkTypeID, err)
	}
	return nil
}

func deleteLinkType(ctx context.Context, db execer, linkTypeID string) error {
	if _, err := deleteEdgesInvolvingLinkType(ctx, db, linkTypeID); err != nil {
		return fmt.Errorf("delete edges of link type %s: %w", linkTypeID, err)
	}
	if err := deleteAttributes(ctx, db, ir.OwnerLinkType, linkTypeID); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM link_types WHERE id = ?`, linkTypeID); err != nil {
		return fmt.Errorf("delete link type %s: %w", linkTypeID, err)
	}
	return nil
}

// DeleteAttribute removes an attribute slot and every edge in which it is
// the target or the source.
func (s *Store) DeleteAttribute(ctx context.Context, ref ir.AttributeRef) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := deleteEdgesInvolvingAttribute(ctx, tx, ref); err != nil {
			return fmt.Errorf("delete edges: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM attributes
			WHERE owner_kind = ? AND owner_id = ? AND attribute_id = ?
		`, string(ref.Kind), ref.OwnerID, ref.AttributeID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete attribute %s: %w", ref, err)
	}
	return nil
}

func deleteAttributes(ctx context.Context, db execer, kind ir.OwnerKind, ownerID string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM attributes WHERE owner_kind = ? AND owner_id = ?
	`, string(kind), ownerID)
	if err != nil {
		return fmt.Errorf("delete attributes of %s %s: %w", kind, ownerID, err)
	}
	return nil
}

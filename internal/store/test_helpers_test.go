package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/recalc/internal/ir"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedRelations writes a small workspace:
//
//	C1: c1a, c1b        C2: c2a, c2b, c2c
//	L12 (C1-C2): l1 = c1a-c2a, l2 = c1b-c2b, l3 = c1b-c2c
//	L22 (C2-C2): s1 = c2a-c2b
func seedRelations(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	for _, c := range []ir.Collection{{ID: "C1"}, {ID: "C2"}} {
		if err := s.WriteCollection(ctx, c); err != nil {
			t.Fatalf("WriteCollection(%s) failed: %v", c.ID, err)
		}
	}
	for _, lt := range []ir.LinkType{
		{ID: "L12", Collections: [2]string{"C1", "C2"}},
		{ID: "L22", Collections: [2]string{"C2", "C2"}},
	} {
		if err := s.WriteLinkType(ctx, lt); err != nil {
			t.Fatalf("WriteLinkType(%s) failed: %v", lt.ID, err)
		}
	}
	docs := map[string][]string{
		"C1": {"c1a", "c1b"},
		"C2": {"c2a", "c2b", "c2c"},
	}
	for _, col := range []string{"C1", "C2"} {
		for _, id := range docs[col] {
			if err := s.WriteDocument(ctx, ir.Document{ID: id, CollectionID: col}); err != nil {
				t.Fatalf("WriteDocument(%s) failed: %v", id, err)
			}
		}
	}
	links := []ir.LinkInstance{
		{ID: "l1", LinkTypeID: "L12", DocumentIDs: [2]string{"c1a", "c2a"}},
		{ID: "l2", LinkTypeID: "L12", DocumentIDs: [2]string{"c1b", "c2b"}},
		{ID: "l3", LinkTypeID: "L12", DocumentIDs: [2]string{"c2c", "c1b"}},
		{ID: "s1", LinkTypeID: "L22", DocumentIDs: [2]string{"c2a", "c2b"}},
	}
	for _, l := range links {
		if err := s.WriteLinkInstance(ctx, l); err != nil {
			t.Fatalf("WriteLinkInstance(%s) failed: %v", l.ID, err)
		}
	}
}

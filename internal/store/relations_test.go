package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recalc/internal/ir"
)

func TestLinkInstancesFor(t *testing.T) {
	s := createTestStore(t)
	seedRelations(t, s)
	ctx := context.Background()

	tests := []struct {
		name     string
		linkType string
		docs     ir.RecordSet
		want     ir.RecordSet
	}{
		{"from first end", "L12", ir.NewRecordSet("c1b"), ir.NewRecordSet("l2", "l3")},
		{"from second end", "L12", ir.NewRecordSet("c2a", "c2c"), ir.NewRecordSet("l1", "l3")},
		{"self link either end", "L22", ir.NewRecordSet("c2b"), ir.NewRecordSet("s1")},
		{"other link type ignored", "L22", ir.NewRecordSet("c1a"), ir.RecordSet{}},
		{"unknown link type", "L99", ir.NewRecordSet("c1a"), ir.RecordSet{}},
		{"empty input", "L12", ir.RecordSet{}, ir.RecordSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.LinkInstancesFor(ctx, tt.linkType, tt.docs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentsFor(t *testing.T) {
	s := createTestStore(t)
	seedRelations(t, s)
	ctx := context.Background()

	tests := []struct {
		name       string
		linkType   string
		collection string
		links      ir.RecordSet
		want       ir.RecordSet
	}{
		{"first end", "L12", "C1", ir.NewRecordSet("l1", "l3"), ir.NewRecordSet("c1a", "c1b")},
		{"second end", "L12", "C2", ir.NewRecordSet("l2", "l3"), ir.NewRecordSet("c2b", "c2c")},
		{"both ends", "L12", "", ir.NewRecordSet("l1"), ir.NewRecordSet("c1a", "c2a")},
		{"self link returns both ends", "L22", "C2", ir.NewRecordSet("s1"), ir.NewRecordSet("c2a", "c2b")},
		{"collection not an end", "L12", "C9", ir.NewRecordSet("l1"), ir.RecordSet{}},
		{"unknown link type", "L99", "C1", ir.NewRecordSet("l1"), ir.RecordSet{}},
		{"instance of other link type", "L22", "C2", ir.NewRecordSet("l1"), ir.RecordSet{}},
		{"empty input", "L12", "C1", ir.RecordSet{}, ir.RecordSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.DocumentsFor(ctx, tt.linkType, tt.collection, tt.links)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinkInstancesFor_LargeInputIsChunked(t *testing.T) {
	s := createTestStore(t)
	seedRelations(t, s)
	ctx := context.Background()

	ids := []string{"c1a"}
	for i := 0; i < 2*maxQueryParams+5; i++ {
		ids = append(ids, fmt.Sprintf("missing-%04d", i))
	}
	ids = append(ids, "c1b")

	got, err := s.LinkInstancesFor(ctx, "L12", ir.NewRecordSet(ids...))
	require.NoError(t, err)
	assert.Equal(t, ir.NewRecordSet("l1", "l2", "l3"), got)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(nil, 3))
	assert.Equal(t, [][]string{{"a", "b"}}, chunks([]string{"a", "b"}, 3))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunks([]string{"a", "b", "c"}, 2))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestRecords(t *testing.T) {
	s := createTestStore(t)
	seedRelations(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		kind  ir.OwnerKind
		owner string
		want  ir.RecordSet
	}{
		{"collection documents", ir.OwnerCollection, "C2", ir.NewRecordSet("c2a", "c2b", "c2c")},
		{"link type instances", ir.OwnerLinkType, "L12", ir.NewRecordSet("l1", "l2", "l3")},
		{"self link instances", ir.OwnerLinkType, "L22", ir.NewRecordSet("s1")},
		{"unknown collection", ir.OwnerCollection, "C9", ir.RecordSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Records(ctx, tt.kind, tt.owner)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Records(ctx, "table", "T")
	assert.Error(t, err)
}

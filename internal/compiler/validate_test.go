package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recalc/internal/ir"
)

// validSchema has one derived attribute per traversal kind.
func validSchema() *ir.Schema {
	return &ir.Schema{
		Collections: []ir.Collection{
			{ID: "C1", Attributes: []ir.Attribute{
				{ID: "a1", From: []ir.AttributeSource{
					{Collection: "C2", Attribute: "a2", Via: "L12"},
					{LinkType: "L12", Attribute: "w", Via: "L12"},
				}},
			}},
			{ID: "C2", Attributes: []ir.Attribute{
				{ID: "a2"},
				{ID: "a3", From: []ir.AttributeSource{
					{Collection: "C2", Attribute: "a2"},
					{Collection: "C2", Attribute: "a2", Via: "L22"},
				}},
			}},
			{ID: "C3", Attributes: []ir.Attribute{{ID: "a3"}}},
		},
		LinkTypes: []ir.LinkType{
			{ID: "L12", Collections: [2]string{"C1", "C2"}, Attributes: []ir.Attribute{
				{ID: "w", From: []ir.AttributeSource{{Collection: "C2", Attribute: "a2", Via: "L12"}}},
				{ID: "x", From: []ir.AttributeSource{{LinkType: "L12", Attribute: "w"}}},
			}},
			{ID: "L22", Collections: [2]string{"C2", "C2"}},
			{ID: "L13", Collections: [2]string{"C1", "C3"}, Attributes: []ir.Attribute{
				{ID: "v", From: []ir.AttributeSource{{LinkType: "L12", Attribute: "w", Via: "L13"}}},
			}},
		},
	}
}

func TestValidateValidSchema(t *testing.T) {
	errs := Validate(validSchema())
	assert.Empty(t, errs, "valid schema should have no errors: %v", errs)
}

func TestValidateEmptySchema(t *testing.T) {
	assert.Empty(t, Validate(&ir.Schema{}))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *ir.Schema)
		wantCode string
		wantMsg  string
	}{
		{
			name:     "invalid collection id",
			mutate:   func(s *ir.Schema) { s.Collections = append(s.Collections, ir.Collection{ID: "bad.id"}) },
			wantCode: ErrInvalidIdentifier,
			wantMsg:  `invalid identifier "bad.id"`,
		},
		{
			name: "invalid attribute id",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes = append(s.Collections[2].Attributes, ir.Attribute{ID: "x:y"})
			},
			wantCode: ErrInvalidIdentifier,
			wantMsg:  `invalid identifier "x:y"`,
		},
		{
			name:     "duplicate collection",
			mutate:   func(s *ir.Schema) { s.Collections = append(s.Collections, ir.Collection{ID: "C3"}) },
			wantCode: ErrDuplicateID,
			wantMsg:  `duplicate collection id "C3"`,
		},
		{
			name: "duplicate attribute",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes = append(s.Collections[2].Attributes, ir.Attribute{ID: "a3"})
			},
			wantCode: ErrDuplicateID,
			wantMsg:  `duplicate attribute id "a3"`,
		},
		{
			name:     "empty link end",
			mutate:   func(s *ir.Schema) { s.LinkTypes[2].Collections[1] = "" },
			wantCode: ErrEmptyLinkEnd,
			wantMsg:  "link type end is empty",
		},
		{
			name:     "link end names unknown collection",
			mutate:   func(s *ir.Schema) { s.LinkTypes[2].Collections = [2]string{"C1", "C9"} },
			wantCode: ErrUnknownCollection,
			wantMsg:  `unknown collection "C9"`,
		},
		{
			name: "source in unknown collection",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{Collection: "C9", Attribute: "z", Via: "L13"}}
			},
			wantCode: ErrUnknownCollection,
			wantMsg:  `unknown collection "C9"`,
		},
		{
			name: "source in unknown link type",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{LinkType: "L99", Attribute: "w", Via: "L99"}}
			},
			wantCode: ErrUnknownLinkType,
			wantMsg:  `unknown link type "L99"`,
		},
		{
			name: "unknown source attribute",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{Collection: "C3", Attribute: "missing"}}
			},
			wantCode: ErrUnknownAttribute,
			wantMsg:  "unknown attribute collection:C3.missing",
		},
		{
			name: "unknown via",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{Collection: "C1", Attribute: "a1", Via: "L31"}}
			},
			wantCode: ErrUnknownLinkType,
			wantMsg:  `unknown link type "L31"`,
		},
		{
			name: "cross owner without via",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{Collection: "C1", Attribute: "a1"}}
			},
			wantCode: ErrInvalidEdge,
			wantMsg:  "crosses owners without a link type",
		},
		{
			name: "link target via another link type",
			mutate: func(s *ir.Schema) {
				s.LinkTypes[0].Attributes[0].From = []ir.AttributeSource{{Collection: "C2", Attribute: "a2", Via: "L22"}}
			},
			wantCode: ErrInvalidEdge,
			wantMsg:  "must be reached via L12",
		},
		{
			name: "via does not connect collections",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{Collection: "C2", Attribute: "a2", Via: "L12"}}
			},
			wantCode: ErrViaDoesNotConnect,
			wantMsg:  "link type L12 does not connect C2 and C3",
		},
		{
			name: "same collection via a non-self link",
			mutate: func(s *ir.Schema) {
				s.Collections[1].Attributes[1].From = []ir.AttributeSource{{Collection: "C2", Attribute: "a2", Via: "L12"}}
			},
			wantCode: ErrSelfLinkUnsupported,
			wantMsg:  "does not link C2 to itself",
		},
		{
			name: "collection source not on link target's ends",
			mutate: func(s *ir.Schema) {
				s.LinkTypes[0].Attributes[0].From = []ir.AttributeSource{{Collection: "C3", Attribute: "a3", Via: "L12"}}
			},
			wantCode: ErrViaDoesNotConnect,
			wantMsg:  "does not connect C3 and L12",
		},
		{
			name: "link source feeding collection off its ends",
			mutate: func(s *ir.Schema) {
				s.Collections[2].Attributes[0].From = []ir.AttributeSource{{LinkType: "L12", Attribute: "w", Via: "L12"}}
			},
			wantCode: ErrViaDoesNotConnect,
			wantMsg:  "does not connect L12 and C3",
		},
		{
			name: "link types sharing no collection",
			mutate: func(s *ir.Schema) {
				s.LinkTypes[1].Attributes = []ir.Attribute{{ID: "u", From: []ir.AttributeSource{{LinkType: "L13", Attribute: "v", Via: "L22"}}}}
				s.LinkTypes[2].Collections = [2]string{"C1", "C3"}
			},
			wantCode: ErrViaDoesNotConnect,
			wantMsg:  "link types L13 and L22 share no collection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchema()
			tt.mutate(s)

			errs := Validate(s)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.wantCode, errs[0].Code)
			assert.Contains(t, errs[0].Message, tt.wantMsg)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	s := validSchema()
	s.Collections = append(s.Collections, ir.Collection{ID: "bad.id"})
	s.LinkTypes[2].Collections = [2]string{"C1", "C9"}

	errs := Validate(s)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrInvalidIdentifier, errs[0].Code)
	assert.Equal(t, ErrUnknownCollection, errs[1].Code)
}

func TestValidateFieldNamesSource(t *testing.T) {
	s := validSchema()
	s.Collections[1].Attributes[1].From[1].Via = "L12"

	errs := Validate(s)
	require.Len(t, errs, 1)
	assert.Equal(t, "collection:C2.attribute.a3.from[1].via", errs[0].Field)
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "collection.A", Message: "bad", Code: ErrInvalidIdentifier}
	assert.Equal(t, "[E201] collection.A: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E201] line 7: collection.A: bad", err.Error())
}

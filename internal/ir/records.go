package ir

import (
	"encoding/json"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecordSet is an immutable, sorted set of record ids.
//
// Ids are opaque: a set holds either document ids or link instance ids,
// never a mix. Which space a set belongs to is known from the owning
// AttributeRef. The zero value is the empty set.
type RecordSet struct {
	ids []string
}

// NewRecordSet returns a set of the given ids. Empty ids are ignored.
func NewRecordSet(ids ...string) RecordSet {
	if len(ids) == 0 {
		return RecordSet{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return RecordSet{}
	}
	return RecordSet{ids: out}
}

// Len returns the number of ids in the set.
func (s RecordSet) Len() int {
	return len(s.ids)
}

// IsEmpty reports whether the set has no ids.
func (s RecordSet) IsEmpty() bool {
	return len(s.ids) == 0
}

// IDs returns a sorted copy of the ids.
func (s RecordSet) IDs() []string {
	return slices.Clone(s.ids)
}

// Contains reports whether id is in the set.
func (s RecordSet) Contains(id string) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

// Union returns the ids present in either set.
func (s RecordSet) Union(other RecordSet) RecordSet {
	if other.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return other
	}
	merged := make([]string, 0, len(s.ids)+len(other.ids))
	merged = append(merged, s.ids...)
	merged = append(merged, other.ids...)
	return NewRecordSet(merged...)
}

// Minus returns the ids of s that are not in other.
func (s RecordSet) Minus(other RecordSet) RecordSet {
	if s.IsEmpty() || other.IsEmpty() {
		return s
	}
	var out []string
	for _, id := range s.ids {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return NewRecordSet(out...)
}

// Equal reports whether both sets hold the same ids.
func (s RecordSet) Equal(other RecordSet) bool {
	return slices.Equal(s.ids, other.ids)
}

// String renders the set as "{a,b,c}".
func (s RecordSet) String() string {
	return "{" + strings.Join(s.ids, ",") + "}"
}

// MarshalJSON encodes the set as a sorted JSON array (never null).
func (s RecordSet) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

// UnmarshalJSON decodes a JSON array of ids.
func (s *RecordSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewRecordSet(ids...)
	return nil
}

// UnmarshalYAML decodes a YAML sequence of ids.
func (s *RecordSet) UnmarshalYAML(node *yaml.Node) error {
	var ids []string
	if err := node.Decode(&ids); err != nil {
		return err
	}
	*s = NewRecordSet(ids...)
	return nil
}

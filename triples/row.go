package triples

import "fmt"

// TripleRow is a single versioned fact: (entity, attribute, value,
// timestamp, expired). It is the atomic unit of state the whole store
// revolves around (SPEC_FULL.md §3).
type TripleRow struct {
	Entity    string
	Attribute Attribute
	Value     Value
	Timestamp Timestamp
	Expired   bool
}

// NewTripleRow builds a not-yet-timestamped row; callers that need an
// explicit timestamp should set it directly, since InsertTriple does
// not consult the clock (only SetValue/ExpireEntity* do).
func NewTripleRow(entity string, attribute Attribute, value Value) TripleRow {
	return TripleRow{Entity: entity, Attribute: attribute.clone(), Value: value}
}

func (r TripleRow) String() string {
	return fmt.Sprintf("(%s %v = %v @%s expired=%t)", r.Entity, []interface{}(r.Attribute), r.Value, r.Timestamp, r.Expired)
}

// Equal compares two rows field-by-field using the store's value
// ordering rather than Go's ==, since Value/Attribute may hold slices.
func (r TripleRow) Equal(other TripleRow) bool {
	return r.Entity == other.Entity &&
		r.Attribute.Equal(other.Attribute) &&
		ValuesEqual(r.Value, other.Value) &&
		r.Timestamp == other.Timestamp &&
		r.Expired == other.Expired
}

// MetadataTuple is an (entity, attribute, value) triple whose value may
// be arbitrary — not restricted to the scalar Value domain — stored
// under a distinct, unversioned index family (invariant: metadata
// tuples carry no timestamp and are never superseded, only replaced or
// deleted outright).
type MetadataTuple struct {
	Entity    string
	Attribute Attribute
	Value     interface{}
}

func (m MetadataTuple) String() string {
	return fmt.Sprintf("(%s %v -> %v)", m.Entity, []interface{}(m.Attribute), m.Value)
}

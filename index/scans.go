package index

import (
	"github.com/wbrown/tripledb/kv"
	"github.com/wbrown/tripledb/triples"
)

// Direction selects ascending or descending scan order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func rangeOf(reverse bool, prefix []interface{}, gte, lt []interface{}) kv.ScanArgs {
	args := kv.ScanArgs{
		Prefix:  EncodeTuple(prefix),
		GTE:     EncodeTuple(gte),
		LT:      EncodeTuple(lt),
		Reverse: reverse,
	}
	return args
}

// CollectionBounds implements FindByCollection(c, dir): every EAV row
// whose entity id starts with the collection name c (so "users/1" for
// c == "users"). The attribute is not consulted.
func CollectionBounds(collection string, dir Direction) kv.ScanArgs {
	gte := EncodeTuple([]interface{}{FamilyEAV, collection})
	// Drop the string terminator so the bound is an open string prefix,
	// then cap it with Max: every entity id starting with c sorts below.
	lt := append(append([]byte(nil), gte[:len(gte)-2]...), tagMax)
	return kv.ScanArgs{
		Prefix:  EncodeTuple([]interface{}{FamilyEAV}),
		GTE:     gte,
		LT:      lt,
		Reverse: dir == Descending,
	}
}

// EAVQuery is the optional (entity, attribute, value) argument to
// FindByEAV: a nil field is an open constraint.
type EAVQuery struct {
	Entity    *string
	Attribute triples.Attribute
	Value     *triples.Value
}

// EAVBounds implements FindByEAV([e?, a?, v?], dir).
func EAVBounds(q EAVQuery, dir Direction) kv.ScanArgs {
	loE, hiE := orMinMax(q.Entity)
	loV, hiV := orMinMaxValue(q.Value)

	loA, hiA := attributeBounds(q.Attribute, q.Value != nil)

	return rangeOf(dir == Descending,
		[]interface{}{FamilyEAV},
		[]interface{}{FamilyEAV, loE, loA, loV},
		// The stored key always carries a trailing timestamp component
		// past v; appending Max gives headroom over it even when e/a/v
		// are all bound exactly (otherwise the shorter bound tuple would
		// sort below every real 5-component key sharing its prefix, and
		// the range would match nothing).
		[]interface{}{FamilyEAV, hiE, hiA, hiV, triples.Max},
	)
}

// AVEQuery is the optional (attribute, value, entity) argument to
// FindByAVE.
type AVEQuery struct {
	Attribute triples.Attribute
	Value     *triples.Value
	Entity    *string
}

// AVEBounds implements FindByAVE([a?, v?, e?], dir).
func AVEBounds(q AVEQuery, dir Direction) kv.ScanArgs {
	loA, hiA := attributeBounds(q.Attribute, q.Value != nil)
	loV, hiV := orMinMaxValue(q.Value)
	loE, hiE := orMinMax(q.Entity)

	return rangeOf(dir == Descending,
		[]interface{}{FamilyAVE},
		[]interface{}{FamilyAVE, loA, loV, loE},
		// Same trailing-Max headroom as EAVBounds, for the implicit
		// timestamp component past e.
		[]interface{}{FamilyAVE, hiA, hiV, hiE, triples.Max},
	)
}

// attributeBounds builds the (lo, hi) pair for an attribute-path
// component: unconstrained (nil attribute) opens on Min/Max; a
// constrained attribute with no value constraint opens the lower bound
// exactly on the path and the upper bound on "any deeper path sharing
// this prefix" (the path with Max appended); a constrained attribute
// with an exact value constraint narrows to that one path on both ends.
func attributeBounds(a triples.Attribute, hasValue bool) (lo, hi interface{}) {
	if a == nil {
		return triples.Min, triples.Max
	}
	loPath := []interface{}(a)
	if hasValue {
		return loPath, loPath
	}
	hiPath := append(append([]interface{}{}, loPath...), triples.Max)
	return loPath, hiPath
}

func orMinMax(s *string) (lo, hi interface{}) {
	if s == nil {
		return triples.Min, triples.Max
	}
	return *s, *s
}

func orMinMaxValue(v *triples.Value) (lo, hi interface{}) {
	if v == nil {
		return triples.Min, triples.Max
	}
	return *v, *v
}

// ValueCursor bounds a FindValuesInRange scan: (value, entity-id), with
// entity-id optional (used to resume a scan mid-value).
type ValueCursor struct {
	Value    triples.Value
	EntityID *string
}

func (c ValueCursor) components(pad interface{}) []interface{} {
	out := []interface{}{c.Value}
	if c.EntityID != nil {
		out = append(out, *c.EntityID)
	}
	for len(out) < 2 {
		out = append(out, pad)
	}
	return out
}

// FindValuesInRangeBounds implements FindValuesInRange(a, {gt?, lt?,
// dir?}): prefix [AVE, a], cursor lengths padded out to the full AVE
// tuple (family, a, value, entity, timestamp — 2 fixed + 3 variable)
// with Max for a gt/gte-style lower-open cursor and Min for an
// lt/lte-style upper-open cursor.
func FindValuesInRangeBounds(a triples.Attribute, gt, lt *ValueCursor, dir Direction) kv.ScanArgs {
	prefix := []interface{}{FamilyAVE, []interface{}(a)}

	lo := []interface{}{FamilyAVE, []interface{}(a)}
	if gt != nil {
		lo = append(lo, padTo(gt.components(triples.Max), 3, triples.Max)...)
	} else {
		lo = append(lo, triples.Min)
	}

	hi := []interface{}{FamilyAVE, []interface{}(a)}
	if lt != nil {
		hi = append(hi, padTo(lt.components(triples.Min), 3, triples.Min)...)
	} else {
		hi = append(hi, triples.Max)
	}

	return rangeOf(dir == Descending, prefix, lo, hi)
}

func padTo(components []interface{}, n int, pad interface{}) []interface{} {
	out := append([]interface{}{}, components...)
	for len(out) < n {
		out = append(out, pad)
	}
	return out
}

// TimestampOp selects a FindByClientTimestamp comparison.
type TimestampOp int

const (
	OpLT TimestampOp = iota
	OpLTE
	OpGT
	OpGTE
	OpEQ
)

// ClientTimestampBounds implements FindByClientTimestamp(client, op, t).
// A zero Timestamp (t.Zero()) means "no timestamp bound given" for LT/
// GTE, matching the spec's `t` vs `t ?? []` distinction.
func ClientTimestampBounds(client string, op TimestampOp, t triples.Timestamp) (kv.ScanArgs, error) {
	prefix := []interface{}{FamilyClientTimestamp, client}

	switch op {
	case OpLT:
		if t.Zero() {
			// No timestamp given: "less than nothing" matches nothing.
			p := EncodeTuple(prefix)
			return kv.ScanArgs{Prefix: p, LT: p}, nil
		}
		hi := append(append([]interface{}{}, prefix...), t.AsComponents()...)
		return kv.ScanArgs{Prefix: EncodeTuple(prefix), LT: EncodeTuple(hi)}, nil
	case OpLTE:
		hi := append(append([]interface{}{}, prefix...), t.AsComponents()...)
		hi = append(hi, triples.Max)
		return kv.ScanArgs{Prefix: EncodeTuple(prefix), LTE: EncodeTuple(hi)}, nil
	case OpGT:
		lo := append(append([]interface{}{}, prefix...), t.AsComponents()...)
		lo = append(lo, triples.Max)
		return kv.ScanArgs{Prefix: EncodeTuple(prefix), GT: EncodeTuple(lo)}, nil
	case OpGTE:
		lo := append(append([]interface{}{}, prefix...), t.AsComponents()...)
		return kv.ScanArgs{Prefix: EncodeTuple(prefix), GTE: EncodeTuple(lo)}, nil
	case OpEQ:
		lo := append(append([]interface{}{}, prefix...), t.AsComponents()...)
		hi := append(append([]interface{}{}, lo...), triples.Max)
		return kv.ScanArgs{Prefix: EncodeTuple(prefix), GTE: EncodeTuple(lo), LT: EncodeTuple(hi)}, nil
	default:
		return kv.ScanArgs{}, &triples.InvalidTimestampIndexScanError{Op: opName(op)}
	}
}

func opName(op TimestampOp) string {
	switch op {
	case OpLT:
		return "lt"
	case OpLTE:
		return "lte"
	case OpGT:
		return "gt"
	case OpGTE:
		return "gte"
	case OpEQ:
		return "eq"
	default:
		return "unknown"
	}
}

// MaxTimestampBounds implements FindMaxTimestamp(client): a reverse scan
// of the client's whole clientTimestamp range; the caller takes the
// first result.
func MaxTimestampBounds(client string) kv.ScanArgs {
	prefix := []interface{}{FamilyClientTimestamp, client}
	return kv.ScanArgs{Prefix: EncodeTuple(prefix), Reverse: true}
}

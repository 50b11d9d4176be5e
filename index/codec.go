package index

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/wbrown/tripledb/triples"
)

// Index family tags. These are the leading tuple component of every key
// this package encodes, so that the four families can safely coexist
// in the same backend keyspace (SPEC_FULL.md §3, §4.B).
const (
	FamilyEAV             = "EAV"
	FamilyAVE             = "AVE"
	FamilyClientTimestamp = "CTS"
	FamilyMetadata        = "META"
)

// rowPayload is the tiny value payload stored alongside each EAV, AVE
// and clientTimestamp key-encoded row: every component that
// matters (entity, attribute, value, timestamp) is already part of the
// key, so the payload only needs to carry the one bit the key can't —
// whether the fact is a tombstone.
type rowPayload struct {
	Expired bool `msgpack:"expired"`
}

func encodeRowPayload(expired bool) []byte {
	b, err := msgpack.Marshal(rowPayload{Expired: expired})
	if err != nil {
		// rowPayload has no type msgpack can fail to encode.
		panic(fmt.Sprintf("index: encoding row payload: %v", err))
	}
	return b
}

func decodeRowPayload(b []byte) (bool, error) {
	var p rowPayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return false, fmt.Errorf("index: decoding row payload: %w", err)
	}
	return p.Expired, nil
}

// EAVKey encodes the EAV-family key for row.
func EAVKey(row triples.TripleRow) []byte {
	return EncodeTuple(eavComponents(row.Entity, row.Attribute, row.Value, row.Timestamp))
}

func eavComponents(entity string, attribute triples.Attribute, value triples.Value, ts triples.Timestamp) []interface{} {
	c := []interface{}{FamilyEAV, entity, []interface{}(attribute), value}
	return append(c, ts.AsComponents()...)
}

// AVEKey encodes the AVE-family key for row.
func AVEKey(row triples.TripleRow) []byte {
	c := []interface{}{FamilyAVE, []interface{}(row.Attribute), row.Value, row.Entity}
	c = append(c, row.Timestamp.AsComponents()...)
	return EncodeTuple(c)
}

// ClientTimestampKey encodes the clientTimestamp-family key for row. The
// client id leads (FindByClientTimestamp always scopes to one client),
// then the timestamp as one [counter, client-id] component, so that within one client's
// range the natural scan order is counter order.
func ClientTimestampKey(row triples.TripleRow) []byte {
	c := []interface{}{FamilyClientTimestamp, row.Timestamp.ClientID}
	c = append(c, row.Timestamp.AsComponents()...)
	c = append(c, row.Entity, []interface{}(row.Attribute), row.Value)
	return EncodeTuple(c)
}

// EncodeRowValue is the value payload written alongside EAV/AVE/
// clientTimestamp keys.
func EncodeRowValue(expired bool) []byte { return encodeRowPayload(expired) }

// DecodeRowValue recovers the expired flag from an EAV/AVE/
// clientTimestamp value payload.
func DecodeRowValue(b []byte) (bool, error) { return decodeRowPayload(b) }

// RowFromEAVKey reconstructs a TripleRow from an EAV-family key plus its
// value payload.
func RowFromEAVKey(key, value []byte) (triples.TripleRow, error) {
	comps, err := DecodeTuple(key)
	if err != nil {
		return triples.TripleRow{}, err
	}
	if len(comps) != 5 || comps[0] != FamilyEAV {
		return triples.TripleRow{}, &triples.IndexNotFoundError{Tag: FamilyEAV}
	}
	return rowFromComponents(comps[1], comps[2], comps[3], comps[4], value)
}

// RowFromEAVKeyOnly reconstructs a TripleRow from an EAV-family key
// alone, with Expired forced to false. Used to decode delete
// notifications, where the erased value payload is no longer available
// (SPEC_FULL.md §4.F "OnWrite").
func RowFromEAVKeyOnly(key []byte) (triples.TripleRow, error) {
	comps, err := DecodeTuple(key)
	if err != nil {
		return triples.TripleRow{}, err
	}
	if len(comps) != 5 || comps[0] != FamilyEAV {
		return triples.TripleRow{}, &triples.IndexNotFoundError{Tag: FamilyEAV}
	}
	return rowFromComponents(comps[1], comps[2], comps[3], comps[4], encodeRowPayload(false))
}

// RowFromAVEKey reconstructs a TripleRow from an AVE-family key plus its
// value payload.
func RowFromAVEKey(key, value []byte) (triples.TripleRow, error) {
	comps, err := DecodeTuple(key)
	if err != nil {
		return triples.TripleRow{}, err
	}
	if len(comps) != 5 || comps[0] != FamilyAVE {
		return triples.TripleRow{}, &triples.IndexNotFoundError{Tag: FamilyAVE}
	}
	// AVE order is (a, v, e, t).
	return rowFromComponents(comps[3], comps[1], comps[2], comps[4], value)
}

// RowFromClientTimestampKey reconstructs a TripleRow from a
// clientTimestamp-family key plus its value payload.
func RowFromClientTimestampKey(key, value []byte) (triples.TripleRow, error) {
	comps, err := DecodeTuple(key)
	if err != nil {
		return triples.TripleRow{}, err
	}
	if len(comps) != 6 || comps[0] != FamilyClientTimestamp {
		return triples.TripleRow{}, &triples.IndexNotFoundError{Tag: FamilyClientTimestamp}
	}
	// CTS order is (client, t, e, a, v).
	return rowFromComponents(comps[3], comps[4], comps[5], comps[2], value)
}

func rowFromComponents(entityC, attrC, valueC, tsC interface{}, payload []byte) (triples.TripleRow, error) {
	entity, _ := entityC.(string)
	attrSlice, _ := attrC.([]interface{})
	ts, ok := triples.TimestampFromComponent(tsC)
	if !ok {
		return triples.TripleRow{}, fmt.Errorf("index: malformed timestamp component %v", tsC)
	}

	expired, err := decodeRowPayload(payload)
	if err != nil {
		return triples.TripleRow{}, err
	}

	return triples.TripleRow{
		Entity:    entity,
		Attribute: triples.Attribute(attrSlice),
		Value:     valueC,
		Timestamp: ts,
		Expired:   expired,
	}, nil
}

// MetadataKey encodes the metadata-family key for (entity, attribute).
func MetadataKey(entity string, attribute triples.Attribute) []byte {
	return EncodeTuple([]interface{}{FamilyMetadata, entity, []interface{}(attribute)})
}

// EncodeMetadataValue msgpack-encodes an opaque metadata value.
func EncodeMetadataValue(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// DecodeMetadataValue decodes an opaque metadata value previously
// written by EncodeMetadataValue.
func DecodeMetadataValue(b []byte) (interface{}, error) {
	var v interface{}
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("index: decoding metadata value: %w", err)
	}
	return v, nil
}

// MetadataTupleFromKey reconstructs the (entity, attribute) half of a
// MetadataTuple from a metadata-family key; the caller decodes Value
// separately with DecodeMetadataValue.
func MetadataTupleFromKey(key []byte) (entity string, attribute triples.Attribute, err error) {
	comps, err := DecodeTuple(key)
	if err != nil {
		return "", nil, err
	}
	if len(comps) != 3 || comps[0] != FamilyMetadata {
		return "", nil, &triples.IndexNotFoundError{Tag: FamilyMetadata}
	}
	entity, _ = comps[1].(string)
	attrSlice, _ := comps[2].([]interface{})
	return entity, triples.Attribute(attrSlice), nil
}

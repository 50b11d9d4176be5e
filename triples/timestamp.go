package triples

import "fmt"

// Timestamp is a hybrid logical clock value: a per-client monotone
// counter paired with the producing client's identifier. Two
// timestamps are totally ordered first by Counter, then by ClientID.
type Timestamp struct {
	Counter  uint64
	ClientID string
}

// Compare returns -1, 0, or 1 as t sorts before, at, or after other.
func (t Timestamp) Compare(other Timestamp) int {
	if t.Counter != other.Counter {
		if t.Counter < other.Counter {
			return -1
		}
		return 1
	}
	if t.ClientID != other.ClientID {
		if t.ClientID < other.ClientID {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether t strictly precedes other.
func (t Timestamp) Before(other Timestamp) bool { return t.Compare(other) < 0 }

// After reports whether t strictly follows other.
func (t Timestamp) After(other Timestamp) bool { return t.Compare(other) > 0 }

// Zero reports whether t is the zero value (never issued by a clock).
func (t Timestamp) Zero() bool { return t.Counter == 0 && t.ClientID == "" }

func (t Timestamp) String() string {
	return fmt.Sprintf("%d@%s", t.Counter, t.ClientID)
}

// Component renders the timestamp as the single nested-array tuple
// component ("t" in the index layout of SPEC_FULL.md §4.D): counter
// first, then client id, so array comparison orders it exactly like
// Compare.
func (t Timestamp) Component() interface{} {
	return []interface{}{t.Counter, t.ClientID}
}

// AsComponents wraps Component in a one-element slice, for call sites
// that splice a variable number of trailing tuple components together
// (codec.go, scans.go).
func (t Timestamp) AsComponents() []interface{} {
	return []interface{}{t.Component()}
}

// TimestampFromComponent is the inverse of Component.
func TimestampFromComponent(c interface{}) (Timestamp, bool) {
	arr, ok := c.([]interface{})
	if !ok || len(arr) != 2 {
		return Timestamp{}, false
	}
	counter, ok := asUint64(arr[0])
	if !ok {
		return Timestamp{}, false
	}
	clientID, ok := arr[1].(string)
	if !ok {
		return Timestamp{}, false
	}
	return Timestamp{Counter: counter, ClientID: clientID}, true
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	case int:
		return uint64(n), true
	case float64:
		return uint64(n), true
	default:
		return 0, false
	}
}

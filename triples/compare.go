package triples

import "strings"

// CompareValues orders any two key components under the total order
// required by SPEC_FULL.md §4.B: null < boolean < number < string <
// array, arrays compared component-wise recursively, with Min/Max
// bracketing everything. It is the single comparison primitive every
// index family and every scan bound is built from.
//
// Grounded on the teacher's datalog.CompareValues, generalized from a
// fixed set of Go-native types to the null/bool/number/string/array
// domain this spec actually needs, plus the two sentinel values.
func CompareValues(a, b Value) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankMin, rankMax, rankNull:
		return 0
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		}
		if !ba && bb {
			return -1
		}
		return 1
	case rankNumber:
		fa, fb := asFloat64(a), asFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankArray:
		return compareArrays(toSlice(a), toSlice(b))
	default:
		return 0
	}
}

func toSlice(v Value) []interface{} {
	switch vv := v.(type) {
	case Attribute:
		return []interface{}(vv)
	case []interface{}:
		return vv
	default:
		return nil
	}
}

// compareArrays compares two arrays component-wise; a strict prefix of
// the other sorts first (this is exactly the "prefix-of-attribute-path"
// semantics the index codec relies on for collection/attribute scans).
func compareArrays(a, b []interface{}) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ValuesEqual is a convenience wrapper over CompareValues for callers
// that only care about equality.
func ValuesEqual(a, b Value) bool {
	return CompareValues(a, b) == 0
}

// CompareTuples compares two composite-key tuples (slices of
// components, possibly of different lengths — a shorter tuple is a
// prefix match if every shared component is equal).
func CompareTuples(a, b []interface{}) int {
	return compareArrays(a, b)
}

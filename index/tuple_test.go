package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wbrown/tripledb/triples"
)

func TestEncodeTupleRoundTrip(t *testing.T) {
	cases := [][]interface{}{
		{"EAV", "users/1", []interface{}{"users", "name"}, "alice"},
		{"EAV", "users/1", []interface{}{"users", "age"}, int64(30)},
		{nil, false, true, 3.5},
		{triples.Min, triples.Max},
	}
	for _, c := range cases {
		encoded := EncodeTuple(c)
		decoded, err := DecodeTuple(encoded)
		require.NoError(t, err)
		require.Equal(t, 0, triples.CompareTuples(c, decoded), "round trip for %v, got %v", c, decoded)
	}
}

func TestEncodeTuplePrefixOrdering(t *testing.T) {
	short := EncodeTuple([]interface{}{"EAV", "users"})
	long := EncodeTuple([]interface{}{"EAV", "users", "name"})
	require.True(t, bytes.HasPrefix(long, short))
	require.Negative(t, bytes.Compare(short, long), "a strict prefix tuple must sort before any extension")
}

func TestEncodeTupleMatchesCompareValues(t *testing.T) {
	values := []triples.Value{
		triples.Min,
		nil,
		false,
		true,
		int64(1),
		float64(2),
		int64(-5),
		"a",
		"ab",
		"b",
		[]interface{}{"a"},
		[]interface{}{"a", "b"},
		[]interface{}{"b"},
		triples.Max,
	}

	for i := range values {
		for j := range values {
			wantSign := sign(triples.CompareValues(values[i], values[j]))
			gotSign := sign(bytes.Compare(EncodeTuple([]interface{}{values[i]}), EncodeTuple([]interface{}{values[j]})))
			require.Equalf(t, wantSign, gotSign, "encoding order mismatch for %v vs %v", values[i], values[j])
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestEncodeStringWithEmbeddedNUL(t *testing.T) {
	s := "a\x00b"
	encoded := EncodeTuple([]interface{}{s})
	decoded, err := DecodeTuple(encoded)
	require.NoError(t, err)
	require.Equal(t, s, decoded[0])
}

package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/tripledb/triples"
)

func sampleRow() triples.TripleRow {
	row := triples.NewTripleRow("users/1", triples.Attr("users", "name"), "alice")
	row.Timestamp = triples.Timestamp{Counter: 7, ClientID: "client-a"}
	return row
}

func TestEAVKeyRoundTrip(t *testing.T) {
	row := sampleRow()
	key := EAVKey(row)
	val := EncodeRowValue(row.Expired)

	got, err := RowFromEAVKey(key, val)
	require.NoError(t, err)
	require.True(t, row.Equal(got), "want %v, got %v", row, got)
}

func TestAVEKeyRoundTrip(t *testing.T) {
	row := sampleRow()
	key := AVEKey(row)
	val := EncodeRowValue(row.Expired)

	got, err := RowFromAVEKey(key, val)
	require.NoError(t, err)
	require.True(t, row.Equal(got))
}

func TestClientTimestampKeyRoundTrip(t *testing.T) {
	row := sampleRow()
	key := ClientTimestampKey(row)
	val := EncodeRowValue(row.Expired)

	got, err := RowFromClientTimestampKey(key, val)
	require.NoError(t, err)
	require.True(t, row.Equal(got))
}

func TestEAVKeyWrongFamilyRejected(t *testing.T) {
	row := sampleRow()
	_, err := RowFromAVEKey(EAVKey(row), EncodeRowValue(false))
	require.Error(t, err)
	var notFound *triples.IndexNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestEAVKeyRoundTripAcrossValueTypes(t *testing.T) {
	cases := []struct {
		name  string
		value triples.Value
	}{
		{"string", "alice"},
		{"number", 42.0},
		{"bool", true},
		{"null", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			row := triples.NewTripleRow("users/1", triples.Attr("users", "field"), c.value)
			row.Timestamp = triples.Timestamp{Counter: 3, ClientID: "client-a"}

			got, err := RowFromEAVKey(EAVKey(row), EncodeRowValue(row.Expired))
			require.NoError(t, err)
			if diff := cmp.Diff(row, got); diff != "" {
				t.Fatalf("round-tripped row differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMetadataKeyRoundTrip(t *testing.T) {
	entity := "users/1"
	attr := triples.Attr("schema", "version")

	key := MetadataKey(entity, attr)
	gotEntity, gotAttr, err := MetadataTupleFromKey(key)
	require.NoError(t, err)
	require.Equal(t, entity, gotEntity)
	require.True(t, attr.Equal(gotAttr))

	value, err := EncodeMetadataValue("schema-v3")
	require.NoError(t, err)
	decoded, err := DecodeMetadataValue(value)
	require.NoError(t, err)
	require.Equal(t, "schema-v3", decoded)
}

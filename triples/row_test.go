package triples

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTripleRowEqual(t *testing.T) {
	a := NewTripleRow("e1", Attr("users", "name"), "alice")
	a.Timestamp = Timestamp{Counter: 1, ClientID: "c1"}

	b := a
	b.Attribute = Attr("users", "name") // distinct backing array, same contents
	require.True(t, a.Equal(b))

	b.Value = "bob"
	require.False(t, a.Equal(b))
}

func TestMetadataTupleString(t *testing.T) {
	m := MetadataTuple{Entity: "e1", Attribute: Attr("schema"), Value: 3}
	require.Contains(t, m.String(), "e1")
}

func TestWriteRuleErrorUnwrap(t *testing.T) {
	cause := errors.New("duplicate email")
	err := NewWriteRuleError("unique email constraint", cause)

	var wre *WriteRuleError
	require.True(t, errors.As(err, &wre))
	require.Equal(t, cause, errors.Unwrap(err))
	require.Contains(t, err.Error(), "unique email constraint")
}

func TestIndexNotFoundErrorMessage(t *testing.T) {
	err := &IndexNotFoundError{Tag: "VAE"}
	require.Contains(t, err.Error(), "VAE")
}

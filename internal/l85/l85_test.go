package l85

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0},
		{1, 2, 3},
		{0xff, 0xff, 0xff, 0xff},
		[]byte("the quick brown fox jumps over the lazy dog"),
	}
	for _, src := range cases {
		enc := EncodeL85(src)
		dec, err := DecodeL85(enc)
		require.NoError(t, err)
		require.Equal(t, src, dec)
	}
}

func TestEncodeIsLexicographicallyOrderPreserving(t *testing.T) {
	a := []byte{0x00, 0x01}
	b := []byte{0x00, 0x02}
	c := []byte{0x01, 0x00}
	require.True(t, EncodeL85(a) < EncodeL85(b))
	require.True(t, EncodeL85(b) < EncodeL85(c))
}

func TestDecodeRejectsInvalidCharacter(t *testing.T) {
	_, err := DecodeL85("\x01\x02")
	require.ErrorIs(t, err, ErrInvalidCharacter)
}

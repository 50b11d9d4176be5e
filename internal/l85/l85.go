// Package l85 implements a lexicographically-sortable base85 encoding.
//
// It is used by the store package to print a human-readable, still
// order-preserving form of raw composite keys in debug-level trace
// logs, without having to carry a second binary-to-text codec just for
// tracing.
package l85

import (
	"errors"
	"fmt"
)

// L85Alphabet is ordered so that byte-wise string comparison of encoded
// output agrees with the numeric order of the bytes it was encoded
// from — the one property this package exists for.
const L85Alphabet = "!$%&()+,-./" +
	"0123456789:;<=>@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ[]_`" +
	"abcdefghijklmnopqrstuvwxyz{}"

var (
	// l85Decode maps an alphabet byte to its digit value, offset by one
	// so the zero value can still mean "not in the alphabet".
	l85Decode [256]byte

	// ErrInvalidCharacter indicates an invalid character in input
	ErrInvalidCharacter = errors.New("invalid L85 character")
)

func init() {
	for i := range l85Decode {
		l85Decode[i] = 0 // zero value doubles as "not a valid L85 byte"
	}
	for i, c := range L85Alphabet {
		l85Decode[byte(c)] = byte(i + 1)
	}
}

// EncodeL85 encodes bytes to L85 format
func EncodeL85(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	result := make([]byte, 0, len(src)*5/4+5)

	// Process full 4-byte groups
	for i := 0; i+4 <= len(src); i += 4 {
		// Get 4 bytes as uint32 (big endian)
		v := uint32(src[i])<<24 | uint32(src[i+1])<<16 |
			uint32(src[i+2])<<8 | uint32(src[i+3])

		// Convert to 5 base85 digits
		chars := [5]byte{}
		for j := 4; j >= 0; j-- {
			chars[j] = L85Alphabet[v%85]
			v /= 85
		}
		result = append(result, chars[:]...)
	}

	// Handle remainder bytes
	remainder := len(src) % 4
	if remainder > 0 {
		// Pad with zeros
		padded := [4]byte{}
		copy(padded[:], src[len(src)-remainder:])

		v := uint32(padded[0])<<24 | uint32(padded[1])<<16 |
			uint32(padded[2])<<8 | uint32(padded[3])

		// Convert to base85
		chars := [5]byte{}
		for j := 4; j >= 0; j-- {
			chars[j] = L85Alphabet[v%85]
			v /= 85
		}

		// A full group always encodes to 5 chars; a partial trailing
		// group only needs remainder+1 to be unambiguous on decode.
		result = append(result, chars[:remainder+1]...)
	}

	return string(result)
}

// DecodeL85 decodes L85 format back to bytes
func DecodeL85(src string) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}

	// Validate all characters
	for i, c := range src {
		if c >= 256 || l85Decode[byte(c)] == 0 {
			return nil, fmt.Errorf("%w at position %d: %c", ErrInvalidCharacter, i, c)
		}
	}

	result := make([]byte, 0, len(src)*4/5+4)

	// Process full 5-char groups
	for i := 0; i+5 <= len(src); i += 5 {
		// l85Decode is offset by one (see init), so subtract it back out.
		v := uint32(0)
		for j := 0; j < 5; j++ {
			v = v*85 + uint32(l85Decode[src[i+j]]-1)
		}

		// Convert to 4 bytes (big endian)
		bytes := [4]byte{
			byte(v >> 24),
			byte(v >> 16),
			byte(v >> 8),
			byte(v),
		}
		result = append(result, bytes[:]...)
	}

	// Handle remainder
	remainder := len(src) % 5
	if remainder > 0 {
		// A trailing group of n chars (n >= 2) encodes n-1 bytes,
		// mirroring EncodeL85's remainder+1 on the way in.
		numBytes := remainder - 1
		if numBytes <= 0 {
			return nil, errors.New("invalid L85 encoding: incomplete group")
		}

		// Pad to 5 chars with the last (highest) alphabet char, so the
		// dropped low digits cannot borrow from the bytes we keep
		padded := src[len(src)-remainder:]
		for len(padded) < 5 {
			padded += string(L85Alphabet[len(L85Alphabet)-1])
		}

		// Convert to uint32
		v := uint32(0)
		for j := 0; j < 5; j++ {
			v = v*85 + uint32(l85Decode[padded[j]]-1)
		}

		// Extract only the needed bytes
		bytes := [4]byte{
			byte(v >> 24),
			byte(v >> 16),
			byte(v >> 8),
			byte(v),
		}
		result = append(result, bytes[:numBytes]...)
	}

	return result, nil
}

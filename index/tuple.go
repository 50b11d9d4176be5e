// Package index implements the composite-key codec and scan-bound
// algebra (SPEC_FULL.md §4.B, §4.D, §4.E): encoding triple-store tuples
// into order-preserving byte keys, and building the gte/lt byte ranges
// each FindBy* operation needs from its logical arguments.
//
// The teacher encodes Entity/Attribute as fixed-size content hashes,
// which is fast but throws away exactly the structure this design
// needs: a shorter attribute path must be a byte-lexicographic prefix
// of every longer path that starts with it, so collection- and
// attribute-prefix scans stay cheap. This package instead uses a
// type-tagged, length-delimited variable-width encoding — the scheme
// the spec's own design notes suggest (§9) — so tuple order always
// matches triples.CompareValues.
package index

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wbrown/tripledb/triples"
)

// Tags order exactly like triples.typeRank: min < null < bool(false <
// true) < number < string < array < max. 0x00 is reserved as a pure
// terminator/separator byte and is never used as a leading tag, which
// is what lets a shorter tuple sort strictly before any of its proper
// extensions.
const (
	tagMin    byte = 0x01
	tagNull   byte = 0x02
	tagFalse  byte = 0x03
	tagTrue   byte = 0x04
	tagNumber byte = 0x05
	tagString byte = 0x06
	tagArray  byte = 0x07
	tagMax    byte = 0xFF
)

const (
	stringTerminator byte = 0x00 // followed by 0x00: end-of-string; by 0x01: literal NUL
	stringEscapeNUL  byte = 0x01
	arrayTerminator  byte = 0x00
)

// EncodeTuple renders components as a single order-preserving byte
// string: concatenating each component's self-delimiting encoding.
// Because every component encoding is self-delimiting, EncodeTuple(a)
// is a true byte-prefix of EncodeTuple(append(a, x...)) for any
// component x — which is exactly what makes prefix/half-open range
// scans correct (see rangeOf in scans.go).
func EncodeTuple(components []interface{}) []byte {
	var buf bytes.Buffer
	for _, c := range components {
		encodeComponent(&buf, c)
	}
	return buf.Bytes()
}

func encodeComponent(buf *bytes.Buffer, v interface{}) {
	switch {
	case triples.IsMin(v):
		buf.WriteByte(tagMin)
	case triples.IsMax(v):
		buf.WriteByte(tagMax)
	case v == nil:
		buf.WriteByte(tagNull)
	default:
		switch vv := v.(type) {
		case bool:
			if vv {
				buf.WriteByte(tagTrue)
			} else {
				buf.WriteByte(tagFalse)
			}
		case string:
			encodeString(buf, vv)
		case triples.Attribute:
			encodeArray(buf, []interface{}(vv))
		case []interface{}:
			encodeArray(buf, vv)
		default:
			encodeNumber(buf, v)
		}
	}
}

func encodeNumber(buf *bytes.Buffer, v interface{}) {
	f := toFloat64(v)
	buf.WriteByte(tagNumber)
	var b [8]byte
	putSortableFloat64(b[:], f)
	buf.Write(b[:])
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("index: not a number: %T", v))
	}
}

// putSortableFloat64 writes f as 8 big-endian bytes whose unsigned
// byte-order comparison matches float64 numeric order: flip the sign
// bit for non-negative numbers, and flip every bit for negative ones.
func putSortableFloat64(b []byte, f float64) {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	for i := 7; i >= 0; i-- {
		b[i] = byte(bits)
		bits >>= 8
	}
}

func sortableFloat64(b []byte) float64 {
	var bits uint64
	for i := 0; i < 8; i++ {
		bits = bits<<8 | uint64(b[i])
	}
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte(tagString)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x00 {
			buf.WriteByte(stringTerminator)
			buf.WriteByte(stringEscapeNUL)
		} else {
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(stringTerminator)
	buf.WriteByte(stringTerminator)
}

func encodeArray(buf *bytes.Buffer, items []interface{}) {
	buf.WriteByte(tagArray)
	for _, it := range items {
		encodeComponent(buf, it)
	}
	buf.WriteByte(arrayTerminator)
}

// DecodeTuple parses key back into its component values, the inverse of
// EncodeTuple. The RowFrom* functions in codec.go call it for every
// row a scan returns.
func DecodeTuple(key []byte) ([]interface{}, error) {
	var out []interface{}
	rest := key
	for len(rest) > 0 {
		v, next, err := decodeComponent(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		rest = next
	}
	return out, nil
}

func decodeComponent(b []byte) (interface{}, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("index: truncated tuple")
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagMin:
		return triples.Min, rest, nil
	case tagMax:
		return triples.Max, rest, nil
	case tagNull:
		return nil, rest, nil
	case tagFalse:
		return false, rest, nil
	case tagTrue:
		return true, rest, nil
	case tagNumber:
		if len(rest) < 8 {
			return nil, nil, fmt.Errorf("index: truncated number component")
		}
		return sortableFloat64(rest[:8]), rest[8:], nil
	case tagString:
		return decodeString(rest)
	case tagArray:
		return decodeArray(rest)
	default:
		return nil, nil, fmt.Errorf("index: unknown tuple tag 0x%02x", tag)
	}
}

func decodeString(b []byte) (string, []byte, error) {
	var out []byte
	i := 0
	for {
		if i >= len(b) {
			return "", nil, fmt.Errorf("index: unterminated string component")
		}
		if b[i] == stringTerminator {
			if i+1 >= len(b) {
				return "", nil, fmt.Errorf("index: truncated string terminator")
			}
			switch b[i+1] {
			case stringTerminator:
				return string(out), b[i+2:], nil
			case stringEscapeNUL:
				out = append(out, 0x00)
				i += 2
				continue
			default:
				return "", nil, fmt.Errorf("index: malformed string escape")
			}
		}
		out = append(out, b[i])
		i++
	}
}

func decodeArray(b []byte) ([]interface{}, []byte, error) {
	var out []interface{}
	rest := b
	for {
		if len(rest) == 0 {
			return nil, nil, fmt.Errorf("index: unterminated array component")
		}
		if rest[0] == arrayTerminator {
			return out, rest[1:], nil
		}
		v, next, err := decodeComponent(rest)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, v)
		rest = next
	}
}

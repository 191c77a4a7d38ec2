// Package value implements the tagged-variant row value and the pure,
// stateless per-type codec functions that encode/decode it to/from bytes
// (spec.md §4.1, §9 Design Note on dynamic value typing).
package value

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kokes/colf/colftype"
)

// Value is a present-or-absent instance of a column's type. The zero Value
// is the absent value of an unspecified type, which is exactly what a
// missing map key decodes to when reading a Row (spec.md §3: "absence of a
// key and an explicitly-absent value are equivalent").
type Value struct {
	Type    colftype.Type
	Present bool
	Int32   int32
	Str     string
	Bool    bool
}

// Row is a mapping from column name to value, conforming to a Schema: every
// column name the schema lists is a meaningful key, whether or not it is
// actually present in a given row's map.
type Row map[string]Value

// Int returns a present Integer value.
func Int(v int32) Value { return Value{Type: colftype.Integer, Present: true, Int32: v} }

// String returns a present String value.
func String(v string) Value { return Value{Type: colftype.String, Present: true, Str: v} }

// Bool returns a present Boolean value.
func Bool(v bool) Value { return Value{Type: colftype.Boolean, Present: true, Bool: v} }

// Null returns the absent value for the given type.
func Null(t colftype.Type) Value { return Value{Type: t} }

// Get looks a column up in a row, returning the zero Value (absent, with no
// type set) when the key is missing — the map-lookup zero value already
// encodes absence; this makes the "missing key == null" equivalence
// explicit at call sites.
func (r Row) Get(name string) Value {
	return r[name]
}

// Decode error kinds (spec.md §7).
var (
	ErrDecodeTruncated      = errors.New("value: truncated payload")
	ErrDecodeNegativeLength = errors.New("value: negative string length")
	ErrDecodeInvalidUtf8    = errors.New("value: invalid utf-8 string")
	ErrTypeMismatch         = errors.New("value: type mismatch")
)

// Encode appends v's encoded bytes to buf and returns the grown slice. v
// must be Present; encoding an absent Value is a programmer error (nulls
// are recorded only in the bitmap, never in the data region, per spec.md
// §4.1) and panics.
func Encode(buf []byte, v Value) ([]byte, error) {
	if !v.Present {
		panic("value: cannot encode an absent value")
	}
	switch v.Type {
	case colftype.Integer:
		return encodeInt(buf, v.Int32), nil
	case colftype.Boolean:
		return encodeBool(buf, v.Bool), nil
	case colftype.String:
		return encodeString(buf, v.Str), nil
	default:
		return nil, fmt.Errorf("%w: cannot encode type %v", ErrTypeMismatch, v.Type)
	}
}

func encodeInt(buf []byte, v int32) []byte {
	return append(buf, byte(uint32(v)>>24), byte(uint32(v)>>16), byte(uint32(v)>>8), byte(uint32(v)))
}

func encodeBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 0x01)
	}
	return append(buf, 0x00)
}

func encodeString(buf []byte, s string) []byte {
	n := uint32(len(s))
	buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(buf, s...)
}

// Decode reads one value of type t from the front of b, returning the
// decoded Value and the number of bytes consumed. It bounds-checks every
// consumption: DecodeTruncated when b is shorter than required,
// DecodeNegativeLength / DecodeInvalidUtf8 for malformed strings (spec.md
// §9 Open Question 2 — checked before any allocation, never after).
func Decode(t colftype.Type, b []byte) (Value, int, error) {
	switch t {
	case colftype.Integer:
		return decodeInt(b)
	case colftype.Boolean:
		return decodeBool(b)
	case colftype.String:
		return decodeString(b)
	default:
		return Value{}, 0, fmt.Errorf("%w: cannot decode type %v", ErrTypeMismatch, t)
	}
}

func decodeInt(b []byte) (Value, int, error) {
	if len(b) < 4 {
		return Value{}, 0, fmt.Errorf("%w: need 4 bytes for an integer, got %d", ErrDecodeTruncated, len(b))
	}
	v := int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	return Int(v), 4, nil
}

func decodeBool(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, fmt.Errorf("%w: need 1 byte for a boolean, got 0", ErrDecodeTruncated)
	}
	return Bool(b[0] != 0x00), 1, nil
}

func decodeString(b []byte) (Value, int, error) {
	if len(b) < 4 {
		return Value{}, 0, fmt.Errorf("%w: need 4 bytes for a string length prefix, got %d", ErrDecodeTruncated, len(b))
	}
	rawLen := int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	if rawLen < 0 {
		return Value{}, 0, fmt.Errorf("%w: %d", ErrDecodeNegativeLength, rawLen)
	}
	n := int(rawLen)
	if len(b)-4 < n {
		return Value{}, 0, fmt.Errorf("%w: need %d string bytes, got %d", ErrDecodeTruncated, n, len(b)-4)
	}
	sb := b[4 : 4+n]
	if !utf8.Valid(sb) {
		return Value{}, 0, ErrDecodeInvalidUtf8
	}
	return String(string(sb)), 4 + n, nil
}

// Package schema describes the fixed-shape records that travel through
// channels.
//
// A schema is an ordered list of fields, each a primitive scalar or a
// fixed-shape array of primitives. The framework appends a trailing
// nanosecond timestamp to every schema. Schemas are exchanged between
// processes as a wire descriptor, a list of (name, type code, shape) triples
// that uses numpy-compatible type codes, and are compiled at resolution time
// into a Layout that maps each field name to its byte offset.
//
// The package also hosts the process catalog of named types and named
// configs. Configs may derive fields from earlier fields and from other
// configs; the dependency graph is resolved once, in topological order.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the primitive type of a field element.
type Kind uint8

// The supported primitive kinds.
const (
	Invalid Kind = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Text
	Time
)

var kindNames = map[Kind]string{
	Bool:    "bool",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Text:    "text",
	Time:    "time",
}

var kindCodes = map[Kind]string{
	Bool:    "|b1",
	Int8:    "|i1",
	Int16:   "<i2",
	Int32:   "<i4",
	Int64:   "<i8",
	Uint8:   "|u1",
	Uint16:  "<u2",
	Uint32:  "<u4",
	Uint64:  "<u8",
	Float32: "<f4",
	Float64: "<f8",
	Time:    "<M8[ns]",
}

var kindSizes = map[Kind]int{
	Bool:    1,
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
	Time:    8,
}

// String returns the readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// typeCode returns the wire code for one element of the kind. Text needs its
// byte length to form a code.
func typeCode(k Kind, textLen int) string {
	if k == Text {
		return "|S" + strconv.Itoa(textLen)
	}

	return kindCodes[k]
}

// parseTypeCode is the inverse of typeCode. Byte-order markers '=' and '|'
// are accepted in place of '<' for single-byte and native codes.
func parseTypeCode(code string) (Kind, int, error) {
	if code == "" {
		return Invalid, 0, fmt.Errorf("%w: empty type code", ErrInvalidSchema)
	}

	if code[0] == '|' && len(code) > 2 && code[1] == 'S' {
		n, err := strconv.Atoi(code[2:])
		if err != nil || n <= 0 {
			return Invalid, 0, fmt.Errorf(
				"%w: bad text code %q", ErrInvalidSchema, code)
		}

		return Text, n, nil
	}

	normalized := code
	if code[0] == '=' || code[0] == '|' {
		normalized = "<" + code[1:]
	}

	for k, c := range kindCodes {
		if c == code || strings.Replace(c, "|", "<", 1) == normalized {
			return k, 0, nil
		}
	}

	return Invalid, 0, fmt.Errorf(
		"%w: unknown type code %q", ErrInvalidSchema, code)
}

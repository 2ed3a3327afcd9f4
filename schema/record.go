package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Scalar lists the Go types that can view record elements.
type Scalar interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// Record is a typed view over the bytes of one record. It does not own the
// buffer; views returned by Slice alias it.
type Record struct {
	layout *Layout
	buf    []byte
}

// Layout returns the layout of the record.
func (r Record) Layout() *Layout {
	return r.layout
}

// Bytes returns the underlying buffer.
func (r Record) Bytes() []byte {
	return r.buf
}

// Valid reports whether the record is bound to a layout.
func (r Record) Valid() bool {
	return r.layout != nil
}

// Timestamp returns the implicit timestamp in nanoseconds.
func (r Record) Timestamp() int64 {
	return int64(binary.LittleEndian.Uint64(r.buf[r.layout.tsOffset:]))
}

// SetTimestamp writes the implicit timestamp.
func (r Record) SetTimestamp(ns int64) {
	binary.LittleEndian.PutUint64(r.buf[r.layout.tsOffset:], uint64(ns))
}

// Clear zeroes the whole record.
func (r Record) Clear() {
	clear(r.buf)
}

// CopyFrom copies the bytes of another record of the same size.
func (r Record) CopyFrom(o Record) {
	copy(r.buf, o.buf)
}

func kindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}

	return Invalid
}

func mustMatch[T Scalar](a Accessor) {
	want := kindOf[T]()
	if a.Kind == want || (a.Kind == Time && want == Int64) {
		return
	}

	panic(fmt.Sprintf("schema: field %q is %s, not %s", a.Name, a.Kind, want))
}

// SliceOf returns the elements of a field as a slice aliasing the record
// buffer. Multi-dimensional arrays are flattened in row-major order.
func SliceOf[T Scalar](r Record, a Accessor) []T {
	mustMatch[T](a)

	p := unsafe.Pointer(&r.buf[a.Offset])

	return unsafe.Slice((*T)(p), a.count)
}

// Slice is SliceOf with the accessor looked up by name.
func Slice[T Scalar](r Record, name string) []T {
	return SliceOf[T](r, r.layout.mustAccessor(name))
}

// Value returns the first element of a field, which is the value of a
// scalar field.
func Value[T Scalar](r Record, name string) T {
	return Slice[T](r, name)[0]
}

// SetValue writes the first element of a field.
func SetValue[T Scalar](r Record, name string, v T) {
	Slice[T](r, name)[0] = v
}

// Text returns the content of a scalar text field up to the first NUL.
func (r Record) Text(name string) string {
	return r.TextAt(name, 0)
}

// TextAt returns element i of a text field.
func (r Record) TextAt(name string, i int) string {
	a := r.mustText(name)
	start := a.Offset + i*a.TextLen
	raw := r.buf[start : start+a.TextLen]

	if n := bytes.IndexByte(raw, 0); n >= 0 {
		raw = raw[:n]
	}

	return string(raw)
}

// SetText writes a scalar text field, truncating to the field length.
func (r Record) SetText(name, s string) {
	r.SetTextAt(name, 0, s)
}

// SetTextAt writes element i of a text field.
func (r Record) SetTextAt(name string, i int, s string) {
	a := r.mustText(name)
	start := a.Offset + i*a.TextLen
	dst := r.buf[start : start+a.TextLen]

	n := copy(dst, s)
	clear(dst[n:])
}

func (r Record) mustText(name string) Accessor {
	a := r.layout.mustAccessor(name)
	if a.Kind != Text {
		panic(fmt.Sprintf("schema: field %q is %s, not text", name, a.Kind))
	}

	return a
}

// Get decodes a field without compile-time knowledge of its type. Scalars
// are returned as values, arrays as flattened copies.
func (r Record) Get(name string) (any, error) {
	a, ok := r.layout.Accessor(name)
	if !ok {
		return nil, fmt.Errorf("%w: field %q", ErrSchemaNotFound, name)
	}

	return r.decode(a), nil
}

// Map decodes every field. It is meant for tools that print or store
// records of schemas they discovered at runtime.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.layout.accessors))
	for _, a := range r.layout.accessors {
		m[a.Name] = r.decode(a)
	}

	return m
}

func (r Record) decode(a Accessor) any {
	if a.Kind == Text {
		if a.IsScalar() {
			return r.TextAt(a.Name, 0)
		}

		out := make([]string, a.count)
		for i := range out {
			out[i] = r.TextAt(a.Name, i)
		}

		return out
	}

	switch a.Kind {
	case Bool:
		return decodeAs[bool](r, a)
	case Int8:
		return decodeAs[int8](r, a)
	case Int16:
		return decodeAs[int16](r, a)
	case Int32:
		return decodeAs[int32](r, a)
	case Int64, Time:
		return decodeAs[int64](r, a)
	case Uint8:
		return decodeAs[uint8](r, a)
	case Uint16:
		return decodeAs[uint16](r, a)
	case Uint32:
		return decodeAs[uint32](r, a)
	case Uint64:
		return decodeAs[uint64](r, a)
	case Float32:
		return sanitize(decodeAs[float32](r, a))
	case Float64:
		return sanitize(decodeAs[float64](r, a))
	}

	return nil
}

func decodeAs[T Scalar](r Record, a Accessor) any {
	view := SliceOf[T](r, a)
	if a.IsScalar() {
		return view[0]
	}

	return append([]T(nil), view...)
}

// sanitize replaces NaN and infinities, which JSON cannot carry, with nil.
// Arrays holding such values become []any.
func sanitize(v any) any {
	switch x := v.(type) {
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case []float32:
		return sanitizeSlice(x)
	case []float64:
		return sanitizeSlice(x)
	}

	return v
}

func sanitizeSlice[T float32 | float64](x []T) any {
	bad := false
	for _, e := range x {
		if math.IsNaN(float64(e)) || math.IsInf(float64(e), 0) {
			bad = true
			break
		}
	}

	if !bad {
		return x
	}

	out := make([]any, len(x))
	for i, e := range x {
		out[i] = sanitize(e)
	}

	return out
}

package schema

import (
	"encoding/json"
	"fmt"
)

// TimestampName is the name of the field the framework appends to every
// schema. It holds nanoseconds since the Unix epoch.
const TimestampName = "timestamp"

// Field is one named entry of a schema.
type Field struct {
	Name string
	Kind Kind

	// Shape holds the array dimensions. An empty shape is a scalar.
	Shape []int

	// TextLen is the byte length of one element of a Text field.
	TextLen int
}

// NewField creates a field of a primitive kind. Without dims the field is a
// scalar.
func NewField(name string, kind Kind, dims ...int) Field {
	return Field{Name: name, Kind: kind, Shape: append([]int(nil), dims...)}
}

// TextField creates a fixed-length text field of n bytes per element.
func TextField(name string, n int, dims ...int) Field {
	return Field{
		Name:    name,
		Kind:    Text,
		Shape:   append([]int(nil), dims...),
		TextLen: n,
	}
}

// TimestampField returns the implicit trailing field.
func TimestampField() Field {
	return Field{Name: TimestampName, Kind: Time}
}

// Code returns the wire type code of one element.
func (f Field) Code() string {
	return typeCode(f.Kind, f.TextLen)
}

// Count returns the number of elements, 1 for a scalar.
func (f Field) Count() int {
	n := 1
	for _, d := range f.Shape {
		n *= d
	}

	return n
}

// ElemSize returns the byte size of one element.
func (f Field) ElemSize() int {
	if f.Kind == Text {
		return f.TextLen
	}

	return kindSizes[f.Kind]
}

// Size returns the total byte size of the field.
func (f Field) Size() int {
	return f.Count() * f.ElemSize()
}

// IsScalar reports whether the field has no dimensions.
func (f Field) IsScalar() bool {
	return len(f.Shape) == 0
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: field without name", ErrInvalidSchema)
	}

	if !f.Kind.Valid() {
		return fmt.Errorf("%w: field %q has kind %s",
			ErrInvalidSchema, f.Name, f.Kind)
	}

	if f.Kind == Text && f.TextLen <= 0 {
		return fmt.Errorf("%w: text field %q needs a positive length",
			ErrInvalidSchema, f.Name)
	}

	for _, d := range f.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: field %q has dimension %d",
				ErrInvalidSchema, f.Name, d)
		}
	}

	return nil
}

func (f Field) equal(o Field) bool {
	if f.Name != o.Name || f.Kind != o.Kind || f.TextLen != o.TextLen {
		return false
	}

	if len(f.Shape) != len(o.Shape) {
		return false
	}

	for i := range f.Shape {
		if f.Shape[i] != o.Shape[i] {
			return false
		}
	}

	return true
}

// WithTimestamp returns a copy of fields with the implicit timestamp field
// appended. Authoring a timestamp field is an error.
func WithTimestamp(fields []Field) ([]Field, error) {
	out := make([]Field, 0, len(fields)+1)

	for _, f := range fields {
		if f.Name == TimestampName {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, TimestampName)
		}

		out = append(out, f)
	}

	return append(out, TimestampField()), nil
}

// Descriptor is the wire form of a schema: an ordered list of
// (name, type code, shape) triples ending with the timestamp triple.
type Descriptor []Field

// Equal reports whether two descriptors describe the same schema.
func (d Descriptor) Equal(o Descriptor) bool {
	if len(d) != len(o) {
		return false
	}

	for i := range d {
		if !d[i].equal(o[i]) {
			return false
		}
	}

	return true
}

// MarshalJSON encodes the descriptor as a list of triples.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	triples := make([][]any, 0, len(d))

	for _, f := range d {
		shape := f.Shape
		if shape == nil {
			shape = []int{}
		}

		triples = append(triples, []any{f.Name, f.Code(), shape})
	}

	return json.Marshal(triples)
}

// UnmarshalJSON decodes a list of triples. The shape element may be a list,
// a bare integer, or missing entirely.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var triples [][]json.RawMessage
	if err := json.Unmarshal(data, &triples); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	fields := make(Descriptor, 0, len(triples))
	for i, t := range triples {
		f, err := decodeTriple(t)
		if err != nil {
			return fmt.Errorf("descriptor entry %d: %w", i, err)
		}

		fields = append(fields, f)
	}

	*d = fields

	return nil
}

func decodeTriple(t []json.RawMessage) (Field, error) {
	if len(t) < 2 || len(t) > 3 {
		return Field{}, fmt.Errorf(
			"%w: expected 2 or 3 elements, got %d", ErrInvalidSchema, len(t))
	}

	var f Field
	var code string

	if err := json.Unmarshal(t[0], &f.Name); err != nil {
		return Field{}, fmt.Errorf("%w: name: %v", ErrInvalidSchema, err)
	}

	if err := json.Unmarshal(t[1], &code); err != nil {
		return Field{}, fmt.Errorf("%w: code: %v", ErrInvalidSchema, err)
	}

	kind, textLen, err := parseTypeCode(code)
	if err != nil {
		return Field{}, err
	}

	f.Kind = kind
	f.TextLen = textLen

	if len(t) == 3 {
		shape, err := decodeShape(t[2])
		if err != nil {
			return Field{}, err
		}

		f.Shape = shape
	}

	return f, f.validate()
}

func decodeShape(raw json.RawMessage) ([]int, error) {
	var dims []int
	if err := json.Unmarshal(raw, &dims); err == nil {
		if len(dims) == 0 {
			return nil, nil
		}

		return dims, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: shape %s", ErrInvalidSchema, string(raw))
	}

	return []int{n}, nil
}

// EncodeDescriptor serializes fields into the wire descriptor.
func EncodeDescriptor(fields []Field) ([]byte, error) {
	return json.Marshal(Descriptor(fields))
}

// DecodeDescriptor parses a wire descriptor.
func DecodeDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}

	return d, nil
}

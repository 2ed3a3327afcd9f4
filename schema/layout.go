package schema

import (
	"fmt"
	"sort"
)

// Accessor locates one field inside a record buffer. Accessors are computed
// once per layout and can be reused for every record of that layout.
type Accessor struct {
	Field

	Offset int
	count  int
	size   int
}

// Layout is the compiled, packed byte layout of a schema.
type Layout struct {
	accessors []Accessor
	index     map[string]int
	size      int
	tsOffset  int
}

// Compile builds the layout of a complete field list. The list must end with
// the timestamp field, as produced by WithTimestamp or by a decoded
// descriptor.
func Compile(fields []Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	last := fields[len(fields)-1]
	if last.Name != TimestampName || last.Kind != Time || !last.IsScalar() {
		return nil, fmt.Errorf(
			"%w: schema must end with a scalar %q field",
			ErrInvalidSchema, TimestampName)
	}

	l := &Layout{
		accessors: make([]Accessor, 0, len(fields)),
		index:     make(map[string]int, len(fields)),
	}

	offset := 0
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return nil, err
		}

		if _, dup := l.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicated field %q",
				ErrInvalidSchema, f.Name)
		}

		if f.Kind == Time && f.Name != TimestampName {
			return nil, fmt.Errorf("%w: field %q uses the timestamp kind",
				ErrInvalidSchema, f.Name)
		}

		f.Shape = append([]int(nil), f.Shape...)
		a := Accessor{
			Field:  f,
			Offset: offset,
			count:  f.Count(),
			size:   f.Size(),
		}

		l.index[f.Name] = len(l.accessors)
		l.accessors = append(l.accessors, a)
		offset += a.size
	}

	l.size = offset
	l.tsOffset = l.accessors[len(l.accessors)-1].Offset

	return l, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(fields []Field) *Layout {
	l, err := Compile(fields)
	if err != nil {
		panic(err)
	}

	return l
}

// Size returns the record size in bytes.
func (l *Layout) Size() int {
	return l.size
}

// Fields returns the fields in declaration order.
func (l *Layout) Fields() []Field {
	fields := make([]Field, len(l.accessors))
	for i, a := range l.accessors {
		fields[i] = a.Field
	}

	return fields
}

// Descriptor returns the wire descriptor of the layout.
func (l *Layout) Descriptor() Descriptor {
	return Descriptor(l.Fields())
}

// Names returns the field names in sorted order.
func (l *Layout) Names() []string {
	names := make([]string, 0, len(l.index))
	for name := range l.index {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Accessor returns the accessor of a field.
func (l *Layout) Accessor(name string) (Accessor, bool) {
	i, ok := l.index[name]
	if !ok {
		return Accessor{}, false
	}

	return l.accessors[i], true
}

func (l *Layout) mustAccessor(name string) Accessor {
	a, ok := l.Accessor(name)
	if !ok {
		panic(fmt.Sprintf("schema: record has no field %q, fields are %v",
			name, l.Names()))
	}

	return a
}

// NewRecord allocates a zeroed record of this layout.
func (l *Layout) NewRecord() Record {
	return Record{layout: l, buf: make([]byte, l.size)}
}

// View wraps buf as a record of this layout. The buffer must be at least
// Size bytes long.
func (l *Layout) View(buf []byte) Record {
	if len(buf) < l.size {
		panic(fmt.Sprintf("schema: buffer of %d bytes is too small for %d",
			len(buf), l.size))
	}

	return Record{layout: l, buf: buf[:l.size]}
}

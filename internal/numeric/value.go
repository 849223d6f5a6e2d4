// Package numeric holds the host-free values exchanged with an opaque evaluator.
//
// A Value is a scalar, a dense row-major array of any rank, or a sequence of
// Values (for structured arguments such as per-wire parameter vectors). Values
// own their storage: constructors copy their inputs and accessors return copies,
// so nothing handed to an evaluator aliases host memory.
package numeric

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	ScalarKind Kind = iota
	ArrayKind
	SequenceKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case ArrayKind:
		return "array"
	case SequenceKind:
		return "sequence"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a host-free numeric value. The zero Value is the scalar 0.
type Value struct {
	kind   Kind
	scalar float64
	shape  []int
	data   []float64
	items  []Value
}

// Scalar returns a scalar Value.
func Scalar(v float64) Value {
	return Value{kind: ScalarKind, scalar: v}
}

// NewArray returns an array with the given shape holding a copy of data in
// row-major order. An empty shape yields a 0-d array with one element.
func NewArray(shape []int, data []float64) (Value, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Value{}, fmt.Errorf("numeric: negative dimension in shape %v", shape)
		}
		n *= d
	}
	if n != len(data) {
		return Value{}, fmt.Errorf("numeric: shape %v requires %d elements, got %d", shape, n, len(data))
	}
	return Value{
		kind:  ArrayKind,
		shape: append(make([]int, 0, len(shape)), shape...),
		data:  slices.Clone(data),
	}, nil
}

// MustArray is like NewArray but panics on error.
func MustArray(shape []int, data []float64) Value {
	v, err := NewArray(shape, data)
	if err != nil {
		panic(err)
	}
	return v
}

// Vector returns a rank-1 array.
func Vector(data ...float64) Value {
	return MustArray([]int{len(data)}, data)
}

// FromRows returns a rank-2 array built from rows of equal length.
func FromRows(rows [][]float64) (Value, error) {
	if len(rows) == 0 {
		return MustArray([]int{0, 0}, nil), nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return Value{}, fmt.Errorf("numeric: ragged rows: row %d has %d elements, row 0 has %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return NewArray([]int{len(rows), cols}, data)
}

// Sequence returns an ordered collection of values.
func Sequence(items ...Value) Value {
	cloned := make([]Value, len(items))
	for i, item := range items {
		cloned[i] = item.Clone()
	}
	return Value{kind: SequenceKind, items: cloned}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// Shape returns the dimensions of an array. Scalars and sequences return nil.
func (v Value) Shape() []int {
	if v.kind != ArrayKind {
		return nil
	}
	return slices.Clone(v.shape)
}

// Rank returns the number of dimensions: 0 for scalars, -1 for sequences.
func (v Value) Rank() int {
	switch v.kind {
	case ArrayKind:
		return len(v.shape)
	case SequenceKind:
		return -1
	default:
		return 0
	}
}

// Size returns the number of float64 values v flattens to.
func (v Value) Size() int {
	switch v.kind {
	case ArrayKind:
		return len(v.data)
	case SequenceKind:
		n := 0
		for _, item := range v.items {
			n += item.Size()
		}
		return n
	default:
		return 1
	}
}

// Float returns the only element of a scalar or single-element array.
// Panics for anything else.
func (v Value) Float() float64 {
	switch {
	case v.kind == ScalarKind:
		return v.scalar
	case v.kind == ArrayKind && len(v.data) == 1:
		return v.data[0]
	default:
		panic(fmt.Sprintf("numeric: Float on %s of size %d", v.kind, v.Size()))
	}
}

// Data returns a copy of v's elements in flattening order.
func (v Value) Data() []float64 {
	return v.appendTo(make([]float64, 0, v.Size()))
}

// Items returns a copy of the elements of a sequence, or nil.
func (v Value) Items() []Value {
	if v.kind != SequenceKind {
		return nil
	}
	items := make([]Value, len(v.items))
	for i, item := range v.items {
		items[i] = item.Clone()
	}
	return items
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case ArrayKind:
		return Value{kind: ArrayKind, shape: slices.Clone(v.shape), data: slices.Clone(v.data)}
	case SequenceKind:
		return Sequence(v.items...)
	default:
		return v
	}
}

// Equal reports whether v and other have the same structure and elements.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ArrayKind:
		return slices.Equal(v.shape, other.shape) && slices.Equal(v.data, other.data)
	case SequenceKind:
		return slices.EqualFunc(v.items, other.items, Value.Equal)
	default:
		return v.scalar == other.scalar
	}
}

// SameShape reports whether a and b have identical shapes, treating a scalar
// and a 0-d array as the same shape.
func SameShape(a, b Value) bool {
	if a.kind == SequenceKind || b.kind == SequenceKind {
		if a.kind != b.kind || len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !SameShape(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return slices.Equal(a.Shape(), b.Shape()) || (a.Rank() == 0 && b.Rank() == 0)
}

func (v Value) appendTo(dst []float64) []float64 {
	switch v.kind {
	case ArrayKind:
		return append(dst, v.data...)
	case SequenceKind:
		for _, item := range v.items {
			dst = item.appendTo(dst)
		}
		return dst
	default:
		return append(dst, v.scalar)
	}
}

// String formats v with nested brackets, e.g. "0.5", "[1 2]", "[[1 2] [3 4]]".
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case ArrayKind:
		if len(v.shape) == 0 {
			sb.WriteString(formatFloat(v.data[0]))
			return
		}
		formatArray(sb, v.shape, v.data)
	case SequenceKind:
		sb.WriteByte('(')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.format(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(formatFloat(v.scalar))
	}
}

func formatArray(sb *strings.Builder, shape []int, data []float64) {
	sb.WriteByte('[')
	if len(shape) == 1 {
		for i, x := range data {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(formatFloat(x))
		}
	} else {
		stride := 1
		for _, d := range shape[1:] {
			stride *= d
		}
		for i := 0; i < shape[0]; i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			formatArray(sb, shape[1:], data[i*stride:(i+1)*stride])
		}
	}
	sb.WriteByte(']')
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', 6, 64)
}

// Nested returns v as plain Go values: float64 for scalars and 0-d arrays,
// nested []any for arrays and sequences. The result is suitable for encoding.
func (v Value) Nested() any {
	switch v.kind {
	case ArrayKind:
		if len(v.shape) == 0 {
			return v.data[0]
		}
		return nestArray(v.shape, v.data)
	case SequenceKind:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Nested()
		}
		return out
	default:
		return v.scalar
	}
}

func nestArray(shape []int, data []float64) []any {
	out := make([]any, shape[0])
	if len(shape) == 1 {
		for i := range out {
			out[i] = data[i]
		}
		return out
	}
	stride := len(data) / max(shape[0], 1)
	for i := range out {
		out[i] = nestArray(shape[1:], data[i*stride:(i+1)*stride])
	}
	return out
}

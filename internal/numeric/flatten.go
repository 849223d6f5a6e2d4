package numeric

import "fmt"

// ReconstructionError reports a flat gradient whose length does not match the
// total size of the arguments it should be restored into.
type ReconstructionError struct {
	Want int // total size of the template arguments
	Got  int // length of the flat vector
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("numeric: cannot restore %d gradient values into arguments of total size %d", e.Got, e.Want)
}

// Flatten concatenates values in document order: arguments left to right,
// array elements row-major, sequence items in order.
func Flatten(values []Value) []float64 {
	n := 0
	for _, v := range values {
		n += v.Size()
	}
	flat := make([]float64, 0, n)
	for _, v := range values {
		flat = v.appendTo(flat)
	}
	return flat
}

// Unflatten rebuilds the structure of like from flat, consuming it in the
// order Flatten produces. Only the structure of like is used.
//
// The length of flat must equal the total size of like exactly; the vector is
// never truncated or padded.
func Unflatten(flat []float64, like []Value) ([]Value, error) {
	want := 0
	for _, v := range like {
		want += v.Size()
	}
	if len(flat) != want {
		return nil, &ReconstructionError{Want: want, Got: len(flat)}
	}

	out := make([]Value, len(like))
	offset := 0
	for i, v := range like {
		out[i], offset = rebuild(flat, offset, v)
	}
	return out, nil
}

func rebuild(flat []float64, offset int, like Value) (Value, int) {
	switch like.kind {
	case ArrayKind:
		n := len(like.data)
		return MustArray(like.shape, flat[offset:offset+n]), offset + n
	case SequenceKind:
		items := make([]Value, len(like.items))
		for i, item := range like.items {
			items[i], offset = rebuild(flat, offset, item)
		}
		return Value{kind: SequenceKind, items: items}, offset
	default:
		return Scalar(flat[offset]), offset + 1
	}
}

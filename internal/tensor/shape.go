package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
// An empty shape is a zero-dimensional (scalar) tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastScalar resolves the output shape of an element-wise binary op.
//
// The engine supports two layouts: identical shapes, and one operand holding a
// single element (a scalar or any all-ones shape) that is repeated across the
// other. The returned flag reports whether repetition is needed.
//
//	(3, 2) + (3, 2) → (3, 2), false, nil
//	(3, 2) + ()     → (3, 2), true, nil
//	(1,)   + (4,)   → (4,), true, nil
//	(3, 2) + (2,)   → nil, false, Error
func BroadcastScalar(a, b Shape) (Shape, bool, error) {
	switch {
	case a.Equal(b):
		return a.Clone(), false, nil
	case b.NumElements() == 1:
		return a.Clone(), true, nil
	case a.NumElements() == 1:
		return b.Clone(), true, nil
	default:
		return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v", a, b)
	}
}

package ops

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when a single-element operand was repeated in the forward pass.
//
// Example:
//
//	Forward: a[3] * s[] -> c[3]   (s was repeated)
//	Backward: grad_c[3] -> grad_s[] (sum of all elements)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}
	if targetShape.NumElements() != 1 {
		panic(fmt.Sprintf("reduceBroadcast: cannot reduce %v to %v", grad.Shape(), targetShape))
	}

	total := backend.Sum(grad)
	if len(targetShape) == 0 {
		return total
	}
	return backend.Reshape(total, targetShape)
}

// filled creates a tensor of the given shape with every element equal to value.
func filled(shape tensor.Shape, dtype tensor.DataType, value float64, device tensor.Device) *tensor.RawTensor {
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = value
	}
	raw, err := tensor.FromFloat64s(values, shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("filled: %v", err))
	}
	return raw
}

// scalarValue extracts the only element of a single-element tensor as float64.
func scalarValue(t *tensor.RawTensor) float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("scalarValue: expected single element, got shape %v", t.Shape()))
	}
	return t.Float64s()[0]
}

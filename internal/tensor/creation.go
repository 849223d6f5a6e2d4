package tensor

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float64](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 0, b)
}

// Ones creates a tensor filled with ones. Backward seeds gradients with it.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor with every element equal to value.
// Panics if shape has a non-positive dimension.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	values := make([]float64, shape.NumElements())
	if value != 0 {
		for i := range values {
			values[i] = float64(value)
		}
	}
	raw, err := FromFloat64s(values, shape, inferDataType(value), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

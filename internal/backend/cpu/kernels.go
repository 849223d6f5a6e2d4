package cpu

import "github.com/born-ml/gradbridge/internal/tensor"

func add[T tensor.DType](x, y T) T { return x + y }
func sub[T tensor.DType](x, y T) T { return x - y }
func mul[T tensor.DType](x, y T) T { return x * y }

// binaryKernel computes dst[i] = op(a[i], b[i]).
// A single-element operand is repeated across dst.
func binaryKernel[T tensor.DType](dst, a, b []T, op func(x, y T) T) {
	for i := range dst {
		x, y := a[0], b[0]
		if len(a) > 1 {
			x = a[i]
		}
		if len(b) > 1 {
			y = b[i]
		}
		dst[i] = op(x, y)
	}
}

// unaryKernel computes dst[i] = op(src[i]) in float64 precision.
func unaryKernel[T tensor.DType](dst, src []T, op func(float64) float64) {
	for i, v := range src {
		dst[i] = T(op(float64(v)))
	}
}

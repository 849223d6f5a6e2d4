// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op implements its backward pass
//   - Custom: extension point for operations computed outside the engine
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x, _ := tensor.FromSlice([]float64{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//
//	grads, err := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()]) // dy/dx = 2x = 4.0
package autodiff

import (
	"errors"

	"github.com/born-ml/gradbridge/internal/autodiff/ops"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// record adds op to the tape when recording and returns its output.
func (b *AutodiffBackend[B]) record(op ops.Operation) *tensor.RawTensor {
	b.tape.Record(op)
	return op.Output()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewAddOp(a, c, b.inner.Add(a, c)))
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewSubOp(a, c, b.inner.Sub(a, c)))
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewMulOp(a, c, b.inner.Mul(a, c)))
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewMatMulOp(a, c, b.inner.MatMul(a, c)))
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape allocates a new tensor, so without a ReshapeOp on the tape the
// gradient would stop at the reshaped copy and never reach t.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return b.record(ops.NewReshapeOp(t, b.inner.Reshape(t, newShape)))
}

// Transpose transposes a tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return b.record(ops.NewTransposeOp(t, b.inner.Transpose(t, axes...), axes))
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.record(ops.NewMulScalarOp(x, b.inner.MulScalar(x, scalar), scalar))
}

// AddScalar adds a constant and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.record(ops.NewAddScalarOp(x, b.inner.AddScalar(x, scalar)))
}

// Exp computes exp(x) and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewExpOp(x, b.inner.Exp(x)))
}

// Cos computes cos(x) and records the operation.
func (b *AutodiffBackend[B]) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewCosOp(x, b.inner.Cos(x)))
}

// Sin computes sin(x) and records the operation.
func (b *AutodiffBackend[B]) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewSinOp(x, b.inner.Sin(x)))
}

// Sum reduces x to a scalar and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewSumOp(x, b.inner.Sum(x)))
}

// Cast converts x to dtype and records the operation.
func (b *AutodiffBackend[B]) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return b.record(ops.NewCastOp(x, b.inner.Cast(x, dtype)))
}

// CustomFunc computes an operation outside the engine.
//
// It receives the input tensors passed to Custom and returns the forward
// result together with the closure that will later turn the output gradient
// into one gradient per input. The closure is only invoked if the result takes
// part in a backward pass, and then at most once.
type CustomFunc func(inputs []*tensor.RawTensor) (*tensor.RawTensor, ops.BackwardFunc, error)

// Custom runs fn and records it on the tape as a single differentiable operation.
//
// This is the custom-gradient extension point: whatever fn does internally
// is invisible to the tape, which sees one CustomOp from inputs to the result.
// The tape is paused while fn runs so that any backend calls fn makes are not
// recorded. On error nothing is recorded.
func (b *AutodiffBackend[B]) Custom(inputs []*tensor.RawTensor, fn CustomFunc) (*tensor.RawTensor, error) {
	result, backward, err := b.runPaused(inputs, fn)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("custom: forward returned a nil result")
	}
	if backward == nil {
		return nil, errors.New("custom: forward returned a nil backward function")
	}

	b.tape.Record(ops.NewCustomOp(inputs, result, backward))
	return result, nil
}

// runPaused calls fn with recording stopped and restores the previous
// recording state, also when fn panics.
func (b *AutodiffBackend[B]) runPaused(inputs []*tensor.RawTensor, fn CustomFunc) (*tensor.RawTensor, ops.BackwardFunc, error) {
	if b.tape.IsRecording() {
		b.tape.StopRecording()
		defer b.tape.StartRecording()
	}
	return fn(inputs)
}

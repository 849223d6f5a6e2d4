// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given output gradient
//
// Supported operations:
//   - AddOp, SubOp, MulOp: element-wise arithmetic (with single-element broadcast)
//   - MulScalarOp, AddScalarOp: arithmetic with a constant
//   - MatMulOp: matrix multiplication (d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad)
//   - ReshapeOp, TransposeOp: layout changes
//   - CosOp, SinOp, ExpOp: element-wise math
//   - SumOp: full reduction to a scalar
//   - CastOp: dtype conversion
//   - CustomOp: user-supplied backward closure (see CustomOp)
package ops

import "github.com/born-ml/gradbridge/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)]
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// FallibleOperation is an operation whose backward pass can fail.
//
// The tape calls BackwardE instead of Backward for these operations and stops
// the backward pass on the first error. Built-in operations are infallible;
// CustomOp is the one implementation.
type FallibleOperation interface {
	Operation

	// BackwardE computes input gradients or reports why it could not.
	// A nil entry means no gradient flows to that input.
	BackwardE(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error)
}

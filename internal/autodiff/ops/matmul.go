package ops

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// MatMulOp records output = a @ b for 2D operands.
//
//	dA = grad @ Bᵀ
//	dB = Aᵀ @ grad
type MatMulOp struct {
	a, b   *tensor.RawTensor
	output *tensor.RawTensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{a: a, b: b, output: output}
}

// Backward computes gradients for both operands. outputGrad must have the output's shape.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	if !outputGrad.Shape().Equal(op.output.Shape()) {
		panic(fmt.Sprintf("matmul backward: gradient shape %v, output shape %v", outputGrad.Shape(), op.output.Shape()))
	}

	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(op.b, 1, 0)),
		backend.MatMul(backend.Transpose(op.a, 1, 0), outputGrad),
	}
}

// Inputs returns [a, b].
func (op *MatMulOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.b}
}

// Output returns a @ b.
func (op *MatMulOp) Output() *tensor.RawTensor {
	return op.output
}

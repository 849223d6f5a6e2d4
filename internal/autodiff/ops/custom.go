package ops

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// ErrBackwardReused is returned when a CustomOp is asked for gradients twice.
var ErrBackwardReused = errors.New("custom op: backward already invoked")

// BackwardFunc maps the gradient of a custom operation's output to one
// gradient per recorded input. A nil entry means no gradient for that input.
type BackwardFunc func(outputGrad *tensor.RawTensor) ([]*tensor.RawTensor, error)

// CustomOp is an operation whose backward pass is a caller-supplied closure.
//
// It is how work done outside the engine (an opaque evaluator, a foreign
// library) takes part in reverse-mode differentiation: the forward result is
// computed by the caller, and Backward delegates to the closure captured at
// forward time. The closure runs at most once.
type CustomOp struct {
	inputs   []*tensor.RawTensor
	output   *tensor.RawTensor
	backward BackwardFunc
	invoked  atomic.Bool
}

// NewCustomOp creates a new CustomOp.
func NewCustomOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, backward BackwardFunc) *CustomOp {
	return &CustomOp{
		inputs:   append([]*tensor.RawTensor(nil), inputs...),
		output:   output,
		backward: backward,
	}
}

// BackwardE runs the captured closure and checks that every returned gradient
// matches its input's shape and dtype.
func (op *CustomOp) BackwardE(outputGrad *tensor.RawTensor, _ tensor.Backend) ([]*tensor.RawTensor, error) {
	if !op.invoked.CompareAndSwap(false, true) {
		return nil, ErrBackwardReused
	}
	if !outputGrad.Shape().Equal(op.output.Shape()) {
		return nil, fmt.Errorf("custom op: output gradient shape %v does not match output shape %v",
			outputGrad.Shape(), op.output.Shape())
	}

	grads, err := op.backward(outputGrad)
	if err != nil {
		return nil, err
	}
	if len(grads) != len(op.inputs) {
		return nil, fmt.Errorf("custom op: backward returned %d gradients for %d inputs", len(grads), len(op.inputs))
	}

	for i, g := range grads {
		if g == nil {
			continue
		}
		in := op.inputs[i]
		if !g.Shape().Equal(in.Shape()) {
			return nil, fmt.Errorf("custom op: gradient %d has shape %v, input has %v", i, g.Shape(), in.Shape())
		}
		if g.DType() != in.DType() {
			return nil, fmt.Errorf("custom op: gradient %d has dtype %s, input has %s", i, g.DType(), in.DType())
		}
	}
	return grads, nil
}

// Backward is BackwardE for callers that cannot handle errors.
// Panics if the closure fails.
func (op *CustomOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads, err := op.BackwardE(outputGrad, backend)
	if err != nil {
		panic(err)
	}
	return grads
}

// Inputs returns the recorded input tensors.
func (op *CustomOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *CustomOp) Output() *tensor.RawTensor {
	return op.output
}

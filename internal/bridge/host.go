package bridge

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/autodiff/ops"
	"github.com/born-ml/gradbridge/internal/numeric"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Apply evaluates args through the bridge as one differentiable operation on
// backend's tape, returning the result as a Float64 tensor shaped like the
// evaluator's result.
//
// Top-level host tensor arguments become the operation's inputs; on the
// backward pass each receives a gradient of its own shape and dtype. Other
// arguments, including tensors nested inside []any, are treated as constants.
func Apply[B tensor.Backend](b *Bridge, backend *autodiff.AutodiffBackend[B], args ...any) (*tensor.RawTensor, error) {
	values, bindings, err := Marshal(args)
	if err != nil {
		return nil, err
	}

	inputs := make([]*tensor.RawTensor, len(bindings))
	for i, bnd := range bindings {
		inputs[i] = bnd.Tensor
	}

	return backend.Custom(inputs, func([]*tensor.RawTensor) (*tensor.RawTensor, ops.BackwardFunc, error) {
		call, err := b.forward(values)
		if err != nil {
			return nil, nil, err
		}
		out, err := toRaw(call.Result(), tensor.Float64, backend.Device())
		if err != nil {
			return nil, nil, fmt.Errorf("bridge %s: call %s: result: %w", b.name, call.ID(), err)
		}
		return out, hostBackward(call, bindings), nil
	})
}

// ApplyTensor is Apply returning a typed tensor on the autodiff backend.
func ApplyTensor[B tensor.Backend](
	b *Bridge,
	backend *autodiff.AutodiffBackend[B],
	args ...any,
) (*tensor.Tensor[float64, *autodiff.AutodiffBackend[B]], error) {
	raw, err := Apply(b, backend, args...)
	if err != nil {
		return nil, err
	}
	return tensor.New[float64](raw, backend), nil
}

func hostBackward(call *Call, bindings []Binding) ops.BackwardFunc {
	return func(outputGrad *tensor.RawTensor) ([]*tensor.RawTensor, error) {
		grad, err := fromRaw(outputGrad)
		if err != nil {
			return nil, err
		}
		grads, err := call.Backward(grad)
		if err != nil {
			return nil, err
		}

		hostGrads := make([]*tensor.RawTensor, len(bindings))
		for i, bnd := range bindings {
			like := bnd.Tensor
			hostGrads[i], err = toRaw(grads[bnd.Index], like.DType(), like.Device())
			if err != nil {
				return nil, fmt.Errorf("bridge: restoring gradient of argument %d: %w", bnd.Index, err)
			}
			if !hostGrads[i].Shape().Equal(like.Shape()) {
				return nil, fmt.Errorf("bridge: gradient of argument %d has shape %v, argument has %v",
					bnd.Index, hostGrads[i].Shape(), like.Shape())
			}
		}
		return hostGrads, nil
	}
}

// toRaw copies a scalar or array Value into a new host tensor.
func toRaw(v numeric.Value, dtype tensor.DataType, device tensor.Device) (*tensor.RawTensor, error) {
	shape := tensor.Shape(v.Shape())
	if shape == nil {
		shape = tensor.Shape{}
	}
	return tensor.FromFloat64s(v.Data(), shape, dtype, device)
}

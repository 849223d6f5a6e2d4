package autodiff

import (
	"errors"
	"fmt"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// ErrNothingRecorded is returned by Backward when the tape is empty.
var ErrNothingRecorded = errors.New("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to everything it depends on,
// seeding the backward pass with ones shaped like t.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float64](tensor.Shape{2}, backend)
//	y := x.Mul(x) // y = x²
//	gradients, err := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // 2x
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	ones := tensor.Ones[T, B](t.Shape(), backend)
	return BackwardWithGrad(t, ones.Raw(), backend)
}

// BackwardWithGrad computes gradients of t seeded with an explicit output gradient.
func BackwardWithGrad[T tensor.DType, B BackwardCapable](
	t *tensor.Tensor[T, B],
	outputGrad *tensor.RawTensor,
	backend B,
) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		return nil, ErrNothingRecorded
	}
	if outputGrad.DType() != t.DType() {
		return nil, fmt.Errorf("backward: output gradient dtype %s does not match tensor dtype %s",
			outputGrad.DType(), t.DType())
	}
	return tape.BackwardFrom(t.Raw(), outputGrad, backend)
}

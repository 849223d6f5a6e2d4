package autodiff

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/autodiff/ops"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients, err := tape.Backward(outputGrad, backend)
//
// A tape is not safe for concurrent use.
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
		recording:  false,
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients for all inputs by walking the tape in reverse,
// seeding outputGrad at the output of the last recorded operation.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	if len(t.operations) == 0 {
		return make(map[*tensor.RawTensor]*tensor.RawTensor), nil
	}
	return t.BackwardFrom(t.operations[len(t.operations)-1].Output(), outputGrad, backend)
}

// BackwardFrom computes gradients of output with respect to every tensor it
// depends on.
//
// Algorithm:
//  1. Seed outputGrad at output
//  2. Walk operations in reverse order
//  3. For each operation that received a gradient, compute input gradients
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Returns a map from RawTensor to its accumulated gradient. The first error
// reported by a FallibleOperation aborts the pass; no partial map is returned.
func (t *GradientTape) BackwardFrom(
	output, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	if !outputGrad.Shape().Equal(output.Shape()) {
		return nil, fmt.Errorf("backward: output gradient shape %v does not match output shape %v",
			outputGrad.Shape(), output.Shape())
	}

	// Stop recording during backward pass to prevent recording gradient operations
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: outputGrad}

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		opOutputGrad, hasGrad := grads[op.Output()]
		if !hasGrad {
			continue
		}

		inputGrads, err := computeInputGrads(op, opOutputGrad, backend)
		if err != nil {
			return nil, fmt.Errorf("backward through op %d (%T): %w", i, op, err)
		}
		accumulateGrads(op, inputGrads, grads, backend)
	}

	return grads, nil
}

// computeInputGrads prefers BackwardE when the operation can fail.
func computeInputGrads(op ops.Operation, outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error) {
	if fallible, ok := op.(ops.FallibleOperation); ok {
		return fallible.BackwardE(outputGrad, backend)
	}
	return op.Backward(outputGrad, backend), nil
}

// accumulateGrads accumulates gradients for each input tensor.
func accumulateGrads(
	op ops.Operation,
	inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range op.Inputs() {
		if j >= len(inputGrads) {
			break
		}
		inputGrad := inputGrads[j]
		if inputGrad == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrad)
		} else {
			grads[input] = inputGrad
		}
	}
}

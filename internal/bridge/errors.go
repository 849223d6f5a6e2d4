package bridge

import (
	"errors"
	"fmt"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// Sentinel errors.
var (
	// ErrNilEvaluator is returned by New when no evaluator is given.
	ErrNilEvaluator = errors.New("bridge: nil evaluator")

	// ErrBackwardInvoked is returned when Backward runs a second time on the same Call.
	ErrBackwardInvoked = errors.New("bridge: backward already invoked for this call")

	// ErrNilJacobian is returned when the evaluator reports no error but no Jacobian either.
	ErrNilJacobian = errors.New("bridge: evaluator returned a nil jacobian")

	// ErrUnsupportedResult is returned when the evaluator produces something
	// other than a number, a numeric slice or a numeric.Value array.
	ErrUnsupportedResult = errors.New("bridge: unsupported evaluator result")
)

// ShapeMismatchError and ReconstructionError are produced by the numeric layer
// and returned unchanged (wrapped) by Backward.
type (
	ShapeMismatchError  = numeric.ShapeMismatchError
	ReconstructionError = numeric.ReconstructionError
)

// MarshalError reports an argument the evaluator cannot accept.
type MarshalError struct {
	Index  int    // position of the argument
	Type   string // Go type of the offending value
	Reason string
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("bridge: cannot marshal argument %d (%s): %s", e.Index, e.Type, e.Reason)
}

// Package bridge connects an opaque differentiable evaluator to the autodiff tape.
//
// An Evaluator computes a numeric result from host-free numeric arguments and,
// separately, the Jacobian of that result with respect to the flattened
// arguments. The bridge marshals host tensors into numeric values, runs the
// forward pass, and on the backward pass contracts the upstream gradient with
// the Jacobian and restores the product into the shape of each argument.
package bridge

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// Evaluator is an externally supplied differentiable function.
//
// Evaluate returns a float64 (or other number), []float64, [][]float64 or a
// numeric.Value array. Jacobian returns a matrix with one row per flattened
// output element and one column per flattened input element.
type Evaluator interface {
	Evaluate(args ...numeric.Value) (any, error)
	Jacobian(args []numeric.Value) (*mat.Dense, error)
}

// Funcs adapts a pair of functions to the Evaluator interface.
type Funcs struct {
	EvaluateFunc func(args ...numeric.Value) (any, error)
	JacobianFunc func(args []numeric.Value) (*mat.Dense, error)
}

var _ Evaluator = Funcs{}

// Evaluate calls f.EvaluateFunc.
func (f Funcs) Evaluate(args ...numeric.Value) (any, error) {
	if f.EvaluateFunc == nil {
		return nil, errors.New("bridge: Funcs.EvaluateFunc is nil")
	}
	return f.EvaluateFunc(args...)
}

// Jacobian calls f.JacobianFunc.
func (f Funcs) Jacobian(args []numeric.Value) (*mat.Dense, error) {
	if f.JacobianFunc == nil {
		return nil, errors.New("bridge: Funcs.JacobianFunc is nil")
	}
	return f.JacobianFunc(args)
}

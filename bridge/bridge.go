// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package bridge lets an opaque evaluator take part in autodiff.
//
// The evaluator computes a result from numeric arguments and, separately,
// the Jacobian of that result. Forward evaluates; Call.Backward turns an
// output gradient into argument gradients with a vector-Jacobian product.
// Apply records the whole thing as one custom operation on an autodiff tape,
// so gradients flow through it like any other op.
//
// Example:
//
//	b, _ := bridge.New(bridge.Funcs{
//	    EvaluateFunc: func(args ...numeric.Value) (any, error) {
//	        return math.Cos(args[0].Data()[0]), nil
//	    },
//	    JacobianFunc: func(args []numeric.Value) (*mat.Dense, error) {
//	        return numeric.NewJacobian([][]float64{{-math.Sin(args[0].Data()[0]), 0}})
//	    },
//	})
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	phi, _ := tensor.FromSlice([]float64{0.5, 0.1}, tensor.Shape{2}, backend)
//	z, _ := bridge.ApplyTensor(b, backend, phi)
//	grads, _ := autodiff.Backward(z, backend)
//	// grads[phi.Raw()] = [-0.479426 0]
package bridge

import (
	"github.com/born-ml/gradbridge/autodiff"
	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Bridge wraps an Evaluator.
type Bridge = bridge.Bridge

// Call is one forward evaluation. Backward may run at most once.
type Call = bridge.Call

// State is the lifecycle position of a Call.
type State = bridge.State

// Call states.
const (
	Idle            = bridge.Idle
	ForwardInvoked  = bridge.ForwardInvoked
	BackwardInvoked = bridge.BackwardInvoked
)

// Evaluator computes a result and its Jacobian from numeric arguments.
type Evaluator = bridge.Evaluator

// Funcs adapts a pair of functions to Evaluator.
type Funcs = bridge.Funcs

// Option configures a Bridge.
type Option = bridge.Option

// Errors returned by the bridge.
var (
	ErrNilEvaluator      = bridge.ErrNilEvaluator
	ErrBackwardInvoked   = bridge.ErrBackwardInvoked
	ErrNilJacobian       = bridge.ErrNilJacobian
	ErrUnsupportedResult = bridge.ErrUnsupportedResult
)

// MarshalError reports an argument the evaluator cannot accept.
type MarshalError = bridge.MarshalError

// New returns a Bridge for ev.
func New(ev Evaluator, opts ...Option) (*Bridge, error) {
	return bridge.New(ev, opts...)
}

// WithName sets the name used in errors and logs.
var WithName = bridge.WithName

// WithLogger sets the klog logger.
var WithLogger = bridge.WithLogger

// Apply evaluates args through b and records the call on the backend's tape.
// Top-level host tensors in args receive gradients; everything else is a constant.
func Apply[B tensor.Backend](b *Bridge, backend *autodiff.Backend[B], args ...any) (*tensor.RawTensor, error) {
	return bridge.Apply(b, backend, args...)
}

// ApplyTensor is Apply returning a float64 tensor on the autodiff backend.
func ApplyTensor[B tensor.Backend](
	b *Bridge, backend *autodiff.Backend[B], args ...any,
) (*tensor.Tensor[float64, *autodiff.Backend[B]], error) {
	return bridge.ApplyTensor(b, backend, args...)
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// The gradient tape records every operation performed through the backend.
// Custom operations, such as the gradient bridge, are recorded with their
// own backward function through Backend.Custom.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x, _ := tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{3}, backend)
//	y := x.Mul(x).Sum()
//
//	grads, err := autodiff.Backward(y, backend)
//	// grads[x.Raw()] = [2 4 6]
package autodiff

import (
	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// CustomFunc computes a custom operation and its backward function.
type CustomFunc = autodiff.CustomFunc

// BackwardCapable interface for backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// ErrNothingRecorded is returned by Backward when the tape is empty.
var ErrNothingRecorded = autodiff.ErrNothingRecorded

// Backward computes gradients of t seeded with ones.
func Backward[T tensor.DType, B BackwardCapable](
	t *tensor.Tensor[T, B], backend B,
) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	return autodiff.Backward(t, backend)
}

// BackwardWithGrad computes gradients of t seeded with outputGrad.
func BackwardWithGrad[T tensor.DType, B BackwardCapable](
	t *tensor.Tensor[T, B], outputGrad *tensor.RawTensor, backend B,
) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	return autodiff.BackwardWithGrad(t, outputGrad, backend)
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/gradbridge/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// A RawTensor is what the autodiff tape records and keys gradients by, and
// what the gradient bridge accepts as a host tensor argument.
//
// Example:
//
//	raw, _ := tensor.FromFloat64s([]float64{0.5, 0.1}, tensor.Shape{2}, tensor.Float64, tensor.CPU)
//	data := raw.AsFloat64()
type RawTensor = tensor.RawTensor

// NewRaw creates a zeroed raw tensor with the given shape, dtype, and device.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat64s creates a raw tensor holding values converted to dtype.
func FromFloat64s(values []float64, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.FromFloat64s(values, shape, dtype, device)
}

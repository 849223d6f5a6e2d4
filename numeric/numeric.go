// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package numeric provides host-free numeric values and the vector-Jacobian
// product used by the gradient bridge.
//
// A Value is a scalar, an n-dimensional array, or a sequence of values.
// Flatten and Unflatten convert between a list of values and one flat slice
// in document order:
//
//	args := []numeric.Value{numeric.Vector(0.5, 0.1), numeric.Scalar(0.2)}
//	flat := numeric.Flatten(args)                      // [0.5 0.1 0.2]
//	back, err := numeric.Unflatten([]float64{1, 2, 3}, args) // [[1 2] 3]
package numeric

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// Value is a host-free numeric value. The zero Value is the scalar 0.
type Value = numeric.Value

// Kind identifies the variant held by a Value.
type Kind = numeric.Kind

// Value kinds.
const (
	ScalarKind   = numeric.ScalarKind
	ArrayKind    = numeric.ArrayKind
	SequenceKind = numeric.SequenceKind
)

// ShapeMismatchError reports an output gradient that does not fit the result
// or the Jacobian.
type ShapeMismatchError = numeric.ShapeMismatchError

// ReconstructionError reports a flat gradient whose length differs from the
// total size of the arguments.
type ReconstructionError = numeric.ReconstructionError

// Scalar returns a scalar value.
func Scalar(v float64) Value { return numeric.Scalar(v) }

// NewArray returns an array with the given shape. data is copied.
func NewArray(shape []int, data []float64) (Value, error) { return numeric.NewArray(shape, data) }

// MustArray is NewArray that panics on error.
func MustArray(shape []int, data []float64) Value { return numeric.MustArray(shape, data) }

// Vector returns a one-dimensional array.
func Vector(data ...float64) Value { return numeric.Vector(data...) }

// FromRows returns a two-dimensional array. Rows must have equal length.
func FromRows(rows [][]float64) (Value, error) { return numeric.FromRows(rows) }

// Sequence returns an ordered container of values.
func Sequence(items ...Value) Value { return numeric.Sequence(items...) }

// SameShape reports whether a and b have the same structure.
func SameShape(a, b Value) bool { return numeric.SameShape(a, b) }

// Flatten concatenates every element of values in document order.
func Flatten(values []Value) []float64 { return numeric.Flatten(values) }

// Unflatten rebuilds the structure of like from flat.
func Unflatten(flat []float64, like []Value) ([]Value, error) { return numeric.Unflatten(flat, like) }

// NewJacobian builds a Jacobian from rows, one per result element.
func NewJacobian(rows [][]float64) (*mat.Dense, error) { return numeric.NewJacobian(rows) }

// VJP returns the vector-Jacobian product gradOutput^T J as a flat slice.
func VJP(gradOutput Value, jac mat.Matrix) ([]float64, error) { return numeric.VJP(gradOutput, jac) }

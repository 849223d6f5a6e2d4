package numeric

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ShapeMismatchError reports an output gradient incompatible with the
// Jacobian or with the forward result it belongs to.
type ShapeMismatchError struct {
	GradKind  Kind
	GradShape []int

	// ResultShape is set when the gradient was checked against a forward result.
	ResultShape []int

	JacobianRows int
	JacobianCols int
}

func (e *ShapeMismatchError) Error() string {
	if e.ResultShape != nil {
		return fmt.Sprintf("numeric: output gradient shape %v does not match result shape %v", e.GradShape, e.ResultShape)
	}
	if e.GradKind == SequenceKind {
		return fmt.Sprintf("numeric: sequence output gradient cannot be contracted with %dx%d jacobian",
			e.JacobianRows, e.JacobianCols)
	}
	return fmt.Sprintf("numeric: output gradient shape %v does not match %dx%d jacobian",
		e.GradShape, e.JacobianRows, e.JacobianCols)
}

// CheckGradShape returns a *ShapeMismatchError unless grad has exactly the
// shape of result. Equal element counts are not enough.
func CheckGradShape(grad, result Value) error {
	if grad.kind != SequenceKind && SameShape(grad, result) {
		return nil
	}
	shape := result.Shape()
	if shape == nil {
		shape = []int{}
	}
	return &ShapeMismatchError{GradKind: grad.kind, GradShape: grad.Shape(), ResultShape: shape}
}

// NewJacobian builds a Jacobian from its rows. Every row must have the same,
// non-zero length.
func NewJacobian(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("numeric: jacobian must have at least one row and one column")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("numeric: jacobian row %d has %d columns, row 0 has %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// VJP contracts an output gradient with the Jacobian of the function that
// produced the output, returning one value per Jacobian column.
//
// A rank-0 gradient requires a single-row Jacobian and scales that row.
// Any other gradient must flatten to exactly as many values as the Jacobian
// has rows, and the result is gᵀ·J.
func VJP(gradOutput Value, jac mat.Matrix) ([]float64, error) {
	rows, cols := jac.Dims()
	mismatch := &ShapeMismatchError{
		GradKind:     gradOutput.kind,
		GradShape:    gradOutput.Shape(),
		JacobianRows: rows,
		JacobianCols: cols,
	}
	if gradOutput.kind == SequenceKind || rows == 0 || cols == 0 {
		return nil, mismatch
	}

	if gradOutput.Rank() == 0 {
		if rows != 1 {
			return nil, mismatch
		}
		out := mat.Row(nil, 0, jac)
		floats.Scale(gradOutput.Float(), out)
		return out, nil
	}

	if gradOutput.Size() != rows {
		return nil, mismatch
	}
	out := make([]float64, cols)
	mat.NewVecDense(cols, out).MulVec(jac.T(), mat.NewVecDense(rows, gradOutput.Data()))
	return out, nil
}

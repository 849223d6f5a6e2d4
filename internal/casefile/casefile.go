// Package casefile loads YAML descriptions of fixed-Jacobian evaluators.
//
// A case file records the arguments of one evaluation, the result the
// evaluator produced and its Jacobian at those arguments, so that the bridge
// can be exercised without the evaluator itself:
//
//	name: single-wire
//	args:
//	  - [0.5, 0.1]
//	  - 0.2
//	result: 0.8775825618903728
//	jacobian:
//	  - [-0.479425538604203, 0, 0]
//	grad_output: 1
package casefile

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/numeric"
)

// file is the on-disk YAML layout.
type file struct {
	// Name identifies the case in output.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	// Args are the positional evaluator arguments: numbers, lists of numbers,
	// rectangular lists of lists, or arbitrary nesting of those.
	Args []any `yaml:"args"`

	// Result is the evaluator output at Args.
	Result any `yaml:"result"`

	// Jacobian has one row per result element and one column per
	// flattened argument element.
	Jacobian [][]float64 `yaml:"jacobian"`

	// GradOutput is the upstream gradient. Defaults to ones shaped like Result.
	GradOutput any `yaml:"grad_output,omitempty"`
}

// Case is a validated case file.
type Case struct {
	Name        string
	Description string
	Args        []numeric.Value
	Result      numeric.Value
	Jacobian    *mat.Dense
	GradOutput  numeric.Value
}

// Parse decodes and validates a case file. Unknown fields are rejected.
func Parse(data []byte) (*Case, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	c, err := build(&f)
	if err != nil {
		return nil, fmt.Errorf("invalid case %q: %w", f.Name, err)
	}
	return c, nil
}

func build(f *file) (*Case, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if f.Result == nil {
		return nil, fmt.Errorf("result is required")
	}
	if len(f.Jacobian) == 0 {
		return nil, fmt.Errorf("jacobian is required")
	}

	c := &Case{Name: f.Name, Description: f.Description}

	c.Args = make([]numeric.Value, len(f.Args))
	for i, arg := range f.Args {
		v, err := toValue(arg)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		c.Args[i] = v
	}

	result, err := toValue(f.Result)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	if result.Kind() == numeric.SequenceKind {
		return nil, fmt.Errorf("result: must be a number or a rectangular array")
	}
	c.Result = result

	c.Jacobian, err = numeric.NewJacobian(f.Jacobian)
	if err != nil {
		return nil, fmt.Errorf("jacobian: %w", err)
	}
	rows, cols := c.Jacobian.Dims()
	if rows != result.Size() {
		return nil, fmt.Errorf("jacobian has %d rows, result has %d elements", rows, result.Size())
	}
	if n := len(numeric.Flatten(c.Args)); cols != n {
		return nil, fmt.Errorf("jacobian has %d columns, args have %d elements", cols, n)
	}

	if f.GradOutput == nil {
		c.GradOutput = ones(result)
	} else {
		c.GradOutput, err = toValue(f.GradOutput)
		if err != nil {
			return nil, fmt.Errorf("grad_output: %w", err)
		}
	}
	if err := numeric.CheckGradShape(c.GradOutput, c.Result); err != nil {
		return nil, fmt.Errorf("grad_output: %w", err)
	}
	return c, nil
}

// Evaluator returns an evaluator that reproduces the recorded result and
// Jacobian. It rejects arguments whose structure differs from the case's.
func (c *Case) Evaluator() bridge.Evaluator {
	check := func(args []numeric.Value) error {
		if len(args) != len(c.Args) {
			return fmt.Errorf("case %q: got %d arguments, want %d", c.Name, len(args), len(c.Args))
		}
		for i := range args {
			if !numeric.SameShape(args[i], c.Args[i]) {
				return fmt.Errorf("case %q: argument %d does not match the recorded shape", c.Name, i)
			}
		}
		return nil
	}
	return bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) {
			if err := check(args); err != nil {
				return nil, err
			}
			return c.Result.Clone(), nil
		},
		JacobianFunc: func(args []numeric.Value) (*mat.Dense, error) {
			if err := check(args); err != nil {
				return nil, err
			}
			return mat.DenseCopyOf(c.Jacobian), nil
		},
	}
}

func ones(like numeric.Value) numeric.Value {
	if like.Kind() == numeric.ScalarKind {
		return numeric.Scalar(1)
	}
	data := make([]float64, like.Size())
	for i := range data {
		data[i] = 1
	}
	return numeric.MustArray(like.Shape(), data)
}

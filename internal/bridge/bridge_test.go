package bridge_test

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2/ktesting"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/numeric"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// circuit stands in for a two-parameter-group circuit whose expectation
// value is cos(phi[0]). It counts how often each contract is used.
type circuit struct {
	evaluations atomic.Int32
	jacobians   atomic.Int32
}

func (c *circuit) Evaluate(args ...numeric.Value) (any, error) {
	c.evaluations.Add(1)
	return math.Cos(args[0].Data()[0]), nil
}

func (c *circuit) Jacobian(args []numeric.Value) (*mat.Dense, error) {
	c.jacobians.Add(1)
	phi0 := args[0].Data()[0]
	row := make([]float64, len(numeric.Flatten(args)))
	row[0] = -math.Sin(phi0)
	return mat.NewDense(1, len(row), row), nil
}

func newBridge(t *testing.T, ev bridge.Evaluator) *bridge.Bridge {
	t.Helper()
	logger, _ := ktesting.NewTestContext(t)
	b, err := bridge.New(ev, bridge.WithName(t.Name()), bridge.WithLogger(logger))
	require.NoError(t, err)
	return b
}

func TestNew_NilEvaluator(t *testing.T) {
	_, err := bridge.New(nil)
	assert.ErrorIs(t, err, bridge.ErrNilEvaluator)
}

func TestNew_Options(t *testing.T) {
	b, err := bridge.New(&circuit{}, bridge.WithName("qnode"))
	require.NoError(t, err)
	assert.Equal(t, "qnode", b.Name())
}

func TestForward_IsPure(t *testing.T) {
	ev := &circuit{}
	b := newBridge(t, ev)

	first, err := b.Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)
	second, err := b.Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)

	assert.True(t, first.Result().Equal(second.Result()))
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, int32(2), ev.evaluations.Load())
	assert.Equal(t, int32(0), ev.jacobians.Load(), "forward must not compute the Jacobian")
	assert.Equal(t, bridge.ForwardInvoked, first.State())
}

func TestForward_ScalarResultIsZeroDim(t *testing.T) {
	call, err := newBridge(t, &circuit{}).Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)

	res := call.Result()
	assert.Equal(t, numeric.ArrayKind, res.Kind())
	assert.Equal(t, 0, res.Rank())
	assert.InDelta(t, 0.8776, res.Float(), 1e-4)
}

func TestForward_IDIsVersion7(t *testing.T) {
	call, err := newBridge(t, &circuit{}).Forward(0.5)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), call.ID().Version())
}

func TestForward_EvaluatorErrorPropagates(t *testing.T) {
	boom := errors.New("device offline")
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(...numeric.Value) (any, error) { return nil, boom },
	})

	_, err := b.Forward(1.0)
	assert.ErrorIs(t, err, boom)
}

func TestForward_UnsupportedResult(t *testing.T) {
	results := map[string]any{
		"string":   "0.5",
		"sequence": numeric.Sequence(numeric.Scalar(1)),
		"ragged":   [][]float64{{1, 2}, {3}},
		"nil":      nil,
	}
	for name, res := range results {
		t.Run(name, func(t *testing.T) {
			b := newBridge(t, bridge.Funcs{
				EvaluateFunc: func(...numeric.Value) (any, error) { return res, nil },
			})
			_, err := b.Forward(1.0)
			assert.ErrorIs(t, err, bridge.ErrUnsupportedResult)
		})
	}
}

func TestForward_ResultNormalization(t *testing.T) {
	tests := []struct {
		name  string
		res   any
		shape []int
	}{
		{"float64", 1.5, []int{}},
		{"float32", float32(1.5), []int{}},
		{"int", 2, []int{}},
		{"int32", int32(2), []int{}},
		{"int64", int64(2), []int{}},
		{"scalar value", numeric.Scalar(1.5), []int{}},
		{"vector", []float64{1, 2}, []int{2}},
		{"matrix", [][]float64{{1, 2, 3}, {4, 5, 6}}, []int{2, 3}},
		{"array value", numeric.MustArray([]int{1, 2}, []float64{1, 2}), []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBridge(t, bridge.Funcs{
				EvaluateFunc: func(...numeric.Value) (any, error) { return tt.res, nil },
			})
			call, err := b.Forward(1.0)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, call.Result().Shape())
		})
	}
}

func TestBackward_Scalar(t *testing.T) {
	ev := &circuit{}
	call, err := newBridge(t, ev).Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)

	grads, err := call.Backward(numeric.Scalar(1))
	require.NoError(t, err)
	require.Len(t, grads, 2)

	assert.Equal(t, []int{2}, grads[0].Shape())
	assert.InDeltaSlice(t, []float64{-0.4794, 0}, grads[0].Data(), 1e-4)
	assert.Equal(t, numeric.ScalarKind, grads[1].Kind())
	assert.InDelta(t, 0, grads[1].Float(), 1e-12)
	assert.Equal(t, int32(1), ev.jacobians.Load())
	assert.Equal(t, bridge.BackwardInvoked, call.State())
}

func TestBackward_SecondCallFails(t *testing.T) {
	ev := &circuit{}
	call, err := newBridge(t, ev).Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)

	_, err = call.Backward(numeric.Scalar(1))
	require.NoError(t, err)

	_, err = call.Backward(numeric.Scalar(1))
	assert.ErrorIs(t, err, bridge.ErrBackwardInvoked)
	assert.Equal(t, int32(1), ev.jacobians.Load())
}

func TestBackward_FailureIsTerminal(t *testing.T) {
	call, err := newBridge(t, &circuit{}).Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)

	_, err = call.Backward(numeric.Vector(1, 1))
	require.Error(t, err)

	_, err = call.Backward(numeric.Scalar(1))
	assert.ErrorIs(t, err, bridge.ErrBackwardInvoked)
}

func TestBackward_ConcurrentOnlyOneWins(t *testing.T) {
	call, err := newBridge(t, &circuit{}).Forward([]float64{0.5, 0.1}, 0.2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := call.Backward(numeric.Scalar(1)); err == nil {
				ok.Add(1)
			} else if errors.Is(err, bridge.ErrBackwardInvoked) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), rejected.Load())
}

func TestBackward_VectorOutput(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) {
			x := args[0].Data()
			return []float64{x[0] * x[1], x[1] + x[2]}, nil
		},
		JacobianFunc: func(args []numeric.Value) (*mat.Dense, error) {
			x := args[0].Data()
			return numeric.NewJacobian([][]float64{
				{x[1], x[0], 0},
				{0, 1, 1},
			})
		},
	})
	call, err := b.Forward([]float64{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7}, call.Result().Data())

	grads, err := call.Backward(numeric.Vector(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 12, 10}, grads[0].Data())
}

func TestBackward_OneElementVectorOutput(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) { return []float64{args[0].Float() * 3}, nil },
		JacobianFunc: func([]numeric.Value) (*mat.Dense, error) { return mat.NewDense(1, 1, []float64{3}), nil },
	})

	call, err := b.Forward(2.0)
	require.NoError(t, err)
	_, err = call.Backward(numeric.Scalar(1))
	var mismatch *bridge.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch, "a scalar gradient does not match a 1-vector result")

	call, err = b.Forward(2.0)
	require.NoError(t, err)
	grads, err := call.Backward(numeric.Vector(2))
	require.NoError(t, err)
	assert.Equal(t, 6.0, grads[0].Float())
}

func TestBackward_GradShapeMustMatchExactly(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(...numeric.Value) (any, error) { return [][]float64{{1, 2}, {3, 4}}, nil },
		JacobianFunc: func([]numeric.Value) (*mat.Dense, error) { return mat.NewDense(4, 1, nil), nil },
	})
	call, err := b.Forward(1.0)
	require.NoError(t, err)

	_, err = call.Backward(numeric.Vector(1, 1, 1, 1))

	var mismatch *bridge.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []int{4}, mismatch.GradShape)
	assert.Equal(t, []int{2, 2}, mismatch.ResultShape)
}

func TestBackward_JacobianColumnsMismatch(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(...numeric.Value) (any, error) { return 1.0, nil },
		JacobianFunc: func([]numeric.Value) (*mat.Dense, error) { return mat.NewDense(1, 2, []float64{1, 2}), nil },
	})
	call, err := b.Forward([]float64{1, 2}, 3.0)
	require.NoError(t, err)

	_, err = call.Backward(numeric.Scalar(1))

	var recErr *bridge.ReconstructionError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 3, recErr.Want)
	assert.Equal(t, 2, recErr.Got)
}

func TestBackward_JacobianError(t *testing.T) {
	boom := errors.New("parameter shift failed")
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(...numeric.Value) (any, error) { return 1.0, nil },
		JacobianFunc: func([]numeric.Value) (*mat.Dense, error) { return nil, boom },
	})
	call, err := b.Forward(1.0)
	require.NoError(t, err)

	_, err = call.Backward(numeric.Scalar(1))
	assert.ErrorIs(t, err, boom)
}

func TestBackward_NilJacobian(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(...numeric.Value) (any, error) { return 1.0, nil },
		JacobianFunc: func([]numeric.Value) (*mat.Dense, error) { return nil, nil },
	})
	call, err := b.Forward(0.5)
	require.NoError(t, err)

	_, err = call.Backward(numeric.Scalar(1))
	assert.ErrorIs(t, err, bridge.ErrNilJacobian)
	assert.Equal(t, bridge.BackwardInvoked, call.State())

	_, err = call.Jacobian()
	assert.ErrorIs(t, err, bridge.ErrNilJacobian)
}

func TestApply_NilJacobianFailsBackward(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) { return args[0].Float(), nil },
		JacobianFunc: func([]numeric.Value) (*mat.Dense, error) { return nil, nil },
	})
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := tensor.Scalar(0.5, backend)
	out, err := bridge.ApplyTensor(b, backend, x)
	require.NoError(t, err)

	_, err = autodiff.Backward(out, backend)
	assert.ErrorIs(t, err, bridge.ErrNilJacobian)
}

func TestForward_ConcurrentCalls(t *testing.T) {
	ev := &circuit{}
	b := newBridge(t, ev)

	const n = 16
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			call, err := b.Forward([]float64{float64(i) / n, 0}, 0.0)
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = call.ID()
			grads, err := call.Backward(numeric.Scalar(1))
			if assert.NoError(t, err) {
				assert.InDelta(t, -math.Sin(float64(i)/n), grads[0].Data()[0], 1e-12)
			}
		}()
	}
	wg.Wait()

	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, int32(n), ev.jacobians.Load())
}

func TestApply_EndToEnd(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	phi, err := tensor.FromSlice([]float64{0.5, 0.1}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	theta := tensor.Scalar(0.2, backend)

	out, err := bridge.ApplyTensor(newBridge(t, &circuit{}), backend, phi, theta)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, out.DType())
	assert.Empty(t, out.Shape())
	assert.InDelta(t, 0.8776, out.Item(), 1e-4)

	grads, err := autodiff.Backward(out, backend)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.4794, 0}, grads[phi.Raw()].AsFloat64(), 1e-4)
	require.Contains(t, grads, theta.Raw())
	assert.Empty(t, grads[theta.Raw()].Shape())
	assert.InDelta(t, 0, grads[theta.Raw()].AsFloat64()[0], 1e-12)
}

func TestApply_MixedPlainAndTensorArgs(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	phi, err := tensor.FromSlice([]float64{0.5, 0.1}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	out, err := bridge.ApplyTensor(newBridge(t, &circuit{}), backend, phi, 0.2)
	require.NoError(t, err)

	grads, err := autodiff.Backward(out, backend)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.4794, 0}, grads[phi.Raw()].AsFloat64(), 1e-4)
}

func TestApply_MatrixArgument(t *testing.T) {
	weights := []float64{1, 2, 3, 4, 5, 6}
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) {
			x := args[0].Data()
			var total float64
			for i := range x {
				total += weights[i] * x[i] * x[i]
			}
			return total, nil
		},
		JacobianFunc: func(args []numeric.Value) (*mat.Dense, error) {
			x := args[0].Data()
			row := make([]float64, len(x))
			for i := range x {
				row[i] = 2 * weights[i] * x[i]
			}
			return mat.NewDense(1, len(row), row), nil
		},
	})

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	w, err := tensor.FromSlice([]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	out, err := bridge.ApplyTensor(b, backend, w)
	require.NoError(t, err)
	grads, err := autodiff.Backward(out, backend)
	require.NoError(t, err)

	g := grads[w.Raw()]
	assert.Equal(t, tensor.Shape{2, 3}, g.Shape())
	assert.InDeltaSlice(t, []float64{0.2, 0.8, 1.8, 3.2, 5, 7.2}, g.AsFloat64(), 1e-12)
}

func TestApply_UpstreamChainRule(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{0.3, 0.7}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	phi := x.MulScalar(2).Cos()

	out, err := bridge.ApplyTensor(newBridge(t, &circuit{}), backend, phi, 0.2)
	require.NoError(t, err)
	// Host op after the bridge as well: cost = 3 * circuit(...)
	cost := out.MulScalar(3)

	grads, err := autodiff.Backward(cost, backend)
	require.NoError(t, err)

	// d/dx0 of 3*cos(cos(2*x0)) = 3 * -sin(cos(2x0)) * -sin(2x0) * 2
	x0 := 0.3
	want := 3 * -math.Sin(math.Cos(2*x0)) * -math.Sin(2*x0) * 2
	assert.InDeltaSlice(t, []float64{want, 0}, grads[x.Raw()].AsFloat64(), 1e-12)
}

func TestApply_SameTensorTwiceAccumulates(t *testing.T) {
	b := newBridge(t, bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) { return args[0].Float() * args[1].Float(), nil },
		JacobianFunc: func(args []numeric.Value) (*mat.Dense, error) {
			return mat.NewDense(1, 2, []float64{args[1].Float(), args[0].Float()}), nil
		},
	})

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := tensor.Scalar(3.0, backend)

	out, err := bridge.ApplyTensor(b, backend, x, x)
	require.NoError(t, err)
	grads, err := autodiff.Backward(out, backend)
	require.NoError(t, err)

	assert.InDelta(t, 6, grads[x.Raw()].AsFloat64()[0], 1e-12)
}

func TestApply_Float32ArgsGetFloat32Grads(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	phi, err := tensor.FromSlice([]float32{0.5, 0.1}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	out, err := bridge.Apply(newBridge(t, &circuit{}), backend, phi, 0.2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, out.DType())

	grads, err := autodiff.Backward(tensor.New[float64](out, backend), backend)
	require.NoError(t, err)

	g := grads[phi.Raw()]
	require.Equal(t, tensor.Float32, g.DType())
	assert.InDelta(t, -math.Sin(float64(float32(0.5))), float64(g.AsFloat32()[0]), 1e-6)
}

func TestApply_NestedTensorsAreConstants(t *testing.T) {
	sum := bridge.Funcs{
		EvaluateFunc: func(args ...numeric.Value) (any, error) {
			var total float64
			for _, x := range numeric.Flatten(args) {
				total += x
			}
			return total, nil
		},
		JacobianFunc: func(args []numeric.Value) (*mat.Dense, error) {
			n := len(numeric.Flatten(args))
			row := make([]float64, n)
			for i := range row {
				row[i] = 1
			}
			return mat.NewDense(1, n, row), nil
		},
	}

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	top, err := tensor.FromSlice([]float64{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	nested, err := tensor.FromSlice([]float64{3}, tensor.Shape{1}, backend)
	require.NoError(t, err)

	out, err := bridge.ApplyTensor(newBridge(t, sum), backend, top, []any{nested, 4.0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out.Item())

	grads, err := autodiff.Backward(out, backend)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, grads[top.Raw()].AsFloat64())
	assert.NotContains(t, grads, nested.Raw())
}

func TestApply_SecondBackwardThroughTape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	phi, err := tensor.FromSlice([]float64{0.5, 0.1}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	out, err := bridge.ApplyTensor(newBridge(t, &circuit{}), backend, phi, 0.2)
	require.NoError(t, err)

	_, err = autodiff.Backward(out, backend)
	require.NoError(t, err)

	_, err = autodiff.Backward(out, backend)
	assert.Error(t, err)
}

func TestApply_MarshalErrorRecordsNothing(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	_, err := bridge.Apply(newBridge(t, &circuit{}), backend, "phi")

	var marshalErr *bridge.MarshalError
	require.ErrorAs(t, err, &marshalErr)
	assert.Equal(t, 0, backend.Tape().NumOps())
}

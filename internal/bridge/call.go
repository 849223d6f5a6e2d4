package bridge

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// State is the lifecycle position of a Call.
type State int32

// Call states. BackwardInvoked is terminal, including after a failed backward.
const (
	Idle State = iota
	ForwardInvoked
	BackwardInvoked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ForwardInvoked:
		return "forward-invoked"
	case BackwardInvoked:
		return "backward-invoked"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Call is one forward evaluation together with what its backward pass needs:
// a private copy of the marshalled arguments and the result.
type Call struct {
	id       uuid.UUID
	name     string
	ev       Evaluator
	logger   klog.Logger
	args     []numeric.Value
	result   numeric.Value
	state    atomic.Int32
	jacobian func() (*mat.Dense, error)
}

func newCall(id uuid.UUID, b *Bridge, args []numeric.Value, result numeric.Value) *Call {
	c := &Call{
		id:     id,
		name:   b.name,
		ev:     b.ev,
		logger: b.logger.WithValues("bridge", b.name, "call", id),
		args:   args,
		result: result,
	}
	c.jacobian = sync.OnceValues(func() (*mat.Dense, error) {
		jac, err := c.ev.Jacobian(slices.Clone(c.args))
		if err == nil && jac == nil {
			return nil, ErrNilJacobian
		}
		return jac, err
	})
	c.state.Store(int32(ForwardInvoked))
	return c
}

// ID returns the call identifier used in logs and errors.
func (c *Call) ID() uuid.UUID {
	return c.id
}

// State returns the current lifecycle state.
func (c *Call) State() State {
	return State(c.state.Load())
}

// Result returns the forward result. Scalar results are 0-d arrays.
func (c *Call) Result() numeric.Value {
	return c.result
}

// Args returns the marshalled arguments the evaluator saw.
func (c *Call) Args() []numeric.Value {
	return slices.Clone(c.args)
}

// Jacobian returns the evaluator's Jacobian at the call's arguments. It is
// computed on first use and shared with Backward.
func (c *Call) Jacobian() (*mat.Dense, error) {
	return c.jacobian()
}

// Backward returns the gradient of the result with respect to each argument,
// given the gradient of some downstream quantity with respect to the result.
//
// gradOutput must have exactly the shape of Result. Backward may be called
// once; any later call returns ErrBackwardInvoked.
func (c *Call) Backward(gradOutput numeric.Value) ([]numeric.Value, error) {
	if !c.state.CompareAndSwap(int32(ForwardInvoked), int32(BackwardInvoked)) {
		return nil, fmt.Errorf("bridge %s: call %s: %w", c.name, c.id, ErrBackwardInvoked)
	}

	if err := numeric.CheckGradShape(gradOutput, c.result); err != nil {
		return nil, c.fail(err, "gradient check")
	}

	jac, err := c.Jacobian()
	if err != nil {
		return nil, c.fail(err, "jacobian")
	}
	rows, cols := jac.Dims()
	c.logger.V(4).Info("Jacobian computed", "rows", rows, "cols", cols)

	flat, err := numeric.VJP(gradOutput, jac)
	if err != nil {
		return nil, c.fail(err, "vjp")
	}
	grads, err := numeric.Unflatten(flat, c.args)
	if err != nil {
		return nil, c.fail(err, "unflatten")
	}

	c.logger.V(4).Info("Backward completed", "grads", len(grads))
	return grads, nil
}

func (c *Call) fail(err error, stage string) error {
	c.logger.Error(err, "Backward failed", "stage", stage)
	return fmt.Errorf("bridge %s: call %s: %s: %w", c.name, c.id, stage, err)
}

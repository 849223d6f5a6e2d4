package bridge

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// Bridge wraps one Evaluator. It holds no per-call state and is safe for
// concurrent use whenever the evaluator is.
type Bridge struct {
	ev     Evaluator
	name   string
	logger klog.Logger
}

// New creates a Bridge for ev.
func New(ev Evaluator, opts ...Option) (*Bridge, error) {
	if ev == nil {
		return nil, ErrNilEvaluator
	}
	b := &Bridge{
		ev:     ev,
		name:   "evaluator",
		logger: klog.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the bridge name.
func (b *Bridge) Name() string {
	return b.name
}

// Forward marshals args, evaluates them once and returns the Call that can
// later produce input gradients. The Jacobian is not computed here.
func (b *Bridge) Forward(args ...any) (*Call, error) {
	values, _, err := Marshal(args)
	if err != nil {
		return nil, err
	}
	return b.forward(values)
}

func (b *Bridge) forward(values []numeric.Value) (*Call, error) {
	id := uuid.Must(uuid.NewV7())
	logger := b.logger.WithValues("bridge", b.name, "call", id)

	res, err := b.ev.Evaluate(slices.Clone(values)...)
	if err != nil {
		logger.Error(err, "Evaluation failed")
		return nil, fmt.Errorf("bridge %s: call %s: evaluate: %w", b.name, id, err)
	}
	result, err := normalizeResult(res)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: call %s: %w", b.name, id, err)
	}

	logger.V(4).Info("Forward evaluated", "args", len(values), "resultShape", result.Shape())
	return newCall(id, b, values, result), nil
}

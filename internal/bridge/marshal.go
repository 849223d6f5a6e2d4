package bridge

import (
	"errors"
	"fmt"

	"github.com/born-ml/gradbridge/internal/numeric"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Kind classifies an argument for marshalling.
type Kind int

// Argument kinds.
const (
	Unsupported Kind = iota
	HostTensor
	NumericArray
	NumericScalar
)

func (k Kind) String() string {
	switch k {
	case HostTensor:
		return "host tensor"
	case NumericArray:
		return "numeric array"
	case NumericScalar:
		return "numeric scalar"
	default:
		return "unsupported"
	}
}

// rawer is satisfied by *tensor.Tensor for every dtype and backend.
type rawer interface {
	Raw() *tensor.RawTensor
}

// Binding ties a top-level host tensor argument to its position.
// Only bound arguments receive host gradients.
type Binding struct {
	Index  int
	Tensor *tensor.RawTensor
}

// Classify reports how v would be marshalled.
func Classify(v any) Kind {
	if _, ok := hostRaw(v); ok {
		return HostTensor
	}
	val, err := toValue(v)
	if err != nil {
		return Unsupported
	}
	if val.Kind() == numeric.ScalarKind {
		return NumericScalar
	}
	return NumericArray
}

// Marshal converts host arguments into host-free numeric values.
//
// Host tensors are copied out of the engine (0-d tensors become scalars),
// numbers become scalars, numeric slices become arrays and []any becomes a
// sequence. Host values are never modified. The returned bindings list the
// top-level host tensors in argument order.
func Marshal(args []any) ([]numeric.Value, []Binding, error) {
	values := make([]numeric.Value, len(args))
	var bindings []Binding
	for i, arg := range args {
		v, err := toValue(arg)
		if err != nil {
			return nil, nil, &MarshalError{Index: i, Type: fmt.Sprintf("%T", arg), Reason: err.Error()}
		}
		values[i] = v
		if raw, ok := hostRaw(arg); ok {
			bindings = append(bindings, Binding{Index: i, Tensor: raw})
		}
	}
	return values, bindings, nil
}

func hostRaw(v any) (*tensor.RawTensor, bool) {
	switch x := v.(type) {
	case *tensor.RawTensor:
		return x, x != nil
	case rawer:
		raw := x.Raw()
		return raw, raw != nil
	default:
		return nil, false
	}
}

func toValue(v any) (numeric.Value, error) {
	if raw, ok := hostRaw(v); ok {
		return fromRaw(raw)
	}

	switch x := v.(type) {
	case nil:
		return numeric.Value{}, errors.New("nil argument")
	case numeric.Value:
		return x.Clone(), nil
	case float64:
		return numeric.Scalar(x), nil
	case float32:
		return numeric.Scalar(float64(x)), nil
	case int:
		return numeric.Scalar(float64(x)), nil
	case int32:
		return numeric.Scalar(float64(x)), nil
	case int64:
		return numeric.Scalar(float64(x)), nil
	case []float64:
		return numeric.Vector(x...), nil
	case []float32:
		data := make([]float64, len(x))
		for i, f := range x {
			data[i] = float64(f)
		}
		return numeric.Vector(data...), nil
	case [][]float64:
		return numeric.FromRows(x)
	case []any:
		items := make([]numeric.Value, len(x))
		for i, item := range x {
			val, err := toValue(item)
			if err != nil {
				return numeric.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			items[i] = val
		}
		return numeric.Sequence(items...), nil
	case rawer, *tensor.RawTensor:
		return numeric.Value{}, errors.New("nil tensor")
	default:
		return numeric.Value{}, errors.New("type is not numeric")
	}
}

func fromRaw(raw *tensor.RawTensor) (numeric.Value, error) {
	data := raw.Float64s()
	shape := raw.Shape()
	if len(shape) == 0 {
		return numeric.Scalar(data[0]), nil
	}
	return numeric.NewArray(shape, data)
}

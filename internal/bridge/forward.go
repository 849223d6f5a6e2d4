package bridge

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// normalizeResult converts what an evaluator returned into an array Value.
// Numbers become 0-d arrays so the result always has a shape.
func normalizeResult(res any) (numeric.Value, error) {
	switch x := res.(type) {
	case numeric.Value:
		switch x.Kind() {
		case numeric.ArrayKind:
			return x, nil
		case numeric.ScalarKind:
			return numeric.MustArray(nil, []float64{x.Float()}), nil
		}
	case float64:
		return numeric.MustArray(nil, []float64{x}), nil
	case float32:
		return numeric.MustArray(nil, []float64{float64(x)}), nil
	case int:
		return numeric.MustArray(nil, []float64{float64(x)}), nil
	case int32:
		return numeric.MustArray(nil, []float64{float64(x)}), nil
	case int64:
		return numeric.MustArray(nil, []float64{float64(x)}), nil
	case []float64:
		return numeric.Vector(x...), nil
	case [][]float64:
		v, err := numeric.FromRows(x)
		if err != nil {
			return numeric.Value{}, fmt.Errorf("%w: %w", ErrUnsupportedResult, err)
		}
		return v, nil
	}
	return numeric.Value{}, fmt.Errorf("%w: %T", ErrUnsupportedResult, res)
}

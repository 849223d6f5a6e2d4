package casefile

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/numeric"
)

// toValue converts a decoded YAML node into a numeric Value.
//
// A number is a scalar, a list of numbers is a vector, and a non-empty list of
// equal-length number lists is a matrix. Any other list becomes a sequence of
// its converted items.
func toValue(v any) (numeric.Value, error) {
	if f, ok := number(v); ok {
		return numeric.Scalar(f), nil
	}

	items, ok := v.([]any)
	if !ok {
		return numeric.Value{}, fmt.Errorf("unsupported value %v (%T)", v, v)
	}

	if vec, ok := numbers(items); ok {
		return numeric.Vector(vec...), nil
	}
	if rows, ok := matrix(items); ok {
		return numeric.FromRows(rows)
	}

	values := make([]numeric.Value, len(items))
	for i, item := range items {
		val, err := toValue(item)
		if err != nil {
			return numeric.Value{}, fmt.Errorf("[%d]: %w", i, err)
		}
		values[i] = val
	}
	return numeric.Sequence(values...), nil
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func numbers(items []any) ([]float64, bool) {
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := number(item)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func matrix(items []any) ([][]float64, bool) {
	if len(items) == 0 {
		return nil, false
	}
	rows := make([][]float64, len(items))
	for i, item := range items {
		row, ok := item.([]any)
		if !ok || len(row) == 0 {
			return nil, false
		}
		rows[i], ok = numbers(row)
		if !ok || len(rows[i]) != len(rows[0]) {
			return nil, false
		}
	}
	return rows, true
}

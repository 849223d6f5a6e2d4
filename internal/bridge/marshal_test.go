package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/numeric"
	"github.com/born-ml/gradbridge/internal/tensor"
)

func TestClassify(t *testing.T) {
	backend := cpu.New()
	vec, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	var nilRaw *tensor.RawTensor

	tests := []struct {
		name string
		arg  any
		want bridge.Kind
	}{
		{"tensor", vec, bridge.HostTensor},
		{"raw tensor", vec.Raw(), bridge.HostTensor},
		{"float64", 0.5, bridge.NumericScalar},
		{"int", 3, bridge.NumericScalar},
		{"float32 slice", []float32{1}, bridge.NumericArray},
		{"matrix", [][]float64{{1, 2}, {3, 4}}, bridge.NumericArray},
		{"sequence", []any{[]float64{1}, 2.0}, bridge.NumericArray},
		{"numeric scalar", numeric.Scalar(1), bridge.NumericScalar},
		{"numeric array", numeric.Vector(1, 2), bridge.NumericArray},
		{"string", "x", bridge.Unsupported},
		{"map", map[string]float64{"a": 1}, bridge.Unsupported},
		{"ragged", [][]float64{{1}, {2, 3}}, bridge.Unsupported},
		{"nil", nil, bridge.Unsupported},
		{"nil raw", nilRaw, bridge.Unsupported},
		{"bool", true, bridge.Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bridge.Classify(tt.arg))
		})
	}
}

func TestMarshal(t *testing.T) {
	backend := cpu.New()
	phi, err := tensor.FromSlice([]float64{0.5, 0.1}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	theta := tensor.Scalar(0.2, backend)

	values, bindings, err := bridge.Marshal([]any{phi, 3, theta, []any{phi, 1.0}})
	require.NoError(t, err)

	require.Len(t, values, 4)
	assert.True(t, values[0].Equal(numeric.Vector(0.5, 0.1)))
	assert.True(t, values[1].Equal(numeric.Scalar(3)))
	assert.True(t, values[2].Equal(numeric.Scalar(0.2)), "0-d tensors collapse to scalars")
	assert.True(t, values[3].Equal(numeric.Sequence(numeric.Vector(0.5, 0.1), numeric.Scalar(1))))

	require.Len(t, bindings, 2)
	assert.Equal(t, 0, bindings[0].Index)
	assert.Same(t, phi.Raw(), bindings[0].Tensor)
	assert.Equal(t, 2, bindings[1].Index)
	assert.Same(t, theta.Raw(), bindings[1].Tensor)
}

func TestMarshal_DoesNotAliasHostData(t *testing.T) {
	backend := cpu.New()
	phi, err := tensor.FromSlice([]float64{0.5, 0.1}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	plain := []float64{1, 2}

	values, _, err := bridge.Marshal([]any{phi, plain})
	require.NoError(t, err)

	phi.Data()[0] = 99
	plain[0] = 99
	assert.Equal(t, []float64{0.5, 0.1}, values[0].Data())
	assert.Equal(t, []float64{1, 2}, values[1].Data())
}

func TestMarshal_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []any
		index  int
		reason string
	}{
		{"string", []any{1.0, "phi"}, 1, "not numeric"},
		{"ragged", []any{[][]float64{{1, 2}, {3}}}, 0, "ragged"},
		{"nil", []any{nil}, 0, "nil argument"},
		{"nested", []any{[]any{1.0, struct{}{}}}, 0, "element 1"},
		{"nil raw tensor", []any{1.0, (*tensor.RawTensor)(nil)}, 1, "nil tensor"},
		{"nil tensor", []any{(*tensor.Tensor[float64, *cpu.CPUBackend])(nil)}, 0, "nil tensor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := bridge.Marshal(tt.args)

			var marshalErr *bridge.MarshalError
			require.ErrorAs(t, err, &marshalErr)
			assert.Equal(t, tt.index, marshalErr.Index)
			assert.Contains(t, marshalErr.Reason, tt.reason)
		})
	}
}

func TestForward_ReportsMarshalError(t *testing.T) {
	ev := &circuit{}
	_, err := newBridge(t, ev).Forward(map[string]float64{"phi": 1})

	var marshalErr *bridge.MarshalError
	require.ErrorAs(t, err, &marshalErr)
	assert.Equal(t, "map[string]float64", marshalErr.Type)
	assert.Equal(t, int32(0), ev.evaluations.Load())
}

package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/gradbridge/internal/tensor"
)

func raw64(t *testing.T, shape tensor.Shape, values ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat64s(values, shape, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("FromFloat64s: %v", err)
	}
	return r
}

func float64SliceEqual(a, b []float64) bool {
	const epsilon = 1e-12
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > epsilon {
			return false
		}
	}
	return true
}

// TestCPUBackend_New tests backend creation.
func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Expected device CPU, got %v", backend.Device())
	}
}

// TestCPUBackend_Binary tests element-wise ops with equal shapes and scalars.
func TestCPUBackend_Binary(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := raw64(t, tensor.Shape{2, 2}, 10, 20, 30, 40)
	s := raw64(t, tensor.Shape{}, 2)

	t.Run("Add", func(t *testing.T) {
		got := backend.Add(a, b).AsFloat64()
		if !float64SliceEqual(got, []float64{11, 22, 33, 44}) {
			t.Errorf("Add = %v", got)
		}
	})

	t.Run("SubScalarLeft", func(t *testing.T) {
		out := backend.Sub(s, a)
		if !out.Shape().Equal(tensor.Shape{2, 2}) {
			t.Fatalf("Sub shape = %v", out.Shape())
		}
		if got := out.AsFloat64(); !float64SliceEqual(got, []float64{1, 0, -1, -2}) {
			t.Errorf("Sub = %v", got)
		}
	})

	t.Run("MulScalarRight", func(t *testing.T) {
		got := backend.Mul(a, s).AsFloat64()
		if !float64SliceEqual(got, []float64{2, 4, 6, 8}) {
			t.Errorf("Mul = %v", got)
		}
	})

	t.Run("InputsUntouched", func(t *testing.T) {
		if !float64SliceEqual(a.AsFloat64(), []float64{1, 2, 3, 4}) {
			t.Errorf("input mutated: %v", a.AsFloat64())
		}
	})
}

func TestCPUBackend_BinaryPanics(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{3}, 1, 2, 3)
	b := raw64(t, tensor.Shape{2}, 1, 2)

	defer func() {
		if recover() == nil {
			t.Error("Add with incompatible shapes should panic")
		}
	}()
	backend.Add(a, b)
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := raw64(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)

	got := backend.MatMul(a, b)
	if !got.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("MatMul shape = %v", got.Shape())
	}
	if !float64SliceEqual(got.AsFloat64(), []float64{58, 64, 139, 154}) {
		t.Errorf("MatMul = %v", got.AsFloat64())
	}

	a32 := backend.Cast(a, tensor.Float32)
	b32 := backend.Cast(b, tensor.Float32)
	if got := backend.MatMul(a32, b32).Float64s(); !float64SliceEqual(got, []float64{58, 64, 139, 154}) {
		t.Errorf("MatMul float32 = %v", got)
	}
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	got := backend.Transpose(a)
	if !got.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Transpose shape = %v", got.Shape())
	}
	if !float64SliceEqual(got.AsFloat64(), []float64{1, 4, 2, 5, 3, 6}) {
		t.Errorf("Transpose = %v", got.AsFloat64())
	}

	x := raw64(t, tensor.Shape{2, 1, 3}, 1, 2, 3, 4, 5, 6)
	p := backend.Transpose(x, 2, 0, 1)
	if !p.Shape().Equal(tensor.Shape{3, 2, 1}) {
		t.Fatalf("Transpose(2,0,1) shape = %v", p.Shape())
	}
	if !float64SliceEqual(p.AsFloat64(), []float64{1, 4, 2, 5, 3, 6}) {
		t.Errorf("Transpose(2,0,1) = %v", p.AsFloat64())
	}
}

func TestCPUBackend_ReshapeSumMath(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{2, 2}, 0, math.Pi/2, math.Pi, 1)

	r := backend.Reshape(a, tensor.Shape{4})
	if !r.Shape().Equal(tensor.Shape{4}) {
		t.Errorf("Reshape shape = %v", r.Shape())
	}

	sum := backend.Sum(raw64(t, tensor.Shape{3}, 1, 2, 3))
	if len(sum.Shape()) != 0 || sum.AsFloat64()[0] != 6 {
		t.Errorf("Sum = %v shape %v", sum.AsFloat64(), sum.Shape())
	}

	cos := backend.Cos(a).AsFloat64()
	if math.Abs(cos[0]-1) > 1e-12 || math.Abs(cos[2]+1) > 1e-12 {
		t.Errorf("Cos = %v", cos)
	}
	sin := backend.Sin(a).AsFloat64()
	if math.Abs(sin[1]-1) > 1e-12 {
		t.Errorf("Sin = %v", sin)
	}
	exp := backend.Exp(raw64(t, tensor.Shape{1}, 1)).AsFloat64()
	if math.Abs(exp[0]-math.E) > 1e-12 {
		t.Errorf("Exp = %v", exp)
	}

	scaled := backend.AddScalar(backend.MulScalar(raw64(t, tensor.Shape{2}, 1, 2), 3), 1).AsFloat64()
	if !float64SliceEqual(scaled, []float64{4, 7}) {
		t.Errorf("MulScalar/AddScalar = %v", scaled)
	}
}

package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	order := make([]int, 0, 5)
	For(5, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, v := range order {
		if v != i {
			t.Fatalf("sequential order = %v, want 0..4", order)
		}
	}
}

func TestFor_BoundedWorkers(t *testing.T) {
	cfg := WithWorkers(2)

	var running, peak int64
	For(20, func(_ int) {
		cur := atomic.AddInt64(&running, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
				break
			}
		}
		atomic.AddInt64(&running, -1)
	}, cfg)

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestWithWorkers(t *testing.T) {
	if got := WithWorkers(0); got != DefaultConfig() {
		t.Errorf("WithWorkers(0) = %+v, want DefaultConfig", got)
	}
	if got := WithWorkers(1); got.Enabled {
		t.Errorf("WithWorkers(1) should be sequential, got %+v", got)
	}
}

func TestMap_OrderAndErrors(t *testing.T) {
	errOdd := errors.New("odd")

	results, err := Map(6, func(i int) (int, error) {
		if i%2 == 1 {
			return 0, errOdd
		}
		return i * i, nil
	}, WithWorkers(3))

	if !errors.Is(err, errOdd) {
		t.Fatalf("Map error = %v, want errOdd", err)
	}
	want := []int{0, 0, 4, 0, 16, 0}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %d, want %d", i, results[i], want[i])
		}
	}
}

func TestMap_NoJobs(t *testing.T) {
	results, err := Map(0, func(i int) (string, error) { return "", nil }, DefaultConfig())
	if err != nil || len(results) != 0 {
		t.Errorf("Map(0) = %v, %v; want empty, nil", results, err)
	}
}

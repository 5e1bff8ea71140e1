package kernels

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestSoftmaxSumsToOne(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	SoftmaxInplace(x, len(x))

	var sum float32
	for _, v := range x {
		sum += v
	}
	if !approxEqual(sum, 1, 1e-6) {
		t.Fatalf("sum = %v, want 1", sum)
	}
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{101, 102, 103}
	SoftmaxInplace(a, len(a))
	SoftmaxInplace(b, len(b))

	for i := range a {
		if !approxEqual(a[i], b[i], 1e-5) {
			t.Fatalf("softmax not shift invariant at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	var x []float32
	SoftmaxInplace(x, 0) // must not panic
}

func TestRMSNormIdentityWeight(t *testing.T) {
	x := []float32{0.1, -0.2, 0.3, -0.4}
	weight := []float32{1, 1, 1, 1}
	out := make([]float32, len(x))
	eps := float32(1e-5)

	RMSNorm(x, weight, eps, out)

	var sumSq float64
	for _, v := range x {
		sumSq += float64(v) * float64(v)
	}
	meanSq := sumSq / float64(len(x))
	invRMS := float32(1.0 / math.Sqrt(meanSq+float64(eps)))

	for i := range x {
		want := x[i] * invRMS
		if !approxEqual(out[i], want, 1e-6) {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestMatVecColMajor(t *testing.T) {
	// W is [2,3] column-major: columns are [1,2], [3,4], [5,6]
	w := []float32{1, 2, 3, 4, 5, 6}
	x := []float32{1, 1}
	y := make([]float32, 3)

	MatVecColMajor(w, 2, 3, x, y)

	want := []float32{3, 7, 11}
	for i := range want {
		if y[i] != want[i] {
			t.Fatalf("y[%d] = %v, want %v", i, y[i], want[i])
		}
	}
}

func TestRoPEIdentityAtPositionZero(t *testing.T) {
	cache, err := NewRoPECache(4, 10000)
	if err != nil {
		t.Fatalf("NewRoPECache() error = %v", err)
	}

	x := []float32{1, 2, 3, 4}
	want := append([]float32{}, x...)

	if err := cache.ApplyInplace(x, 1, 4, 0); err != nil {
		t.Fatalf("ApplyInplace() error = %v", err)
	}
	for i := range x {
		if !approxEqual(x[i], want[i], 1e-6) {
			t.Fatalf("x[%d] = %v, want %v (identity at pos 0)", i, x[i], want[i])
		}
	}
}

func TestRoPEPreservesPairNorm(t *testing.T) {
	cache, err := NewRoPECache(4, 10000)
	if err != nil {
		t.Fatalf("NewRoPECache() error = %v", err)
	}

	x := []float32{0.5, -0.3, 1.2, 0.8}
	normBefore := x[0]*x[0] + x[1]*x[1]

	if err := cache.ApplyInplace(x, 1, 4, 7); err != nil {
		t.Fatalf("ApplyInplace() error = %v", err)
	}
	normAfter := x[0]*x[0] + x[1]*x[1]

	if !approxEqual(normBefore, normAfter, 1e-4) {
		t.Fatalf("pair norm changed: before=%v after=%v", normBefore, normAfter)
	}
}

func TestRoPERejectsOddDim(t *testing.T) {
	if _, err := NewRoPECache(3, 10000); err == nil {
		t.Fatal("expected error for odd rope_dim")
	}
}

func TestDotAccumulatesInFloat64(t *testing.T) {
	// 1e8 + 1 rounds back to 1e8 in float32, so float32 accumulation
	// would return 0 here; float64 accumulation keeps the 1.
	a := []float32{1e8, 1, -1e8}
	b := []float32{1, 1, 1}
	got := Dot(a, b)
	want := float32(1)
	if got != want {
		t.Fatalf("Dot() = %v, want %v", got, want)
	}
}

func TestSiLU(t *testing.T) {
	got := SiLU(0)
	if !approxEqual(got, 0, 1e-6) {
		t.Fatalf("SiLU(0) = %v, want 0", got)
	}
}

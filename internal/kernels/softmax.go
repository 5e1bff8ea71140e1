package kernels

import "math"

// SoftmaxInplace overwrites x[:n] with softmax(x[:n]): subtract the max for
// numerical stability, exponentiate, then divide by the sum. n == 0 is a
// no-op; a zero sum (e.g. every input -Inf) leaves all outputs at zero
// rather than dividing by zero.
func SoftmaxInplace(x []float32, n int) {
	if n == 0 {
		return
	}
	x = x[:n]

	maxV := float32(math.Inf(-1))
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(float64(maxV), -1) {
		// every input is -Inf: v - maxV would be NaN, so emit zeros directly
		SetZero(x)
		return
	}

	var sum float64
	for i, v := range x {
		e := float32(math.Exp(float64(v - maxV)))
		x[i] = e
		sum += float64(e)
	}

	var invSum float32
	if sum > 0 {
		invSum = float32(1.0 / sum)
	}
	for i := range x {
		x[i] *= invSum
	}
}

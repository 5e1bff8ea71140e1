package kernels

import "math"

// RMSNorm writes out[i] = x[i] * invRMS * weight[i], where invRMS is the
// inverse root-mean-square of x computed with float64 accumulation:
// invRMS = 1 / sqrt(mean(x²) + eps).
//
// x, weight, and out must all have the same length.
func RMSNorm(x, weight []float32, eps float32, out []float32) {
	var sumSq float64
	for _, v := range x {
		sumSq += float64(v) * float64(v)
	}
	meanSq := sumSq / float64(len(x))
	invRMS := float32(1.0 / math.Sqrt(meanSq+float64(eps)))

	for i, v := range x {
		out[i] = v * invRMS * weight[i]
	}
}

// Package kernels implements the numeric building blocks of one
// transformer-block forward pass: dot products, matrix-vector products,
// RMS normalization, SiLU, softmax, and RoPE rotation.
package kernels

import "math"

// Dot computes the dot product of a and b, accumulating in float64 and
// returning a float32. a and b must have equal length.
func Dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// AddInplace adds src into dst element-wise: dst[i] += src[i].
func AddInplace(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// SetZero zeroes every element of x.
func SetZero(x []float32) {
	for i := range x {
		x[i] = 0
	}
}

// SiLU computes x / (1 + exp(-x)), the activation used by the SwiGLU gate.
func SiLU(x float32) float32 {
	return x / (1 + float32(math.Exp(float64(-x))))
}

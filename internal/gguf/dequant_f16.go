package gguf

import "github.com/x448/float16"

// decodeF16 converts one IEEE 754 half-precision value to float32,
// including the edge cases the reference decoder documents: signed
// zeros, subnormals, and ±Inf/NaN propagation.
func decodeF16(h uint16) float32 {
	return float16.Frombits(h).Float32()
}

// DequantizeF16 converts a row of raw F16 bytes into dst, one value per
// element. len(dst) must already equal len(src)/2.
func DequantizeF16(src []byte, dst []float32) {
	for i := range dst {
		bits := uint16(src[2*i]) | uint16(src[2*i+1])<<8
		dst[i] = decodeF16(bits)
	}
}

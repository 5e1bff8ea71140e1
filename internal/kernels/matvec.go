package kernels

// MatVecColMajor computes y = Wᵀx for a matrix W stored as [inDim, outDim]
// with columns contiguous: column j begins at offset j*inDim. Accumulation
// is in float64.
//
// len(x) must equal inDim, len(y) must equal outDim, and len(w) must equal
// inDim*outDim.
func MatVecColMajor(w []float32, inDim, outDim int, x, y []float32) {
	for j := 0; j < outDim; j++ {
		col := w[j*inDim : (j+1)*inDim]
		var sum float64
		for i := 0; i < inDim; i++ {
			sum += float64(x[i]) * float64(col[i])
		}
		y[j] = float32(sum)
	}
}

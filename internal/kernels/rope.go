package kernels

import (
	"fmt"
	"math"

	"llamart/internal/gguf"
)

// RoPECache holds the precomputed inverse-frequency table for rotary
// position embeddings: inv_freq[i] = theta^(-2i/ropeDim).
type RoPECache struct {
	ropeDim int
	theta   float32
	invFreq []float32
}

// NewRoPECache builds a cache for the given rotation width and base
// frequency. ropeDim must be even and non-zero, and theta must be
// positive.
func NewRoPECache(ropeDim int, theta float32) (*RoPECache, error) {
	if ropeDim == 0 || ropeDim%2 != 0 {
		return nil, fmt.Errorf("rope_dim=%d: %w", ropeDim, gguf.ErrInvalidDim)
	}
	if !(theta > 0) {
		return nil, fmt.Errorf("rope theta=%v must be positive: %w", theta, gguf.ErrInvalidDim)
	}

	c := &RoPECache{ropeDim: ropeDim, theta: theta, invFreq: make([]float32, ropeDim/2)}
	for i := range c.invFreq {
		exponent := 2.0 * float64(i) / float64(ropeDim)
		c.invFreq[i] = float32(math.Pow(float64(theta), -exponent))
	}
	return c, nil
}

// RopeDim returns the number of leading dimensions per head that rotation
// is applied to.
func (c *RoPECache) RopeDim() int { return c.ropeDim }

// ApplyInplace rotates the first ropeDim components of each of nHeads head
// vectors packed contiguously in x (each headDim wide), at absolute
// position pos.
func (c *RoPECache) ApplyInplace(x []float32, nHeads, headDim, pos int) error {
	if c.ropeDim > headDim {
		return fmt.Errorf("rope_dim=%d > head_dim=%d: %w", c.ropeDim, headDim, gguf.ErrInvalidDim)
	}

	for h := 0; h < nHeads; h++ {
		head := x[h*headDim : (h+1)*headDim]
		for i := 0; i < c.ropeDim/2; i++ {
			angle := float64(pos) * float64(c.invFreq[i])
			cos := float32(math.Cos(angle))
			sin := float32(math.Sin(angle))

			idx0, idx1 := 2*i, 2*i+1
			v0, v1 := head[idx0], head[idx1]
			head[idx0] = v0*cos - v1*sin
			head[idx1] = v0*sin + v1*cos
		}
	}
	return nil
}

package runtime

import (
	"fmt"

	"llamart/internal/gguf"
)

// KVCacheLayer holds one layer's key/value cache across positions, laid
// out [kv_head][pos][head_dim] so a single head's history at any position
// is contiguous.
type KVCacheLayer struct {
	nKVHeads int
	maxSeq   int
	headDim  int
	k        []float32
	v        []float32
}

// NewKVCacheLayer allocates a cache sized for nKVHeads heads, each able to
// hold maxSeq positions of headDim-wide keys and values.
func NewKVCacheLayer(nKVHeads, maxSeq, headDim int) *KVCacheLayer {
	size := nKVHeads * maxSeq * headDim
	return &KVCacheLayer{
		nKVHeads: nKVHeads,
		maxSeq:   maxSeq,
		headDim:  headDim,
		k:        make([]float32, size),
		v:        make([]float32, size),
	}
}

func (c *KVCacheLayer) offset(kvHead, pos int) int {
	return (kvHead*c.maxSeq + pos) * c.headDim
}

// KAt returns the headDim-wide key slice for kvHead at pos.
func (c *KVCacheLayer) KAt(kvHead, pos int) []float32 {
	off := c.offset(kvHead, pos)
	return c.k[off : off+c.headDim]
}

// VAt returns the headDim-wide value slice for kvHead at pos.
func (c *KVCacheLayer) VAt(kvHead, pos int) []float32 {
	off := c.offset(kvHead, pos)
	return c.v[off : off+c.headDim]
}

// Write stores k and v (each headDim wide per head, nKVHeads heads packed
// contiguously) at pos. pos must be < maxSeq.
func (c *KVCacheLayer) Write(pos int, k, v []float32) error {
	if pos < 0 || pos >= c.maxSeq {
		return fmt.Errorf("pos=%d outside [0,%d): %w", pos, c.maxSeq, gguf.ErrOutOfRange)
	}
	for h := 0; h < c.nKVHeads; h++ {
		copy(c.KAt(h, pos), k[h*c.headDim:(h+1)*c.headDim])
		copy(c.VAt(h, pos), v[h*c.headDim:(h+1)*c.headDim])
	}
	return nil
}

package runtime

import (
	"fmt"
	"math"

	"llamart/internal/gguf"
	"llamart/internal/kernels"
)

// Engine executes one transformer block's forward step, reusing a fixed
// set of scratch buffers sized from its ModelConfig across calls.
type Engine struct {
	cfg  ModelConfig
	rope *kernels.RoPECache

	xNorm   []float32
	q       []float32
	k       []float32
	v       []float32
	attnOut []float32
	ffnGate []float32
	ffnUp   []float32
	scores  []float32
}

// NewEngine validates cfg and allocates an Engine's scratch buffers.
// RopeDim defaults to HeadDim and RopeTheta defaults to 10000 when unset.
func NewEngine(cfg ModelConfig) (*Engine, error) {
	if cfg.NHeads == 0 || cfg.NKVHeads == 0 || cfg.HeadDim == 0 || cfg.DModel == 0 {
		return nil, fmt.Errorf("incomplete model config: %w", gguf.ErrInvalidDim)
	}
	if cfg.NHeads%cfg.NKVHeads != 0 {
		return nil, fmt.Errorf("n_heads=%d not a multiple of n_kv_heads=%d: %w", cfg.NHeads, cfg.NKVHeads, gguf.ErrInvalidDim)
	}

	ropeDim := cfg.RopeDim
	if ropeDim == 0 {
		ropeDim = cfg.HeadDim
	}
	theta := cfg.RopeTheta
	if theta == 0 {
		theta = 10000
	}

	rope, err := kernels.NewRoPECache(int(ropeDim), theta)
	if err != nil {
		return nil, err
	}

	maxSeq := cfg.ContextLength
	if maxSeq == 0 {
		maxSeq = 2048
	}

	return &Engine{
		cfg:     cfg,
		rope:    rope,
		xNorm:   make([]float32, cfg.DModel),
		q:       make([]float32, cfg.DModel),
		k:       make([]float32, cfg.KVDim),
		v:       make([]float32, cfg.KVDim),
		attnOut: make([]float32, cfg.DModel),
		ffnGate: make([]float32, cfg.FFNHiddenDim),
		ffnUp:   make([]float32, cfg.FFNHiddenDim),
		scores:  make([]float32, maxSeq),
	}, nil
}

// Step advances the residual stream x (length DModel) through one
// transformer block at absolute position pos, reading and writing cache
// as it goes. x is updated in place.
func (e *Engine) Step(layer LayerWeights, cache *KVCacheLayer, pos int, x []float32) error {
	if pos < 0 || pos >= len(e.scores) {
		return fmt.Errorf("pos=%d outside scratch capacity %d: %w", pos, len(e.scores), gguf.ErrOutOfRange)
	}
	cfg := e.cfg
	headDim := int(cfg.HeadDim)
	nHeads := int(cfg.NHeads)
	nKVHeads := int(cfg.NKVHeads)
	group := nHeads / nKVHeads

	// 1. pre-attention norm
	kernels.RMSNorm(x, layer.AttnNorm.Data, cfg.RMSEpsilon, e.xNorm)

	// 2. project to Q, K, V
	kernels.MatVecColMajor(layer.AttnQ.Data, int(cfg.DModel), int(cfg.DModel), e.xNorm, e.q)
	kernels.MatVecColMajor(layer.AttnK.Data, int(cfg.DModel), int(cfg.KVDim), e.xNorm, e.k)
	kernels.MatVecColMajor(layer.AttnV.Data, int(cfg.DModel), int(cfg.KVDim), e.xNorm, e.v)

	// 3. rotate Q and K
	if err := e.rope.ApplyInplace(e.q, nHeads, headDim, pos); err != nil {
		return err
	}
	if err := e.rope.ApplyInplace(e.k, nKVHeads, headDim, pos); err != nil {
		return err
	}

	// 4. write this position's K/V into the cache
	if err := cache.Write(pos, e.k, e.v); err != nil {
		return err
	}

	// 5. causal attention per query head, grouped across KV heads
	kernels.SetZero(e.attnOut)
	invSqrtHeadDim := float32(1.0 / math.Sqrt(float64(headDim)))
	for h := 0; h < nHeads; h++ {
		kvHead := h / group
		qh := e.q[h*headDim : (h+1)*headDim]

		for t := 0; t <= pos; t++ {
			kt := cache.KAt(kvHead, t)
			e.scores[t] = kernels.Dot(qh, kt) * invSqrtHeadDim
		}
		kernels.SoftmaxInplace(e.scores, pos+1)

		out := e.attnOut[h*headDim : (h+1)*headDim]
		for t := 0; t <= pos; t++ {
			w := e.scores[t]
			vt := cache.VAt(kvHead, t)
			for d := 0; d < headDim; d++ {
				out[d] += w * vt[d]
			}
		}
	}

	// 6. output projection, residual add
	kernels.MatVecColMajor(layer.AttnOutput.Data, int(cfg.DModel), int(cfg.DModel), e.attnOut, e.xNorm)
	kernels.AddInplace(x, e.xNorm)

	// 7. pre-FFN norm
	kernels.RMSNorm(x, layer.FFNNorm.Data, cfg.RMSEpsilon, e.xNorm)

	// 8. SwiGLU feed-forward, residual add
	kernels.MatVecColMajor(layer.FFNGate.Data, int(cfg.DModel), int(cfg.FFNHiddenDim), e.xNorm, e.ffnGate)
	kernels.MatVecColMajor(layer.FFNUp.Data, int(cfg.DModel), int(cfg.FFNHiddenDim), e.xNorm, e.ffnUp)
	for i := range e.ffnGate {
		e.ffnGate[i] = kernels.SiLU(e.ffnGate[i]) * e.ffnUp[i]
	}
	ffnOut := make([]float32, cfg.DModel)
	kernels.MatVecColMajor(layer.FFNDown.Data, int(cfg.FFNHiddenDim), int(cfg.DModel), e.ffnGate, ffnOut)
	kernels.AddInplace(x, ffnOut)

	return nil
}

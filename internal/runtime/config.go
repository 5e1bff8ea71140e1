// Package runtime loads GGUF weight tensors into owned float32 storage
// and executes one transformer-block forward pass over them.
package runtime

import (
	"fmt"

	"llamart/internal/gguf"
)

// ModelConfig is the shape/hyperparameter summary derived from a GGUF
// file's metadata, needed to interpret its tensors as one LLaMA-family
// transformer block.
type ModelConfig struct {
	NLayers       uint32
	DModel        uint32
	NHeads        uint32
	NKVHeads      uint32
	HeadDim       uint32
	KVDim         uint32
	FFNHiddenDim  uint32
	VocabSize     uint32
	ContextLength uint32
	RopeDim       uint32
	RopeTheta     float32
	RMSEpsilon    float32
}

// deriveConfig builds a ModelConfig from the loader's parsed metadata. It
// gates on general.architecture when the key is present: any value other
// than "llama" fails loudly rather than silently misinterpreting the
// llama.* keys of a different architecture's file.
func deriveConfig(l *Loader) (ModelConfig, error) {
	if arch, ok := l.kvString("general.architecture"); ok && arch != "llama" {
		return ModelConfig{}, fmt.Errorf("general.architecture=%q: %w", arch, gguf.ErrUnsupportedArchitecture)
	}

	cfg := ModelConfig{
		NLayers:       l.kvU32("llama.block_count"),
		DModel:        l.kvU32("llama.embedding_length"),
		NHeads:        l.kvU32("llama.attention.head_count"),
		NKVHeads:      l.kvU32("llama.attention.head_count_kv"),
		FFNHiddenDim:  l.kvU32("llama.feed_forward_length"),
		ContextLength: l.kvU32("llama.context_length"),
		RopeDim:       l.kvU32("llama.rope.dimension_count"),
		RopeTheta:     l.kvF32("llama.rope.freq_base"),
		RMSEpsilon:    l.kvF32("llama.attention.layer_norm_rms_epsilon"),
	}

	if cfg.NHeads != 0 && cfg.DModel%cfg.NHeads == 0 {
		cfg.HeadDim = cfg.DModel / cfg.NHeads
	}
	cfg.KVDim = cfg.NKVHeads * cfg.HeadDim

	if t, ok := l.file.Tensor("token_embd.weight"); ok && len(t.Dims) == 2 {
		cfg.VocabSize = uint32(t.Dims[1])
	}

	return cfg, nil
}

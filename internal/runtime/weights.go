package runtime

import (
	"encoding/binary"
	"fmt"
	"math"

	"llamart/internal/gguf"
)

// TensorF32 is a dequantized tensor: every storage format the loader
// understands (F32, F16, Q4_K, Q6_K) is converted to a flat float32 slice
// on load, so every downstream kernel only ever sees float32.
//
// Go's allocator gives no portable control over alignment finer than the
// pointer size; the kernels in this package are plain scalar loops with
// no SIMD alignment requirement, so a plain slice is sufficient here.
type TensorF32 struct {
	Dims  []uint64
	Data  []float32
	Numel int
}

// GlobalWeights holds the tensors shared across all layers.
type GlobalWeights struct {
	TokenEmbd  TensorF32
	OutputNorm *TensorF32
	Output     *TensorF32
}

// LayerWeights holds one transformer block's tensors.
type LayerWeights struct {
	Index      int
	AttnNorm   TensorF32
	AttnQ      TensorF32
	AttnK      TensorF32
	AttnV      TensorF32
	AttnOutput TensorF32
	FFNNorm    TensorF32
	FFNGate    TensorF32
	FFNUp      TensorF32
	FFNDown    TensorF32
}

// Weights is a fully loaded model: its derived config, global tensors, and
// per-layer tensors.
type Weights struct {
	Config ModelConfig
	Global GlobalWeights
	Layers []LayerWeights
}

// LoadTensorAsF32 dequantizes the named tensor into a fresh float32 slice,
// dispatching on its ggml_type. Q4_K and Q6_K tensors are dequantized row
// by row; each row's length (the tensor's innermost dimension) must be a
// multiple of 256.
func LoadTensorAsF32(l *Loader, name string) (TensorF32, error) {
	tv, err := l.Tensor(name)
	if err != nil {
		return TensorF32{}, err
	}

	numel := 1
	for _, d := range tv.Dims {
		numel *= int(d)
	}
	out := make([]float32, numel)

	switch tv.GGMLType {
	case gguf.GGMLTypeF32:
		if len(tv.Data) < numel*4 {
			return TensorF32{}, fmt.Errorf("tensor %q: %w", name, gguf.ErrTruncated)
		}
		for i := 0; i < numel; i++ {
			bits := binary.LittleEndian.Uint32(tv.Data[i*4:])
			out[i] = math.Float32frombits(bits)
		}

	case gguf.GGMLTypeF16:
		if len(tv.Data) < numel*2 {
			return TensorF32{}, fmt.Errorf("tensor %q: %w", name, gguf.ErrTruncated)
		}
		gguf.DequantizeF16(tv.Data[:numel*2], out)

	case gguf.GGMLTypeQ4K, gguf.GGMLTypeQ6K:
		if len(tv.Dims) == 0 {
			return TensorF32{}, fmt.Errorf("tensor %q: %w", name, gguf.ErrUnexpectedShape)
		}
		rowLen := int(tv.Dims[0])
		if rowLen%256 != 0 {
			return TensorF32{}, fmt.Errorf("tensor %q: row length %d not a multiple of 256: %w", name, rowLen, gguf.ErrInvalidDim)
		}
		nRows := numel / rowLen
		traits, ok := gguf.TypeTraits(tv.GGMLType)
		if !ok {
			return TensorF32{}, fmt.Errorf("tensor %q: %w", name, gguf.ErrUnsupportedType)
		}
		blocksPerRow := rowLen / int(traits.BlockSize)
		rowBytes := blocksPerRow * int(traits.TypeSize)

		if len(tv.Data) < nRows*rowBytes {
			return TensorF32{}, fmt.Errorf("tensor %q: %w", name, gguf.ErrTruncated)
		}
		for r := 0; r < nRows; r++ {
			src := tv.Data[r*rowBytes : (r+1)*rowBytes]
			dst := out[r*rowLen : (r+1)*rowLen]
			var derr error
			if tv.GGMLType == gguf.GGMLTypeQ4K {
				derr = gguf.DequantizeQ4KRow(src, dst, rowLen)
			} else {
				derr = gguf.DequantizeQ6KRow(src, dst, rowLen)
			}
			if derr != nil {
				return TensorF32{}, fmt.Errorf("tensor %q row %d: %w", name, r, derr)
			}
		}

	default:
		return TensorF32{}, fmt.Errorf("tensor %q: ggml_type %d: %w", name, tv.GGMLType, gguf.ErrUnsupportedType)
	}

	return TensorF32{Dims: tv.Dims, Data: out, Numel: numel}, nil
}

// LoadWeights loads token_embd.weight, optionally the LM head
// (output_norm.weight/output.weight) when loadLMHead is set, and exactly
// the requested layer indices — not every layer in the file. Each index
// must be < cfg.NLayers; any index outside that range fails with
// gguf.ErrOutOfRange. The returned Weights.Layers is in the same order as
// layerIndices.
func LoadWeights(l *Loader, cfg ModelConfig, layerIndices []int, loadLMHead bool) (Weights, error) {
	if cfg.NLayers == 0 || cfg.DModel == 0 || cfg.NHeads == 0 {
		return Weights{}, fmt.Errorf("incomplete model config: %w", gguf.ErrMissingMetadata)
	}

	tokenEmbd, err := LoadTensorAsF32(l, "token_embd.weight")
	if err != nil {
		return Weights{}, err
	}
	if len(tokenEmbd.Dims) != 2 || tokenEmbd.Dims[0] != uint64(cfg.DModel) {
		return Weights{}, fmt.Errorf("token_embd.weight shape %v: %w", tokenEmbd.Dims, gguf.ErrUnexpectedShape)
	}
	if cfg.VocabSize != 0 && tokenEmbd.Dims[1] != uint64(cfg.VocabSize) {
		return Weights{}, fmt.Errorf("token_embd.weight vocab dim %d != config vocab_size %d: %w", tokenEmbd.Dims[1], cfg.VocabSize, gguf.ErrUnexpectedShape)
	}

	global := GlobalWeights{TokenEmbd: tokenEmbd}

	if loadLMHead {
		outputNorm, err := LoadTensorAsF32(l, "output_norm.weight")
		if err != nil {
			return Weights{}, err
		}
		global.OutputNorm = &outputNorm

		output, err := LoadTensorAsF32(l, "output.weight")
		if err != nil {
			return Weights{}, err
		}
		global.Output = &output
	}

	layers := make([]LayerWeights, len(layerIndices))
	for pos, i := range layerIndices {
		if i < 0 || uint32(i) >= cfg.NLayers {
			return Weights{}, fmt.Errorf("layer index %d outside [0,%d): %w", i, cfg.NLayers, gguf.ErrOutOfRange)
		}
		lw, err := loadLayerWeights(l, cfg, i)
		if err != nil {
			return Weights{}, err
		}
		layers[pos] = lw
	}

	return Weights{Config: cfg, Global: global, Layers: layers}, nil
}

func loadLayerWeights(l *Loader, cfg ModelConfig, i int) (LayerWeights, error) {
	prefix := fmt.Sprintf("blk.%d.", i)

	load := func(suffix string) (TensorF32, error) {
		return LoadTensorAsF32(l, prefix+suffix)
	}

	attnNorm, err := load("attn_norm.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	attnQ, err := load("attn_q.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	attnK, err := load("attn_k.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	attnV, err := load("attn_v.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	attnOutput, err := load("attn_output.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	ffnNorm, err := load("ffn_norm.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	ffnGate, err := load("ffn_gate.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	ffnUp, err := load("ffn_up.weight")
	if err != nil {
		return LayerWeights{}, err
	}
	ffnDown, err := load("ffn_down.weight")
	if err != nil {
		return LayerWeights{}, err
	}

	lw := LayerWeights{
		Index:      i,
		AttnNorm:   attnNorm,
		AttnQ:      attnQ,
		AttnK:      attnK,
		AttnV:      attnV,
		AttnOutput: attnOutput,
		FFNNorm:    ffnNorm,
		FFNGate:    ffnGate,
		FFNUp:      ffnUp,
		FFNDown:    ffnDown,
	}
	if err := validateLayerShapes(lw, cfg); err != nil {
		return LayerWeights{}, fmt.Errorf("layer %d: %w", i, err)
	}
	return lw, nil
}

func validateLayerShapes(lw LayerWeights, cfg ModelConfig) error {
	dModel, kvDim, ffn := uint64(cfg.DModel), uint64(cfg.KVDim), uint64(cfg.FFNHiddenDim)

	check := func(name string, t TensorF32, inDim, outDim uint64) error {
		if len(t.Dims) != 2 || t.Dims[0] != inDim || t.Dims[1] != outDim {
			return fmt.Errorf("%s shape %v, want [%d,%d]: %w", name, t.Dims, inDim, outDim, gguf.ErrUnexpectedShape)
		}
		return nil
	}

	if err := check("attn_q.weight", lw.AttnQ, dModel, dModel); err != nil {
		return err
	}
	if err := check("attn_k.weight", lw.AttnK, dModel, kvDim); err != nil {
		return err
	}
	if err := check("attn_v.weight", lw.AttnV, dModel, kvDim); err != nil {
		return err
	}
	if err := check("attn_output.weight", lw.AttnOutput, dModel, dModel); err != nil {
		return err
	}
	if err := check("ffn_gate.weight", lw.FFNGate, dModel, ffn); err != nil {
		return err
	}
	if err := check("ffn_up.weight", lw.FFNUp, dModel, ffn); err != nil {
		return err
	}
	if err := check("ffn_down.weight", lw.FFNDown, ffn, dModel); err != nil {
		return err
	}
	return nil
}

// GatherColumn copies token id's column out of a [dModel, vocabSize]
// column-major embedding tensor into dst.
func GatherColumn(embd TensorF32, tokenID int, dst []float32) error {
	if len(embd.Dims) != 2 {
		return fmt.Errorf("embedding tensor shape %v: %w", embd.Dims, gguf.ErrUnexpectedShape)
	}
	dModel, vocabSize := int(embd.Dims[0]), int(embd.Dims[1])
	if tokenID < 0 || tokenID >= vocabSize {
		return fmt.Errorf("token id %d outside [0,%d): %w", tokenID, vocabSize, gguf.ErrOutOfRange)
	}
	if len(dst) < dModel {
		return fmt.Errorf("dst len %d < d_model %d: %w", len(dst), dModel, gguf.ErrInvalidDim)
	}
	copy(dst[:dModel], embd.Data[tokenID*dModel:(tokenID+1)*dModel])
	return nil
}

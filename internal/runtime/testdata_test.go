package runtime

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"llamart/internal/gguf"
)

// ggufBuilder assembles a minimal but complete single-layer GGUF file for
// exercising Loader, LoadWeights and Engine end to end.
type ggufBuilder struct {
	buf bytes.Buffer
}

func (b *ggufBuilder) u32(v uint32)  { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *ggufBuilder) u64(v uint64)  { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *ggufBuilder) f32(v float32) { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *ggufBuilder) str(s string) {
	b.u64(uint64(len(s)))
	b.buf.WriteString(s)
}

func (b *ggufBuilder) kvString(key, v string) {
	b.str(key)
	b.u32(uint32(gguf.ValueTypeString))
	b.str(v)
}

func (b *ggufBuilder) kvU32(key string, v uint32) {
	b.str(key)
	b.u32(uint32(gguf.ValueTypeUint32))
	b.u32(v)
}

func (b *ggufBuilder) kvF32(key string, v float32) {
	b.str(key)
	b.u32(uint32(gguf.ValueTypeFloat32))
	b.f32(v)
}

type tensorSpec struct {
	name string
	dims []uint64
	data []float32
}

func f32LE(vs []float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// tinyModelPath writes a one-layer model small enough to construct by
// hand (d_model=4, 2 query heads, 1 kv head (head_dim=2), ffn_hidden=4)
// to a temporary file and returns its path.
func tinyModelPath(t *testing.T) string {
	t.Helper()

	var b ggufBuilder

	tensors := []tensorSpec{
		{"token_embd.weight", []uint64{4, 3}, rangeF32(12, 0.01)},
		{"blk.0.attn_norm.weight", []uint64{4}, onesF32(4)},
		{"blk.0.attn_q.weight", []uint64{4, 4}, rangeF32(16, 0.02)},
		{"blk.0.attn_k.weight", []uint64{4, 2}, rangeF32(8, 0.03)},
		{"blk.0.attn_v.weight", []uint64{4, 2}, rangeF32(8, 0.04)},
		{"blk.0.attn_output.weight", []uint64{4, 4}, rangeF32(16, 0.02)},
		{"blk.0.ffn_norm.weight", []uint64{4}, onesF32(4)},
		{"blk.0.ffn_gate.weight", []uint64{4, 4}, rangeF32(16, 0.01)},
		{"blk.0.ffn_up.weight", []uint64{4, 4}, rangeF32(16, 0.01)},
		{"blk.0.ffn_down.weight", []uint64{4, 4}, rangeF32(16, 0.01)},
	}

	b.buf.WriteString("GGUF")
	b.u32(3)
	b.u64(uint64(len(tensors)))
	b.u64(10)

	b.kvString("general.architecture", "llama")
	b.kvU32("llama.block_count", 1)
	b.kvU32("llama.embedding_length", 4)
	b.kvU32("llama.attention.head_count", 2)
	b.kvU32("llama.attention.head_count_kv", 1)
	b.kvU32("llama.feed_forward_length", 4)
	b.kvU32("llama.context_length", 8)
	b.kvU32("llama.rope.dimension_count", 2)
	b.kvF32("llama.rope.freq_base", 10000)
	b.kvF32("llama.attention.layer_norm_rms_epsilon", 1e-5)

	var offset uint64
	offsets := make([]uint64, len(tensors))
	for i, ts := range tensors {
		offsets[i] = offset
		offset += uint64(len(ts.data) * 4)
	}

	for i, ts := range tensors {
		b.str(ts.name)
		b.u32(uint32(len(ts.dims)))
		for _, d := range ts.dims {
			b.u64(d)
		}
		b.u32(gguf.GGMLTypeF32)
		b.u64(offsets[i])
	}

	header := b.buf.Bytes()
	for uint64(len(header))%32 != 0 {
		header = append(header, 0)
	}

	var payload bytes.Buffer
	for _, ts := range tensors {
		payload.Write(f32LE(ts.data))
	}

	full := append(header, payload.Bytes()...)

	path := filepath.Join(t.TempDir(), "tiny.gguf")
	if err := os.WriteFile(path, full, 0o644); err != nil {
		t.Fatalf("write tiny model: %v", err)
	}
	return path
}

func onesF32(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func rangeF32(n int, scale float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i+1) * scale
	}
	return out
}

package gguf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileBuilder assembles a minimal GGUF byte stream for tests.
type fileBuilder struct {
	buf bytes.Buffer
}

func (b *fileBuilder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *fileBuilder) u32(v uint32) { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) u64(v uint64) { binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *fileBuilder) str(s string) {
	b.u64(uint64(len(s)))
	b.buf.WriteString(s)
}
func (b *fileBuilder) f32(v float32) { binary.Write(&b.buf, binary.LittleEndian, v) }

func minimalGGUF(t *testing.T) []byte {
	t.Helper()
	var b fileBuilder
	b.buf.WriteString("GGUF")
	b.u32(3)  // version
	b.u64(1)  // tensor_count
	b.u64(1)  // metadata_kv_count

	// one metadata entry: general.architecture = "llama"
	b.str("general.architecture")
	b.u32(uint32(ValueTypeString))
	b.str("llama")

	// one tensor: "w" f32 [4]
	b.str("w")
	b.u32(1) // n_dims
	b.u64(4) // dims[0]
	b.u32(GGMLTypeF32)
	b.u64(0) // offset

	data := b.buf.Bytes()
	// pad to 32-byte alignment, then write 16 bytes (4 f32s) of tensor data
	for uint64(len(data))%defaultAlignment != 0 {
		data = append(data, 0)
	}
	data = append(data, make([]byte, 16)...)
	return data
}

func TestParseMinimalFile(t *testing.T) {
	data := minimalGGUF(t)

	f, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), f.Header.Version)
	require.Len(t, f.Tensors, 1)
	assert.Equal(t, "w", f.Tensors[0].Name)

	v, ok := f.KV("general.architecture")
	require.True(t, ok)
	assert.Equal(t, "llama", v.Payload.(string))
}

func TestParseIsIdempotent(t *testing.T) {
	data := minimalGGUF(t)

	f1, err := Parse(data)
	require.NoError(t, err)
	f2, err := Parse(data)
	require.NoError(t, err)

	require.Equal(t, len(f1.Metadata), len(f2.Metadata))
	require.Equal(t, len(f1.Tensors), len(f2.Tensors))
	for i := range f1.Metadata {
		assert.Equal(t, f1.Metadata[i].Key, f2.Metadata[i].Key, "metadata order differs at %d", i)
	}
	for i := range f1.Tensors {
		assert.Equal(t, f1.Tensors[i].Name, f2.Tensors[i].Name, "tensor order differs at %d", i)
	}
}

func TestParseBadMagic(t *testing.T) {
	_, err := Parse([]byte("GGU\x00 extra bytes to avoid short read"))
	assert.Error(t, err)
}

func TestParseTensorOutOfBounds(t *testing.T) {
	data := minimalGGUF(t)
	truncated := data[:len(data)-8] // chop off part of the tensor payload

	_, err := Parse(truncated)
	assert.Error(t, err, "expected out-of-bounds error")
}

func TestParseArrayOfArrayUnsupported(t *testing.T) {
	var b fileBuilder
	b.buf.WriteString("GGUF")
	b.u32(3)
	b.u64(0)
	b.u64(1)
	b.str("bad")
	b.u32(uint32(ValueTypeArray))
	b.u32(uint32(ValueTypeArray)) // elem type = array
	b.u64(0)                      // length

	_, err := Parse(b.buf.Bytes())
	assert.Error(t, err, "expected array-of-array error")
}

package gguf

import "fmt"

// ValueType tags the 13 scalar/string/array variants a metadata value can
// hold. The numeric values match the GGUF wire format exactly.
type ValueType uint32

const (
	ValueTypeUint8   ValueType = 0
	ValueTypeInt8    ValueType = 1
	ValueTypeUint16  ValueType = 2
	ValueTypeInt16   ValueType = 3
	ValueTypeUint32  ValueType = 4
	ValueTypeInt32   ValueType = 5
	ValueTypeFloat32 ValueType = 6
	ValueTypeBool    ValueType = 7
	ValueTypeString  ValueType = 8
	ValueTypeArray   ValueType = 9
	ValueTypeUint64  ValueType = 10
	ValueTypeInt64   ValueType = 11
	ValueTypeFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeUint8:
		return "u8"
	case ValueTypeInt8:
		return "i8"
	case ValueTypeUint16:
		return "u16"
	case ValueTypeInt16:
		return "i16"
	case ValueTypeUint32:
		return "u32"
	case ValueTypeInt32:
		return "i32"
	case ValueTypeFloat32:
		return "f32"
	case ValueTypeBool:
		return "bool"
	case ValueTypeString:
		return "string"
	case ValueTypeArray:
		return "array"
	case ValueTypeUint64:
		return "u64"
	case ValueTypeInt64:
		return "i64"
	case ValueTypeFloat64:
		return "f64"
	default:
		return "unknown"
	}
}

// ArraySummary is retained in place of an array's bulk payload: the element
// type and length, without the elements themselves.
type ArraySummary struct {
	ElemType ValueType
	Length   uint64
}

// Value holds exactly one of the GGUF scalar/string/array variants. Payload
// is always one of: uint8, int8, uint16, int16, uint32, int32, uint64,
// int64, float32, float64, bool, string, or ArraySummary.
type Value struct {
	Type    ValueType
	Payload any
}

// String renders a Value for display, truncating long strings the way the
// reference inspector does.
func (v Value) String() string {
	const maxStringLen = 160
	switch p := v.Payload.(type) {
	case string:
		if len(p) <= maxStringLen {
			return p
		}
		return p[:maxStringLen] + "…"
	case ArraySummary:
		return fmt.Sprintf("array<%s>[%d]", p.ElemType, p.Length)
	default:
		return fmt.Sprintf("%v", p)
	}
}

// KV is a single metadata entry, preserving the key/value pair in parse
// order.
type KV struct {
	Key   string
	Value Value
}

// Header is the fixed-size GGUF prologue following the magic bytes.
type Header struct {
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
}

// TensorInfo describes one entry in the tensor directory. Offset is
// relative to the data section's start; dims[0] is the leading, fastest
// varying axis.
type TensorInfo struct {
	Name     string
	Dims     []uint64
	GGMLType uint32
	Offset   uint64
}

// File is the fully parsed representation of a GGUF container: header,
// metadata table, tensor directory, and the absolute offset of the data
// section. TensorIndexByName and KVIndexByKey let callers look up entries
// by name/key in O(1); when a key or tensor name repeats, the index points
// at the last occurrence, though the underlying slices still preserve
// parse order.
type File struct {
	Header            Header
	Metadata          []KV
	Tensors           []TensorInfo
	DataSectionOffset uint64

	TensorIndexByName map[string]int
	KVIndexByKey      map[string]int
}

// KV looks up a metadata entry by key.
func (f *File) KV(key string) (Value, bool) {
	i, ok := f.KVIndexByKey[key]
	if !ok {
		return Value{}, false
	}
	return f.Metadata[i].Value, true
}

// Tensor looks up a tensor directory entry by name.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	i, ok := f.TensorIndexByName[name]
	if !ok {
		return TensorInfo{}, false
	}
	return f.Tensors[i], true
}

// GGMLTypeTraits describes the on-disk block layout of one ggml tensor
// type: how many source elements are packed per block, and how many bytes
// each block occupies.
type GGMLTypeTraits struct {
	Name      string
	BlockSize uint64
	TypeSize  uint64
}

// Supported ggml_type codes. Only these four are dequantized by this
// system; any other code is a recognized-but-unsupported type for the
// purposes of tensor loading, though the parser itself accepts any code
// since the directory entry does not require a known type to be valid.
const (
	GGMLTypeF32 uint32 = 0
	GGMLTypeF16 uint32 = 1
	GGMLTypeQ4K uint32 = 12
	GGMLTypeQ6K uint32 = 14
)

var ggmlTypeTraits = map[uint32]GGMLTypeTraits{
	GGMLTypeF32: {Name: "F32", BlockSize: 1, TypeSize: 4},
	GGMLTypeF16: {Name: "F16", BlockSize: 1, TypeSize: 2},
	GGMLTypeQ4K: {Name: "Q4_K", BlockSize: 256, TypeSize: 144},
	GGMLTypeQ6K: {Name: "Q6_K", BlockSize: 256, TypeSize: 210},
}

// TypeTraits returns the block/type size pair for a known ggml_type code,
// and false for any code this system does not recognize.
func TypeTraits(ggmlType uint32) (GGMLTypeTraits, bool) {
	t, ok := ggmlTypeTraits[ggmlType]
	return t, ok
}

// TensorNumBytes computes the on-disk byte size of a tensor from its dims
// and ggml_type, using overflow-checked arithmetic throughout. It returns
// false when the type is not recognized.
func TensorNumBytes(t TensorInfo) (uint64, bool, error) {
	traits, ok := TypeTraits(t.GGMLType)
	if !ok {
		return 0, false, nil
	}
	if len(t.Dims) == 0 {
		return 0, true, nil
	}

	var blocksDim0 uint64
	if traits.BlockSize == 1 {
		blocksDim0 = t.Dims[0]
	} else {
		blocksDim0 = t.Dims[0] / traits.BlockSize
		if t.Dims[0]%traits.BlockSize != 0 {
			blocksDim0++
		}
	}

	nBlocks := blocksDim0
	for _, d := range t.Dims[1:] {
		var err error
		nBlocks, err = checkedMulU64(nBlocks, d)
		if err != nil {
			return 0, true, err
		}
	}

	bytes, err := checkedMulU64(nBlocks, traits.TypeSize)
	if err != nil {
		return 0, true, err
	}
	return bytes, true, nil
}

func checkedMulU64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > maxUint64/b {
		return 0, ErrArithmeticOverflow
	}
	return a * b, nil
}

func checkedAddU64(a, b uint64) (uint64, error) {
	if a > maxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

const maxUint64 = ^uint64(0)

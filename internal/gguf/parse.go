package gguf

import "fmt"

const defaultAlignment = 32

// Parse decodes a complete GGUF container from data, validating that every
// tensor's declared range fits inside the file. data is typically a
// memory-mapped file's byte slice; Parse does not retain data itself
// beyond what File's fields borrow from it (tensor payloads are looked up
// later against the same slice by the caller).
func Parse(data []byte) (*File, error) {
	r := newReader(data)

	magic, err := r.readBytes(4)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != "GGUF" {
		return nil, fmt.Errorf("magic %q: %w", magic, ErrBadMagic)
	}

	f := &File{}
	f.Header.Version, err = r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	f.Header.TensorCount, err = r.readUint64()
	if err != nil {
		return nil, fmt.Errorf("read tensor count: %w", err)
	}
	f.Header.MetadataKVCount, err = r.readUint64()
	if err != nil {
		return nil, fmt.Errorf("read metadata kv count: %w", err)
	}

	f.Metadata = make([]KV, 0, f.Header.MetadataKVCount)
	f.KVIndexByKey = make(map[string]int, f.Header.MetadataKVCount)
	for i := uint64(0); i < f.Header.MetadataKVCount; i++ {
		key, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read kv[%d] key: %w", i, err)
		}
		rawType, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("read kv[%d] type: %w", i, err)
		}
		value, err := readValue(r, ValueType(rawType))
		if err != nil {
			return nil, fmt.Errorf("read kv[%d] %q value: %w", i, key, err)
		}

		f.KVIndexByKey[key] = len(f.Metadata)
		f.Metadata = append(f.Metadata, KV{Key: key, Value: value})
	}

	f.Tensors = make([]TensorInfo, 0, f.Header.TensorCount)
	f.TensorIndexByName = make(map[string]int, f.Header.TensorCount)
	for i := uint64(0); i < f.Header.TensorCount; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read tensor[%d] name: %w", i, err)
		}
		nDims, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("read tensor[%d] n_dims: %w", i, err)
		}
		dims := make([]uint64, nDims)
		for d := range dims {
			dims[d], err = r.readUint64()
			if err != nil {
				return nil, fmt.Errorf("read tensor[%d] dim[%d]: %w", i, d, err)
			}
		}
		ggmlType, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("read tensor[%d] ggml_type: %w", i, err)
		}
		offset, err := r.readUint64()
		if err != nil {
			return nil, fmt.Errorf("read tensor[%d] offset: %w", i, err)
		}

		f.TensorIndexByName[name] = len(f.Tensors)
		f.Tensors = append(f.Tensors, TensorInfo{Name: name, Dims: dims, GGMLType: ggmlType, Offset: offset})
	}

	alignment := uint64(defaultAlignment)
	if v, ok := f.KV("general.alignment"); ok {
		if a, ok := coerceAlignment(v); ok {
			alignment = a
		}
	}
	f.DataSectionOffset = alignUp(r.Pos(), alignment)

	size := uint64(len(data))
	if f.DataSectionOffset > size {
		return nil, fmt.Errorf("data section offset %d exceeds file size %d: %w", f.DataSectionOffset, size, ErrOutOfBounds)
	}

	for _, t := range f.Tensors {
		absOff, err := checkedAddU64(f.DataSectionOffset, t.Offset)
		if err != nil || absOff > size {
			return nil, fmt.Errorf("tensor %q offset out of bounds: %w", t.Name, ErrOutOfBounds)
		}

		nbytes, known, err := TensorNumBytes(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %q byte size: %w", t.Name, err)
		}
		if !known {
			continue
		}
		end, err := checkedAddU64(absOff, nbytes)
		if err != nil || end > size {
			return nil, fmt.Errorf("tensor %q out of bounds: %w", t.Name, ErrOutOfBounds)
		}
	}

	return f, nil
}

func coerceAlignment(v Value) (uint64, bool) {
	switch x := v.Payload.(type) {
	case uint32:
		return uint64(x), true
	case uint64:
		if x <= uint64(^uint32(0)) {
			return x, true
		}
	}
	return 0, false
}

// readValue decodes one metadata value of the given type. Arrays retain
// only a summary of their element type and length; the bulk payload is
// still consumed from the reader so the cursor lands correctly for
// whatever follows.
func readValue(r *reader, t ValueType) (Value, error) {
	switch t {
	case ValueTypeUint8:
		v, err := r.readUint8()
		return Value{Type: t, Payload: v}, err
	case ValueTypeInt8:
		v, err := r.readInt8()
		return Value{Type: t, Payload: v}, err
	case ValueTypeUint16:
		v, err := r.readUint16()
		return Value{Type: t, Payload: v}, err
	case ValueTypeInt16:
		v, err := r.readInt16()
		return Value{Type: t, Payload: v}, err
	case ValueTypeUint32:
		v, err := r.readUint32()
		return Value{Type: t, Payload: v}, err
	case ValueTypeInt32:
		v, err := r.readInt32()
		return Value{Type: t, Payload: v}, err
	case ValueTypeUint64:
		v, err := r.readUint64()
		return Value{Type: t, Payload: v}, err
	case ValueTypeInt64:
		v, err := r.readInt64()
		return Value{Type: t, Payload: v}, err
	case ValueTypeFloat32:
		v, err := r.readFloat32()
		return Value{Type: t, Payload: v}, err
	case ValueTypeFloat64:
		v, err := r.readFloat64()
		return Value{Type: t, Payload: v}, err
	case ValueTypeBool:
		v, err := r.readBool()
		return Value{Type: t, Payload: v}, err
	case ValueTypeString:
		v, err := r.readString()
		return Value{Type: t, Payload: v}, err
	case ValueTypeArray:
		return readArrayValue(r)
	default:
		return Value{}, fmt.Errorf("type %d: %w", t, ErrUnknownValueType)
	}
}

func readArrayValue(r *reader) (Value, error) {
	rawElemType, err := r.readUint32()
	if err != nil {
		return Value{}, fmt.Errorf("read array elem type: %w", err)
	}
	elemType := ValueType(rawElemType)
	n, err := r.readUint64()
	if err != nil {
		return Value{}, fmt.Errorf("read array length: %w", err)
	}

	v := Value{Type: ValueTypeArray, Payload: ArraySummary{ElemType: elemType, Length: n}}

	switch elemType {
	case ValueTypeString:
		for i := uint64(0); i < n; i++ {
			if _, err := r.readString(); err != nil {
				return Value{}, fmt.Errorf("skip array string[%d]: %w", i, err)
			}
		}
		return v, nil
	case ValueTypeUint8, ValueTypeInt8, ValueTypeBool:
		return v, skipArrayBytes(r, n, 1)
	case ValueTypeUint16, ValueTypeInt16:
		return v, skipArrayBytes(r, n, 2)
	case ValueTypeUint32, ValueTypeInt32, ValueTypeFloat32:
		return v, skipArrayBytes(r, n, 4)
	case ValueTypeUint64, ValueTypeInt64, ValueTypeFloat64:
		return v, skipArrayBytes(r, n, 8)
	case ValueTypeArray:
		return Value{}, ErrUnsupportedArrayOfArray
	default:
		return Value{}, fmt.Errorf("array elem type %d: %w", elemType, ErrUnknownValueType)
	}
}

func skipArrayBytes(r *reader, n, elemSize uint64) error {
	bytes, err := checkedMulU64(n, elemSize)
	if err != nil {
		return fmt.Errorf("array skip size: %w", err)
	}
	if err := r.skip(bytes); err != nil {
		return fmt.Errorf("skip array payload: %w", err)
	}
	return nil
}

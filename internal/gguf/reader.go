package gguf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// reader is a bounds-checked cursor over an immutable byte slice. Every
// read advances pos and fails with ErrPastEOF rather than panicking when
// the requested span would step past the end of data.
type reader struct {
	data []byte
	pos  uint64
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) size() uint64 { return uint64(len(r.data)) }
func (r *reader) Pos() uint64  { return r.pos }

func (r *reader) remaining() uint64 {
	if r.pos >= r.size() {
		return 0
	}
	return r.size() - r.pos
}

func (r *reader) skip(n uint64) error {
	if n > r.remaining() {
		return fmt.Errorf("skip %d bytes at pos %d: %w", n, r.pos, ErrPastEOF)
	}
	r.pos += n
	return nil
}

func (r *reader) readBytes(n uint64) ([]byte, error) {
	if n > r.remaining() {
		return nil, fmt.Errorf("read %d bytes at pos %d: %w", n, r.pos, ErrPastEOF)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func readUint[T uint8 | uint16 | uint32 | uint64](r *reader) (T, error) {
	var zero T
	n := uint64(byteWidth(zero))
	b, err := r.readBytes(n)
	if err != nil {
		return zero, err
	}
	switch n {
	case 1:
		return T(b[0]), nil
	case 2:
		return T(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return T(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return T(binary.LittleEndian.Uint64(b)), nil
	}
	panic("unreachable")
}

func byteWidth[T uint8 | uint16 | uint32 | uint64](_ T) int {
	var v T
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	case uint64:
		return 8
	}
	panic("unreachable")
}

func (r *reader) readUint8() (uint8, error)   { return readUint[uint8](r) }
func (r *reader) readUint16() (uint16, error) { return readUint[uint16](r) }
func (r *reader) readUint32() (uint32, error) { return readUint[uint32](r) }
func (r *reader) readUint64() (uint64, error) { return readUint[uint64](r) }

func (r *reader) readInt8() (int8, error) {
	v, err := r.readUint8()
	return int8(v), err
}

func (r *reader) readInt16() (int16, error) {
	v, err := r.readUint16()
	return int16(v), err
}

func (r *reader) readInt32() (int32, error) {
	v, err := r.readUint32()
	return int32(v), err
}

func (r *reader) readInt64() (int64, error) {
	v, err := r.readUint64()
	return int64(v), err
}

func (r *reader) readFloat32() (float32, error) {
	v, err := r.readUint32()
	return math.Float32frombits(v), err
}

func (r *reader) readFloat64() (float64, error) {
	v, err := r.readUint64()
	return math.Float64frombits(v), err
}

func (r *reader) readBool() (bool, error) {
	v, err := r.readUint8()
	return v != 0, err
}

// readString reads a u64 length prefix followed by that many raw bytes,
// with no NUL termination.
func (r *reader) readString() (string, error) {
	n, err := r.readUint64()
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if n > r.remaining() {
		return "", fmt.Errorf("read string of length %d at pos %d: %w", n, r.pos, ErrPastEOF)
	}
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// alignUp returns v rounded up to the next multiple of a, or v unchanged
// when a is zero.
func alignUp(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	rem := v % a
	if rem == 0 {
		return v
	}
	return v + (a - rem)
}

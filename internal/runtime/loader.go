package runtime

import (
	"fmt"
	"sort"

	"llamart/internal/gguf"
	"llamart/internal/mmap"
)

// TensorView borrows tensor bytes directly from the loader's mapped file;
// it is valid for as long as the owning Loader is open.
type TensorView struct {
	Name       string
	Dims       []uint64
	GGMLType   uint32
	Data       []byte
	FileOffset uint64
}

// Loader owns a memory-mapped GGUF file and its parsed directory, and
// resolves tensor names to byte views within the mapping.
type Loader struct {
	mapped *mmap.File
	file   *gguf.File

	// sizeFromOffset[i] is the fallback byte size for file.Tensors[i],
	// derived from the gap to the next tensor by ascending offset. Used
	// only when the tensor's ggml_type has no known traits.
	sizeFromOffset []uint64
}

// Open maps path and parses its GGUF directory.
func Open(path string) (*Loader, error) {
	mapped, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	file, err := gguf.Parse(mapped.Data())
	if err != nil {
		mapped.Close()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	l := &Loader{mapped: mapped, file: file}
	if err := l.computeSizesFromOffsets(); err != nil {
		mapped.Close()
		return nil, err
	}
	return l, nil
}

// Close unmaps the underlying file. TensorViews obtained from this Loader
// must not be used afterward.
func (l *Loader) Close() error { return l.mapped.Close() }

// File exposes the parsed GGUF directory.
func (l *Loader) File() *gguf.File { return l.file }

func (l *Loader) computeSizesFromOffsets() error {
	n := len(l.file.Tensors)
	l.sizeFromOffset = make([]uint64, n)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return l.file.Tensors[idx[a]].Offset < l.file.Tensors[idx[b]].Offset
	})

	fileSize := uint64(l.mapped.Size())
	for i, cur := range idx {
		curAbs := l.file.DataSectionOffset + l.file.Tensors[cur].Offset
		nextAbs := fileSize
		if i+1 < n {
			next := idx[i+1]
			nextAbs = l.file.DataSectionOffset + l.file.Tensors[next].Offset
		}
		if nextAbs < curAbs {
			return fmt.Errorf("tensor %q: %w", l.file.Tensors[cur].Name, gguf.ErrNonMonotonicOffset)
		}
		l.sizeFromOffset[cur] = nextAbs - curAbs
	}
	return nil
}

// MaybeTensor returns the named tensor's view, or false if it is absent.
func (l *Loader) MaybeTensor(name string) (TensorView, bool, error) {
	idx, ok := l.file.TensorIndexByName[name]
	if !ok {
		return TensorView{}, false, nil
	}
	t := l.file.Tensors[idx]

	absOff := l.file.DataSectionOffset + t.Offset
	nbytes, known, err := gguf.TensorNumBytes(t)
	if err != nil {
		return TensorView{}, false, fmt.Errorf("tensor %q: %w", name, err)
	}
	if !known {
		nbytes = l.sizeFromOffset[idx]
	}

	data := l.mapped.Data()
	if absOff > uint64(len(data)) || absOff+nbytes > uint64(len(data)) {
		return TensorView{}, false, fmt.Errorf("tensor %q: %w", name, gguf.ErrOutOfBounds)
	}

	return TensorView{
		Name:       t.Name,
		Dims:       t.Dims,
		GGMLType:   t.GGMLType,
		Data:       data[absOff : absOff+nbytes],
		FileOffset: absOff,
	}, true, nil
}

// Tensor returns the named tensor's view, failing with ErrTensorNotFound
// if it is absent.
func (l *Loader) Tensor(name string) (TensorView, error) {
	tv, ok, err := l.MaybeTensor(name)
	if err != nil {
		return TensorView{}, err
	}
	if !ok {
		return TensorView{}, fmt.Errorf("%q: %w", name, gguf.ErrTensorNotFound)
	}
	return tv, nil
}

// Config derives the model's shape/hyperparameters from its metadata.
func (l *Loader) Config() (ModelConfig, error) {
	return deriveConfig(l)
}

func (l *Loader) kvString(key string) (string, bool) {
	v, ok := l.file.KV(key)
	if !ok {
		return "", false
	}
	s, ok := v.Payload.(string)
	return s, ok
}

func (l *Loader) kvU32(key string) uint32 {
	v, ok := l.file.KV(key)
	if !ok {
		return 0
	}
	switch x := v.Payload.(type) {
	case uint32:
		return x
	case int32:
		if x >= 0 {
			return uint32(x)
		}
	case uint64:
		if x <= uint64(^uint32(0)) {
			return uint32(x)
		}
	case int64:
		if x >= 0 && x <= int64(^uint32(0)) {
			return uint32(x)
		}
	}
	return 0
}

func (l *Loader) kvF32(key string) float32 {
	v, ok := l.file.KV(key)
	if !ok {
		return 0
	}
	switch x := v.Payload.(type) {
	case float32:
		return x
	case float64:
		return float32(x)
	case uint32, int32, uint64, int64:
		return float32(l.kvU32(key))
	}
	return 0
}

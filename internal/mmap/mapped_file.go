// Package mmap provides a read-only memory-mapped view of a file.
package mmap

import (
	"errors"
	"fmt"
	"os"
)

// ErrEmptyFile is returned when the file to be mapped has zero length.
var ErrEmptyFile = errors.New("mmap: file is empty")

// File is a read-only memory map of a file's contents. The mapped bytes
// remain valid for the lifetime of the File; callers must not retain
// slices derived from Data() past a call to Close.
type File struct {
	data []byte
	path string
}

// Open maps path read-only. It fails if the file cannot be opened, stat'd,
// is empty, or cannot be mapped by the platform-specific mmapReadOnly.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
	}
	if st.Size() <= 0 {
		return nil, fmt.Errorf("mmap: %s: %w", path, ErrEmptyFile)
	}

	data, err := mmapReadOnly(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("mmap: map %s: %w", path, err)
	}

	return &File{data: data, path: path}, nil
}

// Data returns the mapped byte slice. The slice is read-only in spirit
// (backed by a PROT_READ mapping on unix); callers must not mutate it.
func (f *File) Data() []byte { return f.data }

// Size returns the length of the mapped region in bytes.
func (f *File) Size() int { return len(f.data) }

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Close unmaps the file. It is safe to call Close more than once.
func (f *File) Close() error {
	if f.data == nil {
		return nil
	}
	err := munmap(f.data)
	f.data = nil
	return err
}

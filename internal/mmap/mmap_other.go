//go:build !unix

package mmap

import (
	"errors"
	"os"
)

func mmapReadOnly(_ *os.File, _ int64) ([]byte, error) {
	return nil, errors.New("mmap: not supported on this platform")
}

func munmap(_ []byte) error {
	return errors.New("mmap: not supported on this platform")
}

//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmapReadOnly(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}

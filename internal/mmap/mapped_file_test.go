package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenReadsBackContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	want := []byte("some file contents for mapping")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	if got := string(f.Data()); got != string(want) {
		t.Fatalf("Data() = %q, want %q", got, want)
	}
	if f.Size() != len(want) {
		t.Fatalf("Size() = %d, want %d", f.Size(), len(want))
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.gguf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

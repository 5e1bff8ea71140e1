package runtime

import "testing"

func TestOpenAndDeriveConfig(t *testing.T) {
	path := tinyModelPath(t)

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	cfg, err := l.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}

	if cfg.NLayers != 1 || cfg.DModel != 4 || cfg.NHeads != 2 || cfg.NKVHeads != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HeadDim != 2 || cfg.KVDim != 2 {
		t.Fatalf("derived dims: head_dim=%d kv_dim=%d", cfg.HeadDim, cfg.KVDim)
	}
	if cfg.VocabSize != 3 {
		t.Fatalf("VocabSize = %d, want 3", cfg.VocabSize)
	}
}

func TestTensorNotFound(t *testing.T) {
	path := tinyModelPath(t)
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	if _, err := l.Tensor("does.not.exist"); err == nil {
		t.Fatal("expected error for missing tensor")
	}
}

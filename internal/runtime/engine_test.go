package runtime

import (
	"math"
	"testing"
)

func loadTinyWeights(t *testing.T) (Weights, *Loader) {
	t.Helper()
	path := tinyModelPath(t)
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cfg, err := l.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	w, err := LoadWeights(l, cfg, []int{0}, false)
	if err != nil {
		t.Fatalf("LoadWeights() error = %v", err)
	}
	return w, l
}

func TestEngineStepProducesFiniteOutput(t *testing.T) {
	w, l := loadTinyWeights(t)
	defer l.Close()

	engine, err := NewEngine(w.Config)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	cache := NewKVCacheLayer(int(w.Config.NKVHeads), int(w.Config.ContextLength), int(w.Config.HeadDim))

	x := make([]float32, w.Config.DModel)
	if err := GatherColumn(w.Global.TokenEmbd, 0, x); err != nil {
		t.Fatalf("GatherColumn() error = %v", err)
	}

	if err := engine.Step(w.Layers[0], cache, 0, x); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	for i, v := range x {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("x[%d] = %v, not finite", i, v)
		}
	}
}

func TestEngineStepMultiplePositionsUsesCausalHistory(t *testing.T) {
	w, l := loadTinyWeights(t)
	defer l.Close()

	engine, err := NewEngine(w.Config)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	cache := NewKVCacheLayer(int(w.Config.NKVHeads), int(w.Config.ContextLength), int(w.Config.HeadDim))

	for pos := 0; pos < 3; pos++ {
		x := make([]float32, w.Config.DModel)
		if err := GatherColumn(w.Global.TokenEmbd, pos%3, x); err != nil {
			t.Fatalf("GatherColumn() error = %v", err)
		}
		if err := engine.Step(w.Layers[0], cache, pos, x); err != nil {
			t.Fatalf("Step() at pos %d error = %v", pos, err)
		}
	}
}

func TestEngineRejectsPositionBeyondScratch(t *testing.T) {
	w, l := loadTinyWeights(t)
	defer l.Close()

	engine, err := NewEngine(w.Config)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	cache := NewKVCacheLayer(int(w.Config.NKVHeads), int(w.Config.ContextLength), int(w.Config.HeadDim))
	x := make([]float32, w.Config.DModel)

	if err := engine.Step(w.Layers[0], cache, int(w.Config.ContextLength), x); err == nil {
		t.Fatal("expected error for out-of-range position")
	}
}

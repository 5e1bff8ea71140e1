// Command smokeload loads one transformer block (and optionally the LM
// head) from a GGUF file and reports basic sanity statistics over its
// tensors, to catch dequantization bugs before running a full model.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"llamart/internal/cliutil"
	"llamart/internal/runtime"
)

func main() {
	var layer int
	var lmHead bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "smokeload <model.gguf>",
		Short: "Load one layer and report per-tensor min/max/NaN/Inf stats",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cliutil.Usagef("expected exactly one argument: <model.gguf>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmokeLoad(cmd, args[0], layer, lmHead, cliutil.NewLogger(verbose))
		},
	}
	cmd.Flags().IntVar(&layer, "layer", 0, "layer index to load")
	cmd.Flags().BoolVar(&lmHead, "lm-head", false, "also load and report on the LM head")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "emit slog.Debug diagnostics to stderr")
	cliutil.Run(cmd)
}

func runSmokeLoad(cmd *cobra.Command, path string, layer int, lmHead bool, log *slog.Logger) error {
	log.Debug("opening file", "path", path)
	l, err := runtime.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	cfg, err := l.Config()
	if err != nil {
		return err
	}
	log.Debug("derived config", "n_layers", cfg.NLayers, "d_model", cfg.DModel, "n_heads", cfg.NHeads)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config: n_layers=%d d_model=%d n_heads=%d n_kv_heads=%d head_dim=%d kv_dim=%d ffn_hidden=%d vocab_size=%d\n",
		cfg.NLayers, cfg.DModel, cfg.NHeads, cfg.NKVHeads, cfg.HeadDim, cfg.KVDim, cfg.FFNHiddenDim, cfg.VocabSize)

	log.Debug("loading weights", "layer", layer, "lm_head", lmHead)
	w, err := runtime.LoadWeights(l, cfg, []int{layer}, lmHead)
	if err != nil {
		return err
	}
	lw := w.Layers[0]

	report(out, "attn_norm", lw.AttnNorm)
	report(out, "attn_q", lw.AttnQ)
	report(out, "attn_k", lw.AttnK)
	report(out, "attn_v", lw.AttnV)
	report(out, "attn_output", lw.AttnOutput)
	report(out, "ffn_norm", lw.FFNNorm)
	report(out, "ffn_gate", lw.FFNGate)
	report(out, "ffn_up", lw.FFNUp)
	report(out, "ffn_down", lw.FFNDown)
	report(out, "token_embd", w.Global.TokenEmbd)

	if lmHead {
		report(out, "output_norm", *w.Global.OutputNorm)
		report(out, "output", *w.Global.Output)
	}

	dst := make([]float32, cfg.DModel)
	if err := runtime.GatherColumn(w.Global.TokenEmbd, 0, dst); err != nil {
		return fmt.Errorf("embedding gather sanity check: %w", err)
	}
	fmt.Fprintln(out, "embedding gather sanity check: ok")

	return nil
}

type stats struct {
	min, max   float32
	nans, infs int
	n          int
}

// sample walks data in strides so that reporting stays cheap even on
// very large tensors: the stride is len/1,000,000 rounded down (at least
// 1), so fewer than 2,000,000 samples are inspected.
func sample(data []float32) stats {
	step := 1
	if n := len(data) / 1_000_000; n > 1 {
		step = n
	}

	s := stats{min: float32(math.Inf(1)), max: float32(math.Inf(-1))}
	for i := 0; i < len(data); i += step {
		v := data[i]
		s.n++
		switch {
		case math.IsNaN(float64(v)):
			s.nans++
		case math.IsInf(float64(v), 0):
			s.infs++
		default:
			if v < s.min {
				s.min = v
			}
			if v > s.max {
				s.max = v
			}
		}
	}
	return s
}

func report(out io.Writer, name string, t runtime.TensorF32) {
	s := sample(t.Data)
	fmt.Fprintf(out, "  %-16s numel=%-8d sampled=%-8d min=%-12g max=%-12g nan=%-4d inf=%-4d\n",
		name, t.Numel, s.n, s.min, s.max, s.nans, s.infs)
}

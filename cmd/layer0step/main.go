// Command layer0step gathers a token's embedding, runs one transformer
// block forward step on it at position 0, and prints the first 16 floats
// of the result — a minimal end-to-end smoke test of the numeric path.
package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"llamart/internal/cliutil"
	"llamart/internal/runtime"
)

func main() {
	var token int
	var pos int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "layer0step <model.gguf> --token ID [--pos 0]",
		Short: "Run one transformer block forward step and print the first 16 outputs",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cliutil.Usagef("expected exactly one argument: <model.gguf>")
			}
			if !cmd.Flags().Changed("token") {
				return cliutil.Usagef("--token is required")
			}
			if pos != 0 {
				return cliutil.Usagef("--pos must be 0: this command has no persisted kv cache across invocations")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayer0Step(cmd, args[0], token, pos, cliutil.NewLogger(verbose))
		},
	}
	cmd.Flags().IntVar(&token, "token", 0, "token id to embed")
	cmd.Flags().IntVar(&pos, "pos", 0, "position to run the step at")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "emit slog.Debug diagnostics to stderr")
	cliutil.Run(cmd)
}

func runLayer0Step(cmd *cobra.Command, path string, token, pos int, log *slog.Logger) error {
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
	if cfg.NLayers == 0 {
		return fmt.Errorf("model has no layers")
	}
	log.Debug("derived config", "n_layers", cfg.NLayers, "d_model", cfg.DModel, "context_length", cfg.ContextLength)

	w, err := runtime.LoadWeights(l, cfg, []int{0}, false)
	if err != nil {
		return err
	}

	engine, err := runtime.NewEngine(cfg)
	if err != nil {
		return err
	}
	maxSeq := cfg.ContextLength
	if maxSeq == 0 {
		maxSeq = 2048
	}
	cache := runtime.NewKVCacheLayer(int(cfg.NKVHeads), int(maxSeq), int(cfg.HeadDim))

	x := make([]float32, cfg.DModel)
	if err := runtime.GatherColumn(w.Global.TokenEmbd, token, x); err != nil {
		return err
	}

	log.Debug("running step", "token", token, "pos", pos)
	if err := engine.Step(w.Layers[0], cache, pos, x); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, "layer0 output (first 16 floats):")
	n := 16
	if n > len(x) {
		n = len(x)
	}
	for _, v := range x[:n] {
		fmt.Fprintf(out, " %g", v)
	}
	fmt.Fprintln(out)

	return nil
}

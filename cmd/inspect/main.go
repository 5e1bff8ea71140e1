// Command inspect prints a GGUF file's header, selected metadata,
// tokenizer keys, a dtype histogram, and its tensor directory with
// absolute offsets and byte sizes.
package main

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"llamart/internal/cliutil"
	"llamart/internal/gguf"
	"llamart/internal/mmap"
)

var selectedKeys = []string{
	"general.architecture",
	"general.alignment",
	"llama.block_count",
	"llama.embedding_length",
	"llama.attention.head_count",
	"llama.attention.head_count_kv",
	"llama.feed_forward_length",
	"llama.context_length",
	"llama.rope.dimension_count",
	"llama.rope.freq_base",
	"llama.attention.layer_norm_rms_epsilon",
}

func main() {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "inspect <model.gguf>",
		Short: "Print a GGUF file's header, metadata, and tensor directory",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cliutil.Usagef("expected exactly one argument: <model.gguf>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], cliutil.NewLogger(verbose))
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "emit slog.Debug diagnostics to stderr")
	cliutil.Run(cmd)
}

func runInspect(cmd *cobra.Command, path string, log *slog.Logger) error {
	log.Debug("opening file", "path", path)
	mapped, err := mmap.Open(path)
	if err != nil {
		return err
	}
	defer mapped.Close()

	f, err := gguf.Parse(mapped.Data())
	if err != nil {
		return err
	}
	log.Debug("parsed file", "tensor_count", f.Header.TensorCount, "metadata_kv_count", f.Header.MetadataKVCount)

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "version=%d tensor_count=%d metadata_kv_count=%d data_section_offset=%d\n",
		f.Header.Version, f.Header.TensorCount, f.Header.MetadataKVCount, f.DataSectionOffset)

	fmt.Fprintln(out, "selected metadata:")
	for _, key := range selectedKeys {
		if v, ok := f.KV(key); ok {
			fmt.Fprintf(out, "  %s = %s\n", key, v.String())
		}
	}

	fmt.Fprintln(out, "tokenizer metadata:")
	for _, kv := range f.Metadata {
		if strings.HasPrefix(kv.Key, "tokenizer.") {
			fmt.Fprintf(out, "  %s = %s\n", kv.Key, kv.Value.String())
		}
	}

	fmt.Fprintln(out, "dtype histogram:")
	histogram := map[uint32]int{}
	for _, t := range f.Tensors {
		histogram[t.GGMLType]++
	}
	types := make([]uint32, 0, len(histogram))
	for t := range histogram {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Fprintf(out, "  %s: %d\n", typeName(t), histogram[t])
	}

	fmt.Fprintln(out, "tensors:")
	for _, t := range f.Tensors {
		nbytes, known, err := gguf.TensorNumBytes(t)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		absOff := f.DataSectionOffset + t.Offset
		sizeStr := "unknown"
		if known {
			sizeStr = fmt.Sprintf("%d", nbytes)
		}
		fmt.Fprintf(out, "  %-40s dims=%v type=%s offset=%d size=%s\n", t.Name, t.Dims, typeName(t.GGMLType), absOff, sizeStr)
	}

	return nil
}

func typeName(ggmlType uint32) string {
	if traits, ok := gguf.TypeTraits(ggmlType); ok {
		return traits.Name
	}
	return fmt.Sprintf("unknown(%d)", ggmlType)
}

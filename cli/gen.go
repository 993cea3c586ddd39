package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/cobra"

	"github.com/sarchlab/csim/trace"
	"github.com/sarchlab/csim/workload"
)

type genFlags struct {
	pattern string
	kind    string
	output  string
	spec    workload.Spec
}

func newGenCmd() *cobra.Command {
	flags := &genFlags{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a synthetic trace",
		Long: `gen writes a sequential, strided or random memory trace in valgrind
lackey format. Outputs ending in .gz, .zst or .lz4 are compressed.`,
		Example: `  csim gen --pattern strided --stride 64 --count 1000 -o strided.trace
  csim gen --pattern random --span 65536 --seed 7 -o random.trace.zst`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(cmd.OutOrStdout(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.pattern, "pattern", string(workload.PatternSequential),
		"Access pattern: sequential, strided or random")
	f.StringVar(&flags.kind, "kind", "L",
		"Record kind for sequential and strided patterns: L, S or M")
	f.StringVarP(&flags.output, "output", "o", "",
		"Output file (default stdout)")
	f.IntVar(&flags.spec.Count, "count", 1024, "Number of records")
	f.Uint64Var(&flags.spec.Base, "base", 0, "First address")
	f.Uint64Var(&flags.spec.Stride, "stride", 64, "Distance between strided accesses")
	f.Uint64Var(&flags.spec.Span, "span", 1<<16, "Address range of the random pattern")
	f.Uint32Var(&flags.spec.Size, "size", 8, "Access size in bytes")
	f.Int64Var(&flags.spec.Seed, "seed", 1, "Seed of the random pattern")

	return cmd
}

func runGen(stdout io.Writer, flags *genFlags) error {
	spec := flags.spec
	spec.Pattern = workload.Pattern(strings.ToLower(flags.pattern))

	if len(flags.kind) != 1 {
		return fmt.Errorf("kind must be a single letter, got %q", flags.kind)
	}
	kind, err := trace.KindFromLetter(flags.kind[0])
	if err != nil {
		return err
	}
	spec.Kind = kind

	records, err := workload.Generate(spec)
	if err != nil {
		return err
	}

	out, closeOut, err := createOutput(stdout, flags.output)
	if err != nil {
		return err
	}

	w := trace.NewWriter(out)
	for _, rec := range records {
		if err = w.Write(rec); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}

	return errors.Join(err, closeOut())
}

// createOutput opens path for writing, compressing by extension. An empty
// path writes to stdout.
func createOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	var enc io.WriteCloser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		enc = gzip.NewWriter(f)
	case ".zst":
		enc, err = zstd.NewWriter(f)
	case ".lz4":
		enc = lz4.NewWriter(f)
	default:
		return f, f.Close, nil
	}
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	return enc, func() error {
		return errors.Join(enc.Close(), f.Close())
	}, nil
}

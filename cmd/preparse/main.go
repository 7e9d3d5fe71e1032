// Command preparse compiles WebAssembly modules into artifacts the run
// command loads without parsing or validating them again.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-preparsed/codec"
	"github.com/wippyai/wasm-preparsed/compiler"
	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/internal/cli"
)

// ArtifactExt is the file extension of written artifacts.
const ArtifactExt = ".wpre"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	flags    cli.Flags
	output   string
	outDir   string
	jobs     int
	compress bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "preparse [flags] module.wasm...",
		Short: "Compile WebAssembly modules into preparsed artifacts",
		Long: `preparse parses, validates and translates each module with the
configured engine and writes the serialized result next to the input
(or into --out-dir). The target must load artifacts with an engine of the
same configuration.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), args)
		},
	}
	o.flags.Register(cmd.PersistentFlags())
	fs := cmd.Flags()
	fs.StringVarP(&o.output, "output", "o", "", "artifact path (single input only)")
	fs.StringVar(&o.outDir, "out-dir", "", "directory for artifacts")
	fs.BoolVar(&o.compress, "compress", false, "compress the artifact body with S2")
	fs.IntVarP(&o.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "modules converted in parallel")

	cmd.AddCommand(newConfigCmd(&o.flags))
	return cmd
}

func (o *options) run(ctx context.Context, inputs []string) error {
	if o.output != "" && len(inputs) > 1 {
		return fmt.Errorf("--output takes a single input, got %d; use --out-dir", len(inputs))
	}
	if o.jobs < 1 {
		return fmt.Errorf("--jobs must be positive")
	}
	logger, err := o.flags.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := o.flags.Engine()
	if err != nil {
		return err
	}
	if o.outDir != "" {
		if err := os.MkdirAll(o.outDir, 0o755); err != nil {
			return err
		}
	}

	var opts []codec.Option
	if o.compress {
		opts = append(opts, codec.WithCompression())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.jobs)
	for _, in := range inputs {
		in := in
		out := o.artifactPath(in)
		g.Go(func() error {
			if err := convert(ctx, eng, in, out, opts, logger); err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *options) artifactPath(in string) string {
	if o.output != "" {
		return o.output
	}
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ArtifactExt
	if o.outDir != "" {
		return filepath.Join(o.outDir, name)
	}
	return filepath.Join(filepath.Dir(in), name)
}

func convert(ctx context.Context, eng *engine.Engine, in, out string, opts []codec.Option, logger *zap.Logger) error {
	raw, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	m, err := compiler.Compile(ctx, eng, raw)
	if err != nil {
		return err
	}
	artifact, err := codec.Serialize(m, eng, opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, artifact, 0o644); err != nil {
		return err
	}
	logger.Info("artifact written",
		zap.String("input", in),
		zap.String("output", out),
		zap.Int("wasm_bytes", len(raw)),
		zap.Int("artifact_bytes", len(artifact)),
		zap.Int("functions", len(m.Funcs)),
	)
	return nil
}

func newConfigCmd(flags *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective engine configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := flags.Engine()
			if err != nil {
				return err
			}
			data, err := engine.MarshalConfig(eng.Config())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// Command run loads a preparsed artifact (or, with --wasm, compiles a raw
// module in place), links the device host functions and invokes an export
// under a per-call fuel budget.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-preparsed/internal/cli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	flags    cli.Flags
	wasmFile string
	export   string
	times    int
	fuel     uint64
}

func (o *options) source(args []string) (source, error) {
	switch {
	case o.wasmFile != "" && len(args) > 0:
		return source{}, fmt.Errorf("pass either an artifact or --wasm, not both")
	case o.wasmFile != "":
		return source{path: o.wasmFile, raw: true}, nil
	case len(args) == 1:
		return source{path: args[0]}, nil
	}
	return source{}, fmt.Errorf("an artifact path or --wasm is required")
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "run [flags] [artifact]",
		Short: "Run a preparsed WebAssembly artifact against the device host functions",
		Example: `  run led.wpre
  run --func run --times 5 --fuel 2000 led.wpre
  run --wasm led.wasm`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := o.source(args)
			if err != nil {
				return err
			}
			logger, err := o.flags.Logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return o.run(cmd.Context(), src, logger, cmd.OutOrStdout())
		},
	}
	o.flags.Register(cmd.PersistentFlags())
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.wasmFile, "wasm", "", "compile this raw module on the target instead of loading an artifact")
	pf.Uint64Var(&o.fuel, "fuel", defaultFuel, "fuel granted before every call when the engine meters fuel")
	fs := cmd.Flags()
	fs.StringVar(&o.export, "func", "run", "exported function to call")
	fs.IntVar(&o.times, "times", 2, "number of calls")

	cmd.AddCommand(newInfoCmd(), newConsoleCmd(&o))
	return cmd
}

func (o *options) run(ctx context.Context, src source, logger *zap.Logger, out io.Writer) error {
	s, err := openSession(ctx, &o.flags, src, o.fuel, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	for i := 1; i <= o.times; i++ {
		results, err := s.rt.Run(ctx, o.export)
		if err != nil {
			return fmt.Errorf("call %d of %s: %w", i, o.export, err)
		}
		state := s.rt.Store().Data()
		fmt.Fprintf(out, "call %d: led=%s switches=%d results=%v\n", i, onOff(state.LED), state.Switches, results)
	}
	return nil
}

func newConsoleCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "console [artifact]",
		Short: "Interactive console: pick exports, pass arguments, watch the device state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("console needs a terminal; use run for scripted calls")
			}
			src, err := o.source(args)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), &o.flags, src, o.fuel)
		},
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

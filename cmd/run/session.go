package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/codec"
	"github.com/wippyai/wasm-preparsed/compiler"
	"github.com/wippyai/wasm-preparsed/device"
	"github.com/wippyai/wasm-preparsed/internal/cli"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/runtime"
)

const defaultFuel = runtime.DefaultFuelBudget

// source is the module to run: an artifact, or a raw module when raw is set.
type source struct {
	path string
	raw  bool
}

type session struct {
	rt     *runtime.Runtime[device.ModuleState]
	module *ir.Module
}

// openSession loads src with the configured engine, registers the device
// host functions and starts the instance.
func openSession(ctx context.Context, flags *cli.Flags, src source, fuel uint64, logger *zap.Logger) (*session, error) {
	if fuel == 0 {
		return nil, fmt.Errorf("fuel budget must be positive")
	}
	eng, err := flags.Engine()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src.path)
	if err != nil {
		return nil, err
	}

	var m *ir.Module
	if src.raw {
		m, err = compiler.Compile(ctx, eng, data)
	} else {
		m, _, err = codec.Deserialize(data, eng)
	}
	if err != nil {
		return nil, err
	}

	rt := runtime.New(eng, device.ModuleState{}, runtime.WithFuelPolicy(runtime.ResetPolicy{Budget: fuel}))
	if err := device.Register(rt.Registry(), logger.Named("device")); err != nil {
		_ = rt.Close()
		return nil, err
	}
	if err := rt.Start(ctx, m); err != nil {
		_ = rt.Close()
		return nil, err
	}
	logger.Debug("module started",
		zap.String("path", src.path),
		zap.Bool("parsed_on_target", src.raw),
		zap.Int("exports", len(m.Exports)),
	)
	return &session{rt: rt, module: m}, nil
}

func (s *session) Close() {
	_ = s.rt.Close()
}

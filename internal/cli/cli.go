// Package cli holds the flag and logging setup shared by the preparse and
// run commands.
package cli

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-preparsed/codec"
	"github.com/wippyai/wasm-preparsed/compiler"
	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/linker"
	"github.com/wippyai/wasm-preparsed/runtime"
	"github.com/wippyai/wasm-preparsed/store"
)

// Flags are the options every command accepts.
type Flags struct {
	ConfigFile string
	LogLevel   string
	JSONLogs   bool
}

// Register adds the shared flags to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigFile, "config", "", "engine configuration file (YAML); defaults apply when empty")
	fs.StringVar(&f.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.BoolVar(&f.JSONLogs, "log-json", false, "write logs as JSON")
}

// Level parses the --log-level value.
func (f *Flags) Level() (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(f.LogLevel)
	if err != nil {
		return level, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Logger builds the process logger and installs it in every package.
func (f *Flags) Logger() (*zap.Logger, error) {
	level, err := f.Level()
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	if f.JSONLogs {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	Install(l)
	return l, nil
}

// Install routes the package loggers to l.
func Install(l *zap.Logger) {
	engine.SetLogger(l.Named("engine"))
	compiler.SetLogger(l.Named("compiler"))
	codec.SetLogger(l.Named("codec"))
	linker.SetLogger(l.Named("linker"))
	store.SetLogger(l.Named("store"))
	runtime.SetLogger(l.Named("runtime"))
}

// Engine loads the configuration file, if any, applies opts and returns
// the engine.
func (f *Flags) Engine(opts ...engine.Option) (*engine.Engine, error) {
	cfg := engine.DefaultConfig()
	if f.ConfigFile != "" {
		var err error
		if cfg, err = engine.LoadConfigFile(f.ConfigFile); err != nil {
			return nil, err
		}
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return engine.New(cfg)
}

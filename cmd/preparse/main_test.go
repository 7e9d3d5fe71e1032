package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-preparsed/codec"
	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/testbed"
)

func writeGuest(t *testing.T, dir, name string, raw []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPreparseBatch(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "artifacts")
	led := writeGuest(t, src, "led.wasm", testbed.LEDGuest())
	fib := writeGuest(t, src, "fib.wasm", testbed.FibGuest())

	_, err := execute(t, "--out-dir", dst, "--compress", "--log-level", "error", "-j", "2", led, fib)
	require.NoError(t, err)

	eng, err := engine.NewDefault()
	require.NoError(t, err)
	for _, name := range []string{"led", "fib"} {
		data, err := os.ReadFile(filepath.Join(dst, name+ArtifactExt))
		require.NoError(t, err)
		h, err := codec.Inspect(data)
		require.NoError(t, err)
		assert.True(t, h.Compressed())
		_, _, err = codec.Deserialize(data, eng)
		assert.NoError(t, err, name)
	}
}

func TestPreparseConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("consume_fuel: false\n"), 0o644))
	in := writeGuest(t, dir, "fib.wasm", testbed.FibGuest())
	out := filepath.Join(dir, "fib.bin")

	_, err := execute(t, "--config", cfg, "--log-level", "error", "-o", out, in)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	h, err := codec.Inspect(data)
	require.NoError(t, err)
	assert.False(t, h.Config.ConsumeFuel)
}

func TestPreparseRejectsInvalidModule(t *testing.T) {
	dir := t.TempDir()
	in := writeGuest(t, dir, "bad.wasm", []byte("\x00asm\x01\x00\x00\x00\x01"))

	_, err := execute(t, "--log-level", "error", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), in)
	assert.NoFileExists(t, filepath.Join(dir, "bad"+ArtifactExt))
}

func TestPreparseOutputNeedsSingleInput(t *testing.T) {
	_, err := execute(t, "-o", "x.wpre", "a.wasm", "b.wasm")
	assert.ErrorContains(t, err, "single input")
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	cfg, err := engine.ParseConfig([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), cfg)
}

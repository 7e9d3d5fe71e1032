package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/codec"
	"github.com/wippyai/wasm-preparsed/compiler"
	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/testbed"
)

func writeArtifact(t *testing.T, raw []byte, opts ...engine.Option) string {
	t.Helper()
	eng, err := engine.NewDefault(opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m, err := compiler.Compile(ctx, eng, raw)
	require.NoError(t, err)
	data, err := codec.Serialize(m, eng)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "guest.wpre")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunArtifactTwice(t *testing.T) {
	out, err := execute(t, writeArtifact(t, testbed.LEDGuest()))
	require.NoError(t, err)
	assert.Contains(t, out, "call 1: led=on switches=1")
	assert.Contains(t, out, "call 2: led=off switches=2")
}

func TestRunParsesOnTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "led.wasm")
	require.NoError(t, os.WriteFile(path, testbed.LEDGuest(), 0o644))

	out, err := execute(t, "--wasm", path, "--times", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "call 3: led=on switches=3")
}

func TestRunRejectsForeignArtifact(t *testing.T) {
	path := writeArtifact(t, testbed.LEDGuest(), engine.WithConsumeFuel(false))
	_, err := execute(t, path)
	assert.ErrorContains(t, err, "consume_fuel")
}

func TestRunFuelBudget(t *testing.T) {
	path := writeArtifact(t, testbed.SpinGuest())
	_, err := execute(t, "--func", "spin", "--fuel", "50", path)
	assert.ErrorContains(t, err, "call 1 of spin")

	_, err = execute(t, "--fuel", "0", path)
	assert.ErrorContains(t, err, "must be positive")
}

func TestRunNeedsSource(t *testing.T) {
	_, err := execute(t)
	assert.ErrorContains(t, err, "required")
	_, err = execute(t, "--wasm", "a.wasm", "b.wpre")
	assert.ErrorContains(t, err, "not both")
}

func TestInfo(t *testing.T) {
	out, err := execute(t, "info", writeArtifact(t, testbed.FibGuest()))
	require.NoError(t, err)
	assert.Contains(t, out, "WPRE v1")
	assert.Contains(t, out, "consume_fuel      true")
	assert.Contains(t, out, "compilation_mode  eager")
	assert.Contains(t, out, "fuel_costs")
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		vt   api.ValueType
	}{
		{"-1", 0xFFFFFFFF, api.ValueTypeI32},
		{"4294967295", 0xFFFFFFFF, api.ValueTypeI32},
		{"0x10", 16, api.ValueTypeI32},
		{"-2", math.MaxUint64 - 1, api.ValueTypeI64},
		{"18446744073709551615", math.MaxUint64, api.ValueTypeI64},
		{"1.5", api.EncodeF32(1.5), api.ValueTypeF32},
		{" 2.25 ", api.EncodeF64(2.25), api.ValueTypeF64},
	}
	for _, c := range cases {
		got, err := parseValue(c.in, c.vt)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "4294967296", "x"} {
		_, err := parseValue(bad, api.ValueTypeI32)
		assert.Error(t, err, bad)
	}
	_, err := parseValue("1", api.ValueTypeExternref)
	assert.Error(t, err)
}

func TestFormatValues(t *testing.T) {
	got := formatValues(
		[]uint64{0xFFFFFFFF, 55, api.EncodeF64(0.5)},
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF64},
	)
	assert.Equal(t, "-1, 55, 0.5", got)
}

func TestLogBufferKeepsTail(t *testing.T) {
	var b logBuffer
	for i := 0; i < logLines+3; i++ {
		_, _ = b.Write([]byte{byte('a' + i), '\n'})
	}
	lines := b.Lines()
	require.Len(t, lines, logLines)
	assert.Equal(t, "d", lines[0])
}

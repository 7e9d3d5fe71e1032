package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
consume_fuel: false
compilation_mode: lazy
features: [mutable-global, multi-value]
max_call_depth: 64
max_memory_pages: 2
`))
	require.NoError(t, err)
	assert.False(t, cfg.ConsumeFuel)
	assert.Equal(t, CompilationLazy, cfg.CompilationMode)
	assert.Equal(t, api.CoreFeatureMutableGlobal|api.CoreFeatureMultiValue, cfg.Features)
	assert.Equal(t, 64, cfg.MaxCallDepth)
	assert.Equal(t, uint32(2), cfg.MaxMemoryPages)
	assert.Equal(t, DefaultFuelCosts(), cfg.FuelCosts)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"bad yaml":    "consume_fuel: [",
		"bad feature": "features: [gc]",
		"bad mode":    "compilation_mode: aot",
		"bad depth":   "max_call_depth: -1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestConfigFileRoundTrip(t *testing.T) {
	want := NewConfig(
		WithCompilationMode(CompilationLazy),
		WithFuelCosts(FuelCosts{Base: 2, Memory: 1, Call: 5, BulkBytesPerFuel: 32}),
		WithMaxMemoryPages(4),
	)

	data, err := MarshalConfig(want)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, want.Fingerprint().Compatible(got.Fingerprint()))
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

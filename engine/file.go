package engine

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-preparsed/errors"
)

// fileConfig is the YAML shape of Config.
//
//	consume_fuel: true
//	compilation_mode: eager
//	features: [mutable-global, sign-extension-ops, multi-value]
//	fuel_costs:
//	  base: 1
//	max_call_depth: 512
//	max_memory_pages: 16
type fileConfig struct {
	ConsumeFuel     *bool      `yaml:"consume_fuel"`
	FuelCosts       *FuelCosts `yaml:"fuel_costs"`
	MaxCallDepth    *int       `yaml:"max_call_depth"`
	MaxMemoryPages  *uint32    `yaml:"max_memory_pages"`
	CompilationMode string     `yaml:"compilation_mode"`
	Features        []string   `yaml:"features"`
}

// ParseConfig decodes YAML on top of DefaultConfig. Absent keys keep their
// defaults.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode engine config")
	}

	cfg := DefaultConfig()
	if fc.ConsumeFuel != nil {
		cfg.ConsumeFuel = *fc.ConsumeFuel
	}
	if fc.CompilationMode != "" {
		mode, err := ParseCompilationMode(fc.CompilationMode)
		if err != nil {
			return Config{}, err
		}
		cfg.CompilationMode = mode
	}
	if fc.Features != nil {
		features, err := ParseFeatures(fc.Features)
		if err != nil {
			return Config{}, err
		}
		cfg.Features = features
	}
	if fc.FuelCosts != nil {
		cfg.FuelCosts = *fc.FuelCosts
	}
	if fc.MaxCallDepth != nil {
		cfg.MaxCallDepth = *fc.MaxCallDepth
	}
	if fc.MaxMemoryPages != nil {
		cfg.MaxMemoryPages = *fc.MaxMemoryPages
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile reads and parses a YAML engine config.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read engine config")
	}
	return ParseConfig(data)
}

// MarshalConfig renders cfg as YAML in the same shape ParseConfig reads.
func MarshalConfig(cfg Config) ([]byte, error) {
	costs := cfg.FuelCosts
	fuel := cfg.ConsumeFuel
	depth := cfg.MaxCallDepth
	pages := cfg.MaxMemoryPages
	return yaml.Marshal(fileConfig{
		ConsumeFuel:     &fuel,
		CompilationMode: cfg.CompilationMode.String(),
		Features:        FeatureNames(cfg.Features),
		FuelCosts:       &costs,
		MaxCallDepth:    &depth,
		MaxMemoryPages:  &pages,
	})
}

package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/errors"
)

// CompilationMode controls when function bodies are translated to IR.
type CompilationMode uint8

const (
	// CompilationEager translates every function while compiling the module.
	// It is the only mode whose modules can be serialized.
	CompilationEager CompilationMode = iota
	// CompilationLazy defers translation of each function to its first call.
	CompilationLazy
)

func (m CompilationMode) String() string {
	switch m {
	case CompilationEager:
		return "eager"
	case CompilationLazy:
		return "lazy"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseCompilationMode parses "eager" or "lazy".
func ParseCompilationMode(s string) (CompilationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eager":
		return CompilationEager, nil
	case "lazy":
		return CompilationLazy, nil
	}
	return 0, errors.InvalidInput(errors.PhaseConfig, "unknown compilation mode %q", s)
}

// SupportedFeatures is the set of core features the interpreter executes.
const SupportedFeatures = api.CoreFeatureMutableGlobal |
	api.CoreFeatureSignExtensionOps |
	api.CoreFeatureMultiValue |
	api.CoreFeatureNonTrappingFloatToIntConversion |
	api.CoreFeatureBulkMemoryOperations

var featureNames = map[string]api.CoreFeatures{
	"mutable-global":           api.CoreFeatureMutableGlobal,
	"sign-extension-ops":       api.CoreFeatureSignExtensionOps,
	"multi-value":              api.CoreFeatureMultiValue,
	"nontrapping-float-to-int": api.CoreFeatureNonTrappingFloatToIntConversion,
	"bulk-memory-operations":   api.CoreFeatureBulkMemoryOperations,
	"reference-types":          api.CoreFeatureReferenceTypes,
	"simd":                     api.CoreFeatureSIMD,
}

// ParseFeatures converts feature names into a bitset.
func ParseFeatures(names []string) (api.CoreFeatures, error) {
	var f api.CoreFeatures
	for _, n := range names {
		bit, ok := featureNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, errors.InvalidInput(errors.PhaseConfig, "unknown feature %q", n)
		}
		f |= bit
	}
	return f, nil
}

// FeatureNames returns the sorted names of the enabled features.
func FeatureNames(f api.CoreFeatures) []string {
	var names []string
	for name, bit := range featureNames {
		if f.IsEnabled(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FuelCosts are the per-instruction charges the translator embeds in the
// IR when fuel metering is enabled.
type FuelCosts struct {
	// Base is charged for every instruction.
	Base uint32 `yaml:"base"`
	// Memory is charged on top of Base for loads and stores.
	Memory uint32 `yaml:"memory"`
	// Call is charged on top of Base for direct, indirect and host calls.
	Call uint32 `yaml:"call"`
	// BulkBytesPerFuel is the number of bytes a bulk memory operation may
	// touch per unit of fuel. Zero disables the dynamic charge.
	BulkBytesPerFuel uint32 `yaml:"bulk_bytes_per_fuel"`
}

// DefaultFuelCosts charges one unit per instruction.
func DefaultFuelCosts() FuelCosts {
	return FuelCosts{
		Base:             1,
		Memory:           0,
		Call:             0,
		BulkBytesPerFuel: 64,
	}
}

// Config holds every option that affects execution. The fields above the
// limits block change the shape or meaning of the compiled IR and are part
// of the fingerprint.
type Config struct {
	Features        api.CoreFeatures
	FuelCosts       FuelCosts
	CompilationMode CompilationMode
	ConsumeFuel     bool

	// MaxCallDepth bounds guest call nesting. Exceeding it traps.
	MaxCallDepth int
	// MaxMemoryPages caps memory.grow and initial memory (64KiB pages).
	// 0 means the WebAssembly limit of 65536.
	MaxMemoryPages uint32
}

// DefaultConfig is the configuration of the device target: fuel metering
// on, eager compilation.
func DefaultConfig() Config {
	return Config{
		ConsumeFuel:     true,
		CompilationMode: CompilationEager,
		Features:        SupportedFeatures,
		FuelCosts:       DefaultFuelCosts(),
		MaxCallDepth:    1024,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithConsumeFuel toggles fuel metering.
func WithConsumeFuel(enabled bool) Option {
	return func(c *Config) {
		c.ConsumeFuel = enabled
	}
}

// WithCompilationMode sets translation eagerness.
func WithCompilationMode(m CompilationMode) Option {
	return func(c *Config) {
		c.CompilationMode = m
	}
}

// WithFeatures replaces the enabled core feature set.
func WithFeatures(f api.CoreFeatures) Option {
	return func(c *Config) {
		c.Features = f
	}
}

// WithFuelCosts replaces the fuel cost table.
func WithFuelCosts(costs FuelCosts) Option {
	return func(c *Config) {
		c.FuelCosts = costs
	}
}

// WithMaxCallDepth sets the guest call depth limit.
func WithMaxCallDepth(depth int) Option {
	return func(c *Config) {
		c.MaxCallDepth = depth
	}
}

// WithMaxMemoryPages caps linear memory size.
func WithMaxMemoryPages(pages uint32) Option {
	return func(c *Config) {
		c.MaxMemoryPages = pages
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate rejects configurations the interpreter cannot honor.
func (c Config) Validate() error {
	if unsupported := c.Features &^ SupportedFeatures; unsupported != 0 {
		return errors.Unsupported(errors.PhaseConfig, "core features %s", unsupported.String())
	}
	if c.CompilationMode > CompilationLazy {
		return errors.InvalidInput(errors.PhaseConfig, "unknown compilation mode %d", c.CompilationMode)
	}
	if c.MaxCallDepth <= 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max call depth must be positive, got %d", c.MaxCallDepth)
	}
	if c.MaxMemoryPages > MaxPages {
		return errors.InvalidInput(errors.PhaseConfig, "max memory pages %d exceeds %d", c.MaxMemoryPages, MaxPages)
	}
	if c.ConsumeFuel && c.FuelCosts.Base == 0 {
		return errors.InvalidInput(errors.PhaseConfig, "fuel metering needs a non-zero base cost")
	}
	return nil
}

// MemoryLimitPages returns the effective memory page cap.
func (c Config) MemoryLimitPages() uint32 {
	if c.MaxMemoryPages == 0 {
		return MaxPages
	}
	return c.MaxMemoryPages
}

// MaxPages is the WebAssembly 32-bit memory limit in 64KiB pages.
const MaxPages uint32 = 65536

package engine

import (
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/errors"
)

// Fingerprint is the explicit record of every Config field that affects
// the compiled IR. Two engines are compatible iff their fingerprints are
// equal.
type Fingerprint struct {
	Features        api.CoreFeatures
	FuelCosts       FuelCosts
	CompilationMode CompilationMode
	ConsumeFuel     bool
}

// Fingerprint returns the compatibility record of c.
func (c Config) Fingerprint() Fingerprint {
	return Fingerprint{
		ConsumeFuel:     c.ConsumeFuel,
		CompilationMode: c.CompilationMode,
		Features:        c.Features,
		FuelCosts:       c.FuelCosts,
	}
}

// Diff lists the fields that differ, reporting f as the artifact side and
// loader as the engine side. An empty result means compatible.
func (f Fingerprint) Diff(loader Fingerprint) []errors.FieldDiff {
	var diffs []errors.FieldDiff
	add := func(field, artifact, engine string) {
		if artifact != engine {
			diffs = append(diffs, errors.FieldDiff{Field: field, Artifact: artifact, Loader: engine})
		}
	}

	add("consume_fuel", strconv.FormatBool(f.ConsumeFuel), strconv.FormatBool(loader.ConsumeFuel))
	add("compilation_mode", f.CompilationMode.String(), loader.CompilationMode.String())
	if f.Features != loader.Features {
		diffs = append(diffs, errors.FieldDiff{
			Field:    "features",
			Artifact: FormatFeatures(f.Features),
			Loader:   FormatFeatures(loader.Features),
		})
	}
	// Fuel costs only shape the IR when metering is on for both sides.
	if f.ConsumeFuel && loader.ConsumeFuel {
		add("fuel_costs.base", u32(f.FuelCosts.Base), u32(loader.FuelCosts.Base))
		add("fuel_costs.memory", u32(f.FuelCosts.Memory), u32(loader.FuelCosts.Memory))
		add("fuel_costs.call", u32(f.FuelCosts.Call), u32(loader.FuelCosts.Call))
		add("fuel_costs.bulk_bytes_per_fuel", u32(f.FuelCosts.BulkBytesPerFuel), u32(loader.FuelCosts.BulkBytesPerFuel))
	}
	return diffs
}

// Compatible reports whether an artifact built under f can be loaded by an
// engine with fingerprint loader.
func (f Fingerprint) Compatible(loader Fingerprint) bool {
	return len(f.Diff(loader)) == 0
}

// FormatFeatures names the known bits of f and appends the rest in hex.
func FormatFeatures(f api.CoreFeatures) string {
	names := FeatureNames(f)
	var known api.CoreFeatures
	for _, n := range names {
		known |= featureNames[n]
	}
	if rest := f &^ known; rest != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

package store

import (
	"github.com/wippyai/wasm-preparsed/errors"
)

var errFuelDisabled = errors.New(errors.PhaseRuntime, errors.KindFuelDisabled).
	Detail("fuel metering is disabled for this engine").
	Build()

// Meter is a fuel counter. Its zero value is disabled.
type Meter struct {
	remaining uint64
	enabled   bool
}

// NewMeter returns a meter with no fuel. A disabled meter rejects SetFuel
// and Fuel and never charges.
func NewMeter(enabled bool) *Meter {
	return &Meter{enabled: enabled}
}

// Enabled reports whether metering is on.
func (m *Meter) Enabled() bool {
	return m.enabled
}

// Set replaces the remaining fuel.
func (m *Meter) Set(n uint64) error {
	if !m.enabled {
		return errFuelDisabled
	}
	m.remaining = n
	return nil
}

// Add tops up the remaining fuel, saturating at the uint64 maximum.
func (m *Meter) Add(n uint64) error {
	if !m.enabled {
		return errFuelDisabled
	}
	if m.remaining+n < m.remaining {
		m.remaining = ^uint64(0)
	} else {
		m.remaining += n
	}
	return nil
}

// Remaining returns the fuel left.
func (m *Meter) Remaining() (uint64, error) {
	if !m.enabled {
		return 0, errFuelDisabled
	}
	return m.remaining, nil
}

// Consume deducts n. On shortfall the counter is left unchanged and
// ErrFuelExhausted is returned, so a refill followed by a retry charges the
// same amount again. A disabled meter consumes nothing.
func (m *Meter) Consume(n uint64) (uint64, error) {
	if !m.enabled {
		return 0, nil
	}
	if n > m.remaining {
		return m.remaining, errors.ErrFuelExhausted
	}
	m.remaining -= n
	return m.remaining, nil
}

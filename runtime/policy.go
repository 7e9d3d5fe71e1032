package runtime

import (
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/wippyai/wasm-preparsed/store"
)

// DefaultFuelBudget is the fuel granted to every invocation by the default
// policy.
const DefaultFuelBudget = 1000

// FuelPolicy decides how much fuel a store holds before each external
// invocation. Policies are not consulted when metering is disabled.
type FuelPolicy interface {
	Refill(m *store.Meter) error
}

// ResetPolicy sets the fuel to Budget before every call, so each call is
// bounded independently.
type ResetPolicy struct {
	Budget uint64
}

func (p ResetPolicy) Refill(m *store.Meter) error {
	return m.Set(p.Budget)
}

// CumulativePolicy never refills: all calls draw from whatever the host
// put into the store with SetFuel or AddFuel.
type CumulativePolicy struct{}

func (CumulativePolicy) Refill(*store.Meter) error {
	return nil
}

// ClockPolicy grants Amount fuel per elapsed Interval of real time, up to
// Capacity. The first refill fills the store to Capacity.
//
// A ClockPolicy belongs to one Runtime and, like it, must only be used
// from one goroutine at a time.
type ClockPolicy struct {
	clock    clock.Clock
	last     time.Time
	interval time.Duration
	amount   uint64
	capacity uint64
	started  bool
}

// NewClockPolicy creates a rate-based policy reading time from clk.
func NewClockPolicy(clk clock.Clock, interval time.Duration, amount, capacity uint64) *ClockPolicy {
	if interval <= 0 {
		interval = time.Second
	}
	return &ClockPolicy{clock: clk, interval: interval, amount: amount, capacity: capacity}
}

func (p *ClockPolicy) Refill(m *store.Meter) error {
	now := p.clock.Now()
	if !p.started {
		p.started = true
		p.last = now
		return m.Set(p.capacity)
	}

	ticks := uint64(now.Sub(p.last) / p.interval)
	if ticks == 0 {
		return nil
	}
	p.last = p.last.Add(time.Duration(ticks) * p.interval)

	remaining, err := m.Remaining()
	if err != nil {
		return err
	}
	earned := ticks * p.amount
	if p.amount != 0 && earned/p.amount != ticks {
		earned = p.capacity
	}
	if remaining >= p.capacity {
		return nil
	}
	return m.Set(remaining + min(earned, p.capacity-remaining))
}

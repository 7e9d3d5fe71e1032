package store

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
)

// Store is the execution context of one module instance: the host state
// passed to every host function, the instance's linear memory and the fuel
// meter.
//
// A Store is not safe for concurrent use. Host state is owned by whichever
// call is currently executing.
type Store[T any] struct {
	data   T
	engine *engine.Engine
	meter  *Meter
	memory *Memory
	owner  any
	logger *zap.Logger
	closed bool
}

// New creates a store for eng holding data. Fuel starts at zero when
// metering is enabled.
func New[T any](eng *engine.Engine, data T) *Store[T] {
	return &Store[T]{
		data:   data,
		engine: eng,
		meter:  NewMeter(eng.ConsumeFuel()),
		logger: Logger(),
	}
}

// Engine returns the engine the store was created for.
func (s *Store[T]) Engine() *engine.Engine {
	return s.engine
}

// Data returns a pointer to the host state.
func (s *Store[T]) Data() *T {
	return &s.data
}

// SetFuel replaces the remaining fuel. It fails with fuel_disabled when
// the engine does not meter.
func (s *Store[T]) SetFuel(n uint64) error {
	return s.meter.Set(n)
}

// AddFuel tops up the remaining fuel.
func (s *Store[T]) AddFuel(n uint64) error {
	return s.meter.Add(n)
}

// Fuel returns the remaining fuel.
func (s *Store[T]) Fuel() (uint64, error) {
	return s.meter.Remaining()
}

// Consume deducts n units of fuel; see Meter.Consume.
func (s *Store[T]) Consume(n uint64) (uint64, error) {
	return s.meter.Consume(n)
}

// Meter returns the store's fuel meter.
func (s *Store[T]) Meter() *Meter {
	return s.meter
}

// Memory returns the bound instance's linear memory, or nil when no
// instance is bound or the module has no memory.
func (s *Store[T]) Memory() *Memory {
	return s.memory
}

// Bind attaches an instance and its memory. A store holds at most one
// instance.
func (s *Store[T]) Bind(owner any, mem *Memory) error {
	if s.closed {
		return errors.NotInitialized(errors.PhaseInstantiate, "store")
	}
	if s.owner != nil {
		return errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
			Detail("store already holds an instance").
			Build()
	}
	s.owner = owner
	s.memory = mem
	s.logger.Debug("instance bound", zap.Uint32("memory_pages", mem.Pages()))
	return nil
}

// Unbind detaches owner, if it is the bound instance.
func (s *Store[T]) Unbind(owner any) {
	if s.owner == owner {
		s.owner = nil
		s.memory = nil
	}
}

// Owns reports whether owner is the instance bound to this store.
func (s *Store[T]) Owns(owner any) bool {
	return !s.closed && owner != nil && s.owner == owner
}

// Close discards the instance binding and memory. Calls through the store
// fail afterwards.
func (s *Store[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.owner = nil
	s.memory = nil
	s.logger.Debug("store closed")
	return nil
}

// Closed reports whether Close was called.
func (s *Store[T]) Closed() bool {
	return s.closed
}

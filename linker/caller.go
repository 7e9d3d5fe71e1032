package linker

import (
	preparsed "github.com/wippyai/wasm-preparsed"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/store"
)

// Caller is the view of the calling instance handed to a host function:
// the store's host state, the instance's linear memory and its fuel.
type Caller[T any] struct {
	store   *store.Store[T]
	binding *Binding[T]
}

// Data returns the host state. Host functions own it for the duration of
// the call.
func (c *Caller[T]) Data() *T {
	return c.store.Data()
}

// Memory returns the caller's linear memory. A module without memory gets
// a zero-sized memory on which every access traps.
func (c *Caller[T]) Memory() preparsed.Memory {
	if m := c.store.Memory(); m != nil {
		return m
	}
	return noMemory
}

// Fuel returns the fuel left in the store.
func (c *Caller[T]) Fuel() (uint64, error) {
	return c.store.Fuel()
}

// ConsumeFuel charges n units for work done on the guest's behalf. Running
// out aborts the guest call with ErrFuelExhausted.
func (c *Caller[T]) ConsumeFuel(n uint64) error {
	_, err := c.store.Consume(n)
	return err
}

// Name returns the import path of the function being called.
func (c *Caller[T]) Name() string {
	return c.binding.Path()
}

// Store returns the execution context of the call.
func (c *Caller[T]) Store() *store.Store[T] {
	return c.store
}

var noMemory = store.NewMemory(0, 0)

// MemoryRange validates that [ptr, ptr+length) lies inside mem, returning
// the trap host functions should report otherwise.
func MemoryRange(mem preparsed.MemorySizer, ptr, length uint32) error {
	size := mem.Size()
	if uint64(ptr)+uint64(length) > size {
		return errors.MemoryOutOfBounds(uint64(ptr), uint64(length), size)
	}
	return nil
}

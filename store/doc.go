// Package store holds the execution context of a module instance.
//
// A Store[T] owns the host state T handed to host functions, the linear
// memory of its single instance and the fuel meter. Fuel is never reset
// automatically: callers set or top it up between calls, or use a
// runtime.FuelPolicy to do so.
//
// Stores are single-threaded. No locks guard the host state; a call owns
// it exclusively for its duration.
package store

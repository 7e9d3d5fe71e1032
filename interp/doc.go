// Package interp executes translated modules.
//
// An Instance holds the mutable state of one instantiated module: linear
// memory, tables, globals and the dropped-segment flags. Call runs a
// function until it returns, traps or runs out of fuel. The interpreter
// keeps its own frame stack, so guest recursion never grows the Go stack
// and is bounded by MaxCallDepth.
//
// Values are untyped 64-bit slots. i32 and f32 values occupy the low 32
// bits and the upper bits are always zero.
//
// Fuel is charged by the OpFuel instructions the translator embedded at the
// start of each basic block. When a charge cannot be paid, Call returns
// errors.ErrFuelExhausted and the remaining fuel is left untouched. The
// context is polled at fuel checkpoints, calls and loop back-edges.
package interp

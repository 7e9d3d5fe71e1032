// Package compiler turns raw WebAssembly binaries into executable IR.
//
// Compile runs two steps. Validate type-checks the module with wazero under
// the engine's core features and decodes it; Translate lowers every
// function body into a flat ir.Instr array:
//
//   - structured control flow becomes jumps with resolved targets and the
//     stack height and arity each branch restores
//   - when fuel metering is enabled, each basic block begins with an
//     OpFuel instruction charging the summed cost of the block, using the
//     engine's FuelCosts
//   - in lazy mode bodies are translated on first call instead
//
// Only the authoring host needs this package. Targets load artifacts
// through the codec package and never parse or validate.
package compiler

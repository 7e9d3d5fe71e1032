// Package ir defines the executable module representation shared by the
// compiler, the artifact codec and the interpreter.
//
// Function bodies are flat instruction arrays. Branch targets are resolved
// to instruction indices and carry the stack height and arity to restore,
// so the interpreter never scans for matching ends. When the module was
// compiled with fuel metering, every basic block starts with an OpFuel
// instruction holding the summed cost of the block.
//
// A Module is read-only after construction. Lazily compiled functions are
// translated on first use under a sync.Once, so a Module can be shared
// across goroutines.
package ir

package engine

import (
	"github.com/tetratelabs/wazero"
)

// WazeroConfig returns a wazero runtime configuration with the same core
// features and memory cap as e. The compiler validates modules with it and
// tests use it to run reference executions.
func (e *Engine) WazeroConfig() wazero.RuntimeConfig {
	return wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(e.config.Features).
		WithMemoryLimitPages(e.config.MemoryLimitPages()).
		WithCloseOnContextDone(true)
}

package compiler

import (
	"bytes"
	"context"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/ir"
)

// Compile validates raw and translates it into an executable module under
// eng. Invalid input is rejected with a validate- or parse-phase error and
// nothing is produced.
func Compile(ctx context.Context, eng *engine.Engine, raw []byte) (*ir.Module, error) {
	// Lazy function bodies alias the decoded input until first use.
	if eng.Config().CompilationMode == engine.CompilationLazy {
		raw = bytes.Clone(raw)
	}
	m, err := Validate(ctx, eng, raw)
	if err != nil {
		return nil, err
	}
	return Translate(eng, m)
}

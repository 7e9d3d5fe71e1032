package compiler

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/wasm"
)

// Validate fully validates raw under eng's feature set and decodes it.
// Type checking is delegated to wazero; on top of that, modules that need
// more than the interpreter offers (non-function imports, several memories
// or tables) are rejected.
func Validate(ctx context.Context, eng *engine.Engine, raw []byte) (*wasm.Module, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, eng.WazeroConfig())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, raw)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "module failed validation")
	}
	defer compiled.Close(ctx)

	m, err := wasm.ParseModule(raw)
	if err != nil {
		return nil, errors.ParseFailed("module", err)
	}

	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			return nil, errors.New(errors.PhaseValidate, errors.KindUnsupported).
				Path(imp.Module, imp.Name).
				Detail("only function imports are supported").
				Build()
		}
	}
	if len(m.Memories) > 1 {
		return nil, errors.Unsupported(errors.PhaseValidate, "%d memories", len(m.Memories))
	}
	if len(m.Tables) > 1 {
		return nil, errors.Unsupported(errors.PhaseValidate, "%d tables", len(m.Tables))
	}

	// The decoder and the validator must agree on the import signatures
	// the linker will check.
	defs := compiled.ImportedFunctions()
	if len(defs) != len(m.Imports) {
		return nil, errors.InvalidData(errors.PhaseValidate, "validator saw %d function imports, decoder %d", len(defs), len(m.Imports))
	}
	for i, def := range defs {
		ns, name, _ := def.Import()
		ft := m.Types[m.Imports[i].Desc.TypeIdx]
		if ns != m.Imports[i].Module || name != m.Imports[i].Name ||
			!ft.Equal(wasm.FuncType{Params: def.ParamTypes(), Results: def.ResultTypes()}) {
			return nil, errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Path(ns, name).
				Detail("import %d decoded as %s.%s %s", i, m.Imports[i].Module, m.Imports[i].Name, ft).
				Build()
		}
	}

	Logger().Debug("module validated",
		zap.Int("imports", len(defs)),
		zap.Int("exports", len(compiled.ExportedFunctions())),
		zap.Int("functions", len(m.Funcs)),
		zap.String("size", fmt.Sprintf("%dB", len(raw))),
	)
	return m, nil
}

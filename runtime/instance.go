package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	preparsed "github.com/wippyai/wasm-preparsed"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/interp"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/linker"
	"github.com/wippyai/wasm-preparsed/store"
)

// Instance is a module instantiated into one store. Every call must pass
// that store; the instance is not safe for concurrent use.
type Instance[T any] struct {
	module *ir.Module
	inst   *interp.Instance
	store  *store.Store[T]
}

// Instantiate allocates memory, tables and globals for m in st, applies
// its element and data segments and runs the start function once. On
// failure the store is left without an instance and the error is an
// instantiation error wrapping the cause.
func Instantiate[T any](ctx context.Context, m *ir.Module, imports *linker.Imports[T], st *store.Store[T]) (*Instance[T], error) {
	switch {
	case m == nil:
		return nil, errors.Instantiation(errors.InvalidInput(errors.PhaseInstantiate, "nil module"))
	case st == nil:
		return nil, errors.Instantiation(errors.InvalidInput(errors.PhaseInstantiate, "nil store"))
	case st.Closed():
		return nil, errors.Instantiation(errors.NotInitialized(errors.PhaseInstantiate, "store"))
	case imports == nil || imports.Module() != m:
		return nil, errors.Instantiation(errors.InvalidInput(errors.PhaseInstantiate, "imports were linked for a different module"))
	}
	if diffs := m.Config.Diff(st.Engine().Fingerprint()); len(diffs) > 0 {
		return nil, errors.Instantiation(&errors.ConfigMismatchError{Phase: errors.PhaseInstantiate, Diffs: diffs})
	}

	in, err := interp.New(m, imports.Bind(st), st.Meter(), interp.LimitsFromConfig(st.Engine().Config()))
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	i := &Instance[T]{module: m, inst: in, store: st}
	if err := st.Bind(i, in.Memory); err != nil {
		return nil, errors.Instantiation(err)
	}
	if err := in.Init(ctx); err != nil {
		st.Unbind(i)
		Logger().Debug("instantiation failed", zap.Error(err))
		return nil, errors.Instantiation(err)
	}

	Logger().Debug("module instantiated",
		zap.Int("imports", len(m.Imports)),
		zap.Int("exports", len(m.Exports)),
		zap.Uint32("memory_pages", in.Memory.Pages()),
	)
	return i, nil
}

// Module returns the instantiated module.
func (i *Instance[T]) Module() *ir.Module {
	return i.module
}

// Memory returns the instance's linear memory. A module without memory
// has a zero-sized one.
func (i *Instance[T]) Memory() preparsed.Memory {
	return i.inst.Memory
}

func (i *Instance[T]) check(st *store.Store[T]) error {
	if st != i.store {
		return errors.ContextMismatch()
	}
	if !st.Owns(i) {
		return errors.NotInitialized(errors.PhaseRuntime, "instance")
	}
	return nil
}

// Call invokes the exported function name with raw argument slots. st
// must be the store the instance was created in. Unknown exports and
// wrong argument counts are reported without running anything; a trap or
// fuel exhaustion leaves the instance callable.
func (i *Instance[T]) Call(ctx context.Context, st *store.Store[T], name string, args ...uint64) ([]uint64, error) {
	f, err := i.Func(name)
	if err != nil {
		return nil, err
	}
	return f.Call(ctx, st, args...)
}

// FuncDefinition describes an exported function.
type FuncDefinition struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Index   uint32
}

// ExportedFunc is a resolved function export.
type ExportedFunc[T any] struct {
	instance *Instance[T]
	def      FuncDefinition
}

// Func resolves the function export name.
func (i *Instance[T]) Func(name string) (*ExportedFunc[T], error) {
	e, ok := i.module.Export(name)
	if !ok || e.Kind != ir.ExportFunc {
		return nil, errors.UnknownExport(name)
	}
	ft, ok := i.module.FuncType(e.Index)
	if !ok {
		return nil, errors.UnknownExport(name)
	}
	return &ExportedFunc[T]{
		instance: i,
		def:      FuncDefinition{Name: name, Params: ft.Params, Results: ft.Results, Index: e.Index},
	}, nil
}

// Definition returns the signature of the export.
func (f *ExportedFunc[T]) Definition() FuncDefinition {
	return f.def
}

// Call invokes the function; see Instance.Call.
func (f *ExportedFunc[T]) Call(ctx context.Context, st *store.Store[T], args ...uint64) ([]uint64, error) {
	i := f.instance
	if err := i.check(st); err != nil {
		return nil, err
	}
	if len(args) != len(f.def.Params) {
		return nil, errors.TypeMismatch(f.def.Name, "expected %d arguments, got %d", len(f.def.Params), len(args))
	}
	for n, t := range f.def.Params {
		if (t == api.ValueTypeI32 || t == api.ValueTypeF32) && args[n]>>32 != 0 {
			return nil, errors.TypeMismatch(f.def.Name, "argument %d: %#x is not a valid %s", n, args[n], api.ValueTypeName(t))
		}
	}

	results, err := i.inst.Call(ctx, f.def.Index, args)
	if err != nil {
		Logger().Debug("call failed", zap.String("export", f.def.Name), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// Global is the value of an exported global.
type Global struct {
	Value   uint64
	Type    api.ValueType
	Mutable bool
}

// ExportedGlobal reads the global export name.
func (i *Instance[T]) ExportedGlobal(name string) (Global, error) {
	e, ok := i.module.Export(name)
	if !ok || e.Kind != ir.ExportGlobal {
		return Global{}, errors.UnknownExport(name)
	}
	v, ok := i.inst.Global(e.Index)
	if !ok || int(e.Index) >= len(i.module.Globals) {
		return Global{}, errors.UnknownExport(name)
	}
	g := i.module.Globals[e.Index]
	return Global{Value: v, Type: g.Type, Mutable: g.Mutable}, nil
}

// Close detaches the instance from its store. Later calls fail.
func (i *Instance[T]) Close() {
	i.store.Unbind(i)
}

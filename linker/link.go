package linker

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/interp"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/store"
)

// Imports is the resolution of every import of one module, in declaration
// order. It is only produced when all imports resolved.
type Imports[T any] struct {
	module   *ir.Module
	bindings []*Binding[T]
}

// Module returns the module the imports were resolved for.
func (im *Imports[T]) Module() *ir.Module {
	return im.module
}

// Bindings returns the resolved bindings in import order.
func (im *Imports[T]) Bindings() []*Binding[T] {
	return im.bindings
}

// Bind adapts the bindings to the interpreter's calling convention. Every
// call receives a Caller on st.
func (im *Imports[T]) Bind(st *store.Store[T]) []interp.HostFunc {
	out := make([]interp.HostFunc, len(im.bindings))
	for i, b := range im.bindings {
		c := &Caller[T]{store: st, binding: b}
		fn := b.Func
		out[i] = func(ctx context.Context, stack []uint64) error {
			return fn(ctx, c, stack)
		}
	}
	return out
}

// Link resolves every import of m. Missing functions and signature
// mismatches are all reported in one *errors.LinkError; unused bindings are
// ignored.
func (r *Registry[T]) Link(m *ir.Module) (*Imports[T], error) {
	if m == nil {
		return nil, errors.InvalidInput(errors.PhaseLinking, "nil module")
	}

	bindings := make([]*Binding[T], len(m.Imports))
	var err error
	for i, imp := range m.Imports {
		want := m.ImportType(i)
		b, ok := r.Lookup(imp.Namespace, imp.Name)
		switch {
		case !ok:
			err = multierr.Append(err, &errors.MissingImportError{Namespace: imp.Namespace, Name: imp.Name})
		case !b.Type.Equal(want):
			err = multierr.Append(err, &errors.SignatureMismatchError{
				Namespace: imp.Namespace,
				Name:      imp.Name,
				Want:      want.String(),
				Have:      b.Type.String(),
			})
		default:
			bindings[i] = b
		}
	}
	if err != nil {
		errs := multierr.Errors(err)
		Logger().Debug("link failed", zap.Int("errors", len(errs)))
		return nil, &errors.LinkError{Errors: errs}
	}

	Logger().Debug("module linked", zap.Int("imports", len(bindings)))
	return &Imports[T]{module: m, bindings: bindings}, nil
}

// Resolver supplies the implementation of one import, or false when the
// host does not provide it.
type Resolver[T any] func(imp ir.Import, sig ir.FuncType) (HostFunc[T], bool)

// ForModule builds a registry by asking resolve for each import of m.
// Imports it declines are left out, so a later Link reports them missing.
func ForModule[T any](m *ir.Module, resolve Resolver[T]) (*Registry[T], error) {
	r := NewRegistry[T]()
	var err error
	for i, imp := range m.Imports {
		if _, dup := r.Lookup(imp.Namespace, imp.Name); dup {
			continue
		}
		sig := m.ImportType(i)
		fn, ok := resolve(imp, sig)
		if !ok {
			continue
		}
		err = multierr.Append(err, r.Register(imp.Namespace, imp.Name, sig, fn))
	}
	return r, err
}

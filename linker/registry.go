package linker

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
)

// HostFunc implements an imported function. Params arrive in stack[:p] and
// results must be written to stack[:r]. A returned error traps the guest.
type HostFunc[T any] func(ctx context.Context, c *Caller[T], stack []uint64) error

// Binding associates an import key with its signature and implementation.
type Binding[T any] struct {
	Func      HostFunc[T]
	Namespace string
	Name      string
	Type      ir.FuncType
}

// Path returns "namespace.name".
func (b *Binding[T]) Path() string {
	return b.Namespace + "." + b.Name
}

type key struct {
	namespace string
	name      string
}

// Registry holds host function bindings keyed by (namespace, name). It is
// safe for concurrent use and can link any number of modules.
type Registry[T any] struct {
	bindings map[key]*Binding[T]
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{bindings: make(map[key]*Binding[T])}
}

var errDuplicate = errors.New(errors.PhaseHost, errors.KindRegistration).
	Detail("already registered").
	Build()

// Register adds a binding. Registering the same (namespace, name) twice is
// an error.
func (r *Registry[T]) Register(namespace, name string, sig ir.FuncType, fn HostFunc[T]) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}
	if fn == nil {
		return errors.InvalidInput(errors.PhaseHost, "nil host function for %s.%s", namespace, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{namespace, name}
	if _, ok := r.bindings[k]; ok {
		return errors.Registration(namespace, name, errDuplicate)
	}
	r.bindings[k] = &Binding[T]{Namespace: namespace, Name: name, Type: sig, Func: fn}

	Logger().Debug("host function registered",
		zap.String("namespace", namespace),
		zap.String("name", name),
		zap.Stringer("type", sig),
	)
	return nil
}

// Lookup returns the binding for (namespace, name).
func (r *Registry[T]) Lookup(namespace, name string) (*Binding[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[key{namespace, name}]
	return b, ok
}

// Len returns the number of bindings.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Bindings returns every binding sorted by namespace, then name.
func (r *Registry[T]) Bindings() []*Binding[T] {
	r.mu.RLock()
	out := make([]*Binding[T], 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

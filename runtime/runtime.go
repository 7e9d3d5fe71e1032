package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/linker"
	"github.com/wippyai/wasm-preparsed/store"
)

// Runtime owns one store, the host function registry and at most one
// instance, and applies a FuelPolicy before every external invocation.
// It is not safe for concurrent use.
type Runtime[T any] struct {
	engine   *engine.Engine
	store    *store.Store[T]
	registry *linker.Registry[T]
	policy   FuelPolicy
	instance *Instance[T]
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	policy FuelPolicy
}

// WithFuelPolicy replaces the default ResetPolicy{DefaultFuelBudget}.
func WithFuelPolicy(p FuelPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// New creates a runtime for eng holding data as host state.
func New[T any](eng *engine.Engine, data T, opts ...Option) *Runtime[T] {
	o := options{policy: ResetPolicy{Budget: DefaultFuelBudget}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Runtime[T]{
		engine:   eng,
		store:    store.New(eng, data),
		registry: linker.NewRegistry[T](),
		policy:   o.policy,
	}
}

// Engine returns the runtime's engine.
func (r *Runtime[T]) Engine() *engine.Engine {
	return r.engine
}

// Store returns the runtime's execution context.
func (r *Runtime[T]) Store() *store.Store[T] {
	return r.store
}

// Registry returns the host function registry. Register functions before
// Start.
func (r *Runtime[T]) Registry() *linker.Registry[T] {
	return r.registry
}

// Instance returns the started instance, or nil.
func (r *Runtime[T]) Instance() *Instance[T] {
	return r.instance
}

// Start links m against the registry and instantiates it, running its
// start function under the fuel policy.
func (r *Runtime[T]) Start(ctx context.Context, m *ir.Module) error {
	if r.instance != nil {
		return errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
			Detail("runtime already started").
			Build()
	}
	imports, err := r.registry.Link(m)
	if err != nil {
		return err
	}
	if err := r.refill(); err != nil {
		return err
	}
	inst, err := Instantiate(ctx, m, imports, r.store)
	if err != nil {
		return err
	}
	r.instance = inst
	return nil
}

// Run refills fuel according to the policy and calls the export name.
func (r *Runtime[T]) Run(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if r.instance == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance")
	}
	if err := r.refill(); err != nil {
		return nil, err
	}
	results, err := r.instance.Call(ctx, r.store, name, args...)
	if fuel, ferr := r.store.Fuel(); ferr == nil {
		Logger().Debug("invocation finished", zap.String("export", name), zap.Uint64("fuel_left", fuel), zap.Error(err))
	}
	return results, err
}

func (r *Runtime[T]) refill() error {
	if !r.store.Meter().Enabled() || r.policy == nil {
		return nil
	}
	return r.policy.Refill(r.store.Meter())
}

// Close releases the instance and the store.
func (r *Runtime[T]) Close() error {
	if r.instance != nil {
		r.instance.Close()
		r.instance = nil
	}
	return r.store.Close()
}

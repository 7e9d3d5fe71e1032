package linker

import (
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-preparsed/ir"
)

// NamespaceBuilder registers several functions under one namespace. Errors
// are collected and reported together by Build.
type NamespaceBuilder[T any] struct {
	registry  *Registry[T]
	err       error
	namespace string
}

// Namespace starts registering functions under namespace.
func (r *Registry[T]) Namespace(namespace string) *NamespaceBuilder[T] {
	return &NamespaceBuilder[T]{registry: r, namespace: namespace}
}

// Func adds a function with an explicit signature.
func (b *NamespaceBuilder[T]) Func(name string, sig ir.FuncType, fn HostFunc[T]) *NamespaceBuilder[T] {
	b.err = multierr.Append(b.err, b.registry.Register(b.namespace, name, sig, fn))
	return b
}

// TypedFunc adds a typed Go function, see Registry.RegisterFunc.
func (b *NamespaceBuilder[T]) TypedFunc(name string, fn any) *NamespaceBuilder[T] {
	b.err = multierr.Append(b.err, b.registry.RegisterFunc(b.namespace, name, fn))
	return b
}

// Build returns every registration error.
func (b *NamespaceBuilder[T]) Build() error {
	return b.err
}

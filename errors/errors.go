package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the pipeline the error occurred
type Phase string

const (
	PhaseParse       Phase = "parse"       // wasm binary decoding
	PhaseValidate    Phase = "validate"    // module validation
	PhaseTranslate   Phase = "translate"   // wasm to IR lowering
	PhaseEncode      Phase = "encode"      // IR to artifact
	PhaseDecode      Phase = "decode"      // artifact to IR
	PhaseConfig      Phase = "config"      // engine configuration
	PhaseHost        Phase = "host"        // host function registration
	PhaseLinking     Phase = "linking"     // import resolution
	PhaseInstantiate Phase = "instantiate" // initializers and start function
	PhaseRuntime     Phase = "runtime"     // exported function calls
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData       Kind = "invalid_data"
	KindConfigMismatch    Kind = "config_mismatch"
	KindMissingImport     Kind = "missing_import"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindUnknownExport     Kind = "unknown_export"
	KindTypeMismatch      Kind = "type_mismatch"
	KindTrap              Kind = "trap"
	KindFuelExhausted     Kind = "fuel_exhausted"
	KindFuelDisabled      Kind = "fuel_disabled"
	KindContextMismatch   Kind = "context_mismatch"
	KindUnsupported       Kind = "unsupported"
	KindRegistration      Kind = "registration"
	KindInstantiation     Kind = "instantiation"
	KindNotInitialized    Kind = "not_initialized"
	KindInvalidInput      Kind = "invalid_input"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInterrupted       Kind = "interrupted"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An *Error target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the entity path, e.g. namespace and import name
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Kind sentinels for errors.Is checks that ignore the phase.
var (
	ErrInvalidData    = &Error{Kind: KindInvalidData}
	ErrConfigMismatch = &Error{Kind: KindConfigMismatch}
	ErrUnknownExport  = &Error{Kind: KindUnknownExport}
	ErrTypeMismatch   = &Error{Kind: KindTypeMismatch}
	ErrFuelDisabled   = &Error{Kind: KindFuelDisabled}
	ErrUnsupported    = &Error{Kind: KindUnsupported}
	ErrInstantiation  = &Error{Kind: KindInstantiation}
	ErrNotInitialized = &Error{Kind: KindNotInitialized}
)

// Convenience constructors

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInvalidData).Detail(detail, args...).Build()
}

// Decoding creates an artifact decoding error
func Decoding(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string, args ...any) *Error {
	return New(phase, KindUnsupported).Detail(what, args...).Build()
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// UnknownExport creates an unknown export error
func UnknownExport(name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUnknownExport,
		Path:   []string{name},
		Detail: fmt.Sprintf("export %q not found", name),
	}
}

// TypeMismatch creates a call type mismatch error
func TypeMismatch(name, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTypeMismatch,
		Path:   []string{name},
		Detail: fmt.Sprintf(detail, args...),
	}
}

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInvalidInput).Detail(detail, args...).Build()
}

// Registration creates a registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Path:   []string{namespace, name},
		Detail: fmt.Sprintf("register %s.%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// ContextMismatch is returned when an instance is used with a store it was
// not created in.
func ContextMismatch() *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindContextMismatch,
		Detail: "instance belongs to a different store",
	}
}

// Interrupted is returned when a guest call stops because its context was
// cancelled.
func Interrupted(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInterrupted,
		Detail: "call interrupted",
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// IsDeploymentError reports whether err means the wrong artifact was
// shipped to this build: a config mismatch or an undecodable artifact.
func IsDeploymentError(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == KindConfigMismatch || (e.Phase == PhaseDecode && e.Kind == KindInvalidData)
}

// Re-exported helpers so callers can use this package in place of the
// standard one.

func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }

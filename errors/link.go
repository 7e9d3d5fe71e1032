package errors

import (
	"fmt"
	"strings"
)

// MissingImportError is returned when a module imports a function that no
// host binding provides.
type MissingImportError struct {
	Namespace string
	Name      string
}

func (e *MissingImportError) Error() string {
	return fmt.Sprintf("[linking] missing_import: no host function registered for %s.%s", e.Namespace, e.Name)
}

// Unwrap exposes the structured form so errors.As(err, **Error) works.
func (e *MissingImportError) Unwrap() error {
	return &Error{Phase: PhaseLinking, Kind: KindMissingImport, Path: []string{e.Namespace, e.Name}}
}

// SignatureMismatchError is returned when the host binding registered for an
// import has a different function type than the module declares.
type SignatureMismatchError struct {
	Namespace string
	Name      string
	Want      string // module-declared type
	Have      string // host callable type
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("[linking] signature_mismatch at %s.%s: module wants %s, host provides %s",
		e.Namespace, e.Name, e.Want, e.Have)
}

func (e *SignatureMismatchError) Unwrap() error {
	return &Error{Phase: PhaseLinking, Kind: KindSignatureMismatch, Path: []string{e.Namespace, e.Name}}
}

// LinkError aggregates every unresolved import of one link attempt.
type LinkError struct {
	Errors []error
}

func (e *LinkError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "link failed with %d error(s):", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the individual failures for errors.Is/As.
func (e *LinkError) Unwrap() []error {
	return e.Errors
}

// MissingImports returns every missing import in declaration order.
func (e *LinkError) MissingImports() []*MissingImportError {
	var out []*MissingImportError
	for _, err := range e.Errors {
		if m, ok := err.(*MissingImportError); ok {
			out = append(out, m)
		}
	}
	return out
}

// Package errors provides structured error types for the preparsed runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Deployment errors (ConfigMismatchError, artifact decoding
// failures) are kept distinct from guest faults (TrapError) and from the
// recoverable ErrFuelExhausted.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
//		Path("function", "3").
//		Detail("branch target %d out of range", pc).
//		Build()
//
// Typed errors for the link step name the offending import:
//
//	var missing *errors.MissingImportError
//	if errors.As(err, &missing) {
//		log.Printf("register %s.%s", missing.Namespace, missing.Name)
//	}
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

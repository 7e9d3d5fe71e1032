package errors

import "fmt"

// TrapCode identifies the reason a guest call trapped.
type TrapCode uint8

const (
	TrapUnreachable TrapCode = iota + 1
	TrapMemoryOutOfBounds
	TrapIntegerDivideByZero
	TrapIntegerOverflow
	TrapInvalidConversion
	TrapIndirectCallTypeMismatch
	TrapTableOutOfBounds
	TrapUninitializedElement
	TrapStackExhausted
	TrapHost
)

var trapMessages = map[TrapCode]string{
	TrapUnreachable:              "unreachable executed",
	TrapMemoryOutOfBounds:        "out of bounds memory access",
	TrapIntegerDivideByZero:      "integer divide by zero",
	TrapIntegerOverflow:          "integer overflow",
	TrapInvalidConversion:        "invalid conversion to integer",
	TrapIndirectCallTypeMismatch: "indirect call type mismatch",
	TrapTableOutOfBounds:         "undefined element",
	TrapUninitializedElement:     "uninitialized element",
	TrapStackExhausted:           "call stack exhausted",
	TrapHost:                     "host function failed",
}

func (c TrapCode) String() string {
	if msg, ok := trapMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("trap(%d)", uint8(c))
}

// TrapError is a guest-triggered runtime fault. The instance that trapped
// should be considered suspect.
type TrapError struct {
	Cause  error
	Func   string
	Detail string
	Code   TrapCode
}

func (e *TrapError) Error() string {
	msg := "[runtime] trap: " + e.Code.String()
	if e.Func != "" {
		msg += " in " + e.Func
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += " (caused by: " + e.Cause.Error() + ")"
	}
	return msg
}

func (e *TrapError) Unwrap() error {
	return e.Cause
}

// Is matches any *TrapError with the same code, or ErrTrap.
func (e *TrapError) Is(target error) bool {
	switch t := target.(type) {
	case *TrapError:
		return t.Code == 0 || t.Code == e.Code
	case *Error:
		return t.Kind == KindTrap
	}
	return false
}

// ErrTrap matches every trap regardless of code.
var ErrTrap = &Error{Kind: KindTrap}

// ErrFuelExhausted is returned when a call runs out of fuel. It is distinct
// from a trap: refill the store and retry the call.
var ErrFuelExhausted = &Error{
	Phase:  PhaseRuntime,
	Kind:   KindFuelExhausted,
	Detail: "all fuel consumed",
}

// Trap creates a TrapError with a formatted detail.
func Trap(code TrapCode, detail string, args ...any) *TrapError {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &TrapError{Code: code, Detail: detail}
}

// MemoryOutOfBounds creates the trap raised for guest memory accesses
// outside the current linear memory size.
func MemoryOutOfBounds(offset uint64, length uint64, size uint64) *TrapError {
	return &TrapError{
		Code:   TrapMemoryOutOfBounds,
		Detail: fmt.Sprintf("access [%d, %d) exceeds memory size %d", offset, offset+length, size),
	}
}

// HostTrap wraps a host function failure.
func HostTrap(fn string, cause error) *TrapError {
	if t, ok := cause.(*TrapError); ok {
		if t.Func == "" {
			t.Func = fn
		}
		return t
	}
	return &TrapError{Code: TrapHost, Func: fn, Cause: cause}
}

// IsTrap reports whether err is a guest trap.
func IsTrap(err error) bool {
	var t *TrapError
	return As(err, &t)
}

// IsFuelExhausted reports whether err was caused by fuel exhaustion.
func IsFuelExhausted(err error) bool {
	return Is(err, ErrFuelExhausted)
}

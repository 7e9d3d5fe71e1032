package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLinking,
				Kind:   KindMissingImport,
				Path:   []string{"env", "set_led"},
				Detail: "not registered",
			},
			contains: []string{"[linking]", "missing_import", "env.set_led", "not registered"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindInvalidData,
			},
			contains: []string{"[decode]", "invalid_data"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInstantiate,
				Kind:   KindInstantiation,
				Detail: "start function",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[instantiate]", "instantiation", "start function", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := Decoding("truncated body", nil)

	if !errors.Is(err, ErrInvalidData) {
		t.Error("phase-less sentinel should match on kind")
	}
	if !errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindInvalidData}) {
		t.Error("phase and kind should match")
	}
	if errors.Is(err, &Error{Phase: PhaseParse, Kind: KindInvalidData}) {
		t.Error("different phase should not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseRuntime, KindTrap, cause, "call")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseDecode, KindInvalidData).
		Path("function", "2").
		Detail("branch target %d out of range", 99).
		Value(99).
		Build()

	if err.Detail != "branch target 99 out of range" {
		t.Errorf("unexpected detail %q", err.Detail)
	}
	if err.Value != 99 {
		t.Errorf("unexpected value %v", err.Value)
	}
	if got := strings.Join(err.Path, "."); got != "function.2" {
		t.Errorf("unexpected path %q", got)
	}
}

func TestLinkError(t *testing.T) {
	err := &LinkError{Errors: []error{
		&MissingImportError{Namespace: "logging", Name: "log"},
		&SignatureMismatchError{Namespace: "env", Name: "set_led", Want: "(i32) -> ()", Have: "() -> ()"},
	}}

	var missing *MissingImportError
	if !errors.As(err, &missing) {
		t.Fatal("expected MissingImportError")
	}
	if missing.Namespace != "logging" || missing.Name != "log" {
		t.Errorf("unexpected missing import %s.%s", missing.Namespace, missing.Name)
	}

	var mismatch *SignatureMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatal("expected SignatureMismatchError")
	}

	if got := err.MissingImports(); len(got) != 1 {
		t.Errorf("expected 1 missing import, got %d", len(got))
	}

	var structured *Error
	if !errors.As(err, &structured) || structured.Kind != KindMissingImport {
		t.Errorf("expected structured missing_import, got %v", structured)
	}

	msg := err.Error()
	for _, s := range []string{"2 error(s)", "logging.log", "env.set_led"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q does not contain %q", msg, s)
		}
	}
}

func TestTrapError(t *testing.T) {
	trap := MemoryOutOfBounds(65530, 10, 65536)

	if !IsTrap(trap) {
		t.Error("IsTrap should be true")
	}
	if !errors.Is(trap, ErrTrap) {
		t.Error("trap should match ErrTrap")
	}
	if !errors.Is(trap, &TrapError{Code: TrapMemoryOutOfBounds}) {
		t.Error("trap should match its own code")
	}
	if errors.Is(trap, &TrapError{Code: TrapUnreachable}) {
		t.Error("trap should not match a different code")
	}
	if IsFuelExhausted(trap) {
		t.Error("trap is not fuel exhaustion")
	}
	if !strings.Contains(trap.Error(), "out of bounds memory access") {
		t.Errorf("unexpected message %q", trap.Error())
	}
}

func TestHostTrap(t *testing.T) {
	cause := errors.New("peripheral offline")
	trap := HostTrap("env.set_led", cause)
	if trap.Code != TrapHost || trap.Func != "env.set_led" {
		t.Errorf("unexpected trap %+v", trap)
	}
	if !errors.Is(trap, cause) {
		t.Error("host trap should wrap the cause")
	}

	inner := MemoryOutOfBounds(0, 8, 0)
	if got := HostTrap("logging.log", inner); got != inner || got.Func != "logging.log" {
		t.Errorf("existing trap should be passed through, got %+v", got)
	}
}

func TestFuelExhaustedIsNotDeployment(t *testing.T) {
	wrapped := Instantiation(ErrFuelExhausted)
	if !IsFuelExhausted(wrapped) {
		t.Error("wrapped fuel exhaustion should be detected")
	}
	if IsTrap(wrapped) {
		t.Error("fuel exhaustion is not a trap")
	}
	if IsDeploymentError(wrapped) {
		t.Error("fuel exhaustion is not a deployment error")
	}
}

func TestConfigMismatchError(t *testing.T) {
	err := &ConfigMismatchError{
		Phase: PhaseDecode,
		Diffs: []FieldDiff{{Field: "consume_fuel", Artifact: "true", Loader: "false"}},
	}

	if !errors.Is(err, ErrConfigMismatch) {
		t.Error("should match ErrConfigMismatch")
	}
	if !IsDeploymentError(err) {
		t.Error("config mismatch is a deployment error")
	}
	if d, ok := err.Field("consume_fuel"); !ok || d.Artifact != "true" {
		t.Errorf("unexpected diff %+v", d)
	}
	if !strings.Contains(err.Error(), "consume_fuel (artifact true, engine false)") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !IsDeploymentError(Decoding("bad magic", nil)) {
		t.Error("decoding failure is a deployment error")
	}
}

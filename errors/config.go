package errors

import (
	"fmt"
	"strings"
)

// FieldDiff is one engine configuration field that differs between the
// artifact producer and the loader.
type FieldDiff struct {
	Field    string
	Artifact string
	Loader   string
}

// ConfigMismatchError is returned when an artifact was built under an
// engine configuration that is incompatible with the loading engine.
type ConfigMismatchError struct {
	Phase Phase
	Diffs []FieldDiff
}

func (e *ConfigMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] config_mismatch:", e.Phase)
	for i, d := range e.Diffs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " %s (artifact %s, engine %s)", d.Field, d.Artifact, d.Loader)
	}
	return b.String()
}

func (e *ConfigMismatchError) Unwrap() error {
	return &Error{Phase: e.Phase, Kind: KindConfigMismatch}
}

// Field returns the diff for the named field, if present.
func (e *ConfigMismatchError) Field(name string) (FieldDiff, bool) {
	for _, d := range e.Diffs {
		if d.Field == name {
			return d, true
		}
	}
	return FieldDiff{}, false
}

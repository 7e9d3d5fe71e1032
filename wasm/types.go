package wasm

import (
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// ValType is a WebAssembly value type. The numeric values match the binary
// encoding and wazero's api.ValueType.
type ValType = api.ValueType

// Module represents a decoded WebAssembly module
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount holds the count from the DataCount section (ID 12).
	// Required when data indices appear in code (bulk memory operations).
	DataCount *uint32

	CustomSections []CustomSection
}

// FuncType represents a function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// String renders the signature as "(i32, i32) -> (i64)".
func (f FuncType) String() string {
	var b strings.Builder
	writeTypes(&b, f.Params)
	b.WriteString(" -> ")
	writeTypes(&b, f.Results)
	return b.String()
}

func writeTypes(b *strings.Builder, types []ValType) {
	b.WriteByte('(')
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteByte(')')
}

// Import represents an imported entity
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes the kind and type of an import.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table with element type and size limits.
type TableType struct {
	Limits   Limits
	ElemType byte
}

// MemoryType describes a linear memory with size limits in 64KiB pages.
type MemoryType struct {
	Limits Limits
}

// Limits defines minimum and optional maximum sizes.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global represents a global variable with type and initialization.
type Global struct {
	Type GlobalType
	Init []byte // Raw init expression bytes, including the end opcode
}

// Export represents an exported entity
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// ElemMode is the placement of an element or data segment.
type ElemMode byte

const (
	SegmentActive ElemMode = iota
	SegmentPassive
	SegmentDeclarative
)

// NullFunc marks a null entry in an element segment.
const NullFunc = ^uint32(0)

// Element represents an element segment. Expression-encoded entries are
// resolved to function indices; a ref.null entry becomes NullFunc.
type Element struct {
	Offset   []byte
	FuncIdxs []uint32
	Flags    uint32
	TableIdx uint32
	Mode     ElemMode
}

// FuncBody is the code of a function.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // Raw code bytes including end opcode
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment represents a data segment.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32
	Mode   ElemMode
}

// CustomSection holds an uninterpreted custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of function imports.
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			n++
		}
	}
	return n
}

// NumImportedGlobals returns the number of global imports.
func (m *Module) NumImportedGlobals() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindGlobal {
			n++
		}
	}
	return n
}

// GetFuncType returns the type of a function by its index in the function
// index space (imports first).
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if funcIdx == 0 {
			return m.typeAt(imp.Desc.TypeIdx)
		}
		funcIdx--
	}
	if int(funcIdx) >= len(m.Funcs) {
		return nil
	}
	return m.typeAt(m.Funcs[funcIdx])
}

func (m *Module) typeAt(idx uint32) *FuncType {
	if int(idx) >= len(m.Types) {
		return nil
	}
	return &m.Types[idx]
}

// ExportByName finds an export by name.
func (m *Module) ExportByName(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

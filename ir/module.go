package ir

import (
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/wasm"
)

// FuncType is a function signature.
type FuncType = wasm.FuncType

// NullFunc marks an empty table slot or a ref.null element entry.
const NullFunc = wasm.NullFunc

// Instr is one IR instruction. The meaning of A and B depends on Op.
type Instr struct {
	B  uint64
	A  uint32
	Op Op
}

// Module is an executable module: translated code plus everything
// instantiation needs. It is immutable once built and may be shared by
// any number of instances.
type Module struct {
	// Config is the fingerprint of the engine the module was compiled
	// under. It decides whether fuel instructions are present.
	Config engine.Fingerprint

	Types    []FuncType
	Imports  []Import
	Funcs    []*Func
	Tables   []Table
	Memory   *Memory
	Globals  []Global
	Exports  []Export
	Data     []DataSegment
	Elements []ElementSegment
	Start    *uint32
}

// Import is an imported host function.
type Import struct {
	Namespace string
	Name      string
	Type      uint32
}

// ExportKind is the kind of an exported entity.
type ExportKind byte

const (
	ExportFunc ExportKind = iota
	ExportTable
	ExportMemory
	ExportGlobal
)

func (k ExportKind) String() string {
	switch k {
	case ExportFunc:
		return "func"
	case ExportTable:
		return "table"
	case ExportMemory:
		return "memory"
	case ExportGlobal:
		return "global"
	}
	return "unknown"
}

// Export is a named module export.
type Export struct {
	Name  string
	Index uint32
	Kind  ExportKind
}

// Table is a funcref table.
type Table struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Memory is the module's linear memory limits in pages.
type Memory struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// ConstKind selects how a constant expression is evaluated.
type ConstKind byte

const (
	ConstValue ConstKind = iota
	ConstGlobal
	ConstRefFunc
	ConstRefNull
)

// ConstExpr is an evaluated-at-instantiation initializer. Value holds the
// constant bits, the global index or the function index depending on Kind.
type ConstExpr struct {
	Value uint64
	Kind  ConstKind
}

// Global is a module-defined global.
type Global struct {
	Init    ConstExpr
	Type    api.ValueType
	Mutable bool
}

// DataSegment initializes linear memory, actively at instantiation or
// passively through memory.init.
type DataSegment struct {
	Init    []byte
	Offset  ConstExpr
	Passive bool
}

// ElementMode is the placement of an element segment.
type ElementMode byte

const (
	ElementActive ElementMode = iota
	ElementPassive
	ElementDeclarative
)

// ElementSegment initializes table slots with function indices.
type ElementSegment struct {
	Funcs  []uint32
	Offset ConstExpr
	Table  uint32
	Mode   ElementMode
}

// Func is a module-defined function. Slots of a frame are laid out as
// params, then NumLocals zeroed locals, then the operand stack; MaxStack
// is the highest slot count the body reaches.
type Func struct {
	Code      []Instr
	TypeIdx   uint32
	NumLocals uint32
	MaxStack  uint32

	lazy *lazyBody
}

type lazyBody struct {
	translate func(*Func) error
	err       error
	once      sync.Once
	done      atomic.Bool
}

// NewLazyFunc returns a function whose body is produced by translate on
// first use. translate fills Code, NumLocals and MaxStack.
func NewLazyFunc(typeIdx uint32, translate func(*Func) error) *Func {
	return &Func{TypeIdx: typeIdx, lazy: &lazyBody{translate: translate}}
}

// Ensure translates a lazy function once. Callers must call it before
// reading Code; it is safe for concurrent use.
func (f *Func) Ensure() error {
	l := f.lazy
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.err = l.translate(f)
		l.translate = nil
		l.done.Store(true)
	})
	return l.err
}

// Translated reports whether the body is available without translation.
func (f *Func) Translated() bool {
	return f.lazy == nil || f.lazy.done.Load()
}

// NumImports returns the number of imported functions.
func (m *Module) NumImports() int {
	return len(m.Imports)
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int {
	return len(m.Imports) + len(m.Funcs)
}

// FuncType returns the signature of function idx in the function index
// space, imports first.
func (m *Module) FuncType(idx uint32) (FuncType, bool) {
	var typeIdx uint32
	switch {
	case int(idx) < len(m.Imports):
		typeIdx = m.Imports[idx].Type
	case int(idx) < m.NumFuncs():
		typeIdx = m.Funcs[int(idx)-len(m.Imports)].TypeIdx
	default:
		return FuncType{}, false
	}
	if int(typeIdx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[typeIdx], true
}

// Func returns the defined function at idx in the function index space, or
// nil for imports and out-of-range indices.
func (m *Module) Func(idx uint32) *Func {
	i := int(idx) - len(m.Imports)
	if i < 0 || i >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[i]
}

// ImportType returns the signature of import i.
func (m *Module) ImportType(i int) FuncType {
	return m.Types[m.Imports[i].Type]
}

// Export finds an export by name.
func (m *Module) Export(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// Untranslated returns the number of lazy functions not yet translated.
func (m *Module) Untranslated() int {
	n := 0
	for _, f := range m.Funcs {
		if !f.Translated() {
			n++
		}
	}
	return n
}

// PackBranch builds the B operand of a branch.
func PackBranch(height, keep uint32) uint64 {
	return uint64(height)<<32 | uint64(keep)
}

// UnpackBranch splits the B operand of a branch.
func UnpackBranch(b uint64) (height, keep uint32) {
	return uint32(b >> 32), uint32(b)
}

package testbed

import (
	"github.com/wippyai/wasm-preparsed/wasm"
)

// Value type shorthands.
const (
	I32 = wasm.ValI32
	I64 = wasm.ValI64
	F32 = wasm.ValF32
	F64 = wasm.ValF64
)

// Types returns its arguments as a slice, for readability at call sites.
func Types(ts ...wasm.ValType) []wasm.ValType {
	return ts
}

// Builder assembles a WebAssembly module programmatically. Imports must
// be declared before the first function so indices stay stable.
type Builder struct {
	m wasm.Module
}

// NewBuilder returns an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Type returns the index of the signature, adding it if needed.
func (b *Builder) Type(params, results []wasm.ValType) uint32 {
	ft := wasm.FuncType{Params: params, Results: results}
	for i, t := range b.m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	b.m.Types = append(b.m.Types, ft)
	return uint32(len(b.m.Types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (b *Builder) ImportFunc(namespace, name string, params, results []wasm.ValType) uint32 {
	if len(b.m.Funcs) > 0 {
		panic("testbed: imports must precede functions")
	}
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module: namespace,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: b.Type(params, results)},
	})
	return uint32(len(b.m.Imports) - 1)
}

// ImportMemory declares a memory import. The compiler rejects it; it exists
// to exercise that path.
func (b *Builder) ImportMemory(namespace, name string, min uint32) {
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module: namespace,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: min}}},
	})
}

// Func adds a function and returns its function index.
func (b *Builder) Func(params, results, locals []wasm.ValType, code *Code) uint32 {
	b.m.Funcs = append(b.m.Funcs, b.Type(params, results))
	var body wasm.FuncBody
	for _, l := range locals {
		if n := len(body.Locals); n > 0 && body.Locals[n-1].ValType == l {
			body.Locals[n-1].Count++
			continue
		}
		body.Locals = append(body.Locals, wasm.LocalEntry{Count: 1, ValType: l})
	}
	body.Code = code.Bytes()
	b.m.Code = append(b.m.Code, body)
	return uint32(b.m.NumImportedFuncs() + len(b.m.Funcs) - 1)
}

// Export exports an entity.
func (b *Builder) Export(name string, kind byte, idx uint32) *Builder {
	b.m.Exports = append(b.m.Exports, wasm.Export{Name: name, Kind: kind, Idx: idx})
	return b
}

// ExportFunc exports function idx.
func (b *Builder) ExportFunc(name string, idx uint32) *Builder {
	return b.Export(name, wasm.KindFunc, idx)
}

// Memory declares the module memory. max < 0 means unbounded.
func (b *Builder) Memory(min uint32, max int64) *Builder {
	l := wasm.Limits{Min: min}
	if max >= 0 {
		m := uint32(max)
		l.Max = &m
	}
	b.m.Memories = append(b.m.Memories, wasm.MemoryType{Limits: l})
	return b
}

// Table declares a funcref table with min entries.
func (b *Builder) Table(min uint32) *Builder {
	b.m.Tables = append(b.m.Tables, wasm.TableType{ElemType: wasm.RefTypeFunc, Limits: wasm.Limits{Min: min}})
	return b
}

// Global adds a global and returns its index.
func (b *Builder) Global(vt wasm.ValType, mutable bool, init []byte) uint32 {
	b.m.Globals = append(b.m.Globals, wasm.Global{Type: wasm.GlobalType{ValType: vt, Mutable: mutable}, Init: init})
	return uint32(len(b.m.Globals) - 1)
}

// Elem adds an active element segment for table 0.
func (b *Builder) Elem(offset int32, funcs ...uint32) *Builder {
	b.m.Elements = append(b.m.Elements, wasm.Element{Mode: wasm.SegmentActive, Offset: wasm.ConstI32(offset), FuncIdxs: funcs})
	return b
}

// PassiveElem adds a passive element segment and returns its index.
func (b *Builder) PassiveElem(funcs ...uint32) uint32 {
	b.m.Elements = append(b.m.Elements, wasm.Element{Flags: 1, Mode: wasm.SegmentPassive, FuncIdxs: funcs})
	return uint32(len(b.m.Elements) - 1)
}

// Data adds an active data segment for memory 0.
func (b *Builder) Data(offset int32, data []byte) *Builder {
	b.m.Data = append(b.m.Data, wasm.DataSegment{Mode: wasm.SegmentActive, Offset: wasm.ConstI32(offset), Init: data})
	b.syncDataCount()
	return b
}

// PassiveData adds a passive data segment and returns its index.
func (b *Builder) PassiveData(data []byte) uint32 {
	b.m.Data = append(b.m.Data, wasm.DataSegment{Flags: 1, Mode: wasm.SegmentPassive, Init: data})
	b.syncDataCount()
	return uint32(len(b.m.Data) - 1)
}

func (b *Builder) syncDataCount() {
	n := uint32(len(b.m.Data))
	b.m.DataCount = &n
}

// Start sets the start function.
func (b *Builder) Start(idx uint32) *Builder {
	b.m.Start = &idx
	return b
}

// Module returns the assembled module.
func (b *Builder) Module() *wasm.Module {
	return &b.m
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	return b.m.Encode()
}

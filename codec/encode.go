package codec

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/internal/binary"
	"github.com/wippyai/wasm-preparsed/ir"
)

// Body layout, every integer LEB128:
//
//	types    vec(vec(param) vec(result))
//	imports  vec(name name type)
//	funcs    vec(type locals max_stack vec(op a b))
//	tables   vec(limits)
//	memory   0 | 1 limits
//	globals  vec(type mutable const)
//	exports  vec(name kind index)
//	data     vec(passive const vec(byte))
//	elements vec(mode table const vec(func))
//	start    0 | 1 func
func encodeModule(m *ir.Module) []byte {
	w := binary.NewWriter()

	w.WriteU32(uint32(len(m.Types)))
	for _, t := range m.Types {
		writeValueTypes(w, t.Params)
		writeValueTypes(w, t.Results)
	}

	w.WriteU32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		w.WriteName(imp.Namespace)
		w.WriteName(imp.Name)
		w.WriteU32(imp.Type)
	}

	w.WriteU32(uint32(len(m.Funcs)))
	for _, f := range m.Funcs {
		w.WriteU32(f.TypeIdx)
		w.WriteU32(f.NumLocals)
		w.WriteU32(f.MaxStack)
		w.WriteU32(uint32(len(f.Code)))
		for _, in := range f.Code {
			w.WriteU32(uint32(in.Op))
			w.WriteU32(in.A)
			w.WriteU64(in.B)
		}
	}

	w.WriteU32(uint32(len(m.Tables)))
	for _, t := range m.Tables {
		writeLimits(w, t.Min, t.Max, t.HasMax)
	}

	if m.Memory == nil {
		w.Byte(0)
	} else {
		w.Byte(1)
		writeLimits(w, m.Memory.Min, m.Memory.Max, m.Memory.HasMax)
	}

	w.WriteU32(uint32(len(m.Globals)))
	for _, g := range m.Globals {
		w.Byte(byte(g.Type))
		w.Byte(boolByte(g.Mutable))
		writeConst(w, g.Init)
	}

	w.WriteU32(uint32(len(m.Exports)))
	for _, e := range m.Exports {
		w.WriteName(e.Name)
		w.Byte(byte(e.Kind))
		w.WriteU32(e.Index)
	}

	w.WriteU32(uint32(len(m.Data)))
	for _, d := range m.Data {
		w.Byte(boolByte(d.Passive))
		writeConst(w, d.Offset)
		w.WriteVec(d.Init)
	}

	w.WriteU32(uint32(len(m.Elements)))
	for _, e := range m.Elements {
		w.Byte(byte(e.Mode))
		w.WriteU32(e.Table)
		writeConst(w, e.Offset)
		w.WriteU32(uint32(len(e.Funcs)))
		for _, f := range e.Funcs {
			w.WriteU32(f)
		}
	}

	if m.Start == nil {
		w.Byte(0)
	} else {
		w.Byte(1)
		w.WriteU32(*m.Start)
	}
	return w.Bytes()
}

func writeValueTypes(w *binary.Writer, ts []api.ValueType) {
	w.WriteU32(uint32(len(ts)))
	for _, t := range ts {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, lo, hi uint32, hasMax bool) {
	w.WriteU32(lo)
	w.Byte(boolByte(hasMax))
	if hasMax {
		w.WriteU32(hi)
	}
}

func writeConst(w *binary.Writer, c ir.ConstExpr) {
	w.Byte(byte(c.Kind))
	w.WriteU64(c.Value)
}

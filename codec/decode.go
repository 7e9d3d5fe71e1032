package codec

import (
	"bytes"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/internal/binary"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/wasm"
)

// decoder reads the body with a sticky error: after the first failure every
// read returns zero and the error is reported once at the end.
type decoder struct {
	r   *binary.Reader
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadU32()
	d.fail(err)
	return v
}

func (d *decoder) u64() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadU64()
	d.fail(err)
	return v
}

func (d *decoder) u8() byte {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadByte()
	d.fail(err)
	return v
}

func (d *decoder) flag() bool {
	switch b := d.u8(); b {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail(fmt.Errorf("invalid flag byte %d", b))
		return false
	}
}

func (d *decoder) name() string {
	if d.err != nil {
		return ""
	}
	v, err := d.r.ReadName()
	d.fail(err)
	return v
}

// count reads a vector length, bounded by the remaining input.
func (d *decoder) count(minElemSize int) int {
	if d.err != nil {
		return 0
	}
	n, err := d.r.ReadCount(minElemSize)
	d.fail(err)
	return n
}

func (d *decoder) vec() []byte {
	n := d.count(1)
	if d.err != nil {
		return nil
	}
	b, err := d.r.ReadBytes(n)
	d.fail(err)
	return bytes.Clone(b)
}

func (d *decoder) valueTypes() []api.ValueType {
	n := d.count(1)
	if n == 0 {
		return nil
	}
	ts := make([]api.ValueType, n)
	for i := range ts {
		ts[i] = d.u8()
		if d.err == nil && !validValueType(ts[i]) {
			d.fail(fmt.Errorf("invalid value type 0x%x", ts[i]))
		}
	}
	return ts
}

func (d *decoder) limits() (lo, hi uint32, hasMax bool) {
	lo = d.u32()
	if hasMax = d.flag(); hasMax {
		hi = d.u32()
	}
	return
}

func (d *decoder) constExpr() ir.ConstExpr {
	kind := ir.ConstKind(d.u8())
	if kind > ir.ConstRefNull {
		d.fail(fmt.Errorf("invalid constant kind %d", kind))
	}
	return ir.ConstExpr{Kind: kind, Value: d.u64()}
}

func validValueType(t api.ValueType) bool {
	switch t {
	case wasm.ValI32, wasm.ValI64, wasm.ValF32, wasm.ValF64, wasm.ValFuncRef, wasm.ValExtern:
		return true
	}
	return false
}

func decodeModule(body []byte) (*ir.Module, error) {
	d := &decoder{r: binary.NewReader(body)}
	m := &ir.Module{}

	if n := d.count(2); n > 0 {
		m.Types = make([]ir.FuncType, n)
		for i := range m.Types {
			m.Types[i] = ir.FuncType{Params: d.valueTypes(), Results: d.valueTypes()}
		}
	}

	if n := d.count(3); n > 0 {
		m.Imports = make([]ir.Import, n)
		for i := range m.Imports {
			m.Imports[i] = ir.Import{Namespace: d.name(), Name: d.name(), Type: d.u32()}
		}
	}

	if n := d.count(4); n > 0 {
		m.Funcs = make([]*ir.Func, n)
		for i := range m.Funcs {
			f := &ir.Func{TypeIdx: d.u32(), NumLocals: d.u32(), MaxStack: d.u32()}
			if code := d.count(3); code > 0 {
				f.Code = make([]ir.Instr, code)
				for j := range f.Code {
					op := d.u32()
					f.Code[j] = ir.Instr{Op: ir.Op(op), A: d.u32(), B: d.u64()}
					if d.err == nil && (op > 0xFFFF || !ir.Op(op).Valid()) {
						d.fail(fmt.Errorf("function %d: unknown opcode 0x%x at %d", i, op, j))
					}
				}
			}
			m.Funcs[i] = f
		}
	}

	if n := d.count(2); n > 0 {
		m.Tables = make([]ir.Table, n)
		for i := range m.Tables {
			t := &m.Tables[i]
			t.Min, t.Max, t.HasMax = d.limits()
		}
	}

	if d.flag() {
		mem := &ir.Memory{}
		mem.Min, mem.Max, mem.HasMax = d.limits()
		m.Memory = mem
	}

	if n := d.count(4); n > 0 {
		m.Globals = make([]ir.Global, n)
		for i := range m.Globals {
			g := &m.Globals[i]
			g.Type = d.u8()
			g.Mutable = d.flag()
			g.Init = d.constExpr()
			if d.err == nil && !validValueType(g.Type) {
				d.fail(fmt.Errorf("global %d: invalid value type 0x%x", i, g.Type))
			}
		}
	}

	if n := d.count(3); n > 0 {
		m.Exports = make([]ir.Export, n)
		for i := range m.Exports {
			m.Exports[i] = ir.Export{Name: d.name(), Kind: ir.ExportKind(d.u8()), Index: d.u32()}
		}
	}

	if n := d.count(4); n > 0 {
		m.Data = make([]ir.DataSegment, n)
		for i := range m.Data {
			m.Data[i] = ir.DataSegment{Passive: d.flag(), Offset: d.constExpr(), Init: d.vec()}
		}
	}

	if n := d.count(5); n > 0 {
		m.Elements = make([]ir.ElementSegment, n)
		for i := range m.Elements {
			e := &m.Elements[i]
			e.Mode = ir.ElementMode(d.u8())
			e.Table = d.u32()
			e.Offset = d.constExpr()
			if k := d.count(1); k > 0 {
				e.Funcs = make([]uint32, k)
				for j := range e.Funcs {
					e.Funcs[j] = d.u32()
				}
			}
		}
	}

	if d.flag() {
		start := d.u32()
		m.Start = &start
	}

	if d.err != nil {
		return nil, errors.Decoding("malformed body", d.err)
	}
	if !d.r.EOF() {
		return nil, errors.Decoding(fmt.Sprintf("%d unread bytes in body", d.r.Len()), nil)
	}
	if err := checkIndices(m); err != nil {
		return nil, errors.Decoding("inconsistent module", err)
	}
	return m, nil
}

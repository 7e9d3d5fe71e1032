package compiler

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/internal/binary"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/wasm"
)

// Translate lowers a validated module into IR under eng's configuration.
// In lazy mode function bodies are translated on first call and m must not
// be modified afterwards.
func Translate(eng *engine.Engine, m *wasm.Module) (*ir.Module, error) {
	cfg := eng.Config()
	out := &ir.Module{
		Config: eng.Fingerprint(),
		Types:  m.Types,
		Start:  m.Start,
	}

	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			return nil, errors.New(errors.PhaseTranslate, errors.KindUnsupported).
				Path(imp.Module, imp.Name).
				Detail("only function imports are supported").
				Build()
		}
		out.Imports = append(out.Imports, ir.Import{Namespace: imp.Module, Name: imp.Name, Type: imp.Desc.TypeIdx})
	}

	for _, t := range m.Tables {
		tbl := ir.Table{Min: t.Limits.Min}
		if t.Limits.Max != nil {
			tbl.Max, tbl.HasMax = *t.Limits.Max, true
		}
		out.Tables = append(out.Tables, tbl)
	}
	if len(m.Memories) > 0 {
		l := m.Memories[0].Limits
		mem := &ir.Memory{Min: l.Min}
		if l.Max != nil {
			mem.Max, mem.HasMax = *l.Max, true
		}
		out.Memory = mem
	}

	for i, g := range m.Globals {
		init, err := constExpr(g.Init)
		if err != nil {
			return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				Path("global", itoa(i)).Cause(err).Build()
		}
		out.Globals = append(out.Globals, ir.Global{Type: g.Type.ValType, Mutable: g.Type.Mutable, Init: init})
	}

	for _, e := range m.Exports {
		out.Exports = append(out.Exports, ir.Export{Name: e.Name, Kind: ir.ExportKind(e.Kind), Index: e.Idx})
	}

	for i, d := range m.Data {
		seg := ir.DataSegment{Init: d.Init, Passive: d.Mode == wasm.SegmentPassive}
		if !seg.Passive {
			off, err := constExpr(d.Offset)
			if err != nil {
				return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					Path("data", itoa(i)).Cause(err).Build()
			}
			seg.Offset = off
		}
		out.Data = append(out.Data, seg)
	}

	for i, e := range m.Elements {
		seg := ir.ElementSegment{Funcs: e.FuncIdxs, Table: e.TableIdx, Mode: ir.ElementMode(e.Mode)}
		if e.Mode == wasm.SegmentActive {
			off, err := constExpr(e.Offset)
			if err != nil {
				return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					Path("element", itoa(i)).Cause(err).Build()
			}
			seg.Offset = off
		}
		out.Elements = append(out.Elements, seg)
	}

	mt := &moduleTypes{mod: m, fuel: cfg.ConsumeFuel, costs: cfg.FuelCosts}
	numImports := len(m.Imports)
	out.Funcs = make([]*ir.Func, len(m.Funcs))
	for i, typeIdx := range m.Funcs {
		funcIdx := uint32(numImports + i)
		body := m.Code[i]
		if cfg.CompilationMode == engine.CompilationLazy {
			out.Funcs[i] = ir.NewLazyFunc(typeIdx, func(f *ir.Func) error {
				Logger().Debug("lazy translation", zap.Uint32("func", funcIdx))
				return mt.translateFunc(f, funcIdx, body)
			})
			continue
		}
		f := &ir.Func{TypeIdx: typeIdx}
		if err := mt.translateFunc(f, funcIdx, body); err != nil {
			return nil, err
		}
		out.Funcs[i] = f
	}

	Logger().Debug("module translated",
		zap.Int("functions", len(out.Funcs)),
		zap.Stringer("mode", cfg.CompilationMode),
		zap.Bool("fuel", cfg.ConsumeFuel),
	)
	return out, nil
}

// constExpr evaluates the static part of a constant expression.
func constExpr(expr []byte) (ir.ConstExpr, error) {
	r := binary.NewReader(expr)
	op, err := r.ReadByte()
	if err != nil {
		return ir.ConstExpr{}, err
	}
	var c ir.ConstExpr
	switch op {
	case wasm.OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return c, err
		}
		c.Value = uint64(uint32(v))
	case wasm.OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return c, err
		}
		c.Value = uint64(v)
	case wasm.OpF32Const:
		v, err := r.ReadU32LE()
		if err != nil {
			return c, err
		}
		c.Value = uint64(v)
	case wasm.OpF64Const:
		v, err := r.ReadU64LE()
		if err != nil {
			return c, err
		}
		c.Value = v
	case wasm.OpGlobalGet:
		idx, err := r.ReadU32()
		if err != nil {
			return c, err
		}
		c.Kind, c.Value = ir.ConstGlobal, uint64(idx)
	case wasm.OpRefFunc:
		idx, err := r.ReadU32()
		if err != nil {
			return c, err
		}
		c.Kind, c.Value = ir.ConstRefFunc, uint64(idx)
	case wasm.OpRefNull:
		c.Kind, c.Value = ir.ConstRefNull, uint64(ir.NullFunc)
	default:
		return c, errors.Unsupported(errors.PhaseTranslate, "constant expression opcode 0x%02x", op)
	}
	return c, nil
}

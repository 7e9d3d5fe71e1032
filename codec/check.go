package codec

import (
	"fmt"

	"github.com/wippyai/wasm-preparsed/ir"
)

// checkIndices verifies every cross-reference of a decoded module so the
// interpreter never indexes out of range. It is not a type checker: the
// module was validated before it was serialized.
func checkIndices(m *ir.Module) error {
	numTypes := uint32(len(m.Types))
	numFuncs := uint64(m.NumFuncs())

	for i, imp := range m.Imports {
		if imp.Type >= numTypes {
			return fmt.Errorf("import %d: type %d out of range", i, imp.Type)
		}
	}
	for i, g := range m.Globals {
		if err := checkConst(m, g.Init, i); err != nil {
			return fmt.Errorf("global %d: %w", i, err)
		}
	}
	for i, f := range m.Funcs {
		if f.TypeIdx >= numTypes {
			return fmt.Errorf("function %d: type %d out of range", i, f.TypeIdx)
		}
		if err := checkCode(m, f); err != nil {
			return fmt.Errorf("function %d: %w", len(m.Imports)+i, err)
		}
	}
	for i, t := range m.Tables {
		if t.HasMax && t.Max < t.Min {
			return fmt.Errorf("table %d: maximum below minimum", i)
		}
	}
	if mem := m.Memory; mem != nil && mem.HasMax && mem.Max < mem.Min {
		return fmt.Errorf("memory: maximum below minimum")
	}

	for _, e := range m.Exports {
		var n uint64
		switch e.Kind {
		case ir.ExportFunc:
			n = numFuncs
		case ir.ExportTable:
			n = uint64(len(m.Tables))
		case ir.ExportMemory:
			if m.Memory != nil {
				n = 1
			}
		case ir.ExportGlobal:
			n = uint64(len(m.Globals))
		default:
			return fmt.Errorf("export %q: unknown kind %d", e.Name, e.Kind)
		}
		if uint64(e.Index) >= n {
			return fmt.Errorf("export %q: %s %d out of range", e.Name, e.Kind, e.Index)
		}
	}

	for i, d := range m.Data {
		if d.Passive {
			continue
		}
		if m.Memory == nil {
			return fmt.Errorf("data %d: active segment without memory", i)
		}
		if err := checkConst(m, d.Offset, len(m.Globals)); err != nil {
			return fmt.Errorf("data %d: %w", i, err)
		}
	}

	for i, e := range m.Elements {
		switch e.Mode {
		case ir.ElementActive:
			if int(e.Table) >= len(m.Tables) {
				return fmt.Errorf("element %d: table %d out of range", i, e.Table)
			}
			if err := checkConst(m, e.Offset, len(m.Globals)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		case ir.ElementPassive, ir.ElementDeclarative:
		default:
			return fmt.Errorf("element %d: unknown mode %d", i, e.Mode)
		}
		for _, f := range e.Funcs {
			if f != ir.NullFunc && uint64(f) >= numFuncs {
				return fmt.Errorf("element %d: function %d out of range", i, f)
			}
		}
	}

	if m.Start != nil && uint64(*m.Start) >= numFuncs {
		return fmt.Errorf("start function %d out of range", *m.Start)
	}
	return nil
}

// checkConst checks a constant expression that may read the first
// numGlobals globals.
func checkConst(m *ir.Module, c ir.ConstExpr, numGlobals int) error {
	switch c.Kind {
	case ir.ConstGlobal:
		if c.Value >= uint64(numGlobals) {
			return fmt.Errorf("global.get %d out of range", c.Value)
		}
	case ir.ConstRefFunc:
		if c.Value >= uint64(m.NumFuncs()) {
			return fmt.Errorf("ref.func %d out of range", c.Value)
		}
	}
	return nil
}

func checkCode(m *ir.Module, f *ir.Func) error {
	ft := m.Types[f.TypeIdx]
	numLocals := uint64(len(ft.Params)) + uint64(f.NumLocals)
	if numLocals > uint64(f.MaxStack) {
		return fmt.Errorf("max stack %d below %d locals", f.MaxStack, numLocals)
	}
	code := f.Code
	if len(code) == 0 || code[len(code)-1].Op != ir.OpReturn {
		return fmt.Errorf("code does not end in return")
	}

	n := uint32(len(code))
	for pc := 0; pc < len(code); pc++ {
		in := code[pc]
		bad := false
		switch op := in.Op; {
		case op == ir.OpBr || op == ir.OpBrIf:
			height, keep := uint64(in.B>>32), uint64(uint32(in.B))
			bad = in.A >= n || height+keep > uint64(f.MaxStack)
		case op == ir.OpBrIfNot || op == ir.OpJump:
			bad = in.A >= n
		case op == ir.OpBrTable:
			end := uint64(pc) + 1 + uint64(in.A)
			bad = end >= uint64(n)
			for i := uint64(pc) + 1; !bad && i <= end; i++ {
				if o := code[i].Op; o != ir.OpBr && o != ir.OpReturn {
					bad = true
				}
			}
		case op == ir.OpReturn:
			bad = in.A != uint32(len(ft.Results))
		case op == ir.OpCall:
			bad = uint64(in.A) >= uint64(m.NumFuncs())
		case op == ir.OpCallIndirect:
			bad = int(in.A) >= len(m.Types) || in.B >= uint64(len(m.Tables))
		case op >= ir.OpLocalGet && op <= ir.OpLocalTee:
			bad = uint64(in.A) >= numLocals
		case op == ir.OpGlobalGet:
			bad = int(in.A) >= len(m.Globals)
		case op == ir.OpGlobalSet:
			bad = int(in.A) >= len(m.Globals) || !m.Globals[in.A].Mutable
		case op >= ir.OpI32Load && op <= ir.OpMemoryGrow,
			op == ir.OpMemoryCopy || op == ir.OpMemoryFill:
			bad = m.Memory == nil
		case op == ir.OpMemoryInit:
			bad = m.Memory == nil || int(in.A) >= len(m.Data)
		case op == ir.OpDataDrop:
			bad = int(in.A) >= len(m.Data)
		case op == ir.OpTableInit:
			bad = int(in.A) >= len(m.Elements) || in.B >= uint64(len(m.Tables))
		case op == ir.OpElemDrop:
			bad = int(in.A) >= len(m.Elements)
		case op == ir.OpTableCopy:
			bad = int(in.A) >= len(m.Tables) || in.B >= uint64(len(m.Tables))
		}
		if bad {
			return fmt.Errorf("invalid operands for %s at %d", in.Op, pc)
		}
	}
	return nil
}

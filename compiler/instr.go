package compiler

import (
	"fmt"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/wasm"
)

// instr translates one reachable instruction.
func (t *funcTranslator) instr(op byte) error {
	r := t.r
	costs := t.mt.costs
	base := costs.Base
	memCost := costs.Base + costs.Memory
	callCost := costs.Base + costs.Call

	switch op {
	case wasm.OpUnreachable:
		t.charge(base)
		t.emit(ir.Instr{Op: ir.OpUnreachable})
		t.markUnreachable()

	case wasm.OpNop:

	case wasm.OpBlock, wasm.OpLoop:
		params, results, err := t.blockType()
		if err != nil {
			return err
		}
		kind := frameBlock
		if op == wasm.OpLoop {
			kind = frameLoop
			t.cut()
		}
		return t.pushFrame(kind, params, results)

	case wasm.OpIf:
		params, results, err := t.blockType()
		if err != nil {
			return err
		}
		t.charge(base)
		if err := t.pop(1); err != nil {
			return err
		}
		fix := t.emit(ir.Instr{Op: ir.OpBrIfNot})
		t.cut()
		if err := t.pushFrame(frameIf, params, results); err != nil {
			return err
		}
		t.top().elseFix = fix

	case wasm.OpElse:
		return t.elseOp()

	case wasm.OpEnd:
		return t.endOp()

	case wasm.OpBr:
		depth, err := r.ReadU32()
		if err != nil {
			return err
		}
		t.charge(base)
		if err := t.branch(ir.OpBr, depth); err != nil {
			return err
		}
		t.markUnreachable()

	case wasm.OpBrIf:
		depth, err := r.ReadU32()
		if err != nil {
			return err
		}
		t.charge(base)
		if err := t.pop(1); err != nil {
			return err
		}
		if err := t.branch(ir.OpBrIf, depth); err != nil {
			return err
		}
		t.cut()

	case wasm.OpBrTable:
		n, err := r.ReadCount(1)
		if err != nil {
			return err
		}
		depths := make([]uint32, n+1)
		for i := range depths {
			if depths[i], err = r.ReadU32(); err != nil {
				return err
			}
		}
		t.charge(base)
		if err := t.pop(1); err != nil {
			return err
		}
		t.emit(ir.Instr{Op: ir.OpBrTable, A: uint32(n)})
		for _, d := range depths {
			if err := t.branch(ir.OpBr, d); err != nil {
				return err
			}
		}
		t.markUnreachable()

	case wasm.OpReturn:
		t.charge(base)
		t.emit(ir.Instr{Op: ir.OpReturn, A: t.ctrl[0].results})
		t.markUnreachable()

	case wasm.OpCall:
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		ft := t.mt.mod.GetFuncType(idx)
		if ft == nil {
			return fmt.Errorf("call to unknown function %d", idx)
		}
		t.charge(callCost)
		if err := t.pop(uint32(len(ft.Params))); err != nil {
			return err
		}
		t.emit(ir.Instr{Op: ir.OpCall, A: idx})
		t.push(uint32(len(ft.Results)))

	case wasm.OpCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if int(typeIdx) >= len(t.mt.mod.Types) {
			return fmt.Errorf("call_indirect type %d out of range", typeIdx)
		}
		ft := t.mt.mod.Types[typeIdx]
		t.charge(callCost)
		if err := t.pop(1 + uint32(len(ft.Params))); err != nil {
			return err
		}
		t.emit(ir.Instr{Op: ir.OpCallIndirect, A: typeIdx, B: uint64(tableIdx)})
		t.push(uint32(len(ft.Results)))

	case wasm.OpDrop:
		t.charge(base)
		if err := t.pop(1); err != nil {
			return err
		}
		t.emit(ir.Instr{Op: ir.OpDrop})

	case wasm.OpSelect, wasm.OpSelectType:
		if op == wasm.OpSelectType {
			n, err := r.ReadCount(1)
			if err != nil {
				return err
			}
			if _, err := r.ReadBytes(n); err != nil {
				return err
			}
		}
		t.charge(base)
		if err := t.pop(2); err != nil {
			return err
		}
		t.emit(ir.Instr{Op: ir.OpSelect})

	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee, wasm.OpGlobalGet, wasm.OpGlobalSet:
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if (op == wasm.OpLocalGet || op == wasm.OpLocalSet || op == wasm.OpLocalTee) && idx >= t.ctrl[0].height {
			return fmt.Errorf("local %d out of range", idx)
		}
		t.charge(base)
		t.emit(ir.Instr{Op: ir.Op(op), A: idx})
		switch op {
		case wasm.OpLocalGet, wasm.OpGlobalGet:
			t.push(1)
		case wasm.OpLocalSet, wasm.OpGlobalSet:
			return t.pop(1)
		}

	case wasm.OpMemorySize, wasm.OpMemoryGrow:
		if _, err := r.ReadU32(); err != nil {
			return err
		}
		t.charge(base)
		t.emit(ir.Instr{Op: ir.Op(op)})
		if op == wasm.OpMemorySize {
			t.push(1)
		}

	case wasm.OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return err
		}
		t.constant(uint64(uint32(v)))
	case wasm.OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return err
		}
		t.constant(uint64(v))
	case wasm.OpF32Const:
		v, err := r.ReadU32LE()
		if err != nil {
			return err
		}
		t.constant(uint64(v))
	case wasm.OpF64Const:
		v, err := r.ReadU64LE()
		if err != nil {
			return err
		}
		t.constant(v)

	case wasm.OpPrefixMisc:
		return t.misc()

	default:
		switch {
		case op >= wasm.OpI32Load && op <= wasm.OpI64Load32U,
			op >= wasm.OpI32Store && op <= wasm.OpI64Store32:
			if _, err := r.ReadU32(); err != nil { // alignment hint
				return err
			}
			offset, err := r.ReadU32()
			if err != nil {
				return err
			}
			t.charge(memCost)
			t.emit(ir.Instr{Op: ir.Op(op), A: offset})
			if op >= wasm.OpI32Store {
				return t.pop(2)
			}
			return nil
		}

		delta, ok := numericEffect(op)
		if !ok {
			return errors.Unsupported(errors.PhaseTranslate, "opcode 0x%02x", op)
		}
		t.charge(base)
		t.emit(ir.Instr{Op: ir.Op(op)})
		if delta < 0 {
			return t.pop(uint32(-delta))
		}
	}
	return nil
}

func (t *funcTranslator) constant(bits uint64) {
	t.charge(t.mt.costs.Base)
	t.emit(ir.Instr{Op: ir.OpConst, B: bits})
	t.push(1)
}

func (t *funcTranslator) misc() error {
	sub, a, b, err := t.miscImmediates()
	if err != nil {
		return err
	}
	costs := t.mt.costs
	op := ir.Op(0x100 + sub)
	switch sub {
	case wasm.MiscMemoryInit, wasm.MiscMemoryCopy, wasm.MiscMemoryFill:
		t.charge(costs.Base + costs.Memory)
		t.emit(ir.Instr{Op: op, A: a})
		return t.pop(3)
	case wasm.MiscTableInit, wasm.MiscTableCopy:
		t.charge(costs.Base)
		t.emit(ir.Instr{Op: op, A: a, B: uint64(b)})
		return t.pop(3)
	case wasm.MiscDataDrop, wasm.MiscElemDrop:
		t.charge(costs.Base)
		t.emit(ir.Instr{Op: op, A: a})
		return nil
	}
	// saturating truncations
	t.charge(costs.Base)
	t.emit(ir.Instr{Op: op})
	return nil
}

// numericEffect returns the operand stack delta of a numeric instruction.
func numericEffect(op byte) (int, bool) {
	switch {
	case op == wasm.OpI32Eqz || op == wasm.OpI64Eqz:
		return 0, true
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU,
		op >= wasm.OpI64Eq && op <= wasm.OpI64GeU,
		op >= wasm.OpF32Eq && op <= wasm.OpF64Ge:
		return -1, true
	case op >= wasm.OpI32Clz && op <= wasm.OpI32Popcnt,
		op >= wasm.OpI64Clz && op <= wasm.OpI64Popcnt,
		op >= wasm.OpF32Abs && op <= wasm.OpF32Sqrt,
		op >= wasm.OpF64Abs && op <= wasm.OpF64Sqrt:
		return 0, true
	case op >= wasm.OpI32Add && op <= wasm.OpI32Rotr,
		op >= wasm.OpI64Add && op <= wasm.OpI64Rotr,
		op >= wasm.OpF32Add && op <= wasm.OpF32Copysign,
		op >= wasm.OpF64Add && op <= wasm.OpF64Copysign:
		return -1, true
	case op >= wasm.OpI32WrapI64 && op <= wasm.OpI64Extend32S:
		return 0, true
	}
	return 0, false
}

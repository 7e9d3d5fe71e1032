package compiler

import (
	"fmt"
	"strconv"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/internal/binary"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/wasm"
)

type moduleTypes struct {
	mod   *wasm.Module
	costs engine.FuelCosts
	fuel  bool
}

type frameKind uint8

const (
	frameFunc frameKind = iota
	frameBlock
	frameLoop
	frameIf
)

type ctrlFrame struct {
	patches     []int
	height      uint32 // operand height below the block's params
	params      uint32
	results     uint32
	loopPC      uint32
	elseFix     int // BrIfNot of an if still waiting for its else or end
	kind        frameKind
	unreachable bool
}

// funcTranslator lowers one function body. Heights are absolute slot
// counts from the frame base, so params and locals occupy [0, base).
type funcTranslator struct {
	mt        *moduleTypes
	r         *binary.Reader
	code      []ir.Instr
	ctrl      []ctrlFrame
	height    uint32
	maxHeight uint32
	fuelIdx   int
	skip      int
}

func (mt *moduleTypes) translateFunc(f *ir.Func, funcIdx uint32, body wasm.FuncBody) error {
	fail := func(err error) error {
		var e *errors.Error
		if errors.As(err, &e) && e.Phase == errors.PhaseTranslate {
			e.Path = []string{"function", strconv.FormatUint(uint64(funcIdx), 10)}
			return e
		}
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			Path("function", strconv.FormatUint(uint64(funcIdx), 10)).
			Cause(err).
			Build()
	}

	ft := mt.mod.GetFuncType(funcIdx)
	if ft == nil {
		return fail(fmt.Errorf("no type for function %d", funcIdx))
	}
	var locals uint64
	for _, l := range body.Locals {
		locals += uint64(l.Count)
	}
	base := uint32(len(ft.Params)) + uint32(locals)

	t := &funcTranslator{
		mt:        mt,
		r:         binary.NewReader(body.Code),
		code:      make([]ir.Instr, 0, len(body.Code)/2+2),
		height:    base,
		maxHeight: base,
		fuelIdx:   -1,
	}
	t.ctrl = append(t.ctrl, ctrlFrame{kind: frameFunc, height: base, results: uint32(len(ft.Results)), elseFix: -1})

	if err := t.run(); err != nil {
		return fail(err)
	}
	f.Code = t.code
	f.NumLocals = uint32(locals)
	f.MaxStack = t.maxHeight
	return nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func (t *funcTranslator) run() error {
	for len(t.ctrl) > 0 {
		op, err := t.r.ReadByte()
		if err != nil {
			return fmt.Errorf("unexpected end of function body: %w", err)
		}
		if t.top().unreachable {
			err = t.skipInstr(op)
		} else {
			err = t.instr(op)
		}
		if err != nil {
			return fmt.Errorf("at offset %d (opcode 0x%02x): %w", t.r.Position()-1, op, err)
		}
	}
	if !t.r.EOF() {
		return fmt.Errorf("%d bytes after function end", t.r.Len())
	}
	return nil
}

func (t *funcTranslator) top() *ctrlFrame {
	return &t.ctrl[len(t.ctrl)-1]
}

func (t *funcTranslator) emit(in ir.Instr) int {
	t.code = append(t.code, in)
	return len(t.code) - 1
}

// charge adds cost to the fuel instruction of the current basic block,
// starting a block if none is open.
func (t *funcTranslator) charge(cost uint32) {
	if !t.mt.fuel || cost == 0 {
		return
	}
	if t.fuelIdx < 0 {
		t.fuelIdx = t.emit(ir.Instr{Op: ir.OpFuel})
	}
	t.code[t.fuelIdx].A += cost
}

// cut ends the current basic block.
func (t *funcTranslator) cut() {
	t.fuelIdx = -1
}

func (t *funcTranslator) push(n uint32) {
	t.setHeight(t.height + n)
}

func (t *funcTranslator) pop(n uint32) error {
	if t.height < t.top().height+n {
		return fmt.Errorf("operand stack underflow")
	}
	t.height -= n
	return nil
}

func (t *funcTranslator) setHeight(h uint32) {
	t.height = h
	if h > t.maxHeight {
		t.maxHeight = h
	}
}

func (t *funcTranslator) markUnreachable() {
	t.top().unreachable = true
	t.cut()
}

func (t *funcTranslator) blockType() (params, results uint32, err error) {
	bt, err := t.r.ReadS33()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case bt == wasm.BlockTypeVoid:
		return 0, 0, nil
	case bt < 0:
		switch wasm.ValType(bt & 0x7f) {
		case wasm.ValI32, wasm.ValI64, wasm.ValF32, wasm.ValF64:
			return 0, 1, nil
		}
		return 0, 0, fmt.Errorf("unsupported block type %d", bt)
	case int(bt) < len(t.mt.mod.Types):
		ft := t.mt.mod.Types[bt]
		return uint32(len(ft.Params)), uint32(len(ft.Results)), nil
	}
	return 0, 0, fmt.Errorf("block type index %d out of range", bt)
}

func (t *funcTranslator) pushFrame(kind frameKind, params, results uint32) error {
	if t.height < t.top().height+params {
		return fmt.Errorf("block params exceed operand stack")
	}
	t.ctrl = append(t.ctrl, ctrlFrame{
		kind:    kind,
		height:  t.height - params,
		params:  params,
		results: results,
		loopPC:  uint32(len(t.code)),
		elseFix: -1,
	})
	return nil
}

// branch emits a branch to the label depth frames out. A plain br to the
// function frame becomes a return.
func (t *funcTranslator) branch(op ir.Op, depth uint32) error {
	if int(depth) >= len(t.ctrl) {
		return fmt.Errorf("branch depth %d out of range", depth)
	}
	target := &t.ctrl[len(t.ctrl)-1-int(depth)]
	if target.kind == frameFunc && op == ir.OpBr {
		t.emit(ir.Instr{Op: ir.OpReturn, A: target.results})
		return nil
	}
	keep := target.results
	if target.kind == frameLoop {
		keep = target.params
	}
	in := ir.Instr{Op: op, B: ir.PackBranch(target.height, keep)}
	if target.kind == frameLoop {
		in.A = target.loopPC
		t.emit(in)
		return nil
	}
	target.patches = append(target.patches, t.emit(in))
	return nil
}

func (t *funcTranslator) elseOp() error {
	f := t.top()
	if f.kind != frameIf || f.elseFix < 0 {
		return fmt.Errorf("else without if")
	}
	if !f.unreachable {
		f.patches = append(f.patches, t.emit(ir.Instr{Op: ir.OpJump}))
	}
	t.cut()
	t.code[f.elseFix].A = uint32(len(t.code))
	f.elseFix = -1
	f.unreachable = false
	t.height = f.height + f.params
	return nil
}

func (t *funcTranslator) endOp() error {
	f := t.ctrl[len(t.ctrl)-1]
	t.ctrl = t.ctrl[:len(t.ctrl)-1]
	t.cut()

	pc := uint32(len(t.code))
	if f.kind == frameFunc {
		t.emit(ir.Instr{Op: ir.OpReturn, A: f.results})
	}
	for _, idx := range f.patches {
		t.code[idx].A = pc
	}
	if f.elseFix >= 0 {
		t.code[f.elseFix].A = pc
	}
	t.setHeight(f.height + f.results)
	return nil
}

func (t *funcTranslator) skipInstr(op byte) error {
	switch op {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		if _, err := t.r.ReadS33(); err != nil {
			return err
		}
		t.skip++
		return nil
	case wasm.OpElse:
		if t.skip > 0 {
			return nil
		}
		return t.elseOp()
	case wasm.OpEnd:
		if t.skip > 0 {
			t.skip--
			return nil
		}
		return t.endOp()
	}
	return t.skipImmediates(op)
}

func (t *funcTranslator) skipImmediates(op byte) error {
	r := t.r
	var err error
	switch {
	case op == wasm.OpBr || op == wasm.OpBrIf || op == wasm.OpCall ||
		(op >= wasm.OpLocalGet && op <= wasm.OpGlobalSet) ||
		op == wasm.OpMemorySize || op == wasm.OpMemoryGrow:
		_, err = r.ReadU32()
	case op == wasm.OpBrTable:
		var n int
		if n, err = r.ReadCount(1); err != nil {
			return err
		}
		for i := 0; i <= n && err == nil; i++ {
			_, err = r.ReadU32()
		}
	case op == wasm.OpCallIndirect:
		if _, err = r.ReadU32(); err == nil {
			_, err = r.ReadU32()
		}
	case op == wasm.OpSelectType:
		var n int
		if n, err = r.ReadCount(1); err == nil {
			_, err = r.ReadBytes(n)
		}
	case op >= wasm.OpI32Load && op <= wasm.OpI64Store32:
		if _, err = r.ReadU32(); err == nil {
			_, err = r.ReadU32()
		}
	case op == wasm.OpI32Const:
		_, err = r.ReadS32()
	case op == wasm.OpI64Const:
		_, err = r.ReadS64()
	case op == wasm.OpF32Const:
		_, err = r.ReadBytes(4)
	case op == wasm.OpF64Const:
		_, err = r.ReadBytes(8)
	case op == wasm.OpPrefixMisc:
		_, _, _, err = t.miscImmediates()
	case op == wasm.OpUnreachable || op == wasm.OpNop || op == wasm.OpReturn ||
		op == wasm.OpDrop || op == wasm.OpSelect:
	default:
		if _, ok := numericEffect(op); !ok {
			return errors.Unsupported(errors.PhaseTranslate, "opcode 0x%02x", op)
		}
	}
	return err
}

// miscImmediates reads a 0xFC sub-opcode and its immediates.
func (t *funcTranslator) miscImmediates() (sub uint32, a, b uint32, err error) {
	r := t.r
	if sub, err = r.ReadU32(); err != nil {
		return
	}
	switch sub {
	case wasm.MiscI32TruncSatF32S, wasm.MiscI32TruncSatF32U, wasm.MiscI32TruncSatF64S, wasm.MiscI32TruncSatF64U,
		wasm.MiscI64TruncSatF32S, wasm.MiscI64TruncSatF32U, wasm.MiscI64TruncSatF64S, wasm.MiscI64TruncSatF64U:
	case wasm.MiscMemoryInit:
		if a, err = r.ReadU32(); err == nil {
			_, err = r.ReadU32()
		}
	case wasm.MiscDataDrop, wasm.MiscElemDrop:
		a, err = r.ReadU32()
	case wasm.MiscMemoryCopy:
		if _, err = r.ReadU32(); err == nil {
			_, err = r.ReadU32()
		}
	case wasm.MiscMemoryFill:
		_, err = r.ReadU32()
	case wasm.MiscTableInit, wasm.MiscTableCopy:
		if a, err = r.ReadU32(); err == nil {
			b, err = r.ReadU32()
		}
	default:
		err = errors.Unsupported(errors.PhaseTranslate, "opcode 0xfc %d", sub)
	}
	return
}

package testbed

import (
	"math"

	"github.com/wippyai/wasm-preparsed/wasm"
)

// Block types for Block, Loop and If.
const (
	Void   int64 = wasm.BlockTypeVoid
	ResI32 int64 = -1
	ResI64 int64 = -2
	ResF32 int64 = -3
	ResF64 int64 = -4
)

// Code assembles a function body. Every method appends one instruction and
// returns the receiver for chaining; End must close the body.
type Code struct {
	buf []byte
}

// NewCode returns an empty body.
func NewCode() *Code {
	return &Code{}
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte {
	return c.buf
}

// Op appends raw opcodes without immediates.
func (c *Code) Op(ops ...byte) *Code {
	c.buf = append(c.buf, ops...)
	return c
}

func (c *Code) u32(op byte, v uint32) *Code {
	c.buf = wasm.AppendU32(append(c.buf, op), v)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.buf = wasm.AppendS32(append(c.buf, wasm.OpI32Const), v)
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.buf = wasm.AppendS64(append(c.buf, wasm.OpI64Const), v)
	return c
}

func (c *Code) F32Const(v float32) *Code {
	bits := math.Float32bits(v)
	c.buf = append(c.buf, wasm.OpF32Const, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	return c
}

func (c *Code) F64Const(v float64) *Code {
	bits := math.Float64bits(v)
	c.buf = append(c.buf, wasm.OpF64Const)
	for i := 0; i < 8; i++ {
		c.buf = append(c.buf, byte(bits>>(8*i)))
	}
	return c
}

func (c *Code) LocalGet(i uint32) *Code  { return c.u32(wasm.OpLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.u32(wasm.OpLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.u32(wasm.OpLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.u32(wasm.OpGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.u32(wasm.OpGlobalSet, i) }
func (c *Code) Call(f uint32) *Code      { return c.u32(wasm.OpCall, f) }
func (c *Code) Br(depth uint32) *Code    { return c.u32(wasm.OpBr, depth) }
func (c *Code) BrIf(depth uint32) *Code  { return c.u32(wasm.OpBrIf, depth) }

// CallIndirect calls through table 0 with the given type index.
func (c *Code) CallIndirect(typeIdx uint32) *Code {
	c.u32(wasm.OpCallIndirect, typeIdx)
	c.buf = append(c.buf, 0)
	return c
}

// BrTable branches to labels[i] or def when i is out of range.
func (c *Code) BrTable(def uint32, labels ...uint32) *Code {
	c.u32(wasm.OpBrTable, uint32(len(labels)))
	for _, l := range labels {
		c.buf = wasm.AppendU32(c.buf, l)
	}
	c.buf = wasm.AppendU32(c.buf, def)
	return c
}

func (c *Code) block(op byte, bt int64) *Code {
	c.buf = wasm.AppendS64(append(c.buf, op), bt)
	return c
}

func (c *Code) Block(bt int64) *Code { return c.block(wasm.OpBlock, bt) }
func (c *Code) Loop(bt int64) *Code  { return c.block(wasm.OpLoop, bt) }
func (c *Code) If(bt int64) *Code    { return c.block(wasm.OpIf, bt) }
func (c *Code) Else() *Code          { return c.Op(wasm.OpElse) }
func (c *Code) End() *Code           { return c.Op(wasm.OpEnd) }
func (c *Code) Return() *Code        { return c.Op(wasm.OpReturn) }
func (c *Code) Drop() *Code          { return c.Op(wasm.OpDrop) }
func (c *Code) Select() *Code        { return c.Op(wasm.OpSelect) }
func (c *Code) Unreachable() *Code   { return c.Op(wasm.OpUnreachable) }

// Load appends a load or store opcode with natural alignment 0 and offset.
func (c *Code) Load(op byte, offset uint32) *Code {
	c.buf = append(c.buf, op, 0)
	c.buf = wasm.AppendU32(c.buf, offset)
	return c
}

// Store is Load for store opcodes.
func (c *Code) Store(op byte, offset uint32) *Code {
	return c.Load(op, offset)
}

func (c *Code) MemorySize() *Code { return c.Op(wasm.OpMemorySize, 0) }
func (c *Code) MemoryGrow() *Code { return c.Op(wasm.OpMemoryGrow, 0) }

func (c *Code) misc(sub uint32, imms ...uint32) *Code {
	c.buf = wasm.AppendU32(append(c.buf, wasm.OpPrefixMisc), sub)
	for _, v := range imms {
		c.buf = wasm.AppendU32(c.buf, v)
	}
	return c
}

// TruncSat appends a saturating truncation (sub-opcode 0-7).
func (c *Code) TruncSat(sub uint32) *Code { return c.misc(sub) }

func (c *Code) MemoryInit(data uint32) *Code { return c.misc(wasm.MiscMemoryInit, data, 0) }
func (c *Code) DataDrop(data uint32) *Code   { return c.misc(wasm.MiscDataDrop, data) }
func (c *Code) MemoryCopy() *Code            { return c.misc(wasm.MiscMemoryCopy, 0, 0) }
func (c *Code) MemoryFill() *Code            { return c.misc(wasm.MiscMemoryFill, 0) }
func (c *Code) TableInit(elem uint32) *Code  { return c.misc(wasm.MiscTableInit, elem, 0) }
func (c *Code) ElemDrop(elem uint32) *Code   { return c.misc(wasm.MiscElemDrop, elem) }
func (c *Code) TableCopy() *Code             { return c.misc(wasm.MiscTableCopy, 0, 0) }

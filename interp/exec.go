package interp

import (
	"context"
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
)

const (
	// maxStackSlots bounds the value stack across all frames (32MiB).
	maxStackSlots = 1 << 22
	// pollInterval is the number of checkpoints between context polls.
	pollInterval = 1024
)

var le = binary.LittleEndian

type frame struct {
	fn   *ir.Func
	pc   int
	base int
}

// Call runs function idx of the instance's index space with args and
// returns its results. A trap returns a *errors.TrapError, running out of
// fuel returns errors.ErrFuelExhausted. Neither leaves a frame behind, so
// the instance can be called again.
func (inst *Instance) Call(ctx context.Context, idx uint32, args []uint64) ([]uint64, error) {
	m := inst.Module
	ft, ok := m.FuncType(idx)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "function %d out of range", idx)
	}
	if len(args) != len(ft.Params) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			"function %d takes %d arguments, got %d", idx, len(ft.Params), len(args))
	}
	if len(inst.frames) > 0 {
		return nil, errors.Unsupported(errors.PhaseRuntime, "re-entrant call into a running instance")
	}

	if int(idx) < len(m.Imports) {
		stack := make([]uint64, max(len(ft.Params), len(ft.Results)))
		copy(stack, args)
		if err := inst.callHost(ctx, idx, stack); err != nil {
			return nil, err
		}
		return stack[:len(ft.Results):len(ft.Results)], nil
	}

	defer func() { inst.frames = inst.frames[:0] }()
	if err := inst.grow(len(args)); err != nil {
		return nil, err
	}
	copy(inst.stack, args)
	if _, err := inst.enter(idx, 0); err != nil {
		return nil, err
	}
	return inst.run(ctx, len(ft.Results))
}

func (inst *Instance) grow(n int) error {
	if n <= len(inst.stack) {
		return nil
	}
	if n > maxStackSlots {
		return errors.Trap(errors.TrapStackExhausted, "value stack exceeds %d slots", maxStackSlots)
	}
	size := min(max(n, 2*len(inst.stack), 256), maxStackSlots)
	grown := make([]uint64, size)
	copy(grown, inst.stack)
	inst.stack = grown
	return nil
}

// enter pushes a frame for defined function idx whose params start at
// base, and returns the operand stack pointer of the new frame.
func (inst *Instance) enter(idx uint32, base int) (int, error) {
	f := inst.Module.Func(idx)
	if err := f.Ensure(); err != nil {
		return 0, err
	}
	if len(inst.frames) >= inst.limits.MaxCallDepth {
		return 0, errors.Trap(errors.TrapStackExhausted, "call depth exceeds %d", inst.limits.MaxCallDepth)
	}
	if err := inst.grow(base + int(f.MaxStack)); err != nil {
		return 0, err
	}
	locals := base + len(inst.Module.Types[f.TypeIdx].Params)
	sp := locals + int(f.NumLocals)
	clear(inst.stack[locals:sp])
	inst.frames = append(inst.frames, frame{fn: f, base: base})
	return sp, nil
}

// invoke calls function idx with its params on top of the stack at sp. For
// a defined function it pushes a frame and reports entered.
func (inst *Instance) invoke(ctx context.Context, idx uint32, sp int) (int, bool, error) {
	m := inst.Module
	if int(idx) < len(m.Imports) {
		ft := m.Types[m.Imports[idx].Type]
		p, r := len(ft.Params), len(ft.Results)
		if err := inst.callHost(ctx, idx, inst.stack[sp-p:sp-p+max(p, r)]); err != nil {
			return 0, false, err
		}
		return sp - p + r, false, nil
	}
	ft, _ := m.FuncType(idx)
	sp, err := inst.enter(idx, sp-len(ft.Params))
	return sp, true, err
}

func (inst *Instance) callHost(ctx context.Context, idx uint32, stack []uint64) error {
	err := inst.Host[idx](ctx, stack)
	if err == nil || errors.IsFuelExhausted(err) {
		return err
	}
	imp := inst.Module.Imports[idx]
	return errors.HostTrap(imp.Namespace+"."+imp.Name, err)
}

func (inst *Instance) poll(ctx context.Context) error {
	inst.polls++
	if inst.polls%pollInterval != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Interrupted(err)
	}
	return nil
}

// access returns the n bytes at the effective address base+offset.
func (inst *Instance) access(base uint64, offset uint32, n uint64) ([]byte, error) {
	ea := uint64(uint32(base)) + uint64(offset)
	buf := inst.Memory.Bytes()
	if ea+n > uint64(len(buf)) {
		return nil, errors.MemoryOutOfBounds(ea, n, uint64(len(buf)))
	}
	return buf[ea : ea+n], nil
}

// chargeBulk consumes the dynamic fuel of a bulk memory operation.
func (inst *Instance) chargeBulk(n uint32) error {
	per := inst.Module.Config.FuelCosts.BulkBytesPerFuel
	if !inst.Module.Config.ConsumeFuel || per == 0 || n < per {
		return nil
	}
	_, err := inst.Meter.Consume(uint64(n / per))
	return err
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func f32(v uint64) float32         { return math.Float32frombits(uint32(v)) }
func f64(v uint64) float64         { return math.Float64frombits(v) }
func u32f(f float32) uint64        { return uint64(math.Float32bits(f)) }
func u64f(f float64) uint64        { return math.Float64bits(f) }
func i32u(v int32) uint64          { return uint64(uint32(v)) }
func trap(c errors.TrapCode) error { return errors.Trap(c, "") }

// run executes from the top frame until the frame at depth zero returns.
func (inst *Instance) run(ctx context.Context, nresults int) ([]uint64, error) {
	m := inst.Module
	s := inst.stack
	top := &inst.frames[len(inst.frames)-1]
	code, pc, base := top.fn.Code, 0, top.base
	sp := base + len(m.Types[top.fn.TypeIdx].Params) + int(top.fn.NumLocals)

	for {
		in := &code[pc]
		pc++

		switch in.Op {
		case ir.OpUnreachable:
			return nil, trap(errors.TrapUnreachable)

		case ir.OpFuel:
			if _, err := inst.Meter.Consume(uint64(in.A)); err != nil {
				return nil, err
			}
			if err := inst.poll(ctx); err != nil {
				return nil, err
			}

		case ir.OpBr, ir.OpBrIf:
			if in.Op == ir.OpBrIf {
				sp--
				if uint32(s[sp]) == 0 {
					continue
				}
			}
			target := int(in.A)
			if target < pc {
				if err := inst.poll(ctx); err != nil {
					return nil, err
				}
			}
			h, k := ir.UnpackBranch(in.B)
			dst := base + int(h)
			copy(s[dst:dst+int(k)], s[sp-int(k):sp])
			sp = dst + int(k)
			pc = target

		case ir.OpBrIfNot:
			sp--
			if uint32(s[sp]) == 0 {
				pc = int(in.A)
			}

		case ir.OpJump:
			pc = int(in.A)

		case ir.OpBrTable:
			sp--
			pc += int(min(uint32(s[sp]), in.A))

		case ir.OpReturn:
			n := int(in.A)
			copy(s[base:base+n], s[sp-n:sp])
			sp = base + n
			inst.frames = inst.frames[:len(inst.frames)-1]
			if len(inst.frames) == 0 {
				return append([]uint64(nil), s[:nresults]...), nil
			}
			top = &inst.frames[len(inst.frames)-1]
			code, pc, base = top.fn.Code, top.pc, top.base

		case ir.OpCall, ir.OpCallIndirect:
			idx := in.A
			if in.Op == ir.OpCallIndirect {
				sp--
				tbl := inst.Tables[in.B]
				i := uint32(s[sp])
				if int(i) >= len(tbl) {
					return nil, trap(errors.TrapTableOutOfBounds)
				}
				idx = tbl[i]
				if idx == ir.NullFunc {
					return nil, trap(errors.TrapUninitializedElement)
				}
				if ft, ok := m.FuncType(idx); !ok || !ft.Equal(m.Types[in.A]) {
					return nil, trap(errors.TrapIndirectCallTypeMismatch)
				}
			}
			if err := inst.poll(ctx); err != nil {
				return nil, err
			}
			inst.frames[len(inst.frames)-1].pc = pc
			next, entered, err := inst.invoke(ctx, idx, sp)
			if err != nil {
				return nil, err
			}
			sp = next
			if entered {
				s = inst.stack
				top = &inst.frames[len(inst.frames)-1]
				code, pc, base = top.fn.Code, 0, top.base
			}

		case ir.OpDrop:
			sp--

		case ir.OpSelect:
			sp -= 2
			if uint32(s[sp+1]) == 0 {
				s[sp-1] = s[sp]
			}

		case ir.OpLocalGet:
			s[sp] = s[base+int(in.A)]
			sp++
		case ir.OpLocalSet:
			sp--
			s[base+int(in.A)] = s[sp]
		case ir.OpLocalTee:
			s[base+int(in.A)] = s[sp-1]
		case ir.OpGlobalGet:
			s[sp] = inst.Globals[in.A]
			sp++
		case ir.OpGlobalSet:
			sp--
			inst.Globals[in.A] = s[sp]

		case ir.OpMemorySize:
			s[sp] = uint64(inst.Memory.Pages())
			sp++
		case ir.OpMemoryGrow:
			if prev, ok := inst.Memory.Grow(uint32(s[sp-1])); ok {
				s[sp-1] = uint64(prev)
			} else {
				s[sp-1] = i32u(-1)
			}

		case ir.OpConst:
			s[sp] = in.B
			sp++

		// loads
		case ir.OpI32Load, ir.OpF32Load:
			b, err := inst.access(s[sp-1], in.A, 4)
			if err != nil {
				return nil, err
			}
			s[sp-1] = uint64(le.Uint32(b))
		case ir.OpI64Load, ir.OpF64Load:
			b, err := inst.access(s[sp-1], in.A, 8)
			if err != nil {
				return nil, err
			}
			s[sp-1] = le.Uint64(b)
		case ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI64Load8S, ir.OpI64Load8U:
			b, err := inst.access(s[sp-1], in.A, 1)
			if err != nil {
				return nil, err
			}
			switch in.Op {
			case ir.OpI32Load8S:
				s[sp-1] = i32u(int32(int8(b[0])))
			case ir.OpI64Load8S:
				s[sp-1] = uint64(int64(int8(b[0])))
			default:
				s[sp-1] = uint64(b[0])
			}
		case ir.OpI32Load16S, ir.OpI32Load16U, ir.OpI64Load16S, ir.OpI64Load16U:
			b, err := inst.access(s[sp-1], in.A, 2)
			if err != nil {
				return nil, err
			}
			v := le.Uint16(b)
			switch in.Op {
			case ir.OpI32Load16S:
				s[sp-1] = i32u(int32(int16(v)))
			case ir.OpI64Load16S:
				s[sp-1] = uint64(int64(int16(v)))
			default:
				s[sp-1] = uint64(v)
			}
		case ir.OpI64Load32S, ir.OpI64Load32U:
			b, err := inst.access(s[sp-1], in.A, 4)
			if err != nil {
				return nil, err
			}
			if in.Op == ir.OpI64Load32S {
				s[sp-1] = uint64(int64(int32(le.Uint32(b))))
			} else {
				s[sp-1] = uint64(le.Uint32(b))
			}

		// stores
		case ir.OpI32Store, ir.OpF32Store, ir.OpI64Store32:
			b, err := inst.access(s[sp-2], in.A, 4)
			if err != nil {
				return nil, err
			}
			le.PutUint32(b, uint32(s[sp-1]))
			sp -= 2
		case ir.OpI64Store, ir.OpF64Store:
			b, err := inst.access(s[sp-2], in.A, 8)
			if err != nil {
				return nil, err
			}
			le.PutUint64(b, s[sp-1])
			sp -= 2
		case ir.OpI32Store8, ir.OpI64Store8:
			b, err := inst.access(s[sp-2], in.A, 1)
			if err != nil {
				return nil, err
			}
			b[0] = byte(s[sp-1])
			sp -= 2
		case ir.OpI32Store16, ir.OpI64Store16:
			b, err := inst.access(s[sp-2], in.A, 2)
			if err != nil {
				return nil, err
			}
			le.PutUint16(b, uint16(s[sp-1]))
			sp -= 2

		// i32 comparison
		case ir.OpI32Eqz:
			s[sp-1] = b2u(uint32(s[sp-1]) == 0)
		case ir.OpI32Eq:
			sp--
			s[sp-1] = b2u(uint32(s[sp-1]) == uint32(s[sp]))
		case ir.OpI32Ne:
			sp--
			s[sp-1] = b2u(uint32(s[sp-1]) != uint32(s[sp]))
		case ir.OpI32LtS:
			sp--
			s[sp-1] = b2u(int32(s[sp-1]) < int32(s[sp]))
		case ir.OpI32LtU:
			sp--
			s[sp-1] = b2u(uint32(s[sp-1]) < uint32(s[sp]))
		case ir.OpI32GtS:
			sp--
			s[sp-1] = b2u(int32(s[sp-1]) > int32(s[sp]))
		case ir.OpI32GtU:
			sp--
			s[sp-1] = b2u(uint32(s[sp-1]) > uint32(s[sp]))
		case ir.OpI32LeS:
			sp--
			s[sp-1] = b2u(int32(s[sp-1]) <= int32(s[sp]))
		case ir.OpI32LeU:
			sp--
			s[sp-1] = b2u(uint32(s[sp-1]) <= uint32(s[sp]))
		case ir.OpI32GeS:
			sp--
			s[sp-1] = b2u(int32(s[sp-1]) >= int32(s[sp]))
		case ir.OpI32GeU:
			sp--
			s[sp-1] = b2u(uint32(s[sp-1]) >= uint32(s[sp]))

		// i64 comparison
		case ir.OpI64Eqz:
			s[sp-1] = b2u(s[sp-1] == 0)
		case ir.OpI64Eq:
			sp--
			s[sp-1] = b2u(s[sp-1] == s[sp])
		case ir.OpI64Ne:
			sp--
			s[sp-1] = b2u(s[sp-1] != s[sp])
		case ir.OpI64LtS:
			sp--
			s[sp-1] = b2u(int64(s[sp-1]) < int64(s[sp]))
		case ir.OpI64LtU:
			sp--
			s[sp-1] = b2u(s[sp-1] < s[sp])
		case ir.OpI64GtS:
			sp--
			s[sp-1] = b2u(int64(s[sp-1]) > int64(s[sp]))
		case ir.OpI64GtU:
			sp--
			s[sp-1] = b2u(s[sp-1] > s[sp])
		case ir.OpI64LeS:
			sp--
			s[sp-1] = b2u(int64(s[sp-1]) <= int64(s[sp]))
		case ir.OpI64LeU:
			sp--
			s[sp-1] = b2u(s[sp-1] <= s[sp])
		case ir.OpI64GeS:
			sp--
			s[sp-1] = b2u(int64(s[sp-1]) >= int64(s[sp]))
		case ir.OpI64GeU:
			sp--
			s[sp-1] = b2u(s[sp-1] >= s[sp])

		// float comparison
		case ir.OpF32Eq:
			sp--
			s[sp-1] = b2u(f32(s[sp-1]) == f32(s[sp]))
		case ir.OpF32Ne:
			sp--
			s[sp-1] = b2u(f32(s[sp-1]) != f32(s[sp]))
		case ir.OpF32Lt:
			sp--
			s[sp-1] = b2u(f32(s[sp-1]) < f32(s[sp]))
		case ir.OpF32Gt:
			sp--
			s[sp-1] = b2u(f32(s[sp-1]) > f32(s[sp]))
		case ir.OpF32Le:
			sp--
			s[sp-1] = b2u(f32(s[sp-1]) <= f32(s[sp]))
		case ir.OpF32Ge:
			sp--
			s[sp-1] = b2u(f32(s[sp-1]) >= f32(s[sp]))
		case ir.OpF64Eq:
			sp--
			s[sp-1] = b2u(f64(s[sp-1]) == f64(s[sp]))
		case ir.OpF64Ne:
			sp--
			s[sp-1] = b2u(f64(s[sp-1]) != f64(s[sp]))
		case ir.OpF64Lt:
			sp--
			s[sp-1] = b2u(f64(s[sp-1]) < f64(s[sp]))
		case ir.OpF64Gt:
			sp--
			s[sp-1] = b2u(f64(s[sp-1]) > f64(s[sp]))
		case ir.OpF64Le:
			sp--
			s[sp-1] = b2u(f64(s[sp-1]) <= f64(s[sp]))
		case ir.OpF64Ge:
			sp--
			s[sp-1] = b2u(f64(s[sp-1]) >= f64(s[sp]))

		// i32 arithmetic
		case ir.OpI32Clz:
			s[sp-1] = uint64(bits.LeadingZeros32(uint32(s[sp-1])))
		case ir.OpI32Ctz:
			s[sp-1] = uint64(bits.TrailingZeros32(uint32(s[sp-1])))
		case ir.OpI32Popcnt:
			s[sp-1] = uint64(bits.OnesCount32(uint32(s[sp-1])))
		case ir.OpI32Add:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) + uint32(s[sp]))
		case ir.OpI32Sub:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) - uint32(s[sp]))
		case ir.OpI32Mul:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) * uint32(s[sp]))
		case ir.OpI32DivS, ir.OpI32DivU, ir.OpI32RemS, ir.OpI32RemU:
			sp--
			v, err := i32div(in.Op, uint32(s[sp-1]), uint32(s[sp]))
			if err != nil {
				return nil, err
			}
			s[sp-1] = uint64(v)
		case ir.OpI32And:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) & uint32(s[sp]))
		case ir.OpI32Or:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) | uint32(s[sp]))
		case ir.OpI32Xor:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) ^ uint32(s[sp]))
		case ir.OpI32Shl:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) << (uint32(s[sp]) & 31))
		case ir.OpI32ShrS:
			sp--
			s[sp-1] = i32u(int32(s[sp-1]) >> (uint32(s[sp]) & 31))
		case ir.OpI32ShrU:
			sp--
			s[sp-1] = uint64(uint32(s[sp-1]) >> (uint32(s[sp]) & 31))
		case ir.OpI32Rotl:
			sp--
			s[sp-1] = uint64(bits.RotateLeft32(uint32(s[sp-1]), int(s[sp]&31)))
		case ir.OpI32Rotr:
			sp--
			s[sp-1] = uint64(bits.RotateLeft32(uint32(s[sp-1]), -int(s[sp]&31)))

		// i64 arithmetic
		case ir.OpI64Clz:
			s[sp-1] = uint64(bits.LeadingZeros64(s[sp-1]))
		case ir.OpI64Ctz:
			s[sp-1] = uint64(bits.TrailingZeros64(s[sp-1]))
		case ir.OpI64Popcnt:
			s[sp-1] = uint64(bits.OnesCount64(s[sp-1]))
		case ir.OpI64Add:
			sp--
			s[sp-1] += s[sp]
		case ir.OpI64Sub:
			sp--
			s[sp-1] -= s[sp]
		case ir.OpI64Mul:
			sp--
			s[sp-1] *= s[sp]
		case ir.OpI64DivS, ir.OpI64DivU, ir.OpI64RemS, ir.OpI64RemU:
			sp--
			v, err := i64div(in.Op, s[sp-1], s[sp])
			if err != nil {
				return nil, err
			}
			s[sp-1] = v
		case ir.OpI64And:
			sp--
			s[sp-1] &= s[sp]
		case ir.OpI64Or:
			sp--
			s[sp-1] |= s[sp]
		case ir.OpI64Xor:
			sp--
			s[sp-1] ^= s[sp]
		case ir.OpI64Shl:
			sp--
			s[sp-1] <<= s[sp] & 63
		case ir.OpI64ShrS:
			sp--
			s[sp-1] = uint64(int64(s[sp-1]) >> (s[sp] & 63))
		case ir.OpI64ShrU:
			sp--
			s[sp-1] >>= s[sp] & 63
		case ir.OpI64Rotl:
			sp--
			s[sp-1] = bits.RotateLeft64(s[sp-1], int(s[sp]&63))
		case ir.OpI64Rotr:
			sp--
			s[sp-1] = bits.RotateLeft64(s[sp-1], -int(s[sp]&63))

		// f32 arithmetic
		case ir.OpF32Abs:
			s[sp-1] &= 0x7FFFFFFF
		case ir.OpF32Neg:
			s[sp-1] ^= 0x80000000
		case ir.OpF32Ceil:
			s[sp-1] = u32f(float32(math.Ceil(float64(f32(s[sp-1])))))
		case ir.OpF32Floor:
			s[sp-1] = u32f(float32(math.Floor(float64(f32(s[sp-1])))))
		case ir.OpF32Trunc:
			s[sp-1] = u32f(float32(math.Trunc(float64(f32(s[sp-1])))))
		case ir.OpF32Nearest:
			s[sp-1] = u32f(float32(math.RoundToEven(float64(f32(s[sp-1])))))
		case ir.OpF32Sqrt:
			s[sp-1] = u32f(float32(math.Sqrt(float64(f32(s[sp-1])))))
		case ir.OpF32Add:
			sp--
			s[sp-1] = u32f(f32(s[sp-1]) + f32(s[sp]))
		case ir.OpF32Sub:
			sp--
			s[sp-1] = u32f(f32(s[sp-1]) - f32(s[sp]))
		case ir.OpF32Mul:
			sp--
			s[sp-1] = u32f(f32(s[sp-1]) * f32(s[sp]))
		case ir.OpF32Div:
			sp--
			s[sp-1] = u32f(f32(s[sp-1]) / f32(s[sp]))
		case ir.OpF32Min:
			sp--
			s[sp-1] = u32f(float32(fmin(float64(f32(s[sp-1])), float64(f32(s[sp])))))
		case ir.OpF32Max:
			sp--
			s[sp-1] = u32f(float32(fmax(float64(f32(s[sp-1])), float64(f32(s[sp])))))
		case ir.OpF32Copysign:
			sp--
			s[sp-1] = s[sp-1]&0x7FFFFFFF | s[sp]&0x80000000

		// f64 arithmetic
		case ir.OpF64Abs:
			s[sp-1] &^= 1 << 63
		case ir.OpF64Neg:
			s[sp-1] ^= 1 << 63
		case ir.OpF64Ceil:
			s[sp-1] = u64f(math.Ceil(f64(s[sp-1])))
		case ir.OpF64Floor:
			s[sp-1] = u64f(math.Floor(f64(s[sp-1])))
		case ir.OpF64Trunc:
			s[sp-1] = u64f(math.Trunc(f64(s[sp-1])))
		case ir.OpF64Nearest:
			s[sp-1] = u64f(math.RoundToEven(f64(s[sp-1])))
		case ir.OpF64Sqrt:
			s[sp-1] = u64f(math.Sqrt(f64(s[sp-1])))
		case ir.OpF64Add:
			sp--
			s[sp-1] = u64f(f64(s[sp-1]) + f64(s[sp]))
		case ir.OpF64Sub:
			sp--
			s[sp-1] = u64f(f64(s[sp-1]) - f64(s[sp]))
		case ir.OpF64Mul:
			sp--
			s[sp-1] = u64f(f64(s[sp-1]) * f64(s[sp]))
		case ir.OpF64Div:
			sp--
			s[sp-1] = u64f(f64(s[sp-1]) / f64(s[sp]))
		case ir.OpF64Min:
			sp--
			s[sp-1] = u64f(fmin(f64(s[sp-1]), f64(s[sp])))
		case ir.OpF64Max:
			sp--
			s[sp-1] = u64f(fmax(f64(s[sp-1]), f64(s[sp])))
		case ir.OpF64Copysign:
			sp--
			const sign = 1 << 63
			s[sp-1] = s[sp-1]&^sign | s[sp]&sign

		// conversions
		case ir.OpI32WrapI64:
			s[sp-1] = uint64(uint32(s[sp-1]))
		case ir.OpI32TruncF32S, ir.OpI32TruncF32U, ir.OpI64TruncF32S, ir.OpI64TruncF32U,
			ir.OpI32TruncF64S, ir.OpI32TruncF64U, ir.OpI64TruncF64S, ir.OpI64TruncF64U:
			v, err := truncate(in.Op, s[sp-1])
			if err != nil {
				return nil, err
			}
			s[sp-1] = v
		case ir.OpI32TruncSatF32S, ir.OpI32TruncSatF32U, ir.OpI64TruncSatF32S, ir.OpI64TruncSatF32U,
			ir.OpI32TruncSatF64S, ir.OpI32TruncSatF64U, ir.OpI64TruncSatF64S, ir.OpI64TruncSatF64U:
			s[sp-1] = truncateSat(in.Op, s[sp-1])
		case ir.OpI64ExtendI32S:
			s[sp-1] = uint64(int64(int32(s[sp-1])))
		case ir.OpI64ExtendI32U:
			s[sp-1] = uint64(uint32(s[sp-1]))
		case ir.OpF32ConvertI32S:
			s[sp-1] = u32f(float32(int32(s[sp-1])))
		case ir.OpF32ConvertI32U:
			s[sp-1] = u32f(float32(uint32(s[sp-1])))
		case ir.OpF32ConvertI64S:
			s[sp-1] = u32f(float32(int64(s[sp-1])))
		case ir.OpF32ConvertI64U:
			s[sp-1] = u32f(float32(s[sp-1]))
		case ir.OpF32DemoteF64:
			s[sp-1] = u32f(float32(f64(s[sp-1])))
		case ir.OpF64ConvertI32S:
			s[sp-1] = u64f(float64(int32(s[sp-1])))
		case ir.OpF64ConvertI32U:
			s[sp-1] = u64f(float64(uint32(s[sp-1])))
		case ir.OpF64ConvertI64S:
			s[sp-1] = u64f(float64(int64(s[sp-1])))
		case ir.OpF64ConvertI64U:
			s[sp-1] = u64f(float64(s[sp-1]))
		case ir.OpF64PromoteF32:
			s[sp-1] = u64f(float64(f32(s[sp-1])))
		case ir.OpI32ReinterpretF32, ir.OpI64ReinterpretF64, ir.OpF32ReinterpretI32, ir.OpF64ReinterpretI64:
			// bit patterns are shared

		// sign extension
		case ir.OpI32Extend8S:
			s[sp-1] = i32u(int32(int8(s[sp-1])))
		case ir.OpI32Extend16S:
			s[sp-1] = i32u(int32(int16(s[sp-1])))
		case ir.OpI64Extend8S:
			s[sp-1] = uint64(int64(int8(s[sp-1])))
		case ir.OpI64Extend16S:
			s[sp-1] = uint64(int64(int16(s[sp-1])))
		case ir.OpI64Extend32S:
			s[sp-1] = uint64(int64(int32(s[sp-1])))

		// bulk memory and tables
		case ir.OpMemoryInit, ir.OpMemoryCopy, ir.OpMemoryFill, ir.OpTableInit, ir.OpTableCopy:
			sp -= 3
			if err := inst.bulk(in, uint32(s[sp]), uint32(s[sp+1]), uint32(s[sp+2])); err != nil {
				return nil, err
			}
		case ir.OpDataDrop:
			inst.droppedData[in.A] = true
		case ir.OpElemDrop:
			inst.droppedElem[in.A] = true

		default:
			return nil, errors.InvalidData(errors.PhaseRuntime, "invalid opcode %s at %d", in.Op, pc-1)
		}
	}
}

// bulk executes a three-operand bulk memory or table instruction. For fill,
// src carries the byte value.
func (inst *Instance) bulk(in *ir.Instr, dst, src, n uint32) error {
	fits := func(off, n uint32, size int) bool {
		return uint64(off)+uint64(n) <= uint64(size)
	}
	switch in.Op {
	case ir.OpMemoryInit:
		var data []byte
		if !inst.droppedData[in.A] {
			data = inst.Module.Data[in.A].Init
		}
		mem := inst.Memory.Bytes()
		if !fits(src, n, len(data)) || !fits(dst, n, len(mem)) {
			return errors.MemoryOutOfBounds(uint64(dst), uint64(n), uint64(len(mem)))
		}
		if err := inst.chargeBulk(n); err != nil {
			return err
		}
		copy(mem[dst:], data[src:src+n])

	case ir.OpMemoryCopy:
		mem := inst.Memory.Bytes()
		if !fits(src, n, len(mem)) || !fits(dst, n, len(mem)) {
			return errors.MemoryOutOfBounds(uint64(max(src, dst)), uint64(n), uint64(len(mem)))
		}
		if err := inst.chargeBulk(n); err != nil {
			return err
		}
		copy(mem[dst:dst+n], mem[src:src+n])

	case ir.OpMemoryFill:
		mem := inst.Memory.Bytes()
		if !fits(dst, n, len(mem)) {
			return errors.MemoryOutOfBounds(uint64(dst), uint64(n), uint64(len(mem)))
		}
		if err := inst.chargeBulk(n); err != nil {
			return err
		}
		b := byte(src)
		for i := range mem[dst : dst+n] {
			mem[dst+uint32(i)] = b
		}

	case ir.OpTableInit:
		var elems []uint32
		if !inst.droppedElem[in.A] {
			elems = inst.Module.Elements[in.A].Funcs
		}
		tbl := inst.Tables[in.B]
		if !fits(src, n, len(elems)) || !fits(dst, n, len(tbl)) {
			return trap(errors.TrapTableOutOfBounds)
		}
		copy(tbl[dst:], elems[src:src+n])

	case ir.OpTableCopy:
		to, from := inst.Tables[in.A], inst.Tables[in.B]
		if !fits(src, n, len(from)) || !fits(dst, n, len(to)) {
			return trap(errors.TrapTableOutOfBounds)
		}
		copy(to[dst:dst+n], from[src:src+n])
	}
	return nil
}

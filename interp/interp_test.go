package interp

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-preparsed/compiler"
	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/store"
	"github.com/wippyai/wasm-preparsed/testbed"
	"github.com/wippyai/wasm-preparsed/wasm"
)

func load(t *testing.T, raw []byte, host []HostFunc, opts ...engine.Option) *Instance {
	t.Helper()
	eng, err := engine.NewDefault(opts...)
	require.NoError(t, err)
	m, err := compiler.Compile(context.Background(), eng, raw)
	require.NoError(t, err)

	meter := store.NewMeter(eng.ConsumeFuel())
	if meter.Enabled() {
		require.NoError(t, meter.Set(1_000_000))
	}
	inst, err := New(m, host, meter, LimitsFromConfig(eng.Config()))
	require.NoError(t, err)
	require.NoError(t, inst.Init(context.Background()))
	return inst
}

func call(inst *Instance, name string, args ...uint64) ([]uint64, error) {
	exp, ok := inst.Module.Export(name)
	if !ok {
		return nil, stderrors.New("no export " + name)
	}
	return inst.Call(context.Background(), exp.Index, args)
}

func mustCall(t *testing.T, inst *Instance, name string, args ...uint64) []uint64 {
	t.Helper()
	res, err := call(inst, name, args...)
	require.NoError(t, err)
	return res
}

func requireTrap(t *testing.T, err error, code errors.TrapCode) {
	t.Helper()
	var te *errors.TrapError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, code, te.Code, "trap: %v", err)
}

func u32(v int32) uint64 { return uint64(uint32(v)) }

func TestFib(t *testing.T) {
	for _, mode := range []engine.CompilationMode{engine.CompilationEager, engine.CompilationLazy} {
		t.Run(mode.String(), func(t *testing.T) {
			inst := load(t, testbed.FibGuest(), nil, engine.WithCompilationMode(mode))
			assert.Equal(t, []uint64{55}, mustCall(t, inst, "fib", 10))
			assert.Equal(t, []uint64{12586269025}, mustCall(t, inst, "fib_iter", 50))
			assert.Zero(t, inst.Module.Untranslated())
		})
	}
}

type binCase struct {
	name string
	op   byte
	typ  wasm.ValType
	a, b uint64
	want uint64
	trap errors.TrapCode
}

func TestIntegerOps(t *testing.T) {
	cases := []binCase{
		{name: "i32.add wraps", op: wasm.OpI32Add, typ: testbed.I32, a: 0xFFFFFFFF, b: 1, want: 0},
		{name: "i32.sub wraps", op: wasm.OpI32Sub, typ: testbed.I32, a: 0, b: 1, want: 0xFFFFFFFF},
		{name: "i32.mul wraps", op: wasm.OpI32Mul, typ: testbed.I32, a: 0x10000, b: 0x10000, want: 0},
		{name: "i32.div_s", op: wasm.OpI32DivS, typ: testbed.I32, a: u32(-7), b: 2, want: u32(-3)},
		{name: "i32.div_u", op: wasm.OpI32DivU, typ: testbed.I32, a: u32(-7), b: 2, want: 0x7FFFFFFC},
		{name: "i32.rem_s", op: wasm.OpI32RemS, typ: testbed.I32, a: u32(-7), b: 2, want: u32(-1)},
		{name: "i32.rem_s min by -1", op: wasm.OpI32RemS, typ: testbed.I32, a: u32(math.MinInt32), b: u32(-1), want: 0},
		{name: "i32.div_s overflow", op: wasm.OpI32DivS, typ: testbed.I32, a: u32(math.MinInt32), b: u32(-1), trap: errors.TrapIntegerOverflow},
		{name: "i32.div_u by zero", op: wasm.OpI32DivU, typ: testbed.I32, a: 1, b: 0, trap: errors.TrapIntegerDivideByZero},
		{name: "i32.rem_u by zero", op: wasm.OpI32RemU, typ: testbed.I32, a: 1, b: 0, trap: errors.TrapIntegerDivideByZero},
		{name: "i32.shl masks count", op: wasm.OpI32Shl, typ: testbed.I32, a: 1, b: 33, want: 2},
		{name: "i32.shr_s", op: wasm.OpI32ShrS, typ: testbed.I32, a: 0x80000000, b: 1, want: 0xC0000000},
		{name: "i32.shr_u", op: wasm.OpI32ShrU, typ: testbed.I32, a: 0x80000000, b: 1, want: 0x40000000},
		{name: "i32.rotl", op: wasm.OpI32Rotl, typ: testbed.I32, a: 0x80000001, b: 1, want: 3},
		{name: "i32.rotr", op: wasm.OpI32Rotr, typ: testbed.I32, a: 1, b: 1, want: 0x80000000},
		{name: "i32.lt_s", op: wasm.OpI32LtS, typ: testbed.I32, a: u32(-1), b: 0, want: 1},
		{name: "i32.lt_u", op: wasm.OpI32LtU, typ: testbed.I32, a: u32(-1), b: 0, want: 0},
		{name: "i64.add wraps", op: wasm.OpI64Add, typ: testbed.I64, a: math.MaxUint64, b: 2, want: 1},
		{name: "i64.div_s overflow", op: wasm.OpI64DivS, typ: testbed.I64, a: 1 << 63, b: math.MaxUint64, trap: errors.TrapIntegerOverflow},
		{name: "i64.rem_s min by -1", op: wasm.OpI64RemS, typ: testbed.I64, a: 1 << 63, b: math.MaxUint64, want: 0},
		{name: "i64.rem_u", op: wasm.OpI64RemU, typ: testbed.I64, a: 10, b: 3, want: 1},
		{name: "i64.shr_s", op: wasm.OpI64ShrS, typ: testbed.I64, a: 1 << 63, b: 63, want: math.MaxUint64},
		{name: "i64.rotr", op: wasm.OpI64Rotr, typ: testbed.I64, a: 1, b: 65, want: 1 << 63},
		{name: "i64.gt_s", op: wasm.OpI64GtS, typ: testbed.I64, a: 1, b: math.MaxUint64, want: 1},
	}

	b := testbed.NewBuilder()
	for i, c := range cases {
		result := c.typ
		if c.op == wasm.OpI32LtS || c.op == wasm.OpI32LtU || c.op == wasm.OpI64GtS {
			result = testbed.I32
		}
		idx := b.Func(testbed.Types(c.typ, c.typ), testbed.Types(result), nil,
			testbed.NewCode().LocalGet(0).LocalGet(1).Op(c.op).End())
		b.ExportFunc(cases[i].name, idx)
	}
	inst := load(t, b.Build(), nil)

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := call(inst, c.name, c.a, c.b)
			if c.trap != 0 {
				requireTrap(t, err, c.trap)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []uint64{c.want}, res)
		})
	}
}

type unaryCase struct {
	name     string
	in, out  wasm.ValType
	code     func(*testbed.Code) *testbed.Code
	arg      uint64
	want     uint64
	trap     errors.TrapCode
	checkNaN bool
}

func f64b(f float64) uint64 { return math.Float64bits(f) }
func f32b(f float32) uint64 { return uint64(math.Float32bits(f)) }

func TestFloatAndConversionOps(t *testing.T) {
	op := func(o byte) func(*testbed.Code) *testbed.Code {
		return func(c *testbed.Code) *testbed.Code { return c.Op(o) }
	}
	sat := func(sub uint32) func(*testbed.Code) *testbed.Code {
		return func(c *testbed.Code) *testbed.Code { return c.TruncSat(sub) }
	}
	// binary ops take their second operand as a constant
	with64 := func(o byte, rhs float64) func(*testbed.Code) *testbed.Code {
		return func(c *testbed.Code) *testbed.Code { return c.F64Const(rhs).Op(o) }
	}
	with32 := func(o byte, rhs float32) func(*testbed.Code) *testbed.Code {
		return func(c *testbed.Code) *testbed.Code { return c.F32Const(rhs).Op(o) }
	}
	F32, F64, I32, I64 := testbed.F32, testbed.F64, testbed.I32, testbed.I64

	cases := []unaryCase{
		{name: "f64.min signed zero", in: F64, out: F64, code: with64(wasm.OpF64Min, 0), arg: f64b(math.Copysign(0, -1)), want: f64b(math.Copysign(0, -1))},
		{name: "f64.max signed zero", in: F64, out: F64, code: with64(wasm.OpF64Max, 0), arg: f64b(math.Copysign(0, -1)), want: 0},
		{name: "f64.min NaN", in: F64, out: F64, code: with64(wasm.OpF64Min, math.Inf(-1)), arg: f64b(math.NaN()), checkNaN: true},
		{name: "f32.max NaN", in: F32, out: F32, code: with32(wasm.OpF32Max, 1), arg: f32b(float32(math.NaN())), checkNaN: true},
		{name: "f32.add", in: F32, out: F32, code: with32(wasm.OpF32Add, 0.25), arg: f32b(1.5), want: f32b(1.75)},
		{name: "f64.nearest ties to even", in: F64, out: F64, code: op(wasm.OpF64Nearest), arg: f64b(2.5), want: f64b(2)},
		{name: "f32.nearest", in: F32, out: F32, code: op(wasm.OpF32Nearest), arg: f32b(-3.5), want: f32b(-4)},
		{name: "f32.neg", in: F32, out: F32, code: op(wasm.OpF32Neg), arg: f32b(2), want: f32b(-2)},
		{name: "f64.abs", in: F64, out: F64, code: op(wasm.OpF64Abs), arg: f64b(-8), want: f64b(8)},
		{name: "f32.copysign", in: F32, out: F32, code: with32(wasm.OpF32Copysign, -1), arg: f32b(3), want: f32b(-3)},
		{name: "f32.sqrt", in: F32, out: F32, code: op(wasm.OpF32Sqrt), arg: f32b(16), want: f32b(4)},
		{name: "i32.trunc_f64_s", in: F64, out: I32, code: op(wasm.OpI32TruncF64S), arg: f64b(-3.9), want: u32(-3)},
		{name: "i32.trunc_f64_s overflow", in: F64, out: I32, code: op(wasm.OpI32TruncF64S), arg: f64b(1e10), trap: errors.TrapIntegerOverflow},
		{name: "i32.trunc_f64_s lower edge", in: F64, out: I32, code: op(wasm.OpI32TruncF64S), arg: f64b(-2147483648.9), want: u32(math.MinInt32)},
		{name: "i32.trunc_f64_s NaN", in: F64, out: I32, code: op(wasm.OpI32TruncF64S), arg: f64b(math.NaN()), trap: errors.TrapInvalidConversion},
		{name: "i32.trunc_f32_u max", in: F32, out: I32, code: op(wasm.OpI32TruncF32U), arg: f32b(4294967040), want: 4294967040},
		{name: "i32.trunc_f64_u negative fraction", in: F64, out: I32, code: op(wasm.OpI32TruncF64U), arg: f64b(-0.9), want: 0},
		{name: "i32.trunc_f64_u negative", in: F64, out: I32, code: op(wasm.OpI32TruncF64U), arg: f64b(-1), trap: errors.TrapIntegerOverflow},
		{name: "i64.trunc_f64_u large", in: F64, out: I64, code: op(wasm.OpI64TruncF64U), arg: f64b(1 << 63), want: 1 << 63},
		{name: "i64.trunc_f64_s overflow", in: F64, out: I64, code: op(wasm.OpI64TruncF64S), arg: f64b(1 << 63), trap: errors.TrapIntegerOverflow},
		{name: "i32.trunc_sat_f64_s high", in: F64, out: I32, code: sat(wasm.MiscI32TruncSatF64S), arg: f64b(1e10), want: math.MaxInt32},
		{name: "i32.trunc_sat_f64_s low", in: F64, out: I32, code: sat(wasm.MiscI32TruncSatF64S), arg: f64b(-1e10), want: 0x80000000},
		{name: "i32.trunc_sat_f32_u NaN", in: F32, out: I32, code: sat(wasm.MiscI32TruncSatF32U), arg: f32b(float32(math.NaN())), want: 0},
		{name: "i64.trunc_sat_f64_u high", in: F64, out: I64, code: sat(wasm.MiscI64TruncSatF64U), arg: f64b(math.Inf(1)), want: math.MaxUint64},
		{name: "i64.trunc_sat_f64_s low", in: F64, out: I64, code: sat(wasm.MiscI64TruncSatF64S), arg: f64b(math.Inf(-1)), want: 1 << 63},
		{name: "f64.convert_i64_u", in: I64, out: F64, code: op(wasm.OpF64ConvertI64U), arg: math.MaxUint64, want: f64b(1 << 64)},
		{name: "f32.convert_i32_s", in: I32, out: F32, code: op(wasm.OpF32ConvertI32S), arg: u32(-5), want: f32b(-5)},
		{name: "f32.demote_f64", in: F64, out: F32, code: op(wasm.OpF32DemoteF64), arg: f64b(0.5), want: f32b(0.5)},
		{name: "f64.promote_f32", in: F32, out: F64, code: op(wasm.OpF64PromoteF32), arg: f32b(0.25), want: f64b(0.25)},
		{name: "i64.extend_i32_s", in: I32, out: I64, code: op(wasm.OpI64ExtendI32S), arg: u32(-1), want: math.MaxUint64},
		{name: "i64.extend_i32_u", in: I32, out: I64, code: op(wasm.OpI64ExtendI32U), arg: u32(-1), want: 0xFFFFFFFF},
		{name: "i32.wrap_i64", in: I64, out: I32, code: op(wasm.OpI32WrapI64), arg: 0x1_0000_0005, want: 5},
		{name: "i32.extend8_s", in: I32, out: I32, code: op(wasm.OpI32Extend8S), arg: 0x80, want: 0xFFFFFF80},
		{name: "i64.extend32_s", in: I64, out: I64, code: op(wasm.OpI64Extend32S), arg: 0x80000000, want: 0xFFFFFFFF80000000},
		{name: "i32.reinterpret_f32", in: F32, out: I32, code: op(wasm.OpI32ReinterpretF32), arg: f32b(1), want: 0x3F800000},
		{name: "i32.clz", in: I32, out: I32, code: op(wasm.OpI32Clz), arg: 1, want: 31},
		{name: "i64.popcnt", in: I64, out: I64, code: op(wasm.OpI64Popcnt), arg: 0xFF00FF, want: 16},
		{name: "i32.eqz", in: I32, out: I32, code: op(wasm.OpI32Eqz), arg: 0, want: 1},
	}

	b := testbed.NewBuilder()
	for _, c := range cases {
		idx := b.Func(testbed.Types(c.in), testbed.Types(c.out), nil, c.code(testbed.NewCode().LocalGet(0)).End())
		b.ExportFunc(c.name, idx)
	}
	inst := load(t, b.Build(), nil)

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := call(inst, c.name, c.arg)
			if c.trap != 0 {
				requireTrap(t, err, c.trap)
				return
			}
			require.NoError(t, err)
			require.Len(t, res, 1)
			switch {
			case c.checkNaN && c.out == F64:
				assert.True(t, math.IsNaN(math.Float64frombits(res[0])))
			case c.checkNaN:
				assert.True(t, math.IsNaN(float64(math.Float32frombits(uint32(res[0])))))
			default:
				assert.Equal(t, c.want, res[0], "got %#x", res[0])
			}
		})
	}
}

func TestBrTableDispatch(t *testing.T) {
	b := testbed.NewBuilder()
	idx := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		Block(testbed.Void).Block(testbed.Void).Block(testbed.Void).
		LocalGet(0).BrTable(2, 0, 1).
		End().I32Const(10).Return().
		End().I32Const(20).Return().
		End().I32Const(30).
		End())
	b.ExportFunc("switch", idx)
	inst := load(t, b.Build(), nil)

	for in, want := range map[uint64]uint64{0: 10, 1: 20, 2: 30, 100: 30} {
		assert.Equal(t, []uint64{want}, mustCall(t, inst, "switch", in), "input %d", in)
	}
}

func TestFuelExhaustionIsRecoverable(t *testing.T) {
	inst := load(t, testbed.SpinGuest(), nil)
	meter := inst.Meter

	require.NoError(t, meter.Set(5))
	_, err := call(inst, "count", 10)
	require.ErrorIs(t, err, errors.ErrFuelExhausted)
	assert.False(t, errors.IsTrap(err))
	left, err := meter.Remaining()
	require.NoError(t, err)
	assert.LessOrEqual(t, left, uint64(5))

	consumed := func(n uint64) uint64 {
		require.NoError(t, meter.Set(10_000))
		assert.Equal(t, []uint64{n}, mustCall(t, inst, "count", n))
		left, err := meter.Remaining()
		require.NoError(t, err)
		return 10_000 - left
	}
	first := consumed(10)
	assert.Equal(t, first, consumed(10), "same call must cost the same fuel")
	assert.Greater(t, consumed(20), first)
}

func TestFuelBoundsInfiniteLoop(t *testing.T) {
	inst := load(t, testbed.SpinGuest(), nil)
	require.NoError(t, inst.Meter.Set(500))

	_, err := call(inst, "spin")
	require.ErrorIs(t, err, errors.ErrFuelExhausted)
	left, err := inst.Meter.Remaining()
	require.NoError(t, err)
	assert.Zero(t, left, "each iteration costs one unit")
}

func TestFuelDisabled(t *testing.T) {
	inst := load(t, testbed.SpinGuest(), nil, engine.WithConsumeFuel(false))
	assert.Equal(t, []uint64{5000}, mustCall(t, inst, "count", 5000))
}

func TestContextCancellation(t *testing.T) {
	inst := load(t, testbed.SpinGuest(), nil, engine.WithConsumeFuel(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp, _ := inst.Module.Export("spin")
	_, err := inst.Call(ctx, exp.Index, nil)
	require.ErrorIs(t, err, context.Canceled)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindInterrupted, e.Kind)
}

func TestCallDepthLimit(t *testing.T) {
	inst := load(t, testbed.FibGuest(), nil, engine.WithMaxCallDepth(16))

	_, err := call(inst, "fib", 30)
	requireTrap(t, err, errors.TrapStackExhausted)

	// the instance stays usable after a trap
	assert.Equal(t, []uint64{8}, mustCall(t, inst, "fib", 6))
}

func memoryGuest(maxPages int64) []byte {
	b := testbed.NewBuilder()
	b.Memory(1, maxPages)
	load := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).Load(wasm.OpI32Load, 0).End())
	store := b.Func(testbed.Types(testbed.I32, testbed.I32), nil, nil, testbed.NewCode().
		LocalGet(0).LocalGet(1).Store(wasm.OpI32Store, 0).End())
	load8s := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I64), nil, testbed.NewCode().
		LocalGet(0).Load(wasm.OpI64Load8S, 1).End())
	grow := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).MemoryGrow().End())
	size := b.Func(nil, testbed.Types(testbed.I32), nil, testbed.NewCode().MemorySize().End())
	b.ExportFunc("load", load).ExportFunc("store", store).ExportFunc("load8s", load8s).
		ExportFunc("grow", grow).ExportFunc("size", size)
	return b.Build()
}

func TestMemoryAccess(t *testing.T) {
	inst := load(t, memoryGuest(2), nil)

	mustCall(t, inst, "store", 16, 0xDEADBEEF)
	assert.Equal(t, []uint64{0xDEADBEEF}, mustCall(t, inst, "load", 16))
	assert.Equal(t, []uint64{0xFFFFFFFFFFFFFFBE}, mustCall(t, inst, "load8s", 16), "0xBE at 17, sign-extended")

	_, err := call(inst, "load", 65533)
	requireTrap(t, err, errors.TrapMemoryOutOfBounds)
	_, err = call(inst, "store", 0xFFFFFFFF, 1)
	requireTrap(t, err, errors.TrapMemoryOutOfBounds)

	assert.Equal(t, []uint64{1}, mustCall(t, inst, "grow", 1))
	assert.Equal(t, []uint64{2}, mustCall(t, inst, "size"))
	assert.Equal(t, []uint64{0}, mustCall(t, inst, "load", 65533), "grown memory is zeroed")
	assert.Equal(t, []uint64{0xFFFFFFFF}, mustCall(t, inst, "grow", 1), "module maximum is 2 pages")
}

func TestMemoryLimitFromEngine(t *testing.T) {
	inst := load(t, memoryGuest(-1), nil, engine.WithMaxMemoryPages(1))
	assert.Equal(t, []uint64{0xFFFFFFFF}, mustCall(t, inst, "grow", 1))
}

func TestHostCalls(t *testing.T) {
	b := testbed.NewBuilder()
	add := b.ImportFunc("env", "add", testbed.Types(testbed.I32, testbed.I32), testbed.Types(testbed.I32))
	fail := b.ImportFunc("env", "fail", nil, nil)
	sum := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).I32Const(100).Call(add).I32Const(1).Op(wasm.OpI32Add).End())
	boom := b.Func(nil, nil, nil, testbed.NewCode().Call(fail).End())
	b.ExportFunc("sum", sum).ExportFunc("boom", boom).ExportFunc("add", add)

	offline := stderrors.New("peripheral offline")
	host := []HostFunc{
		func(_ context.Context, stack []uint64) error {
			stack[0] = uint64(uint32(stack[0]) + uint32(stack[1]))
			return nil
		},
		func(context.Context, []uint64) error { return offline },
	}
	inst := load(t, b.Build(), host)

	assert.Equal(t, []uint64{106}, mustCall(t, inst, "sum", 5))
	assert.Equal(t, []uint64{7}, mustCall(t, inst, "add", 3, 4), "exported imports call the host directly")

	_, err := call(inst, "boom")
	requireTrap(t, err, errors.TrapHost)
	assert.ErrorIs(t, err, offline)
	var te *errors.TrapError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "env.fail", te.Func)
}

func TestCallIndirect(t *testing.T) {
	b := testbed.NewBuilder()
	b.Table(3)
	answer := b.Func(nil, testbed.Types(testbed.I32), nil, testbed.NewCode().I32Const(42).End())
	wide := b.Func(nil, testbed.Types(testbed.I64), nil, testbed.NewCode().I64Const(1).End())
	b.Elem(0, answer, wide)
	sig := b.Type(nil, testbed.Types(testbed.I32))
	dispatch := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).CallIndirect(sig).End())
	b.ExportFunc("dispatch", dispatch)
	inst := load(t, b.Build(), nil)

	assert.Equal(t, []uint64{42}, mustCall(t, inst, "dispatch", 0))
	_, err := call(inst, "dispatch", 1)
	requireTrap(t, err, errors.TrapIndirectCallTypeMismatch)
	_, err = call(inst, "dispatch", 2)
	requireTrap(t, err, errors.TrapUninitializedElement)
	_, err = call(inst, "dispatch", 3)
	requireTrap(t, err, errors.TrapTableOutOfBounds)
}

func TestBulkMemoryAndTables(t *testing.T) {
	b := testbed.NewBuilder()
	b.Memory(1, -1)
	b.Table(4)
	seven := b.Func(nil, testbed.Types(testbed.I32), nil, testbed.NewCode().I32Const(7).End())
	data := b.PassiveData([]byte("hello"))
	elem := b.PassiveElem(seven)

	// init(dst, n) copies the first n bytes of the passive segment
	initFn := b.Func(testbed.Types(testbed.I32, testbed.I32), nil, nil, testbed.NewCode().
		LocalGet(0).I32Const(0).LocalGet(1).MemoryInit(data).End())
	drop := b.Func(nil, nil, nil, testbed.NewCode().DataDrop(data).End())
	fill := b.Func(testbed.Types(testbed.I32, testbed.I32, testbed.I32), nil, nil, testbed.NewCode().
		LocalGet(0).LocalGet(1).LocalGet(2).MemoryFill().End())
	cp := b.Func(testbed.Types(testbed.I32, testbed.I32, testbed.I32), nil, nil, testbed.NewCode().
		LocalGet(0).LocalGet(1).LocalGet(2).MemoryCopy().End())
	tinit := b.Func(testbed.Types(testbed.I32), nil, nil, testbed.NewCode().
		LocalGet(0).I32Const(0).I32Const(1).TableInit(elem).End())
	tcopy := b.Func(nil, nil, nil, testbed.NewCode().
		I32Const(3).I32Const(1).I32Const(1).TableCopy().End())
	sig := b.Type(nil, testbed.Types(testbed.I32))
	dispatch := b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).CallIndirect(sig).End())
	b.ExportFunc("init", initFn).ExportFunc("drop", drop).ExportFunc("fill", fill).ExportFunc("copy", cp).
		ExportFunc("tinit", tinit).ExportFunc("tcopy", tcopy).ExportFunc("dispatch", dispatch)
	inst := load(t, b.Build(), nil)

	mustCall(t, inst, "init", 100, 5)
	got, err := inst.Memory.ReadString(100, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = call(inst, "init", 65534, 5)
	requireTrap(t, err, errors.TrapMemoryOutOfBounds)

	mustCall(t, inst, "drop")
	_, err = call(inst, "init", 100, 1)
	requireTrap(t, err, errors.TrapMemoryOutOfBounds)
	mustCall(t, inst, "init", 100, 0)

	mustCall(t, inst, "fill", 200, 0xAB, 4)
	mustCall(t, inst, "copy", 202, 200, 4) // overlapping
	mem, err := inst.Memory.Read(200, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0}, mem)

	mustCall(t, inst, "tinit", 1)
	mustCall(t, inst, "tcopy")
	assert.Equal(t, []uint64{7}, mustCall(t, inst, "dispatch", 1))
	assert.Equal(t, []uint64{7}, mustCall(t, inst, "dispatch", 3))
	_, err = call(inst, "tinit", 4)
	requireTrap(t, err, errors.TrapTableOutOfBounds)
}

func TestBulkFuelCharge(t *testing.T) {
	b := testbed.NewBuilder()
	b.Memory(1, -1)
	fill := b.Func(testbed.Types(testbed.I32), nil, nil, testbed.NewCode().
		I32Const(0).I32Const(0).LocalGet(0).MemoryFill().End())
	b.ExportFunc("fill", fill)
	inst := load(t, b.Build(), nil)

	cost := func(n uint64) uint64 {
		require.NoError(t, inst.Meter.Set(10_000))
		mustCall(t, inst, "fill", n)
		left, err := inst.Meter.Remaining()
		require.NoError(t, err)
		return 10_000 - left
	}
	small := cost(1)
	assert.Equal(t, small+1024/64, cost(1024))
}

func TestInitSegmentsAndStart(t *testing.T) {
	b := testbed.NewBuilder()
	b.Memory(1, -1)
	g := b.Global(testbed.I32, true, wasm.ConstI32(1))
	b.Data(8, []byte{1, 2, 3})
	start := b.Func(nil, nil, nil, testbed.NewCode().
		GlobalGet(g).I32Const(6).Op(wasm.OpI32Add).GlobalSet(g).End())
	b.Start(start)
	inst := load(t, b.Build(), nil)

	v, ok := inst.Global(g)
	require.True(t, ok)
	assert.Equal(t, uint64(7), v)
	mem, err := inst.Memory.Read(8, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, mem)
}

func TestInitTrapsOnOutOfRangeSegment(t *testing.T) {
	b := testbed.NewBuilder()
	b.Memory(1, -1)
	b.Data(65535, []byte{1, 2})

	eng, err := engine.NewDefault()
	require.NoError(t, err)
	m, err := compiler.Compile(context.Background(), eng, b.Build())
	require.NoError(t, err)
	inst, err := New(m, nil, nil, LimitsFromConfig(eng.Config()))
	require.NoError(t, err)
	requireTrap(t, inst.Init(context.Background()), errors.TrapMemoryOutOfBounds)
}

func TestNewRejectsWrongHostCount(t *testing.T) {
	eng, err := engine.NewDefault()
	require.NoError(t, err)
	m, err := compiler.Compile(context.Background(), eng, testbed.LEDGuest())
	require.NoError(t, err)

	_, err = New(m, nil, nil, Limits{})
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})
}

func TestCallArgumentCount(t *testing.T) {
	inst := load(t, testbed.FibGuest(), nil)
	_, err := call(inst, "fib")
	assert.Error(t, err)
	_, err = inst.Call(context.Background(), 99, nil)
	assert.Error(t, err)
}

package testbed

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/runtime"
	"github.com/wippyai/wasm-preparsed/wasm"
)

type numericCase struct {
	emit   func(*Code) *Code
	name   string
	params []wasm.ValType
	result wasm.ValType
}

func op(name string, code byte, result wasm.ValType, params ...wasm.ValType) numericCase {
	return numericCase{
		name:   name,
		params: params,
		result: result,
		emit:   func(c *Code) *Code { return c.Op(code) },
	}
}

var numericCases = []numericCase{
	op("i32.add", wasm.OpI32Add, I32, I32, I32),
	op("i32.sub", wasm.OpI32Sub, I32, I32, I32),
	op("i32.mul", wasm.OpI32Mul, I32, I32, I32),
	op("i32.div_s", wasm.OpI32DivS, I32, I32, I32),
	op("i32.div_u", wasm.OpI32DivU, I32, I32, I32),
	op("i32.rem_s", wasm.OpI32RemS, I32, I32, I32),
	op("i32.rem_u", wasm.OpI32RemU, I32, I32, I32),
	op("i32.shl", wasm.OpI32Shl, I32, I32, I32),
	op("i32.shr_s", wasm.OpI32ShrS, I32, I32, I32),
	op("i32.shr_u", wasm.OpI32ShrU, I32, I32, I32),
	op("i32.rotl", wasm.OpI32Rotl, I32, I32, I32),
	op("i32.rotr", wasm.OpI32Rotr, I32, I32, I32),
	op("i32.lt_s", wasm.OpI32LtS, I32, I32, I32),
	op("i32.ge_u", wasm.OpI32GeU, I32, I32, I32),
	op("i32.clz", wasm.OpI32Clz, I32, I32),
	op("i32.ctz", wasm.OpI32Ctz, I32, I32),
	op("i32.popcnt", wasm.OpI32Popcnt, I32, I32),
	op("i32.eqz", wasm.OpI32Eqz, I32, I32),
	op("i32.extend8_s", wasm.OpI32Extend8S, I32, I32),
	op("i32.extend16_s", wasm.OpI32Extend16S, I32, I32),

	op("i64.add", wasm.OpI64Add, I64, I64, I64),
	op("i64.mul", wasm.OpI64Mul, I64, I64, I64),
	op("i64.div_s", wasm.OpI64DivS, I64, I64, I64),
	op("i64.rem_u", wasm.OpI64RemU, I64, I64, I64),
	op("i64.shr_s", wasm.OpI64ShrS, I64, I64, I64),
	op("i64.rotr", wasm.OpI64Rotr, I64, I64, I64),
	op("i64.lt_u", wasm.OpI64LtU, I32, I64, I64),
	op("i64.clz", wasm.OpI64Clz, I64, I64),
	op("i64.popcnt", wasm.OpI64Popcnt, I64, I64),
	op("i64.extend32_s", wasm.OpI64Extend32S, I64, I64),
	op("i32.wrap_i64", wasm.OpI32WrapI64, I32, I64),
	op("i64.extend_i32_s", wasm.OpI64ExtendI32S, I64, I32),
	op("i64.extend_i32_u", wasm.OpI64ExtendI32U, I64, I32),

	op("f64.add", wasm.OpF64Add, F64, F64, F64),
	op("f64.sub", wasm.OpF64Sub, F64, F64, F64),
	op("f64.mul", wasm.OpF64Mul, F64, F64, F64),
	op("f64.div", wasm.OpF64Div, F64, F64, F64),
	op("f64.min", wasm.OpF64Min, F64, F64, F64),
	op("f64.max", wasm.OpF64Max, F64, F64, F64),
	op("f64.copysign", wasm.OpF64Copysign, F64, F64, F64),
	op("f64.lt", wasm.OpF64Lt, I32, F64, F64),
	op("f64.sqrt", wasm.OpF64Sqrt, F64, F64),
	op("f64.floor", wasm.OpF64Floor, F64, F64),
	op("f64.ceil", wasm.OpF64Ceil, F64, F64),
	op("f64.trunc", wasm.OpF64Trunc, F64, F64),
	op("f64.nearest", wasm.OpF64Nearest, F64, F64),
	op("f64.neg", wasm.OpF64Neg, F64, F64),
	op("f64.abs", wasm.OpF64Abs, F64, F64),
	op("f32.demote_f64", wasm.OpF32DemoteF64, F32, F64),
	op("f64.convert_i32_s", wasm.OpF64ConvertI32S, F64, I32),
	op("f64.convert_i64_u", wasm.OpF64ConvertI64U, F64, I64),
	op("i32.trunc_f64_s", wasm.OpI32TruncF64S, I32, F64),
	op("i64.trunc_f64_u", wasm.OpI64TruncF64U, I64, F64),
	{
		name:   "i32.trunc_sat_f64_s",
		params: Types(F64),
		result: I32,
		emit:   func(c *Code) *Code { return c.TruncSat(wasm.MiscI32TruncSatF64S) },
	},
	{
		name:   "i64.trunc_sat_f64_u",
		params: Types(F64),
		result: I64,
		emit:   func(c *Code) *Code { return c.TruncSat(wasm.MiscI64TruncSatF64U) },
	},
}

var operands = map[wasm.ValType][]uint64{
	I32: {0, 1, 7, 31, 12345, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF},
	I64: {0, 1, 63, 0x0123456789ABCDEF, 1 << 63, math.MaxUint64},
	F64: {
		math.Float64bits(0),
		math.Float64bits(math.Copysign(0, -1)),
		math.Float64bits(0.5),
		math.Float64bits(1.5),
		math.Float64bits(-2.5),
		math.Float64bits(3e9),
		math.Float64bits(-1e20),
		math.Float64bits(math.Inf(1)),
		math.Float64bits(math.NaN()),
	},
}

func numericGuest() []byte {
	b := NewBuilder()
	for _, c := range numericCases {
		code := NewCode()
		for i := range c.params {
			code.LocalGet(uint32(i))
		}
		idx := b.Func(c.params, Types(c.result), nil, c.emit(code).End())
		b.ExportFunc(c.name, idx)
	}
	return b.Build()
}

// inputs returns every combination of operands for params.
func inputs(params []wasm.ValType) [][]uint64 {
	out := [][]uint64{nil}
	for _, p := range params {
		var next [][]uint64
		for _, prefix := range out {
			for _, v := range operands[p] {
				next = append(next, append(append([]uint64(nil), prefix...), v))
			}
		}
		out = next
	}
	return out
}

func sameResult(vt wasm.ValType, a, b uint64) bool {
	switch vt {
	case I32:
		return uint32(a) == uint32(b)
	case F32:
		fa, fb := math.Float32frombits(uint32(a)), math.Float32frombits(uint32(b))
		return uint32(a) == uint32(b) || (math.IsNaN(float64(fa)) && math.IsNaN(float64(fb)))
	case F64:
		fa, fb := math.Float64frombits(a), math.Float64frombits(b)
		return a == b || (math.IsNaN(fa) && math.IsNaN(fb))
	}
	return a == b
}

func TestDifferential_Numeric(t *testing.T) {
	ctx := context.Background()
	raw := numericGuest()

	eng, m := load(t, preparse(t, raw))
	rt := runtime.New(eng, struct{}{}, runtime.WithFuelPolicy(runtime.ResetPolicy{Budget: 1 << 20}))
	defer rt.Close()
	if err := rt.Start(ctx, m); err != nil {
		t.Fatalf("start: %v", err)
	}

	ref := wazero.NewRuntimeWithConfig(ctx, eng.WazeroConfig())
	defer ref.Close(ctx)
	mod, err := ref.Instantiate(ctx, raw)
	if err != nil {
		t.Fatalf("wazero instantiate: %v", err)
	}

	for _, c := range numericCases {
		t.Run(c.name, func(t *testing.T) {
			fn := mod.ExportedFunction(c.name)
			for _, args := range inputs(c.params) {
				want, wantErr := fn.Call(ctx, args...)
				got, gotErr := rt.Run(ctx, c.name, args...)
				switch {
				case wantErr != nil && gotErr != nil:
					if !errors.IsTrap(gotErr) {
						t.Errorf("%v: expected trap, got %v", args, gotErr)
					}
				case wantErr != nil || gotErr != nil:
					t.Errorf("%v: error mismatch: wazero %v, got %v", args, wantErr, gotErr)
				case !sameResult(c.result, want[0], got[0]):
					t.Errorf("%v: got %#x, wazero %#x", args, got[0], want[0])
				}
			}
		})
	}
}

func TestDifferential_LEDGuest(t *testing.T) {
	ctx := context.Background()
	raw := LEDGuest()

	eng, m := load(t, preparse(t, raw))
	rt, logs := startDevice(t, eng, m)

	ref := wazero.NewRuntimeWithConfig(ctx, eng.WazeroConfig())
	defer ref.Close(ctx)
	var wantLogs []string
	var wantLED []bool
	_, err := ref.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(context.Context, int32) {}).Export("init_led").
		NewFunctionBuilder().WithFunc(func(_ context.Context, on int32) {
		wantLED = append(wantLED, on == 1)
	}).Export("set_led").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("wazero env: %v", err)
	}
	_, err = ref.NewHostModuleBuilder("logging").
		NewFunctionBuilder().WithFunc(func(_ context.Context, mod api.Module, ptr, n uint32) {
		b, ok := mod.Memory().Read(ptr, n)
		if !ok {
			panic(fmt.Sprintf("log out of range: %d+%d", ptr, n))
		}
		wantLogs = append(wantLogs, string(b))
	}).Export("log").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("wazero logging: %v", err)
	}
	mod, err := ref.Instantiate(ctx, raw)
	if err != nil {
		t.Fatalf("wazero instantiate: %v", err)
	}

	var gotLED []bool
	for i := 0; i < 4; i++ {
		if _, err := mod.ExportedFunction("run").Call(ctx); err != nil {
			t.Fatalf("wazero run %d: %v", i, err)
		}
		if _, err := rt.Run(ctx, "run"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		gotLED = append(gotLED, rt.Store().Data().LED)
	}

	var gotLogs []string
	for _, e := range logs.FilterMessage("module log").All() {
		gotLogs = append(gotLogs, e.ContextMap()["module_log"].(string))
	}
	if fmt.Sprint(gotLogs) != fmt.Sprint(wantLogs) {
		t.Errorf("logs differ:\n got  %q\n want %q", gotLogs, wantLogs)
	}
	if fmt.Sprint(gotLED) != fmt.Sprint(wantLED) {
		t.Errorf("led sequence = %v, wazero %v", gotLED, wantLED)
	}

	mem, _ := mod.Memory().Read(0, 128)
	got, err := rt.Instance().Memory().Read(0, 128)
	if err != nil {
		t.Fatalf("read memory: %v", err)
	}
	if string(got) != string(mem) {
		t.Errorf("memory differs from wazero after 4 runs")
	}
}

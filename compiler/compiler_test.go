package compiler

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/testbed"
	"github.com/wippyai/wasm-preparsed/wasm"
)

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	eng, err := engine.NewDefault(opts...)
	require.NoError(t, err)
	return eng
}

func compileFunc(t *testing.T, eng *engine.Engine, params, results, locals []wasm.ValType, code *testbed.Code) *ir.Func {
	t.Helper()
	b := testbed.NewBuilder()
	b.Memory(1, -1)
	idx := b.Func(params, results, locals, code)
	b.ExportFunc("f", idx)
	m, err := Compile(context.Background(), eng, b.Build())
	require.NoError(t, err)
	return m.Funcs[0]
}

func TestStraightLineFuel(t *testing.T) {
	eng := newEngine(t)
	f := compileFunc(t, eng, nil, testbed.Types(testbed.I32), nil, testbed.NewCode().
		I32Const(1).I32Const(2).Op(wasm.OpI32Add).End())

	want := []ir.Instr{
		{Op: ir.OpFuel, A: 3},
		{Op: ir.OpConst, B: 1},
		{Op: ir.OpConst, B: 2},
		{Op: ir.OpI32Add},
		{Op: ir.OpReturn, A: 1},
	}
	assert.Equal(t, want, f.Code)
	assert.Equal(t, uint32(2), f.MaxStack)
	assert.Zero(t, f.NumLocals)
}

func TestNoFuelWhenMeteringDisabled(t *testing.T) {
	eng := newEngine(t, engine.WithConsumeFuel(false))
	f := compileFunc(t, eng, nil, testbed.Types(testbed.I32), nil, testbed.NewCode().
		I32Const(1).I32Const(2).Op(wasm.OpI32Add).End())

	for _, in := range f.Code {
		assert.NotEqual(t, ir.OpFuel, in.Op)
	}
	assert.Len(t, f.Code, 4)
}

func TestFuelCostClasses(t *testing.T) {
	costs := engine.FuelCosts{Base: 2, Memory: 3, Call: 5, BulkBytesPerFuel: 64}
	eng := newEngine(t, engine.WithFuelCosts(costs))

	f := compileFunc(t, eng, nil, testbed.Types(testbed.I32), nil, testbed.NewCode().
		I32Const(0).Load(wasm.OpI32Load, 4).End())

	require.Equal(t, ir.OpFuel, f.Code[0].Op)
	assert.Equal(t, uint32(2+2+3), f.Code[0].A)
	assert.Equal(t, ir.Instr{Op: ir.OpI32Load, A: 4}, f.Code[2])
}

func TestLoopBranchTargetsFuel(t *testing.T) {
	eng := newEngine(t)
	f := compileFunc(t, eng, nil, nil, nil, testbed.NewCode().
		Loop(testbed.Void).Br(0).End().End())

	want := []ir.Instr{
		{Op: ir.OpFuel, A: 1},
		{Op: ir.OpBr, A: 0, B: ir.PackBranch(0, 0)},
		{Op: ir.OpReturn},
	}
	assert.Equal(t, want, f.Code)
}

func TestBlockBranchIsPatched(t *testing.T) {
	eng := newEngine(t, engine.WithConsumeFuel(false))
	// (param i32) (result i32): block (result i32) i32.const 7 local.get 0 br_if 0 drop i32.const 9 end
	f := compileFunc(t, eng, testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		Block(testbed.ResI32).
		I32Const(7).LocalGet(0).BrIf(0).
		Drop().I32Const(9).
		End().
		End())

	want := []ir.Instr{
		{Op: ir.OpConst, B: 7},
		{Op: ir.OpLocalGet, A: 0},
		{Op: ir.OpBrIf, A: 5, B: ir.PackBranch(1, 1)},
		{Op: ir.OpDrop},
		{Op: ir.OpConst, B: 9},
		{Op: ir.OpReturn, A: 1},
	}
	assert.Equal(t, want, f.Code)
	assert.Equal(t, uint32(3), f.MaxStack)
}

func TestIfElseLayout(t *testing.T) {
	eng := newEngine(t, engine.WithConsumeFuel(false))
	f := compileFunc(t, eng, testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).
		If(testbed.ResI32).I32Const(1).Else().I32Const(2).End().
		End())

	want := []ir.Instr{
		{Op: ir.OpLocalGet, A: 0},
		{Op: ir.OpBrIfNot, A: 4},
		{Op: ir.OpConst, B: 1},
		{Op: ir.OpJump, A: 5},
		{Op: ir.OpConst, B: 2},
		{Op: ir.OpReturn, A: 1},
	}
	assert.Equal(t, want, f.Code)
}

func TestBranchToFunctionBecomesReturn(t *testing.T) {
	eng := newEngine(t, engine.WithConsumeFuel(false))
	f := compileFunc(t, eng, nil, testbed.Types(testbed.I32), nil, testbed.NewCode().
		I32Const(5).Br(0).
		I32Const(6).Op(wasm.OpI32Add). // dead
		End())

	want := []ir.Instr{
		{Op: ir.OpConst, B: 5},
		{Op: ir.OpReturn, A: 1},
		{Op: ir.OpReturn, A: 1},
	}
	assert.Equal(t, want, f.Code)
}

func TestBrTableLayout(t *testing.T) {
	eng := newEngine(t, engine.WithConsumeFuel(false))
	f := compileFunc(t, eng, testbed.Types(testbed.I32), nil, nil, testbed.NewCode().
		Block(testbed.Void).
		Block(testbed.Void).
		LocalGet(0).BrTable(2, 0, 1).
		End().
		Return().
		End().
		End())

	want := []ir.Instr{
		{Op: ir.OpLocalGet, A: 0},
		{Op: ir.OpBrTable, A: 2},
		{Op: ir.OpBr, A: 5, B: ir.PackBranch(1, 0)},
		{Op: ir.OpBr, A: 6, B: ir.PackBranch(1, 0)},
		{Op: ir.OpReturn}, // default targets the function label
		{Op: ir.OpReturn},
		{Op: ir.OpReturn},
	}
	assert.Equal(t, want, f.Code)
}

func TestLazyMatchesEager(t *testing.T) {
	ctx := context.Background()
	raw := testbed.FibGuest()

	eager, err := Compile(ctx, newEngine(t), raw)
	require.NoError(t, err)

	lazy, err := Compile(ctx, newEngine(t, engine.WithCompilationMode(engine.CompilationLazy)), raw)
	require.NoError(t, err)

	assert.Equal(t, len(eager.Funcs), lazy.Untranslated())
	for _, f := range lazy.Funcs {
		require.NoError(t, f.Ensure())
	}
	assert.Zero(t, lazy.Untranslated())

	opts := cmp.Options{
		cmpopts.IgnoreUnexported(ir.Func{}),
		cmpopts.IgnoreFields(ir.Module{}, "Config"),
	}
	if diff := cmp.Diff(eager, lazy, opts); diff != "" {
		t.Errorf("lazy translation differs (-eager +lazy):\n%s", diff)
	}
}

func TestCompileLEDGuest(t *testing.T) {
	m, err := Compile(context.Background(), newEngine(t), testbed.LEDGuest())
	require.NoError(t, err)

	require.Len(t, m.Imports, 3)
	assert.Equal(t, ir.Import{Namespace: "env", Name: "init_led", Type: m.Imports[0].Type}, m.Imports[0])
	assert.Equal(t, "logging", m.Imports[2].Namespace)
	assert.Equal(t, "(i32, i32) -> ()", m.ImportType(2).String())

	run, ok := m.Export("run")
	require.True(t, ok)
	assert.Equal(t, ir.ExportFunc, run.Kind)
	require.NotNil(t, m.Memory)
	assert.Equal(t, uint32(1), m.Memory.Min)
	assert.Len(t, m.Globals, 1)
	assert.Len(t, m.Data, 1)
	assert.True(t, m.Config.ConsumeFuel)
}

func TestValidateRejectsInvalid(t *testing.T) {
	b := testbed.NewBuilder()
	// declared to return i32 but leaves nothing on the stack
	b.Func(nil, testbed.Types(testbed.I32), nil, testbed.NewCode().End())

	_, err := Compile(context.Background(), newEngine(t), b.Build())
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.PhaseValidate, e.Phase)
	assert.Equal(t, errors.KindInvalidData, e.Kind)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := Compile(context.Background(), newEngine(t), []byte("not wasm"))
	assert.ErrorIs(t, err, errors.ErrInvalidData)
}

func TestValidateRejectsMemoryImport(t *testing.T) {
	b := testbed.NewBuilder()
	b.ImportMemory("env", "memory", 1)

	_, err := Compile(context.Background(), newEngine(t), b.Build())
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestValidateRespectsFeatures(t *testing.T) {
	b := testbed.NewBuilder()
	b.Func(testbed.Types(testbed.I32), testbed.Types(testbed.I32), nil, testbed.NewCode().
		LocalGet(0).Op(wasm.OpI32Extend8S).End())
	raw := b.Build()

	_, err := Compile(context.Background(), newEngine(t), raw)
	require.NoError(t, err)

	mvp := engine.SupportedFeatures &^ api.CoreFeatureSignExtensionOps
	_, err = Compile(context.Background(), newEngine(t, engine.WithFeatures(mvp)), raw)
	assert.Error(t, err)
}

func TestConstExpr(t *testing.T) {
	tests := []struct {
		expr []byte
		want ir.ConstExpr
	}{
		{wasm.ConstI32(-1), ir.ConstExpr{Value: 0xFFFFFFFF}},
		{wasm.ConstI64(-1), ir.ConstExpr{Value: ^uint64(0)}},
		{wasm.ConstGlobal(2), ir.ConstExpr{Kind: ir.ConstGlobal, Value: 2}},
		{[]byte{wasm.OpRefFunc, 3, wasm.OpEnd}, ir.ConstExpr{Kind: ir.ConstRefFunc, Value: 3}},
		{[]byte{wasm.OpF32Const, 0, 0, 0x80, 0x3F, wasm.OpEnd}, ir.ConstExpr{Value: 0x3F800000}},
	}
	for _, tt := range tests {
		got, err := constExpr(tt.expr)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := constExpr([]byte{wasm.OpI32Add, wasm.OpEnd})
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

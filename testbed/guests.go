package testbed

import (
	"github.com/wippyai/wasm-preparsed/wasm"
)

// Message offsets of the LED guest's data segment.
const (
	msgStarting    = 0
	msgInitialized = 8
	msgLedOn       = 19
	msgLedOff      = 25
	msgUpdating    = 32
	msgCounter     = 46
	counterBuf     = 64
)

const ledMessages = "starting" + "initialized" + "led on" + "led off" + "updating state" + "counter: "

// LEDPin is the output pin the LED guest initializes.
const LEDPin = 28

// LEDGuest builds the reference guest: an exported "run" that logs its
// progress, initializes the LED pin, switches the LED on for even and off
// for odd values of a guest-side counter, increments the counter and logs
// "counter: N". It imports env.init_led(i32), env.set_led(i32) and
// logging.log(ptr, len i32), and exports its memory as "memory".
func LEDGuest() []byte {
	b := NewBuilder()
	initLED := b.ImportFunc("env", "init_led", Types(I32), nil)
	setLED := b.ImportFunc("env", "set_led", Types(I32), nil)
	logFn := b.ImportFunc("logging", "log", Types(I32, I32), nil)

	b.Memory(1, -1)
	counter := b.Global(I32, true, wasm.ConstI32(0))
	b.Data(0, []byte(ledMessages))

	log := func(c *Code, off, n int32) *Code {
		return c.I32Const(off).I32Const(n).Call(logFn)
	}

	// fmt_u32(v, ptr) -> len writes v in decimal at ptr.
	fmtU32 := b.Func(Types(I32, I32), Types(I32), Types(I32, I32), NewCode().
		// digits = 1; t = v
		I32Const(1).LocalSet(2).
		LocalGet(0).LocalSet(3).
		Block(Void).Loop(Void).
		LocalGet(3).I32Const(10).Op(wasm.OpI32DivU).LocalTee(3).
		Op(wasm.OpI32Eqz).BrIf(1).
		LocalGet(2).I32Const(1).Op(wasm.OpI32Add).LocalSet(2).
		Br(0).
		End().End().
		// ptr += digits; emit digits backwards
		LocalGet(1).LocalGet(2).Op(wasm.OpI32Add).LocalSet(1).
		Loop(Void).
		LocalGet(1).I32Const(1).Op(wasm.OpI32Sub).LocalTee(1).
		LocalGet(0).I32Const(10).Op(wasm.OpI32RemU).I32Const('0').Op(wasm.OpI32Add).
		Store(wasm.OpI32Store8, 0).
		LocalGet(0).I32Const(10).Op(wasm.OpI32DivU).LocalTee(0).
		BrIf(0).
		End().
		LocalGet(2).
		End())

	run := NewCode()
	log(run, msgStarting, 8)
	run.I32Const(LEDPin).Call(initLED)
	log(run, msgInitialized, 11)
	run.GlobalGet(counter).I32Const(1).Op(wasm.OpI32And).Op(wasm.OpI32Eqz).If(Void)
	log(run, msgLedOn, 6)
	run.I32Const(1).Call(setLED).Else()
	log(run, msgLedOff, 7)
	run.I32Const(0).Call(setLED).End()
	log(run, msgUpdating, 14)
	run.GlobalGet(counter).I32Const(1).Op(wasm.OpI32Add).GlobalSet(counter)
	// "counter: " prefix, then the digits right after it
	run.I32Const(counterBuf).I32Const(msgCounter).I32Const(9).MemoryCopy()
	run.I32Const(counterBuf).
		GlobalGet(counter).I32Const(counterBuf + 9).Call(fmtU32).
		I32Const(9).Op(wasm.OpI32Add).
		Call(logFn)
	run.End()

	runIdx := b.Func(nil, nil, nil, run)
	b.ExportFunc("run", runIdx)
	b.Export("memory", wasm.KindMemory, 0)
	b.Export("counter", wasm.KindGlobal, counter)
	return b.Build()
}

// FibGuest exports "fib" (i64) -> i64 computed recursively and "fib_iter"
// computed with a loop.
func FibGuest() []byte {
	b := NewBuilder()
	fib := uint32(0)
	b.Func(Types(I64), Types(I64), nil, NewCode().
		LocalGet(0).I64Const(2).Op(wasm.OpI64LtU).
		If(ResI64).
		LocalGet(0).
		Else().
		LocalGet(0).I64Const(1).Op(wasm.OpI64Sub).Call(fib).
		LocalGet(0).I64Const(2).Op(wasm.OpI64Sub).Call(fib).
		Op(wasm.OpI64Add).
		End().
		End())

	// a, b = 0, 1; repeat n times: a, b = b, a+b
	iter := b.Func(Types(I64), Types(I64), Types(I64, I64, I64), NewCode().
		I64Const(1).LocalSet(2).
		Block(Void).Loop(Void).
		LocalGet(0).Op(wasm.OpI64Eqz).BrIf(1).
		LocalGet(1).LocalGet(2).Op(wasm.OpI64Add).LocalSet(3).
		LocalGet(2).LocalSet(1).
		LocalGet(3).LocalSet(2).
		LocalGet(0).I64Const(1).Op(wasm.OpI64Sub).LocalSet(0).
		Br(0).
		End().End().
		LocalGet(1).
		End())

	b.ExportFunc("fib", fib)
	b.ExportFunc("fib_iter", iter)
	return b.Build()
}

// SpinGuest exports "spin", an infinite loop, and "count" (n i32) -> i32
// which loops n times and returns n.
func SpinGuest() []byte {
	b := NewBuilder()
	spin := b.Func(nil, nil, nil, NewCode().
		Loop(Void).Br(0).End().
		End())
	count := b.Func(Types(I32), Types(I32), Types(I32), NewCode().
		Block(Void).Loop(Void).
		LocalGet(1).LocalGet(0).Op(wasm.OpI32GeU).BrIf(1).
		LocalGet(1).I32Const(1).Op(wasm.OpI32Add).LocalSet(1).
		Br(0).
		End().End().
		LocalGet(1).
		End())
	b.ExportFunc("spin", spin)
	b.ExportFunc("count", count)
	return b.Build()
}

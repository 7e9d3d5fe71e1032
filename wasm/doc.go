// Package wasm decodes and encodes WebAssembly binary modules.
//
// The decoder covers the subset the interpreter executes: the 1.0 core
// format plus mutable globals, sign extension, multi-value results,
// non-trapping float-to-int conversion and bulk memory. Anything else
// (SIMD, reference-typed tables other than funcref, GC types) is rejected
// while decoding.
//
// ParseModule checks structure only. Function bodies are kept as raw byte
// slices aliasing the input; type checking is left to the compiler's
// validator.
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Encode is the inverse and is used to build guest modules in tests:
//
//	bin := module.Encode()
package wasm

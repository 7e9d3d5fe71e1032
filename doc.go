// Package preparsed runs WebAssembly modules that were compiled ahead of
// time on a different machine.
//
// Deployment has two phases. On the authoring host a raw .wasm binary is
// validated, translated into an executable IR and serialized into a
// compact artifact. On the constrained target the artifact is decoded
// straight back into the IR with no parsing, validation or translation,
// linked against a fixed set of host functions and executed under a fuel
// budget.
//
// # Architecture Overview
//
//	preparsed/           Root package with the host-facing Memory interface
//	├── engine/          Engine configuration, fingerprint, YAML loading
//	├── wasm/            WebAssembly binary decoding and encoding
//	├── compiler/        Validation (via wazero) and translation to IR
//	├── ir/              Executable module representation
//	├── codec/           Artifact serialization and deserialization
//	├── store/           Execution context: host state, memory, fuel meter
//	├── linker/          Host function registry and import resolution
//	├── interp/          IR interpreter
//	├── runtime/         Instantiation, calls, fuel policies
//	├── device/          Example LED and logging host functions
//	├── errors/          Structured error types
//	├── testbed/         Guest module builder and end-to-end tests
//	└── cmd/
//	    ├── preparse/    Host CLI: .wasm to artifact, batch capable
//	    └── run/         Target CLI: run, info and an interactive console
//
// # Quick Start
//
// On the authoring host:
//
//	eng, _ := engine.NewDefault()
//	mod, err := compiler.Compile(ctx, eng, wasmBytes)
//	artifact, err := codec.Serialize(mod, eng)
//
// On the target, with an engine built from the same configuration:
//
//	mod, _, err := codec.Deserialize(artifact, eng)
//	reg := linker.NewRegistry[device.ModuleState]()
//	device.Register(reg, logger)
//	imports, err := reg.Link(mod)
//	st := store.New(eng, device.ModuleState{})
//	inst, err := runtime.Instantiate(ctx, mod, imports, st)
//	_ = st.SetFuel(1000)
//	_, err = inst.Call(ctx, st, "run")
//
// # Error Handling
//
// Errors carry a phase and kind from the errors package. Configuration
// mismatches and undecodable artifacts are deployment errors
// (errors.IsDeploymentError); traps and fuel exhaustion are runtime
// outcomes and leave the module loadable.
package preparsed

// Package runtime instantiates executable modules and calls their exports.
//
// # Quick Start
//
//	eng, _ := engine.NewDefault(engine.WithConsumeFuel(true))
//	m, _, err := codec.Deserialize(artifact, eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt := runtime.New(eng, device.ModuleState{})
//	if err := device.Register(rt.Registry(), logger); err != nil {
//	    log.Fatal(err)
//	}
//	if err := rt.Start(ctx, m); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	_, err = rt.Run(ctx, "run")
//
// # Lower Level
//
// Instantiate binds a module to a caller-owned store using imports
// resolved by linker.Registry.Link. Instance.Call takes the store
// explicitly and rejects any other one.
//
// # Fuel
//
// With metering enabled a call stops with errors.ErrFuelExhausted once the
// store runs dry. The instance stays usable: refill and call again.
// Runtime applies a FuelPolicy before each invocation; the default resets
// the store to DefaultFuelBudget.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. A store, its
// instance and its host state belong to one goroutine at a time.
package runtime

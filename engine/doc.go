// Package engine holds the immutable execution configuration shared by the
// authoring host and the target.
//
// A Config bundles every option that changes how a module is compiled or
// executed: fuel metering, translation eagerness, the enabled core feature
// set and the fuel cost table. The subset that shapes the compiled IR is
// captured by Fingerprint and embedded in every serialized artifact; a
// target refuses artifacts whose fingerprint differs from its own engine.
//
//	eng, err := engine.NewDefault(engine.WithConsumeFuel(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Configurations can also be loaded from YAML with LoadConfigFile so the
// authoring host and the firmware build share one source of truth.
package engine

// Package linker binds a module's function imports to host functions.
//
// # Main Types
//
//   - Registry: host function bindings keyed by (namespace, name)
//   - Imports: the resolution of every import of one module
//   - Caller: the calling instance's host state, memory and fuel
//
// # Thread Safety
//
// Registry is safe for concurrent use and may link any number of modules.
// Imports is immutable. A Caller is only valid during the host call it was
// passed to.
//
// # Linking
//
// Link walks the imports in declaration order. Every missing function and
// every signature mismatch is collected into one *errors.LinkError; no
// partial result is returned. Bindings the module does not use are ignored.
//
// # Example
//
//	reg := linker.NewRegistry[State]()
//	reg.RegisterFunc("env", "set_led", func(c *linker.Caller[State], on int32) error {
//		c.Data().LED = on != 0
//		return nil
//	})
//	imports, err := reg.Link(module)
package linker

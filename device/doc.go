// Package device provides the host functions of the LED firmware target:
// initializing an output pin, switching the LED and logging guest
// messages. The state they drive is ModuleState, held by the store.
package device

package device

import (
	"context"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/linker"
)

// Import namespaces of the host functions.
const (
	EnvNamespace     = "env"
	LoggingNamespace = "logging"
)

// ModuleState is the peripheral state a guest drives through the host
// functions. It is owned by the store and only touched by the call in
// progress.
type ModuleState struct {
	// Pin is the output pin the LED was initialized on.
	Pin int32
	// Switches counts set_led calls.
	Switches uint32
	// Messages counts logging.log calls.
	Messages    uint32
	Initialized bool
	LED         bool
}

// SetLED switches the LED. The pin must have been initialized.
func (s *ModuleState) SetLED(on bool) error {
	if !s.Initialized {
		return errors.New(errors.PhaseHost, errors.KindNotInitialized).
			Path(EnvNamespace, "set_led").
			Detail("led was not initialized").
			Build()
	}
	s.LED = on
	s.Switches++
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Register adds env.init_led(i32), env.set_led(i32) and
// logging.log(ptr, len i32) to reg. Guest messages and LED transitions are
// written to logger.
func Register(reg *linker.Registry[ModuleState], logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &host{logger: logger}
	return multierr.Combine(
		reg.Namespace(EnvNamespace).
			TypedFunc("init_led", h.initLED).
			TypedFunc("set_led", h.setLED).
			Build(),
		reg.RegisterFunc(LoggingNamespace, "log", h.log),
	)
}

type host struct {
	logger *zap.Logger
}

func (h *host) initLED(c *linker.Caller[ModuleState], pin int32) {
	s := c.Data()
	if s.Initialized {
		h.logger.Info("led already initialized", zap.Int32("pin", s.Pin))
		return
	}
	s.Initialized = true
	s.Pin = pin
	h.logger.Info("led initialized", zap.Int32("pin", pin))
}

func (h *host) setLED(c *linker.Caller[ModuleState], on int32) error {
	s := c.Data()
	was := s.LED
	if err := s.SetLED(on == 1); err != nil {
		return err
	}
	h.logger.Info("led switched",
		zap.String("from", onOff(was)),
		zap.String("to", onOff(s.LED)),
		zap.Uint32("switches", s.Switches),
	)
	return nil
}

// log reads the guest's message through the bounds-checked memory view.
func (h *host) log(_ context.Context, c *linker.Caller[ModuleState], ptr, length uint32) error {
	msg, err := c.Memory().ReadString(ptr, length)
	if err != nil {
		return err
	}
	if !utf8.ValidString(msg) {
		return errors.InvalidData(errors.PhaseHost, "log message at %d is not valid UTF-8", ptr)
	}
	c.Data().Messages++
	h.logger.Info("module log", zap.String("module_log", msg))
	return nil
}

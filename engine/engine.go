package engine

import (
	"go.uber.org/zap"
)

// Engine is an immutable, validated Config shared by the compiler, the
// codec and every store. Create one at process start on both the authoring
// host and the target.
type Engine struct {
	logger *zap.Logger
	config Config
	fp     Fingerprint
}

// New validates cfg and wraps it in an Engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config: cfg,
		fp:     cfg.Fingerprint(),
		logger: Logger().With(zap.Bool("consume_fuel", cfg.ConsumeFuel), zap.Stringer("compilation", cfg.CompilationMode)),
	}
	e.logger.Debug("engine created", zap.Strings("features", FeatureNames(cfg.Features)))
	return e, nil
}

// NewDefault creates an Engine from DefaultConfig with opts applied.
func NewDefault(opts ...Option) (*Engine, error) {
	return New(NewConfig(opts...))
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Fingerprint returns the compatibility record of this engine.
func (e *Engine) Fingerprint() Fingerprint {
	return e.fp
}

// ConsumeFuel reports whether fuel metering is enabled.
func (e *Engine) ConsumeFuel() bool {
	return e.config.ConsumeFuel
}

// Logger returns the engine-scoped logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

package executor

import (
	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// Config configures the executor.
type Config struct {
	// FrameSize is the default output size for processors without a size hint.
	// Default: 256x256
	FrameSize texture.Size

	// TextureUnits is the number of units available to one Process call.
	// Default: 8
	TextureUnits int

	// Debug turns contract violations (a target left active) into panics.
	Debug bool

	// EnableMetrics enables metrics collection
	EnableMetrics bool

	// Logger for structured logging (nil for no logging)
	Logger *zap.Logger

	// Reporter receives processor panics and contract violations (nil to drop them)
	Reporter prismerrors.Reporter
}

// DefaultConfig returns sensible defaults for the executor.
func DefaultConfig() Config {
	return Config{
		FrameSize:     texture.Size2D(256, 256),
		TextureUnits:  texture.DefaultTextureUnits,
		Debug:         false,
		EnableMetrics: true,
		Logger:        nil, // No logging by default
		Reporter:      nil,
	}
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() {
	if !c.FrameSize.Valid() {
		c.FrameSize = texture.Size2D(256, 256)
	}
	c.FrameSize = c.FrameSize.Normalize()
	if c.TextureUnits <= 0 {
		c.TextureUnits = texture.DefaultTextureUnits
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Reporter == nil {
		c.Reporter = prismerrors.NopReporter{}
	}
}

// WithFrameSize sets the frame size.
func (c Config) WithFrameSize(size texture.Size) Config {
	c.FrameSize = size
	return c
}

// WithTextureUnits sets the texture unit count.
func (c Config) WithTextureUnits(n int) Config {
	c.TextureUnits = n
	return c
}

// WithDebug sets debug mode.
func (c Config) WithDebug(debug bool) Config {
	c.Debug = debug
	return c
}

// WithMetrics sets whether to enable metrics.
func (c Config) WithMetrics(enable bool) Config {
	c.EnableMetrics = enable
	return c
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// WithReporter sets the error reporter.
func (c Config) WithReporter(r prismerrors.Reporter) Config {
	c.Reporter = r
	return c
}

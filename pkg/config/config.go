// Package config loads process-level settings from the environment.
//
// Every setting has a default; a PRISM_* environment variable overrides it.
// Values that cannot be parsed fall back to the default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wehubfusion/Prism/pkg/executor"
	"github.com/wehubfusion/Prism/pkg/remote"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// Config holds the process settings.
type Config struct {
	// FrameWidth and FrameHeight size outputs without a size hint
	FrameWidth  int
	FrameHeight int

	// TextureUnits available to one Process call
	TextureUnits int

	// MaxPooledTargets freed render targets kept for reuse
	MaxPooledTargets int

	// Debug turns invariant violations into panics
	Debug bool

	// LogLevel is a zap level name: debug, info, warn, error
	LogLevel string

	// Frames is how many frames the example renders; 0 renders until interrupted
	Frames int

	// FrameInterval is the render loop period
	FrameInterval time.Duration

	// NATSURL enables the remote bridge when set
	NATSURL string

	// SubjectPrefix for remote subjects
	SubjectPrefix string

	// OTLPEndpoint enables tracing when set (host:port)
	OTLPEndpoint string

	// SentryDSN enables error reporting when set
	SentryDSN string

	// Environment is reported to Sentry
	Environment string

	// BlobConnectionString and BlobContainer select Azure Blob Storage for documents
	BlobConnectionString string
	BlobContainer        string

	// StoreDir is the document directory used when no blob storage is configured
	StoreDir string
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		FrameWidth:       256,
		FrameHeight:      256,
		TextureUnits:     texture.DefaultTextureUnits,
		MaxPooledTargets: 16,
		LogLevel:         "info",
		Frames:           10,
		FrameInterval:    time.Second / 30,
		SubjectPrefix:    "prism",
		Environment:      "development",
		BlobContainer:    "prism",
		StoreDir:         "prism-data",
	}
}

// Load returns the defaults overridden by the environment.
func Load() *Config {
	c := Default()

	c.FrameWidth = getEnvInt("PRISM_FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = getEnvInt("PRISM_FRAME_HEIGHT", c.FrameHeight)
	c.TextureUnits = getEnvInt("PRISM_TEXTURE_UNITS", c.TextureUnits)
	c.MaxPooledTargets = getEnvInt("PRISM_MAX_POOLED_TARGETS", c.MaxPooledTargets)
	c.Debug = getEnvBool("PRISM_DEBUG", c.Debug)
	c.LogLevel = strings.ToLower(getEnv("PRISM_LOG_LEVEL", c.LogLevel))
	c.Frames = getEnvInt("PRISM_FRAMES", c.Frames)
	c.FrameInterval = getEnvDuration("PRISM_FRAME_INTERVAL", c.FrameInterval)
	c.NATSURL = getEnv("PRISM_NATS_URL", c.NATSURL)
	c.SubjectPrefix = getEnv("PRISM_SUBJECT_PREFIX", c.SubjectPrefix)
	c.OTLPEndpoint = getEnv("PRISM_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.SentryDSN = getEnv("PRISM_SENTRY_DSN", c.SentryDSN)
	c.Environment = getEnv("PRISM_ENVIRONMENT", c.Environment)
	c.BlobConnectionString = getEnv("PRISM_BLOB_CONNECTION_STRING", c.BlobConnectionString)
	c.BlobContainer = getEnv("PRISM_BLOB_CONTAINER", c.BlobContainer)
	c.StoreDir = getEnv("PRISM_STORE_DIR", c.StoreDir)

	c.normalize()
	return c
}

func (c *Config) normalize() {
	d := Default()
	if c.FrameWidth < 1 {
		c.FrameWidth = d.FrameWidth
	}
	if c.FrameHeight < 1 {
		c.FrameHeight = d.FrameHeight
	}
	if c.TextureUnits < 1 {
		c.TextureUnits = d.TextureUnits
	}
	if c.MaxPooledTargets < 0 {
		c.MaxPooledTargets = 0
	}
	if c.Frames < 0 {
		c.Frames = 0
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = d.LogLevel
	}
}

// Executor returns the executor configuration.
func (c *Config) Executor(logger *zap.Logger) executor.Config {
	return executor.DefaultConfig().
		WithFrameSize(texture.Size2D(c.FrameWidth, c.FrameHeight)).
		WithTextureUnits(c.TextureUnits).
		WithDebug(c.Debug).
		WithLogger(logger)
}

// Container returns the texture container configuration.
func (c *Config) Container() texture.ContainerConfig {
	return texture.DefaultContainerConfig().
		WithMaxPooled(c.MaxPooledTargets).
		WithDebug(c.Debug)
}

// Remote returns the bridge configuration.
func (c *Config) Remote(logger *zap.Logger) remote.Config {
	return remote.DefaultConfig().
		WithSubjectPrefix(c.SubjectPrefix).
		WithLogger(logger)
}

// NewLogger builds a production JSON logger at level. "debug" also turns on
// development mode (stack traces on warnings, caller info).
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("config: log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool accepts anything strconv.ParseBool does
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnv retrieves a string from environment variable with default fallback
func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

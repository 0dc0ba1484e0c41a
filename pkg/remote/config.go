package remote

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/identifier"
)

// Config configures a Bridge.
type Config struct {
	// SubjectPrefix is prepended to every subject.
	// Default: "prism"
	SubjectPrefix string

	// QueueSize bounds the number of commands waiting for Drain.
	// Default: 256
	QueueSize int

	// MessageTypes are forwarded to <prefix>.messages.<type> in addition
	// to frame.rendered.
	MessageTypes []identifier.Identifier

	// PublishMaxRetries is how many times a failed publish is retried.
	// Default: 2
	PublishMaxRetries int

	// PublishRetryDelay is the wait before the first retry; each further
	// retry waits one more delay. Retries block the render goroutine, so
	// keep it short.
	// Default: 5ms
	PublishRetryDelay time.Duration

	// BreakerThreshold is the number of consecutive failed publishes that
	// open the publish breaker.
	// Default: 5
	BreakerThreshold int

	// BreakerCooldown is how long an open breaker drops publishes before
	// letting a trial publish through.
	// Default: 10s
	BreakerCooldown time.Duration

	// Logger for structured logging (nil for no logging)
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults for the bridge.
func DefaultConfig() Config {
	return Config{
		SubjectPrefix:     "prism",
		QueueSize:         256,
		PublishMaxRetries: 2,
		PublishRetryDelay: 5 * time.Millisecond,
		BreakerThreshold:  5,
		BreakerCooldown:   10 * time.Second,
	}
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	c.SubjectPrefix = strings.Trim(c.SubjectPrefix, ".")
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "prism"
	}
	if strings.ContainsAny(c.SubjectPrefix, " *>") {
		return fmt.Errorf("remote: invalid subject prefix %q", c.SubjectPrefix)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.PublishMaxRetries < 0 {
		c.PublishMaxRetries = 0
	}
	if c.PublishRetryDelay < 0 {
		c.PublishRetryDelay = 0
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// WithSubjectPrefix sets the subject prefix.
func (c Config) WithSubjectPrefix(prefix string) Config {
	c.SubjectPrefix = prefix
	return c
}

// WithQueueSize sets the command queue size.
func (c Config) WithQueueSize(n int) Config {
	c.QueueSize = n
	return c
}

// WithMessageTypes sets the forwarded message types.
func (c Config) WithMessageTypes(types ...identifier.Identifier) Config {
	c.MessageTypes = append([]identifier.Identifier(nil), types...)
	return c
}

// WithPublishRetry sets the retry count and delay for failed publishes.
func (c Config) WithPublishRetry(retries int, delay time.Duration) Config {
	c.PublishMaxRetries = retries
	c.PublishRetryDelay = delay
	return c
}

// WithBreaker sets the publish breaker threshold and cooldown.
func (c Config) WithBreaker(threshold int, cooldown time.Duration) Config {
	c.BreakerThreshold = threshold
	c.BreakerCooldown = cooldown
	return c
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// CommandSubject is where the bridge receives commands.
func (c Config) CommandSubject() string {
	return c.SubjectPrefix + ".commands"
}

// MessageSubject is where messages of msgType are forwarded.
func (c Config) MessageSubject(msgType identifier.Identifier) string {
	return c.SubjectPrefix + ".messages." + msgType.String()
}

// EventSubject is where network events of kind are published.
func (c Config) EventSubject(kind string) string {
	return c.SubjectPrefix + ".events." + kind
}

package texture

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
)

// ContainerConfig configures a Container.
type ContainerConfig struct {
	// MaxPooled is the number of freed targets kept for reuse.
	// Targets freed beyond this are released to the driver.
	// Default: 16
	MaxPooled int

	// Debug turns invariant violations (binding a freed handle) into panics.
	Debug bool
}

// DefaultContainerConfig returns sensible defaults for the container.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		MaxPooled: 16,
		Debug:     false,
	}
}

// Validate validates the configuration and applies defaults.
func (c *ContainerConfig) Validate() {
	if c.MaxPooled < 0 {
		c.MaxPooled = 0
	}
}

// WithMaxPooled sets the pool bound.
func (c ContainerConfig) WithMaxPooled(n int) ContainerConfig {
	c.MaxPooled = n
	return c
}

// WithDebug sets debug mode.
func (c ContainerConfig) WithDebug(debug bool) ContainerConfig {
	c.Debug = debug
	return c
}

// Stats summarizes container activity.
type Stats struct {
	Live      int // handles currently allocated to callers
	Pooled    int // freed targets waiting for reuse
	Created   int // driver allocations
	Reused    int // allocations served from the pool
	Released  int // targets handed back to the driver
	Activated int // SetActiveTarget calls that bound a target
}

type target struct {
	res        ResourceID
	size       Size
	label      string
	persistent bool
	free       bool
}

// Container owns render targets and hands out stable handles for them.
type Container struct {
	driver   Driver
	config   ContainerConfig
	logger   *zap.Logger
	reporter prismerrors.Reporter

	targets map[Handle]*target
	pool    []Handle // freed handles, oldest first
	next    Handle
	active  Handle
	stats   Stats
}

// ContainerOption configures optional Container collaborators.
type ContainerOption func(*Container)

// WithLogger sets the container logger.
func WithLogger(logger *zap.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReporter sets where invariant violations are reported.
func WithReporter(r prismerrors.Reporter) ContainerOption {
	return func(c *Container) {
		if r != nil {
			c.reporter = r
		}
	}
}

// NewContainer creates a container on top of driver.
func NewContainer(driver Driver, config ContainerConfig, opts ...ContainerOption) *Container {
	config.Validate()
	c := &Container{
		driver:   driver,
		config:   config,
		logger:   zap.NewNop(),
		reporter: prismerrors.NopReporter{},
		targets:  make(map[Handle]*target),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Driver returns the underlying driver.
func (c *Container) Driver() Driver {
	return c.driver
}

// Allocate returns a handle to a target at least as large as sizeHint.
// A pooled target of exactly that size is preferred; otherwise the smallest
// pooled target covering it. A reused target keeps its handle.
func (c *Container) Allocate(sizeHint Size) (Handle, error) {
	if !sizeHint.Valid() {
		return InvalidHandle, fmt.Errorf("texture: allocate %v: %w", sizeHint, prismerrors.ErrOutOfRange)
	}
	sizeHint = sizeHint.Normalize()
	return c.allocate(sizeHint, c.bestPooled(sizeHint))
}

// AllocateExact returns a handle to a target of exactly size. Only a pooled
// target of the same size is reused. Persistent targets use it so their
// extent matches what the owner asked for.
func (c *Container) AllocateExact(size Size) (Handle, error) {
	if !size.Valid() {
		return InvalidHandle, fmt.Errorf("texture: allocate %v: %w", size, prismerrors.ErrOutOfRange)
	}
	size = size.Normalize()
	idx := c.bestPooled(size)
	if idx >= 0 && c.targets[c.pool[idx]].size != size {
		idx = -1
	}
	return c.allocate(size, idx)
}

func (c *Container) allocate(sizeHint Size, idx int) (Handle, error) {
	if idx >= 0 {
		h := c.pool[idx]
		c.pool = append(c.pool[:idx], c.pool[idx+1:]...)
		t := c.targets[h]
		t.free = false
		t.persistent = false
		t.label = ""
		c.stats.Reused++
		return h, nil
	}

	res, err := c.driver.Allocate(sizeHint)
	if err != nil {
		return InvalidHandle, fmt.Errorf("texture: allocate %v: %w", sizeHint, err)
	}
	c.next++
	c.targets[c.next] = &target{res: res, size: sizeHint}
	c.stats.Created++
	return c.next, nil
}

func (c *Container) bestPooled(hint Size) int {
	best := -1
	for i, h := range c.pool {
		size := c.targets[h].size
		if size == hint {
			return i
		}
		if !size.Covers(hint) {
			continue
		}
		if best < 0 || size.Texels() < c.targets[c.pool[best]].size.Texels() {
			best = i
		}
	}
	return best
}

// Free returns h to the pool. Freeing the active target unbinds it first.
func (c *Container) Free(h Handle) error {
	t, err := c.lookup(h)
	if err != nil {
		return err
	}
	if c.active == h {
		if err := c.ClearActiveTarget(); err != nil {
			return err
		}
	}
	t.free = true
	t.persistent = false
	c.pool = append(c.pool, h)

	for len(c.pool) > c.config.MaxPooled {
		evict := c.pool[0]
		c.pool = c.pool[1:]
		if err := c.release(evict); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) release(h Handle) error {
	t := c.targets[h]
	delete(c.targets, h)
	c.stats.Released++
	if err := c.driver.Release(t.res); err != nil {
		return fmt.Errorf("texture: release handle %d: %w", h, err)
	}
	return nil
}

// Purge releases every pooled target to the driver.
func (c *Container) Purge() error {
	var errs []error
	for _, h := range c.pool {
		errs = append(errs, c.release(h))
	}
	c.pool = nil
	return errors.Join(errs...)
}

// Close unbinds and releases every target, live or pooled.
func (c *Container) Close() error {
	errs := []error{c.ClearActiveTarget()}
	for h := range c.targets {
		errs = append(errs, c.release(h))
	}
	c.pool = nil
	return errors.Join(errs...)
}

// SetPersistent marks h as surviving across frames.
func (c *Container) SetPersistent(h Handle, persistent bool) error {
	t, err := c.lookup(h)
	if err != nil {
		return err
	}
	t.persistent = persistent
	return nil
}

// IsPersistent reports whether h is live and persistent.
func (c *Container) IsPersistent(h Handle) bool {
	t, err := c.lookup(h)
	return err == nil && t.persistent
}

// Valid reports whether h is allocated and not freed.
func (c *Container) Valid(h Handle) bool {
	_, err := c.lookup(h)
	return err == nil
}

// SetActiveTarget binds h as the render destination. Only one target is
// active at a time; activating another replaces it. Activating a freed
// handle is an invariant violation.
func (c *Container) SetActiveTarget(h Handle, label string) error {
	t, err := c.lookup(h)
	if err != nil {
		verr := prismerrors.Violation(c.config.Debug, c.logger, c.reporter,
			"set active target %q: handle %d is not live", label, h)
		return fmt.Errorf("%w: %w", err, verr)
	}
	if err := c.driver.Bind(t.res); err != nil {
		return fmt.Errorf("texture: bind handle %d: %w", h, err)
	}
	t.label = label
	c.active = h
	c.stats.Activated++
	c.logger.Debug("Activated render target",
		zap.Int("handle", int(h)),
		zap.String("label", label))
	return nil
}

// ClearActiveTarget restores the default render destination.
func (c *Container) ClearActiveTarget() error {
	if c.active == InvalidHandle {
		return nil
	}
	c.active = InvalidHandle
	if err := c.driver.Bind(NoResource); err != nil {
		return fmt.Errorf("texture: unbind: %w", err)
	}
	return nil
}

// ActiveTarget returns the active handle or InvalidHandle.
func (c *Container) ActiveTarget() Handle {
	return c.active
}

// Resource returns the driver resource for h, or NoResource if h is not live.
func (c *Container) Resource(h Handle) ResourceID {
	t, err := c.lookup(h)
	if err != nil {
		return NoResource
	}
	return t.res
}

// Size returns the allocated size of h, or the zero Size if h is not live.
func (c *Container) Size(h Handle) Size {
	t, err := c.lookup(h)
	if err != nil {
		return Size{}
	}
	return t.size
}

// Label returns the debug label given at the last activation.
func (c *Container) Label(h Handle) string {
	t, err := c.lookup(h)
	if err != nil {
		return ""
	}
	return t.label
}

// Surface returns pixel memory for h when the driver exposes it.
func (c *Container) Surface(h Handle) (*Surface, error) {
	t, err := c.lookup(h)
	if err != nil {
		return nil, err
	}
	provider, ok := c.driver.(SurfaceProvider)
	if !ok {
		return nil, prismerrors.ErrNoSurface
	}
	s, ok := provider.Surface(t.res)
	if !ok {
		return nil, fmt.Errorf("texture: handle %d has no surface: %w", h, prismerrors.ErrInvalidHandle)
	}
	return s, nil
}

// Stats returns a snapshot of container counters.
func (c *Container) Stats() Stats {
	s := c.stats
	s.Pooled = len(c.pool)
	s.Live = len(c.targets) - len(c.pool)
	return s
}

func (c *Container) lookup(h Handle) (*target, error) {
	t, ok := c.targets[h]
	if !ok || t.free {
		return nil, fmt.Errorf("texture: handle %d: %w", h, prismerrors.ErrInvalidHandle)
	}
	return t, nil
}

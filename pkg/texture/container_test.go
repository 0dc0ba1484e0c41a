package texture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
)

func newTestContainer(cfg ContainerConfig) (*Container, *MemoryDriver) {
	driver := NewMemoryDriver()
	return NewContainer(driver, cfg), driver
}

func TestAllocateReusesFreedHandle(t *testing.T) {
	c, driver := newTestContainer(DefaultContainerConfig())

	first, err := c.Allocate(Size2D(512, 512))
	require.NoError(t, err)
	require.NoError(t, c.Free(first))

	second, err := c.Allocate(Size2D(512, 512))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, driver.Allocations())
	assert.Equal(t, 1, c.Stats().Reused)
}

func TestAllocatePrefersExactThenSmallestCovering(t *testing.T) {
	c, _ := newTestContainer(DefaultContainerConfig())

	big, _ := c.Allocate(Size2D(1024, 1024))
	medium, _ := c.Allocate(Size2D(600, 600))
	exact, _ := c.Allocate(Size2D(256, 256))
	small, _ := c.Allocate(Size2D(64, 64))
	for _, h := range []Handle{big, medium, exact, small} {
		require.NoError(t, c.Free(h))
	}

	h, err := c.Allocate(Size2D(256, 256))
	require.NoError(t, err)
	assert.Equal(t, exact, h)

	h, err = c.Allocate(Size2D(512, 300))
	require.NoError(t, err)
	assert.Equal(t, medium, h, "smallest covering target")
	assert.Equal(t, Size2D(600, 600), c.Size(h))

	h, err = c.Allocate(Size2D(2048, 16))
	require.NoError(t, err)
	assert.NotContains(t, []Handle{big, small}, h, "nothing pooled covers the hint")
}

func TestAllocateExactSkipsCoveringTargets(t *testing.T) {
	c, driver := newTestContainer(DefaultContainerConfig())

	big, _ := c.Allocate(Size3D(64, 64, 64))
	require.NoError(t, c.Free(big))

	h, err := c.AllocateExact(Size3D(32, 32, 32))
	require.NoError(t, err)
	assert.NotEqual(t, big, h)
	assert.Equal(t, Size3D(32, 32, 32), c.Size(h))
	assert.Equal(t, 2, driver.Allocations())

	again, err := c.AllocateExact(Size3D(64, 64, 64))
	require.NoError(t, err)
	assert.Equal(t, big, again)
}

func TestAllocateRejectsInvalidSize(t *testing.T) {
	c, _ := newTestContainer(DefaultContainerConfig())
	_, err := c.Allocate(Size{W: 0, H: 10})
	assert.ErrorIs(t, err, prismerrors.ErrOutOfRange)
}

func TestFreedHandleAccessorsReturnSentinels(t *testing.T) {
	c, _ := newTestContainer(DefaultContainerConfig())
	h, err := c.Allocate(Size2D(32, 32))
	require.NoError(t, err)
	require.NotEqual(t, NoResource, c.Resource(h))
	require.NoError(t, c.Free(h))

	assert.Equal(t, NoResource, c.Resource(h))
	assert.Equal(t, Size{}, c.Size(h))
	assert.Empty(t, c.Label(h))
	assert.False(t, c.Valid(h))
	assert.ErrorIs(t, c.Free(h), prismerrors.ErrInvalidHandle)
	assert.ErrorIs(t, c.SetPersistent(h, true), prismerrors.ErrInvalidHandle)

	_, err = c.Surface(h)
	assert.ErrorIs(t, err, prismerrors.ErrInvalidHandle)
}

func TestPoolBoundReleasesOldest(t *testing.T) {
	c, driver := newTestContainer(DefaultContainerConfig().WithMaxPooled(1))
	a, _ := c.Allocate(Size2D(8, 8))
	b, _ := c.Allocate(Size2D(8, 8))
	resA := c.Resource(a)

	require.NoError(t, c.Free(a))
	require.NoError(t, c.Free(b))

	assert.Equal(t, []ResourceID{resA}, driver.Released())
	stats := c.Stats()
	assert.Equal(t, 1, stats.Pooled)
	assert.Equal(t, 0, stats.Live)

	require.NoError(t, c.Purge())
	assert.Zero(t, driver.Live())
	assert.Zero(t, c.Stats().Pooled)
}

func TestSingleActiveTarget(t *testing.T) {
	c, driver := newTestContainer(DefaultContainerConfig())
	a, _ := c.Allocate(Size2D(16, 16))
	b, _ := c.Allocate(Size2D(16, 16))

	require.NoError(t, c.SetActiveTarget(a, "pass1"))
	require.NoError(t, c.SetActiveTarget(b, "pass2"))
	assert.Equal(t, b, c.ActiveTarget())
	assert.Equal(t, c.Resource(b), driver.Bound())
	assert.Equal(t, "pass2", c.Label(b))

	// freeing the active target restores the default destination
	require.NoError(t, c.Free(b))
	assert.Equal(t, InvalidHandle, c.ActiveTarget())
	assert.Equal(t, NoResource, driver.Bound())

	require.NoError(t, c.ClearActiveTarget())
	assert.Equal(t, 2, c.Stats().Activated)
}

func TestActivatingFreedHandleIsViolation(t *testing.T) {
	t.Run("release", func(t *testing.T) {
		c, _ := newTestContainer(DefaultContainerConfig())
		h, _ := c.Allocate(Size2D(4, 4))
		require.NoError(t, c.Free(h))

		err := c.SetActiveTarget(h, "stale")
		require.Error(t, err)
		assert.ErrorIs(t, err, prismerrors.ErrInvalidHandle)
		var structured *prismerrors.Error
		require.True(t, errors.As(err, &structured))
		assert.Equal(t, prismerrors.CodeInvariantViolation, structured.Code)
	})

	t.Run("debug", func(t *testing.T) {
		c, _ := newTestContainer(DefaultContainerConfig().WithDebug(true))
		assert.Panics(t, func() { _ = c.SetActiveTarget(Handle(42), "unknown") })
	})
}

func TestPersistenceAndSurface(t *testing.T) {
	c, _ := newTestContainer(DefaultContainerConfig())
	h, _ := c.Allocate(Size2D(4, 2))
	require.NoError(t, c.SetPersistent(h, true))
	assert.True(t, c.IsPersistent(h))

	s, err := c.Surface(h)
	require.NoError(t, err)
	s.Set(1, 1, [4]float32{1, 0, 0, 1})
	s.SetDepth(1, 1, 0.25)

	again, err := c.Surface(h)
	require.NoError(t, err)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, again.At(1, 1))

	lo, hi, ok := again.DepthRange()
	assert.True(t, ok)
	assert.InDelta(t, 0.25, lo, 1e-6)
	assert.InDelta(t, 0.25, hi, 1e-6)

	// reuse resets persistence
	require.NoError(t, c.Free(h))
	h2, _ := c.Allocate(Size2D(4, 2))
	assert.Equal(t, h, h2)
	assert.False(t, c.IsPersistent(h2))
}

func TestCloseReleasesEverything(t *testing.T) {
	c, driver := newTestContainer(DefaultContainerConfig())
	a, _ := c.Allocate(Size2D(4, 4))
	b, _ := c.Allocate(Size2D(4, 4))
	require.NoError(t, c.Free(b))
	require.NoError(t, c.SetActiveTarget(a, "x"))

	require.NoError(t, c.Close())
	assert.Zero(t, driver.Live())
	assert.Equal(t, NoResource, driver.Bound())
}

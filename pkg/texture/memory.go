package texture

import (
	"fmt"
	"slices"
	"sync"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
)

// GLTexture0 is the first texture unit enumerant reported by MemoryDriver.UnitFor.
const GLTexture0 = 0x84C0

// MemoryDriver is a software Driver backed by Surfaces. It records every
// bind and release so tests can check the binding discipline.
type MemoryDriver struct {
	mu       sync.Mutex
	next     ResourceID
	surfaces map[ResourceID]*Surface
	bound    ResourceID
	binds    []ResourceID
	released []ResourceID
	allocs   int
}

// NewMemoryDriver creates an empty software driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{surfaces: make(map[ResourceID]*Surface)}
}

// Allocate implements Driver.
func (d *MemoryDriver) Allocate(size Size) (ResourceID, error) {
	if !size.Valid() {
		return NoResource, fmt.Errorf("memory driver: invalid size %v: %w", size, prismerrors.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	d.surfaces[d.next] = NewSurface(size)
	d.allocs++
	return d.next, nil
}

// Bind implements Driver.
func (d *MemoryDriver) Bind(id ResourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id != NoResource {
		if _, ok := d.surfaces[id]; !ok {
			return fmt.Errorf("memory driver: bind resource %d: %w", id, prismerrors.ErrInvalidHandle)
		}
	}
	d.bound = id
	d.binds = append(d.binds, id)
	return nil
}

// Release implements Driver.
func (d *MemoryDriver) Release(id ResourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.surfaces[id]; !ok {
		return fmt.Errorf("memory driver: release resource %d: %w", id, prismerrors.ErrInvalidHandle)
	}
	delete(d.surfaces, id)
	if d.bound == id {
		d.bound = NoResource
	}
	d.released = append(d.released, id)
	return nil
}

// UnitFor implements Driver.
func (d *MemoryDriver) UnitFor(unit int) int {
	return GLTexture0 + unit
}

// Surface implements SurfaceProvider.
func (d *MemoryDriver) Surface(id ResourceID) (*Surface, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.surfaces[id]
	return s, ok
}

// Bound returns the currently bound resource.
func (d *MemoryDriver) Bound() ResourceID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bound
}

// BindLog returns every Bind argument in call order.
func (d *MemoryDriver) BindLog() []ResourceID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.binds)
}

// Released returns released resources in release order.
func (d *MemoryDriver) Released() []ResourceID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.released)
}

// Live returns the number of allocated, unreleased resources.
func (d *MemoryDriver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.surfaces)
}

// Allocations returns the number of Allocate calls that succeeded.
func (d *MemoryDriver) Allocations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocs
}

var (
	_ Driver          = (*MemoryDriver)(nil)
	_ SurfaceProvider = (*MemoryDriver)(nil)
)

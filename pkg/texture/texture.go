// Package texture owns the pool of render targets and texture units that
// processors draw into.
//
// Processors never hold GPU resources directly. They receive integer
// Handles from a Container and resolve them to driver resources through it.
// The driver is an opaque four-operation contract (Driver); the package
// ships a software MemoryDriver for tests and headless rendering.
//
// Resource lifecycle:
//   - Targets are created by Container.Allocate, reusing pooled targets when
//     one covers the requested size
//   - Container.Free returns a target to the pool; its handle becomes invalid
//     until the pool hands the same target out again
//   - Accessors on a freed handle return sentinels (NoResource, zero Size)
//
// Nothing in this package is safe for concurrent use. The executor's render
// goroutine is the only caller.
package texture

import "fmt"

// Handle identifies a render target owned by a Container. The zero value is invalid.
type Handle int

// InvalidHandle is the zero handle.
const InvalidHandle Handle = 0

// ResourceID identifies a driver-side resource.
type ResourceID uint64

// NoResource is returned for freed or unknown handles. Binding it restores
// the default render destination.
const NoResource ResourceID = 0

// Size is a target extent in pixels (or voxels for volumes). D is 1 for images.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
	D int `json:"d,omitempty"`
}

// Size2D returns an image size.
func Size2D(w, h int) Size {
	return Size{W: w, H: h, D: 1}
}

// Size3D returns a volume size.
func Size3D(w, h, d int) Size {
	return Size{W: w, H: h, D: d}
}

// Depth returns D, treating 0 as 1.
func (s Size) Depth() int {
	if s.D <= 0 {
		return 1
	}
	return s.D
}

// Valid reports whether every extent is positive.
func (s Size) Valid() bool {
	return s.W > 0 && s.H > 0 && s.D >= 0
}

// Covers reports whether s is at least as large as o in every dimension.
func (s Size) Covers(o Size) bool {
	return s.W >= o.W && s.H >= o.H && s.Depth() >= o.Depth()
}

// Texels returns the number of texels.
func (s Size) Texels() int {
	return s.W * s.H * s.Depth()
}

// Normalize returns s with D defaulted to 1.
func (s Size) Normalize() Size {
	s.D = s.Depth()
	return s
}

func (s Size) String() string {
	if s.Depth() == 1 {
		return fmt.Sprintf("(%d,%d)", s.W, s.H)
	}
	return fmt.Sprintf("(%d,%d,%d)", s.W, s.H, s.D)
}

// Driver is the resource-allocation contract the core consumes from the
// graphics layer.
type Driver interface {
	// Allocate creates a render target of exactly size.
	Allocate(size Size) (ResourceID, error)

	// Bind makes id the current render destination. NoResource unbinds.
	Bind(id ResourceID) error

	// Release destroys a resource. The id must not be used afterwards.
	Release(id ResourceID) error

	// UnitFor maps a logical texture unit index to the driver's unit
	// enumerant (GL_TEXTURE0+n style).
	UnitFor(unit int) int
}

// SurfaceProvider is implemented by drivers that expose pixel memory.
type SurfaceProvider interface {
	Surface(id ResourceID) (*Surface, bool)
}

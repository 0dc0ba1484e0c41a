package texture

import "math"

// Surface is CPU-side texel storage: RGBA colour plus one depth value per texel.
// Volumes reuse the layout with D slices; voxel density lives in the red channel.
type Surface struct {
	Size  Size
	Color []float32
	Depth []float32
}

// NewSurface allocates a cleared surface.
func NewSurface(size Size) *Surface {
	size = size.Normalize()
	n := size.Texels()
	s := &Surface{
		Size:  size,
		Color: make([]float32, 4*n),
		Depth: make([]float32, n),
	}
	s.Clear()
	return s
}

func (s *Surface) index(x, y, z int) int {
	return (z*s.Size.H+y)*s.Size.W + x
}

func (s *Surface) inBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < s.Size.W && y < s.Size.H && z < s.Size.Depth()
}

// At returns the colour at (x, y) of slice 0. Out-of-bounds reads are transparent black.
func (s *Surface) At(x, y int) [4]float32 {
	return s.AtVoxel(x, y, 0)
}

// AtVoxel returns the colour at (x, y, z).
func (s *Surface) AtVoxel(x, y, z int) [4]float32 {
	if !s.inBounds(x, y, z) {
		return [4]float32{}
	}
	i := 4 * s.index(x, y, z)
	return [4]float32{s.Color[i], s.Color[i+1], s.Color[i+2], s.Color[i+3]}
}

// Set writes the colour at (x, y) of slice 0.
func (s *Surface) Set(x, y int, c [4]float32) {
	s.SetVoxel(x, y, 0, c)
}

// SetVoxel writes the colour at (x, y, z). Out-of-bounds writes are ignored.
func (s *Surface) SetVoxel(x, y, z int, c [4]float32) {
	if !s.inBounds(x, y, z) {
		return
	}
	i := 4 * s.index(x, y, z)
	copy(s.Color[i:i+4], c[:])
}

// DepthAt returns the depth at (x, y). Out-of-bounds reads return the far plane.
func (s *Surface) DepthAt(x, y int) float32 {
	if !s.inBounds(x, y, 0) {
		return 1
	}
	return s.Depth[s.index(x, y, 0)]
}

// SetDepth writes the depth at (x, y).
func (s *Surface) SetDepth(x, y int, d float32) {
	if !s.inBounds(x, y, 0) {
		return
	}
	s.Depth[s.index(x, y, 0)] = d
}

// Density samples the red channel of a volume with trilinear interpolation.
// Coordinates are in texel space; samples outside the volume are zero.
func (s *Surface) Density(x, y, z float64) float32 {
	x0, y0, z0 := int(math.Floor(x)), int(math.Floor(y)), int(math.Floor(z))
	fx, fy, fz := float32(x-float64(x0)), float32(y-float64(y0)), float32(z-float64(z0))

	v := func(dx, dy, dz int) float32 { return s.AtVoxel(x0+dx, y0+dy, z0+dz)[0] }
	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }

	c00 := lerp(v(0, 0, 0), v(1, 0, 0), fx)
	c10 := lerp(v(0, 1, 0), v(1, 1, 0), fx)
	c01 := lerp(v(0, 0, 1), v(1, 0, 1), fx)
	c11 := lerp(v(0, 1, 1), v(1, 1, 1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz)
}

// Clear resets colour to transparent black and depth to the far plane.
func (s *Surface) Clear() {
	clear(s.Color)
	for i := range s.Depth {
		s.Depth[i] = 1
	}
}

// CopyFrom copies the overlapping region of src into s.
func (s *Surface) CopyFrom(src *Surface) {
	w := min(s.Size.W, src.Size.W)
	h := min(s.Size.H, src.Size.H)
	d := min(s.Size.Depth(), src.Size.Depth())
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			di, si := s.index(0, y, z), src.index(0, y, z)
			copy(s.Color[4*di:4*(di+w)], src.Color[4*si:4*(si+w)])
			copy(s.Depth[di:di+w], src.Depth[si:si+w])
		}
	}
}

// DepthRange returns the smallest and largest depth values of slice 0 that
// are closer than the far plane. ok is false when every texel is at the far plane.
func (s *Surface) DepthRange() (lo, hi float32, ok bool) {
	lo, hi = 1, 0
	n := s.Size.W * s.Size.H
	for _, d := range s.Depth[:n] {
		if d >= 1 {
			continue
		}
		ok = true
		lo = min(lo, d)
		hi = max(hi, d)
	}
	if !ok {
		return 0, 1, false
	}
	return lo, hi, true
}

// Package raycaster renders a density volume into a colour and depth image.
//
// Rays are cast orthographically along +z, one per output pixel. Depth is
// the normalized ray parameter of the first sample at or above the iso
// threshold; pixels that never reach it stay at the far plane.
package raycaster

import (
	"context"
	"errors"
	"fmt"
	"math"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
)

// TypeName is the registered processor type.
const TypeName = "Raycaster"

// Compositing modes.
const (
	ModeMIP       = "mip"
	ModeComposite = "composite"
)

var (
	RaycastingMode = identifier.Intern("set.raycastingMode")
	SamplingRate   = identifier.Intern("set.samplingRate")
	IsoThreshold   = identifier.Intern("set.isoThreshold")

	Inport  = identifier.Intern("volume.inport")
	Outport = identifier.Intern("image.outport")

	volumeTexUnit = identifier.Intern("volumeTexUnit")
)

// opaque ends compositing early.
const opaque = 0.99

// Raycaster renders a volume.
type Raycaster struct {
	processor.Base

	mode     *property.Property
	sampling *property.Property
	iso      *property.Property
}

// New creates a raycaster.
func New(id identifier.Identifier) (processor.Processor, error) {
	r := &Raycaster{
		Base:     processor.NewBase(id, TypeName),
		mode:     property.NewString(RaycastingMode, "Raycasting Mode", ModeMIP),
		sampling: property.NewFloat(SamplingRate, "Sampling Rate", 1, 0.25, 4),
		iso:      property.NewFloat(IsoThreshold, "Iso Threshold", 0.1, 0, 1, property.WithLevelOfDetail(property.Detailed)),
	}
	r.SetInfo(processor.Info{
		Category:    "Raycasting",
		Description: "Casts one ray per pixel through the volume.",
	})
	r.CreateInport(Inport.String(), port.VolumeType)
	r.CreateOutport(Outport.String(), port.ImageType)

	for _, p := range []*property.Property{r.mode, r.sampling, r.iso} {
		if err := r.AddProperty(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Process casts the rays into the output target.
func (r *Raycaster) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	vol, src, err := rc.Surface(m, Inport)
	if err != nil {
		return err
	}
	dst, dest, err := rc.Surface(m, Outport)
	if err != nil {
		return err
	}

	mode, _ := property.Value[string](r.mode)
	if mode != ModeMIP && mode != ModeComposite {
		return fmt.Errorf("raycasting mode %q: %w", mode, prismerrors.ErrOutOfRange)
	}
	rate, _ := property.Value[float64](r.sampling)
	iso, _ := property.Value[float64](r.iso)

	if err := rc.Textures.SetActiveTarget(dest, "Raycaster::process"); err != nil {
		return err
	}
	if _, err := rc.Units.Bind(volumeTexUnit, src); err != nil {
		return errors.Join(err, rc.Textures.ClearActiveTarget())
	}

	dst.Clear()
	steps := max(1, int(math.Ceil(float64(vol.Size.Depth())*rate)))
	for y := 0; y < dst.Size.H; y++ {
		for x := 0; x < dst.Size.W; x++ {
			vx := (float64(x)+0.5)/float64(dst.Size.W)*float64(vol.Size.W) - 0.5
			vy := (float64(y)+0.5)/float64(dst.Size.H)*float64(vol.Size.H) - 0.5
			ray := func(i int) (float32, float32) {
				t := (float64(i) + 0.5) / float64(steps)
				return vol.Density(vx, vy, t*float64(vol.Size.Depth())-0.5), float32(t)
			}

			var color [4]float32
			var depth float32
			var hit bool
			if mode == ModeMIP {
				color, depth, hit = mip(ray, steps, float32(iso))
			} else {
				color, depth, hit = composite(ray, steps, float32(iso), rate)
			}
			if hit {
				dst.Set(x, y, color)
				dst.SetDepth(x, y, depth)
			}
		}
	}

	return rc.Textures.ClearActiveTarget()
}

// mip keeps the maximum density along the ray.
func mip(ray func(int) (float32, float32), steps int, iso float32) ([4]float32, float32, bool) {
	var best, at float32
	for i := 0; i < steps; i++ {
		d, t := ray(i)
		if d > best {
			best, at = d, t
		}
	}
	if best < iso || best == 0 {
		return [4]float32{}, 1, false
	}
	return [4]float32{best, best, best, 1}, at, true
}

// composite blends samples front to back.
func composite(ray func(int) (float32, float32), steps int, iso float32, rate float64) ([4]float32, float32, bool) {
	var out [4]float32
	depth := float32(1)
	hit := false
	for i := 0; i < steps && out[3] < opaque; i++ {
		d, t := ray(i)
		if d < iso || d == 0 {
			continue
		}
		if !hit {
			hit, depth = true, t
		}
		// opacity correction keeps the image stable across sampling rates
		alpha := 1 - float32(math.Pow(float64(1-d), 1/rate))
		w := (1 - out[3]) * alpha
		out[0] += w * d
		out[1] += w * d
		out[2] += w * d
		out[3] += w
	}
	return out, depth, hit
}

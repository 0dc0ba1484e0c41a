// Package depthoffield blurs an image by distance from the nearest surface.
package depthoffield

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// TypeName is the registered processor type.
const TypeName = "DepthOfField"

var (
	DepthThreshold = identifier.Intern("set.depthOfFieldThreshold")
	BlurRadius     = identifier.Intern("set.depthOfFieldRadius")

	Inport  = identifier.Intern("image.inport")
	Outport = identifier.Intern("image.outport")

	shadeTexUnit = identifier.Intern("shadeTexUnit")
	depthTexUnit = identifier.Intern("depthTexUnit")
)

// DepthOfField keeps texels near the front in focus and blurs the rest.
//
// Depth values are first normalized to the range actually covered by the
// input (analyzeDepthBuffer). A texel whose normalized depth is at or below
// the threshold is copied; deeper texels get a box blur whose radius grows
// linearly up to the configured maximum at the far end of the range.
type DepthOfField struct {
	processor.Base

	threshold *property.Property
	radius    *property.Property

	minDepth, maxDepth float32
}

// New creates a depth of field filter.
func New(id identifier.Identifier) (processor.Processor, error) {
	d := &DepthOfField{
		Base:      processor.NewBase(id, TypeName),
		threshold: property.NewFloat(DepthThreshold, "Depth Threshold", 0.5, 0, 1),
		radius:    property.NewInt(BlurRadius, "Blur Radius", 3, 0, 16, property.WithLevelOfDetail(property.Detailed)),
	}
	d.SetInfo(processor.Info{
		Category:    "Image Processing",
		Description: "Performs a depth of field rendering.",
	})
	d.CreateInport(Inport.String(), port.ImageType)
	d.CreateOutport(Outport.String(), port.ImageType)

	for _, p := range []*property.Property{d.threshold, d.radius} {
		if err := d.AddProperty(p); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SetDepthThreshold sets the focus threshold.
func (d *DepthOfField) SetDepthThreshold(t float64) error {
	return d.threshold.Set(t)
}

// DepthRange returns the depth range found by the last Process call.
func (d *DepthOfField) DepthRange() (float32, float32) {
	return d.minDepth, d.maxDepth
}

// Process writes the filtered image into the output target.
func (d *DepthOfField) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	src, source, err := rc.Surface(m, Inport)
	if err != nil {
		return err
	}
	dst, dest, err := rc.Surface(m, Outport)
	if err != nil {
		return err
	}

	if err := rc.Textures.SetActiveTarget(dest, "DepthOfField::process"); err != nil {
		return err
	}
	d.analyzeDepthBuffer(src)

	// colour and depth of the same source target go through separate units
	for _, unit := range []identifier.Identifier{shadeTexUnit, depthTexUnit} {
		if _, err := rc.Units.Bind(unit, source); err != nil {
			return errors.Join(err, rc.Textures.ClearActiveTarget())
		}
	}

	threshold, _ := property.Value[float64](d.threshold)
	maxRadius, _ := property.Value[int](d.radius)
	span := d.maxDepth - d.minDepth

	dst.Clear()
	for y := 0; y < dst.Size.H; y++ {
		for x := 0; x < dst.Size.W; x++ {
			sx := x * src.Size.W / dst.Size.W
			sy := y * src.Size.H / dst.Size.H
			depth := src.DepthAt(sx, sy)
			dst.SetDepth(x, y, depth)

			r := 0
			if depth < 1 && span > 0 && threshold < 1 {
				nd := float64((depth - d.minDepth) / span)
				if nd > threshold {
					r = int(math.Round(float64(maxRadius) * (nd - threshold) / (1 - threshold)))
				}
			}
			if r == 0 {
				dst.Set(x, y, src.At(sx, sy))
				continue
			}
			dst.Set(x, y, boxBlur(src, sx, sy, r))
		}
	}

	rc.Log().Debug("Depth of field applied",
		zap.Float32("min_depth", d.minDepth),
		zap.Float32("max_depth", d.maxDepth))
	return rc.Textures.ClearActiveTarget()
}

// analyzeDepthBuffer records the depth range covered by geometry in src.
func (d *DepthOfField) analyzeDepthBuffer(src *texture.Surface) {
	lo, hi, ok := src.DepthRange()
	if !ok {
		lo, hi = 0, 1
	}
	d.minDepth, d.maxDepth = lo, hi
}

func boxBlur(src *texture.Surface, cx, cy, r int) [4]float32 {
	var sum [4]float32
	n := 0
	for y := max(0, cy-r); y <= min(src.Size.H-1, cy+r); y++ {
		for x := max(0, cx-r); x <= min(src.Size.W-1, cx+r); x++ {
			c := src.At(x, y)
			for i := range sum {
				sum[i] += c[i]
			}
			n++
		}
	}
	for i := range sum {
		sum[i] /= float32(n)
	}
	return sum
}

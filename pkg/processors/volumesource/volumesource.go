// Package volumesource provides a processor that synthesizes a density volume.
//
// The volume is written into a persistent 3D target so it is generated once
// and reused by every frame until the size or shape changes.
package volumesource

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// TypeName is the registered processor type.
const TypeName = "VolumeSource"

// Shapes understood by the generator.
const (
	ShapeSphere   = "sphere"
	ShapeCube     = "cube"
	ShapeGradient = "gradient"
)

var (
	// VolumeSize is the edge length in voxels.
	VolumeSize = identifier.Intern("set.volumeSize")
	// VolumeShape selects the generated dataset.
	VolumeShape = identifier.Intern("set.volumeShape")
	// CreateVolume asks the source to regenerate; a string content replaces the shape.
	CreateVolume = identifier.Intern("volume.create")
	// Outport carries the generated volume.
	Outport = identifier.Intern("volume.outport")
)

// VolumeSource generates a cubic density volume.
type VolumeSource struct {
	processor.Base

	size  *property.Property
	shape *property.Property

	dirty     bool
	target    texture.Handle
	generated int
}

// New creates a volume source.
func New(id identifier.Identifier) (processor.Processor, error) {
	v := &VolumeSource{
		Base:  processor.NewBase(id, TypeName),
		size:  property.NewInt(VolumeSize, "Volume Size", 32, 4, 256),
		shape: property.NewString(VolumeShape, "Volume Shape", ShapeSphere),
		dirty: true,
	}
	v.SetInfo(processor.Info{
		Category:    "Volume",
		Description: "Generates a synthetic density volume.",
	})
	v.CreateOutport(Outport.String(), port.VolumeType, processor.Persistent())

	for _, p := range []*property.Property{v.size, v.shape} {
		if err := v.AddProperty(p); err != nil {
			return nil, err
		}
		p.OnChange(func(*property.Property, interface{}, interface{}) { v.dirty = true })
	}
	v.On(CreateVolume, v.handleCreate)
	return v, nil
}

func (v *VolumeSource) handleCreate(msg message.Message) {
	if shape, ok := message.ContentAs[string](msg); ok && shape != "" {
		if err := v.shape.Set(shape); err != nil {
			v.Logger().Warn("Ignoring volume.create", zap.Error(err))
			return
		}
	}
	v.dirty = true
}

// OutputSize returns the cubic volume size.
func (v *VolumeSource) OutputSize(identifier.Identifier, texture.Size) texture.Size {
	n, _ := property.Value[int](v.size)
	return texture.Size3D(n, n, n)
}

// Generated returns how many times the volume has been rebuilt.
func (v *VolumeSource) Generated() int {
	return v.generated
}

// Process regenerates the volume when a property changed or the target was replaced.
func (v *VolumeSource) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	dst, h, err := rc.Surface(m, Outport)
	if err != nil {
		return err
	}
	if !v.dirty && h == v.target {
		return nil
	}

	shape, _ := property.Value[string](v.shape)
	density, err := densityFunc(shape)
	if err != nil {
		return err
	}

	size := dst.Size
	for z := 0; z < size.Depth(); z++ {
		for y := 0; y < size.H; y++ {
			for x := 0; x < size.W; x++ {
				d := density(
					normalized(x, size.W),
					normalized(y, size.H),
					normalized(z, size.Depth()))
				dst.SetVoxel(x, y, z, [4]float32{d, d, d, d})
			}
		}
	}

	v.dirty = false
	v.target = h
	v.generated++
	rc.Log().Debug("Generated volume",
		zap.String("shape", shape),
		zap.String("size", size.String()))
	return nil
}

// normalized maps a voxel index to the voxel centre in [-1, 1].
func normalized(i, n int) float64 {
	return (float64(i)+0.5)/float64(n)*2 - 1
}

func densityFunc(shape string) (func(x, y, z float64) float32, error) {
	switch shape {
	case ShapeSphere:
		return func(x, y, z float64) float32 {
			r := math.Sqrt(x*x + y*y + z*z)
			return float32(math.Max(0, 1-r))
		}, nil
	case ShapeCube:
		return func(x, y, z float64) float32 {
			if math.Abs(x) <= 0.5 && math.Abs(y) <= 0.5 && math.Abs(z) <= 0.5 {
				return 1
			}
			return 0
		}, nil
	case ShapeGradient:
		return func(x, _, _ float64) float32 {
			return float32((x + 1) / 2)
		}, nil
	default:
		return nil, fmt.Errorf("volume shape %q: %w", shape, prismerrors.ErrOutOfRange)
	}
}

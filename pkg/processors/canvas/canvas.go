// Package canvas provides the network sink that holds the displayed image.
package canvas

import (
	"context"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// TypeName is the registered processor type.
const TypeName = "Canvas"

var (
	Background = identifier.Intern("set.backgroundColor")

	Inport  = identifier.Intern("image.inport")
	Outport = identifier.Intern("image.outport")

	// Updated is broadcast after the canvas image changed; content is the output handle.
	Updated = identifier.Intern("canvas.updated")
)

// Canvas copies its input over a background colour into a persistent target.
// The target outlives the frame, so a viewer can read the last good image
// between frames. When the input is invalid the executor skips the canvas
// and clears the target.
type Canvas struct {
	processor.Base

	background *property.Property
	target     texture.Handle
}

// New creates a canvas.
func New(id identifier.Identifier) (processor.Processor, error) {
	c := &Canvas{
		Base:       processor.NewBase(id, TypeName),
		background: property.New(Background, "Background", property.Color{0, 0, 0, 1}, property.WithRange(0, 1)),
	}
	c.SetInfo(processor.Info{
		Category:    "Output",
		Description: "Holds the displayed image across frames.",
	})
	c.CreateInport(Inport.String(), port.ImageType)
	c.CreateOutport(Outport.String(), port.ImageType, processor.Persistent())
	if err := c.AddProperty(c.background); err != nil {
		return nil, err
	}
	return c, nil
}

// Target returns the handle of the displayed image after the last frame.
func (c *Canvas) Target() texture.Handle {
	return c.target
}

// Process composites the input over the background.
func (c *Canvas) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	src, _, err := rc.Surface(m, Inport)
	if err != nil {
		return err
	}
	dst, dest, err := rc.Surface(m, Outport)
	if err != nil {
		return err
	}
	if err := rc.Textures.SetActiveTarget(dest, "Canvas::process"); err != nil {
		return err
	}

	bg, _ := property.Value[property.Color](c.background)
	for y := 0; y < dst.Size.H; y++ {
		for x := 0; x < dst.Size.W; x++ {
			in := src.At(x, y)
			var out [4]float32
			for i := 0; i < 3; i++ {
				out[i] = in[i] + (1-in[3])*float32(bg[i])
			}
			out[3] = in[3] + (1-in[3])*float32(bg[3])
			dst.Set(x, y, out)
			dst.SetDepth(x, y, src.DepthAt(x, y))
		}
	}

	if err := rc.Textures.ClearActiveTarget(); err != nil {
		return err
	}
	c.target = dest
	rc.Post(message.New(Updated, dest))
	return nil
}

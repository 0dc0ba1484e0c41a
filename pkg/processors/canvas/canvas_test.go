package canvas_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Prism/pkg/executor"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/processors/canvas"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

type translucent struct {
	processor.Base
}

func (s *translucent) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	dst, _, err := rc.Surface(m, identifier.Intern("image.outport"))
	if err != nil {
		return err
	}
	dst.Set(0, 0, [4]float32{0.5, 0, 0, 0.5})
	dst.SetDepth(0, 0, 0.25)
	return nil
}

func TestCompositesOverBackground(t *testing.T) {
	src := &translucent{Base: processor.NewBase(identifier.Intern("source"), "Translucent")}
	src.CreateOutport("image.outport", port.ImageType)
	c, err := canvas.New(identifier.Intern("canvas"))
	require.NoError(t, err)

	net := network.New(nil)
	require.NoError(t, net.AddProcessor(src))
	require.NoError(t, net.AddProcessor(c))
	require.NoError(t, net.Connect(port.NewRef("source", "image.outport"), port.NewRef("canvas", "image.inport")))
	require.NoError(t, net.SetProperty(identifier.Intern("canvas"), canvas.Background, property.Color{0, 0, 1, 1}))

	textures := texture.NewContainer(texture.NewMemoryDriver(), texture.DefaultContainerConfig())
	exec := executor.New(net, textures, executor.DefaultConfig().WithFrameSize(texture.Size2D(2, 2)))
	report, err := exec.RenderFrame(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK())

	target := c.(*canvas.Canvas).Target()
	assert.True(t, textures.IsPersistent(target))
	img, err := textures.Surface(target)
	require.NoError(t, err)

	assert.Equal(t, [4]float32{0.5, 0, 0.5, 1}, img.At(0, 0))
	assert.Equal(t, float32(0.25), img.DepthAt(0, 0))
	assert.Equal(t, [4]float32{0, 0, 1, 1}, img.At(1, 1))
	assert.Equal(t, texture.InvalidHandle, textures.ActiveTarget())
}

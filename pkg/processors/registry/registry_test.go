package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Prism/pkg/executor"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processors/canvas"
	"github.com/wehubfusion/Prism/pkg/processors/raycaster"
	"github.com/wehubfusion/Prism/pkg/processors/registry"
	"github.com/wehubfusion/Prism/pkg/processors/volumesource"
	"github.com/wehubfusion/Prism/pkg/texture"
)

func TestFactoryRegistersBuiltins(t *testing.T) {
	factory := registry.NewFactory()
	assert.Equal(t, []string{"Canvas", "DepthOfField", "Raycaster", "ScriptFilter", "VolumeSource"}, factory.RegisteredTypes())

	for _, typeName := range factory.RegisteredTypes() {
		p, err := factory.Create(typeName, identifier.Intern("x"))
		require.NoError(t, err, typeName)
		assert.Equal(t, typeName, p.TypeName())
		assert.NotEmpty(t, p.Info().Category, typeName)
	}
}

type pipeline struct {
	net      *network.Network
	textures *texture.Container
	exec     *executor.Executor
	canvas   *canvas.Canvas
}

func buildPipeline(t *testing.T) *pipeline {
	t.Helper()
	factory := registry.NewFactory()
	net := network.New(nil)

	stages := []struct{ typeName, id string }{
		{"VolumeSource", "volume"},
		{"Raycaster", "raycaster"},
		{"DepthOfField", "dof"},
		{"ScriptFilter", "script"},
		{"Canvas", "canvas"},
	}
	for _, s := range stages {
		p, err := factory.Create(s.typeName, identifier.Intern(s.id))
		require.NoError(t, err)
		require.NoError(t, net.AddProcessor(p))
	}
	links := [][2]port.Ref{
		{port.NewRef("volume", "volume.outport"), port.NewRef("raycaster", "volume.inport")},
		{port.NewRef("raycaster", "image.outport"), port.NewRef("dof", "image.inport")},
		{port.NewRef("dof", "image.outport"), port.NewRef("script", "image.inport")},
		{port.NewRef("script", "image.outport"), port.NewRef("canvas", "image.inport")},
	}
	for _, l := range links {
		require.NoError(t, net.Connect(l[0], l[1]))
	}
	require.NoError(t, net.SetProperty(identifier.Intern("volume"), volumesource.VolumeSize, 8))
	require.NoError(t, net.Validate())

	textures := texture.NewContainer(texture.NewMemoryDriver(), texture.DefaultContainerConfig())
	c, _ := net.Processor(identifier.Intern("canvas"))
	return &pipeline{
		net:      net,
		textures: textures,
		exec:     executor.New(net, textures, executor.DefaultConfig().WithFrameSize(texture.Size2D(16, 16))),
		canvas:   c.(*canvas.Canvas),
	}
}

func TestVolumeRenderingPipeline(t *testing.T) {
	p := buildPipeline(t)

	var updates []texture.Handle
	p.net.Distributor().Subscribe(message.ReceiverFunc(identifier.Intern("viewer"), func(msg message.Message) {
		if h, ok := message.ContentAs[texture.Handle](msg); ok {
			updates = append(updates, h)
		}
	}), canvas.Updated)

	for i := 0; i < 2; i++ {
		report, err := p.exec.RenderFrame(context.Background())
		require.NoError(t, err)
		require.True(t, report.OK(), "%+v", report.Results)
	}

	order, err := p.net.OrderIDs()
	require.NoError(t, err)
	assert.Equal(t, []identifier.Identifier{
		identifier.Intern("volume"),
		identifier.Intern("raycaster"),
		identifier.Intern("dof"),
		identifier.Intern("script"),
		identifier.Intern("canvas"),
	}, order)

	require.Len(t, updates, 2)
	assert.Equal(t, updates[0], updates[1], "canvas keeps its target across frames")
	assert.Equal(t, p.canvas.Target(), updates[1])

	img, err := p.textures.Surface(p.canvas.Target())
	require.NoError(t, err)
	center := img.At(8, 8)
	assert.Greater(t, center[0], float32(0.5))
	assert.Equal(t, float32(1), center[3])
	assert.Equal(t, [4]float32{0, 0, 0, 1}, img.At(0, 0), "background shows through")

	// only the persistent volume and canvas targets outlive the frame
	assert.Equal(t, 2, p.textures.Stats().Live)
}

func TestBrokenStageClearsCanvas(t *testing.T) {
	p := buildPipeline(t)
	_, err := p.exec.RenderFrame(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.net.SetProperty(identifier.Intern("raycaster"), raycaster.RaycastingMode, "bogus"))
	report, err := p.exec.RenderFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(executor.StatusFailed))
	assert.Equal(t, 3, report.Count(executor.StatusSkipped))

	img, err := p.textures.Surface(p.canvas.Target())
	require.NoError(t, err)
	_, _, ok := img.DepthRange()
	assert.False(t, ok)
	assert.Equal(t, [4]float32{}, img.At(8, 8))
}

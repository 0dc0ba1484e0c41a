package scriptfilter_test

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
	"github.com/wehubfusion/Prism/pkg/processors/scriptfilter"
	"github.com/wehubfusion/Prism/pkg/texture"
)

var scriptID = identifier.Intern("script")

type flat struct {
	processor.Base
}

func (f *flat) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	dst, _, err := rc.Surface(m, identifier.Intern("image.outport"))
	if err != nil {
		return err
	}
	for y := 0; y < dst.Size.H; y++ {
		for x := 0; x < dst.Size.W; x++ {
			dst.Set(x, y, [4]float32{0.25, 0.5, 0.75, 0.5})
			dst.SetDepth(x, y, 0.3)
		}
	}
	return nil
}

type sink struct {
	processor.Base
	image *texture.Surface
}

func (s *sink) Process(_ context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	src, _, err := rc.Surface(m, identifier.Intern("image.inport"))
	if err != nil {
		return err
	}
	s.image = texture.NewSurface(src.Size)
	s.image.CopyFrom(src)
	return nil
}

type fixture struct {
	net  *network.Network
	exec *executor.Executor
	out  *sink
}

func setup(t *testing.T) *fixture {
	t.Helper()
	src := &flat{Base: processor.NewBase(identifier.Intern("source"), "Flat")}
	src.CreateOutport("image.outport", port.ImageType)
	out := &sink{Base: processor.NewBase(identifier.Intern("sink"), "Sink")}
	out.CreateInport("image.inport", port.ImageType)
	filter, err := scriptfilter.New(scriptID)
	require.NoError(t, err)

	net := network.New(nil)
	for _, p := range []processor.Processor{src, filter, out} {
		require.NoError(t, net.AddProcessor(p))
	}
	require.NoError(t, net.Connect(port.NewRef("source", "image.outport"), port.NewRef("script", "image.inport")))
	require.NoError(t, net.Connect(port.NewRef("script", "image.outport"), port.NewRef("sink", "image.inport")))

	textures := texture.NewContainer(texture.NewMemoryDriver(), texture.DefaultContainerConfig())
	return &fixture{
		net:  net,
		exec: executor.New(net, textures, executor.DefaultConfig().WithFrameSize(texture.Size2D(4, 4))),
		out:  out,
	}
}

func (f *fixture) run(t *testing.T, script string) executor.Result {
	t.Helper()
	require.NoError(t, f.net.SetProperty(scriptID, scriptfilter.ScriptSource, script))
	report, err := f.exec.RenderFrame(context.Background())
	require.NoError(t, err)
	res, ok := report.Result(scriptID)
	require.True(t, ok)
	return res
}

func TestDefaultScriptPassesThrough(t *testing.T) {
	f := setup(t)
	res := f.run(t, scriptfilter.DefaultScript)
	require.Equal(t, executor.StatusSuccess, res.Status, res.Error)

	assert.Equal(t, [4]float32{0.25, 0.5, 0.75, 0.5}, f.out.image.At(2, 2))
	assert.InDelta(t, 0.3, f.out.image.DepthAt(2, 2), 1e-6)
}

func TestThreeChannelResultKeepsAlpha(t *testing.T) {
	f := setup(t)
	res := f.run(t, `function shade(r, g, b, a, depth) { return [1 - r, 1 - g, depth * 2]; }`)
	require.Equal(t, executor.StatusSuccess, res.Status, res.Error)

	c := f.out.image.At(0, 0)
	assert.InDelta(t, 0.75, c[0], 1e-6)
	assert.InDelta(t, 0.5, c[1], 1e-6)
	assert.InDelta(t, 0.6, c[2], 1e-6)
	assert.InDelta(t, 0.5, c[3], 1e-6)
}

func TestResultIsClamped(t *testing.T) {
	f := setup(t)
	res := f.run(t, `function shade() { return [2, -1, 0.5, 7]; }`)
	require.Equal(t, executor.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, [4]float32{1, 0, 0.5, 1}, f.out.image.At(1, 1))
}

func TestScriptFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		kind   scriptfilter.ErrorKind
		text   string
	}{
		{"syntax", `function shade(r, g { return }`, scriptfilter.KindSyntax, ""},
		{"no shade", `var x = 1;`, scriptfilter.KindContract, "does not define a shade function"},
		{"throws", `function shade() { throw new Error("boom"); }`, scriptfilter.KindRuntime, "boom"},
		{"wrong arity", `function shade(r) { return [r]; }`, scriptfilter.KindContract, "1 channels"},
		{"not an array", `function shade() { return "red"; }`, scriptfilter.KindContract, "array of numbers"},
		{"eval", `function shade() { return eval("[1,1,1]"); }`, scriptfilter.KindRuntime, "eval is not allowed"},
		{"require", `function shade() { return require("fs"); }`, scriptfilter.KindRuntime, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			res := f.run(t, tt.script)
			assert.Equal(t, executor.StatusFailed, res.Status)

			var se *scriptfilter.ScriptError
			require.ErrorAs(t, res.Err, &se)
			assert.Equal(t, tt.kind, se.Kind)
			if tt.text != "" {
				assert.Contains(t, se.Error(), tt.text)
			}

			sink, _ := f.execResult(t)
			assert.Equal(t, executor.StatusSkipped, sink)
		})
	}
}

func (f *fixture) execResult(t *testing.T) (executor.Status, bool) {
	t.Helper()
	report, err := f.exec.RenderFrame(context.Background())
	require.NoError(t, err)
	res, ok := report.Result(identifier.Intern("sink"))
	return res.Status, ok
}

func TestRuntimeErrorReportsPixel(t *testing.T) {
	f := setup(t)
	res := f.run(t, `var n = 0; function shade(r, g, b, a) { if (++n == 6) throw new Error("sixth"); return [r, g, b, a]; }`)

	var se *scriptfilter.ScriptError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, 1, se.X)
	assert.Equal(t, 1, se.Y)
	assert.Contains(t, se.Error(), "at pixel (1, 1)")
}

func TestRunawayScriptIsInterrupted(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.net.SetProperty(scriptID, scriptfilter.ScriptTimeout, 20))
	res := f.run(t, `function shade() { for (;;) {} }`)

	var se *scriptfilter.ScriptError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, scriptfilter.KindTimeout, se.Kind)

	res = f.run(t, scriptfilter.DefaultScript)
	assert.Equal(t, executor.StatusSuccess, res.Status, "the runtime is usable after an interrupt")
}

func TestFixingScriptRecovers(t *testing.T) {
	f := setup(t)
	res := f.run(t, `function shade( {`)
	require.Equal(t, executor.StatusFailed, res.Status)

	res = f.run(t, `function shade(r, g, b, a) { return [r, r, r, a]; }`)
	require.Equal(t, executor.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, [4]float32{0.25, 0.25, 0.25, 0.5}, f.out.image.At(3, 3))
}

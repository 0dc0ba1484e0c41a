// Package scriptfilter provides an image filter programmed in JavaScript.
//
// The script must define
//
//	function shade(r, g, b, a, depth) { return [r, g, b, a]; }
//
// which is called once per texel with channel values in [0, 1]. It may
// return three or four numbers; a missing alpha keeps the input alpha.
// Depth passes through unchanged. Scripts run in a goja runtime without
// module loading, timers or eval, and are interrupted when a frame exceeds
// the configured time budget.
package scriptfilter

import (
	"context"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// TypeName is the registered processor type.
const TypeName = "ScriptFilter"

// DefaultScript passes every texel through.
const DefaultScript = `function shade(r, g, b, a, depth) { return [r, g, b, a]; }`

var (
	ScriptSource  = identifier.Intern("set.scriptSource")
	ScriptTimeout = identifier.Intern("set.scriptTimeout")

	Inport  = identifier.Intern("image.inport")
	Outport = identifier.Intern("image.outport")
)

// ScriptFilter runs a shade function over every texel of its input.
type ScriptFilter struct {
	processor.Base

	source  *property.Property
	timeout *property.Property

	vm         *goja.Runtime
	shade      goja.Callable
	compiled   bool
	compileErr error
}

// New creates a script filter running DefaultScript.
func New(id identifier.Identifier) (processor.Processor, error) {
	s := &ScriptFilter{
		Base:    processor.NewBase(id, TypeName),
		source:  property.NewString(ScriptSource, "Script", DefaultScript),
		timeout: property.NewInt(ScriptTimeout, "Time Budget (ms)", 2000, 1, 60000, property.WithLevelOfDetail(property.All)),
	}
	s.SetInfo(processor.Info{
		Category:    "Image Processing",
		Description: "Applies a JavaScript shade function to every texel.",
	})
	s.CreateInport(Inport.String(), port.ImageType)
	s.CreateOutport(Outport.String(), port.ImageType)

	if err := s.AddProperty(s.source); err != nil {
		return nil, err
	}
	if err := s.AddProperty(s.timeout); err != nil {
		return nil, err
	}
	s.source.OnChange(func(*property.Property, interface{}, interface{}) { s.compiled = false })
	return s, nil
}

// Compile compiles the current script. Process compiles lazily; calling
// Compile directly surfaces syntax errors early.
func (s *ScriptFilter) Compile() error {
	if s.compiled {
		return s.compileErr
	}
	s.compiled = true
	s.vm, s.shade, s.compileErr = nil, nil, nil

	src, _ := property.Value[string](s.source)
	prog, err := goja.Compile("shade.js", src, false)
	if err != nil {
		s.compileErr = wrapError(err)
		return s.compileErr
	}
	vm, err := newRuntime()
	if err != nil {
		s.compileErr = err
		return err
	}
	if _, err := vm.RunProgram(prog); err != nil {
		s.compileErr = wrapError(err)
		return s.compileErr
	}
	shade, ok := goja.AssertFunction(vm.Get("shade"))
	if !ok {
		s.compileErr = contractError("script does not define a shade function")
		return s.compileErr
	}
	s.vm, s.shade = vm, shade
	return nil
}

// Process runs the shade function into the output target.
func (s *ScriptFilter) Process(ctx context.Context, rc *processor.RenderContext, m *port.Mapping) error {
	src, _, err := rc.Surface(m, Inport)
	if err != nil {
		return err
	}
	dst, dest, err := rc.Surface(m, Outport)
	if err != nil {
		return err
	}
	if err := s.Compile(); err != nil {
		return err
	}

	budget, _ := property.Value[int](s.timeout)
	s.vm.ClearInterrupt()
	timer := time.AfterFunc(time.Duration(budget)*time.Millisecond, func() {
		s.vm.Interrupt("frame time budget exceeded")
	})
	stop := context.AfterFunc(ctx, func() { s.vm.Interrupt(ctx.Err()) })
	defer func() {
		timer.Stop()
		stop()
		s.vm.ClearInterrupt()
	}()

	if err := rc.Textures.SetActiveTarget(dest, "ScriptFilter::process"); err != nil {
		return err
	}

	start := time.Now()
	err = s.run(src, dst)
	if cerr := rc.Textures.ClearActiveTarget(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	rc.Log().Debug("Script filter applied", zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *ScriptFilter) run(src, dst *texture.Surface) error {
	undefined := goja.Undefined()
	args := make([]goja.Value, 5)
	for y := 0; y < dst.Size.H; y++ {
		for x := 0; x < dst.Size.W; x++ {
			sx := x * src.Size.W / dst.Size.W
			sy := y * src.Size.H / dst.Size.H
			in := src.At(sx, sy)
			depth := src.DepthAt(sx, sy)
			for i, c := range in {
				args[i] = s.vm.ToValue(float64(c))
			}
			args[4] = s.vm.ToValue(float64(depth))

			res, err := s.shade(undefined, args...)
			if err != nil {
				se := wrapError(err)
				se.X, se.Y, se.atPixel = x, y, true
				return se
			}
			out, serr := s.texel(res, in[3])
			if serr != nil {
				serr.X, serr.Y, serr.atPixel = x, y, true
				return serr
			}
			dst.Set(x, y, out)
			dst.SetDepth(x, y, depth)
		}
	}
	return nil
}

// texel converts a shade result into a colour.
func (s *ScriptFilter) texel(v goja.Value, alpha float32) ([4]float32, *ScriptError) {
	var out [4]float32
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return out, contractError("shade returned %v", v)
	}
	if obj, ok := v.(*goja.Object); !ok || obj.ClassName() != "Array" {
		return out, contractError("shade must return an array of numbers, got %s", v.String())
	}
	var channels []float64
	if err := s.vm.ExportTo(v, &channels); err != nil {
		return out, contractError("shade must return an array of numbers: %v", err)
	}
	if len(channels) != 3 && len(channels) != 4 {
		return out, contractError("shade returned %d channels, want 3 or 4", len(channels))
	}
	out[3] = alpha
	for i, c := range channels {
		out[i] = float32(min(1, max(0, c)))
	}
	return out, nil
}

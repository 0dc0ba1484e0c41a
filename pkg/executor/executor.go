// Package executor drives a processor network one frame at a time.
//
// A frame moves through Idle -> Resolving -> Executing -> Idle. Resolving
// fetches the network's cached topological order; a dependency cycle stops
// the frame there. Executing calls each processor's Process in order on the
// calling goroutine, with a freshly built port.Mapping.
//
// Failures are contained per processor. A processor with a missing required
// connection, or whose required input was not produced this frame, is
// skipped. A processor whose Process returns an error or panics is marked
// failed. In both cases its persistent outputs are cleared and none of its
// outputs count as produced, so downstream processors skip too instead of
// reading stale pixels. The rest of the frame continues.
//
// Frames cannot be cancelled once started; the context is checked only
// before a frame begins.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// FrameRendered is broadcast after every frame with the *FrameReport as content.
var FrameRendered = identifier.Intern("frame.rendered")

// State is the executor state.
type State int32

const (
	Idle State = iota
	Resolving
	Executing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Executing:
		return "executing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Executor renders frames of a network.
type Executor struct {
	net      *network.Network
	textures *texture.Container
	units    *texture.UnitMapper
	config   Config
	logger   *zap.Logger
	reporter prismerrors.Reporter
	tracer   trace.Tracer
	metrics  MetricsCollector

	state      atomic.Int32
	frame      uint64
	persistent map[port.Ref]texture.Handle
	observer   network.ObserverHandle
	hooks      []func(context.Context)
}

// New creates an executor for net drawing into textures.
func New(net *network.Network, textures *texture.Container, config Config) *Executor {
	config.Validate()

	var metrics MetricsCollector = &NoOpMetricsCollector{}
	if config.EnableMetrics {
		metrics = NewMetricsCollector()
	}

	e := &Executor{
		net:        net,
		textures:   textures,
		units:      texture.NewUnitMapper(textures.Driver(), config.TextureUnits),
		config:     config,
		logger:     config.Logger,
		reporter:   config.Reporter,
		tracer:     otel.Tracer("prism/executor"),
		metrics:    metrics,
		persistent: make(map[port.Ref]texture.Handle),
	}
	e.observer = net.AddObserver(network.ObserverFuncs{
		OnProcessorRemoved: e.releaseProcessor,
	})
	return e
}

// State returns the current state. It is safe to call from any goroutine.
func (e *Executor) State() State {
	return State(e.state.Load())
}

// Frame returns the number of the last frame started.
func (e *Executor) Frame() uint64 {
	return e.frame
}

// Metrics returns the metrics collector.
func (e *Executor) Metrics() MetricsCollector {
	return e.metrics
}

// PersistentTarget returns the target kept for a persistent output port.
func (e *Executor) PersistentTarget(ref port.Ref) (texture.Handle, bool) {
	h, ok := e.persistent[ref]
	return h, ok
}

// Close detaches from the network and frees persistent targets.
func (e *Executor) Close() error {
	e.net.RemoveObserver(e.observer)
	var errs []error
	for ref, h := range e.persistent {
		errs = append(errs, e.textures.Free(h))
		delete(e.persistent, ref)
	}
	return errors.Join(errs...)
}

func (e *Executor) releaseProcessor(id identifier.Identifier) {
	for ref, h := range e.persistent {
		if ref.Processor != id {
			continue
		}
		if err := e.textures.Free(h); err != nil {
			e.logger.Warn("Failed to free persistent target",
				zap.String("port", ref.String()),
				zap.Error(err))
		}
		delete(e.persistent, ref)
	}
}

// frameState tracks what one frame has produced and allocated.
type frameState struct {
	number   uint64
	produced map[port.Ref]texture.Handle
	scratch  []texture.Handle
}

// RenderFrame executes every processor once, in topological order.
//
// It returns ErrFrameInProgress when called while a frame is running
// (from inside Process or a message handler), the context error when ctx
// is already done, and ErrCyclicDependency when the network cannot be
// ordered. Per-processor failures are reported in the FrameReport, not as
// an error.
func (e *Executor) RenderFrame(ctx context.Context) (*FrameReport, error) {
	if !e.state.CompareAndSwap(int32(Idle), int32(Resolving)) {
		return nil, prismerrors.ErrFrameInProgress
	}
	defer e.state.Store(int32(Idle))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.frame++
	fs := &frameState{
		number:   e.frame,
		produced: make(map[port.Ref]texture.Handle),
	}
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "executor.RenderFrame",
		trace.WithAttributes(attribute.Int64("frame", int64(fs.number))))
	defer span.End()

	order, err := e.net.TopologicalOrder()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("Cannot order network", zap.Uint64("frame", fs.number), zap.Error(err))
		return nil, err
	}

	e.state.Store(int32(Executing))
	report := &FrameReport{
		ID:      uuid.New(),
		Frame:   fs.number,
		Started: start,
		Order:   make([]identifier.Identifier, len(order)),
		Results: make([]Result, 0, len(order)),
	}
	instances := make([]uuid.UUID, len(order))
	for i, p := range order {
		report.Order[i] = p.ID()
		instances[i], _ = e.net.InstanceID(p.ID())
	}

	for i, p := range order {
		if !e.present(p, instances[i]) {
			report.Results = append(report.Results, e.skipRemoved(p, fs))
			continue
		}
		report.Results = append(report.Results, e.runProcessor(ctx, p, fs, instances[i]))
	}

	for _, h := range fs.scratch {
		if err := e.textures.Free(h); err != nil {
			e.logger.Warn("Failed to free frame target", zap.Int("handle", int(h)), zap.Error(err))
		}
	}

	report.Duration = time.Since(start)
	e.metrics.RecordFrame(report.Duration.Nanoseconds())
	span.SetAttributes(
		attribute.Int("processors.failed", report.Count(StatusFailed)),
		attribute.Int("processors.skipped", report.Count(StatusSkipped)),
		attribute.Int64("frame.duration_ms", report.Duration.Milliseconds()))
	if report.OK() {
		span.SetStatus(codes.Ok, "Frame rendered")
	} else {
		span.SetStatus(codes.Error, "Frame rendered with failures")
	}

	e.logger.Debug("Rendered frame",
		zap.Uint64("frame", fs.number),
		zap.String("frame_id", report.ID.String()),
		zap.Duration("duration", report.Duration),
		zap.Int("failed", report.Count(StatusFailed)),
		zap.Int("skipped", report.Count(StatusSkipped)))

	e.net.Post(message.New(FrameRendered, report))
	return report, nil
}

// present reports whether p is still in the network as the same instance
// the frame was ordered with. Handlers run during Process may remove
// processors that are later in the order.
func (e *Executor) present(p processor.Processor, instance uuid.UUID) bool {
	cur, ok := e.net.InstanceID(p.ID())
	return ok && cur == instance
}

func (e *Executor) skipRemoved(p processor.Processor, fs *frameState) Result {
	err := processor.NewError(p, processor.PhaseResolve, fs.number,
		fmt.Errorf("removed during frame: %w", prismerrors.ErrUnknownProcessor))
	e.metrics.RecordSkipped()
	e.logger.Debug("Skipping removed processor",
		zap.String("processor", p.ID().String()),
		zap.Uint64("frame", fs.number))
	return SkippedResult(p.ID(), p.TypeName(), err)
}

func (e *Executor) runProcessor(ctx context.Context, p processor.Processor, fs *frameState, instance uuid.UUID) Result {
	logger := e.logger.With(zap.String("processor", p.ID().String()), zap.Uint64("frame", fs.number))

	ctx, span := e.tracer.Start(ctx, "processor.Process",
		trace.WithAttributes(
			attribute.String("processor.id", p.ID().String()),
			attribute.String("processor.type", p.TypeName())))
	defer span.End()

	m := port.NewMapping()
	if err := e.bindInputs(p, m, fs); err != nil {
		perr := processor.NewError(p, processor.PhaseResolve, fs.number, err)
		e.invalidateOutputs(p)
		e.metrics.RecordSkipped()
		span.SetStatus(codes.Error, "skipped")
		span.RecordError(perr)
		logger.Warn("Skipping processor", zap.Error(err))
		return SkippedResult(p.ID(), p.TypeName(), perr)
	}

	outputs, err := e.bindOutputs(p, m, fs)
	if err != nil {
		perr := processor.NewError(p, processor.PhaseResolve, fs.number, err)
		e.invalidateOutputs(p)
		e.metrics.RecordError()
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Cannot allocate outputs", zap.Error(err))
		return ErrorResult(p.ID(), p.TypeName(), 0, perr)
	}

	e.units.Reset()
	rc := &processor.RenderContext{
		Textures:  e.textures,
		Units:     e.units,
		Messages:  e.net.Distributor(),
		FrameSize: e.config.FrameSize,
		Frame:     fs.number,
		Logger:    logger,
	}

	start := time.Now()
	err = e.invoke(ctx, p, rc, m)
	elapsed := time.Since(start)

	if cerr := e.restoreState(p, logger); cerr != nil && err == nil {
		err = cerr
	}
	e.units.Reset()

	if err != nil {
		perr := processor.NewError(p, processor.PhaseProcess, fs.number, err)
		e.invalidateOutputs(p)
		e.metrics.RecordError()
		span.RecordError(perr)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Processor failed", zap.Duration("duration", elapsed), zap.Error(err))
		return ErrorResult(p.ID(), p.TypeName(), elapsed, perr)
	}

	if e.present(p, instance) {
		for ref, h := range outputs {
			fs.produced[ref] = h
		}
	}
	e.metrics.RecordProcessed(elapsed.Nanoseconds())
	span.SetStatus(codes.Ok, "processed")
	return SuccessResult(p.ID(), p.TypeName(), elapsed)
}

// bindInputs resolves every input to the target its upstream produced this
// frame. Unconnected or invalid optional inputs stay unbound.
func (e *Executor) bindInputs(p processor.Processor, m *port.Mapping, fs *frameState) error {
	for _, pt := range p.Ports() {
		if !pt.IsInput() {
			continue
		}
		c, connected := e.net.Incoming(pt.Ref())
		if !connected {
			if pt.Required {
				return fmt.Errorf("input %s: %w", pt.Name, prismerrors.ErrMissingConnection)
			}
			continue
		}
		h, ok := fs.produced[c.From]
		if !ok {
			if pt.Required {
				return fmt.Errorf("input %s fed by %s: %w", pt.Name, c.From, prismerrors.ErrUpstreamInvalid)
			}
			continue
		}
		m.Bind(pt.Name, h)
	}
	return nil
}

// bindOutputs allocates a target for every output. Persistent outputs keep
// their target while its size still matches.
func (e *Executor) bindOutputs(p processor.Processor, m *port.Mapping, fs *frameState) (map[port.Ref]texture.Handle, error) {
	outputs := make(map[port.Ref]texture.Handle)
	for _, pt := range p.Ports() {
		if pt.IsInput() {
			continue
		}
		size := e.outputSize(p, pt)
		ref := pt.Ref()

		if pt.Persistent {
			h, err := e.persistentTarget(ref, size)
			if err != nil {
				return nil, err
			}
			m.Bind(pt.Name, h)
			outputs[ref] = h
			continue
		}

		h, err := e.textures.Allocate(size)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", pt.Name, err)
		}
		fs.scratch = append(fs.scratch, h)
		m.Bind(pt.Name, h)
		outputs[ref] = h
	}
	return outputs, nil
}

func (e *Executor) persistentTarget(ref port.Ref, size texture.Size) (texture.Handle, error) {
	if h, ok := e.persistent[ref]; ok {
		if e.textures.Size(h) == size {
			return h, nil
		}
		if err := e.textures.Free(h); err != nil {
			e.logger.Warn("Failed to free resized persistent target", zap.String("port", ref.String()), zap.Error(err))
		}
		delete(e.persistent, ref)
	}
	h, err := e.textures.AllocateExact(size)
	if err != nil {
		return texture.InvalidHandle, fmt.Errorf("output %s: %w", ref.Port, err)
	}
	if err := e.textures.SetPersistent(h, true); err != nil {
		return texture.InvalidHandle, err
	}
	e.persistent[ref] = h
	return h, nil
}

func (e *Executor) outputSize(p processor.Processor, pt *port.Port) texture.Size {
	if hinter, ok := p.(processor.SizeHinter); ok {
		if size := hinter.OutputSize(pt.Name, e.config.FrameSize); size.Valid() {
			return size.Normalize()
		}
	}
	if pt.SizeHint.Valid() {
		return pt.SizeHint.Normalize()
	}
	return e.config.FrameSize
}

// invoke calls Process, turning a panic into an error.
func (e *Executor) invoke(ctx context.Context, p processor.Processor, rc *processor.RenderContext, m *port.Mapping) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", prismerrors.ErrProcessingFailed, r)
			e.reporter.Report(err, map[string]string{
				"kind":      "panic",
				"processor": p.ID().String(),
				"type":      p.TypeName(),
			})
		}
	}()
	if err := p.Process(ctx, rc, m); err != nil {
		return fmt.Errorf("%w: %w", prismerrors.ErrProcessingFailed, err)
	}
	return nil
}

// restoreState unbinds a target left active by Process. Leaving one bound
// breaks the Process contract.
func (e *Executor) restoreState(p processor.Processor, logger *zap.Logger) error {
	active := e.textures.ActiveTarget()
	if active == texture.InvalidHandle {
		return nil
	}
	verr := prismerrors.Violation(e.config.Debug, logger, e.reporter,
		"processor %s left target %d (%s) active", p.ID(), active, e.textures.Label(active))
	if err := e.textures.ClearActiveTarget(); err != nil {
		logger.Error("Failed to restore default target", zap.Error(err))
	}
	return verr
}

// invalidateOutputs clears persistent outputs so stale pixels are not shown.
func (e *Executor) invalidateOutputs(p processor.Processor) {
	for _, pt := range p.Ports() {
		if pt.IsInput() || !pt.Persistent {
			continue
		}
		h, ok := e.persistent[pt.Ref()]
		if !ok {
			continue
		}
		s, err := e.textures.Surface(h)
		if err != nil {
			continue
		}
		s.Clear()
	}
}

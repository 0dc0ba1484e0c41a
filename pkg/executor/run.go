package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
)

// BeforeFrame registers fn to run on the render goroutine before each frame
// started by Run. It is where work queued by other goroutines (remote
// commands) is applied.
func (e *Executor) BeforeFrame(fn func(ctx context.Context)) {
	e.hooks = append(e.hooks, fn)
}

// Run renders frames every interval until ctx is done. Cancellation never
// interrupts a frame; it only stops the next one from being scheduled.
// A network that cannot be ordered is logged and retried on the next tick.
func (e *Executor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Render loop started", zap.Duration("interval", interval))
	defer e.logger.Info("Render loop stopped", zap.Uint64("frames", e.frame))

	for {
		if err := e.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunFrames renders n frames back to back, running BeforeFrame hooks before each.
func (e *Executor) RunFrames(ctx context.Context, n int) ([]*FrameReport, error) {
	reports := make([]*FrameReport, 0, n)
	for i := 0; i < n; i++ {
		for _, hook := range e.hooks {
			hook(ctx)
		}
		report, err := e.RenderFrame(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (e *Executor) tick(ctx context.Context) error {
	for _, hook := range e.hooks {
		hook(ctx)
	}
	_, err := e.RenderFrame(ctx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, prismerrors.ErrCyclicDependency):
		// already logged by RenderFrame; the network may be edited before the next tick
		return nil
	default:
		return err
	}
}

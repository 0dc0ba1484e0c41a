package executor

import (
	"sync/atomic"
	"time"
)

// Metrics holds rendering metrics for observability.
type Metrics struct {
	// FramesRendered is the count of frames that reached the Executing state
	FramesRendered int64
	// ProcessorsExecuted is the count of successful Process calls
	ProcessorsExecuted int64
	// TotalErrors is the count of failed Process calls
	TotalErrors int64
	// TotalSkipped is the count of processors skipped for missing or invalid inputs
	TotalSkipped int64
	// ProcessingTimeNs is the total time spent in Process in nanoseconds
	ProcessingTimeNs int64
	// FrameTimeNs is the total frame time in nanoseconds
	FrameTimeNs int64
}

// MetricsCollector collects rendering metrics.
type MetricsCollector interface {
	// RecordFrame records a completed frame
	RecordFrame(durationNs int64)
	// RecordProcessed records a successful Process call
	RecordProcessed(durationNs int64)
	// RecordError records a failed Process call
	RecordError()
	// RecordSkipped records a skipped processor
	RecordSkipped()
	// GetMetrics returns the current metrics
	GetMetrics() Metrics
	// Reset resets all metrics
	Reset()
}

// DefaultMetricsCollector is a thread-safe implementation of MetricsCollector.
// The render goroutine records while other goroutines may read.
type DefaultMetricsCollector struct {
	frames           atomic.Int64
	processed        atomic.Int64
	errors           atomic.Int64
	skipped          atomic.Int64
	totalProcessTime atomic.Int64
	totalFrameTime   atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{}
}

// RecordFrame records a completed frame.
func (m *DefaultMetricsCollector) RecordFrame(durationNs int64) {
	m.frames.Add(1)
	m.totalFrameTime.Add(durationNs)
}

// RecordProcessed records a successful Process call.
func (m *DefaultMetricsCollector) RecordProcessed(durationNs int64) {
	m.processed.Add(1)
	m.totalProcessTime.Add(durationNs)
}

// RecordError records a failed Process call.
func (m *DefaultMetricsCollector) RecordError() {
	m.errors.Add(1)
}

// RecordSkipped records a skipped processor.
func (m *DefaultMetricsCollector) RecordSkipped() {
	m.skipped.Add(1)
}

// GetMetrics returns the current metrics.
func (m *DefaultMetricsCollector) GetMetrics() Metrics {
	return Metrics{
		FramesRendered:     m.frames.Load(),
		ProcessorsExecuted: m.processed.Load(),
		TotalErrors:        m.errors.Load(),
		TotalSkipped:       m.skipped.Load(),
		ProcessingTimeNs:   m.totalProcessTime.Load(),
		FrameTimeNs:        m.totalFrameTime.Load(),
	}
}

// Reset resets all metrics.
func (m *DefaultMetricsCollector) Reset() {
	m.frames.Store(0)
	m.processed.Store(0)
	m.errors.Store(0)
	m.skipped.Store(0)
	m.totalProcessTime.Store(0)
	m.totalFrameTime.Store(0)
}

// AverageFrameTime returns the average frame time.
func (m *DefaultMetricsCollector) AverageFrameTime() time.Duration {
	frames := m.frames.Load()
	if frames == 0 {
		return 0
	}
	return time.Duration(m.totalFrameTime.Load() / frames)
}

// ErrorRate returns the error rate as a percentage of Process calls.
func (m *DefaultMetricsCollector) ErrorRate() float64 {
	processed := m.processed.Load()
	errors := m.errors.Load()
	total := processed + errors
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total) * 100
}

// Ensure DefaultMetricsCollector implements MetricsCollector
var _ MetricsCollector = (*DefaultMetricsCollector)(nil)

// NoOpMetricsCollector is a metrics collector that does nothing.
type NoOpMetricsCollector struct{}

func (m *NoOpMetricsCollector) RecordFrame(durationNs int64)     {}
func (m *NoOpMetricsCollector) RecordProcessed(durationNs int64) {}
func (m *NoOpMetricsCollector) RecordError()                     {}
func (m *NoOpMetricsCollector) RecordSkipped()                   {}
func (m *NoOpMetricsCollector) GetMetrics() Metrics              { return Metrics{} }
func (m *NoOpMetricsCollector) Reset()                           {}

// Ensure NoOpMetricsCollector implements MetricsCollector
var _ MetricsCollector = (*NoOpMetricsCollector)(nil)

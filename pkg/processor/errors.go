package processor

import (
	"fmt"

	"github.com/wehubfusion/Prism/pkg/identifier"
)

// Phases reported in Error.
const (
	PhaseResolve = "resolve"
	PhaseProcess = "process"
	PhaseCleanup = "cleanup"
)

// Error wraps a per-processor failure with the frame it happened in.
type Error struct {
	// Processor is the id of the processor that failed
	Processor identifier.Identifier
	// Type is the processor type
	Type string
	// Phase indicates which step failed
	Phase string
	// Frame is the frame number
	Frame uint64
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("processor %s [%s] frame %d during %s: %v", e.Processor, e.Type, e.Frame, e.Phase, e.Cause)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a processor error.
func NewError(p Processor, phase string, frame uint64, cause error) *Error {
	return &Error{
		Processor: p.ID(),
		Type:      p.TypeName(),
		Phase:     phase,
		Frame:     frame,
		Cause:     cause,
	}
}

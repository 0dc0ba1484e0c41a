package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch indicates a property was set with a value of the wrong type
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrOutOfRange indicates a numeric property value outside its declared range
	ErrOutOfRange = errors.New("value out of range")

	// ErrAlreadyOwned indicates a property is already owned by another processor
	ErrAlreadyOwned = errors.New("property already owned")

	// ErrDuplicateProperty indicates a processor already has a property with that id
	ErrDuplicateProperty = errors.New("duplicate property")

	// ErrPortTypeMismatch indicates the data types of two ports differ
	ErrPortTypeMismatch = errors.New("port type mismatch")

	// ErrPortAlreadyConnected indicates an input port already has an incoming connection
	ErrPortAlreadyConnected = errors.New("port already connected")

	// ErrPortDirection indicates a connection was requested between ports of the wrong direction
	ErrPortDirection = errors.New("invalid port direction")

	// ErrSelfConnection indicates both ends of a connection belong to the same processor
	ErrSelfConnection = errors.New("cannot connect a processor to itself")

	// ErrMissingConnection indicates a required input port has no connection at execution time
	ErrMissingConnection = errors.New("missing connection")

	// ErrUpstreamInvalid indicates a required input is fed by an output that was not produced this frame
	ErrUpstreamInvalid = errors.New("upstream output invalid")

	// ErrCyclicDependency indicates the required-port graph contains a cycle
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnknownProcessor indicates a processor is not part of the network
	ErrUnknownProcessor = errors.New("unknown processor")

	// ErrUnknownProcessorType indicates no creator is registered for a processor type
	ErrUnknownProcessorType = errors.New("unknown processor type")

	// ErrDuplicateProcessor indicates a processor with the same id already exists
	ErrDuplicateProcessor = errors.New("duplicate processor")

	// ErrUnknownPort indicates a port name that the processor does not declare or the mapping does not bind
	ErrUnknownPort = errors.New("unknown port")

	// ErrUnknownProperty indicates a property id that the processor does not own
	ErrUnknownProperty = errors.New("unknown property")

	// ErrInvalidHandle indicates a texture handle that is unknown or already freed
	ErrInvalidHandle = errors.New("invalid texture handle")

	// ErrNoFreeUnit indicates all texture units are bound
	ErrNoFreeUnit = errors.New("no free texture unit")

	// ErrNoSurface indicates the texture driver does not expose pixel access
	ErrNoSurface = errors.New("driver does not expose surfaces")

	// ErrFrameInProgress indicates a frame was requested while another is executing
	ErrFrameInProgress = errors.New("frame already in progress")

	// ErrProcessingFailed indicates a processor's Process step failed
	ErrProcessingFailed = errors.New("processing failed")

	// ErrInvalidDocument indicates a network document could not be decoded
	ErrInvalidDocument = errors.New("invalid network document")
)

// Error represents a structured error with a machine-readable code
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsStructural reports whether err is a rejected structural edit. The network
// is left in its last valid state when one of these is returned.
func IsStructural(err error) bool {
	return errors.Is(err, ErrPortTypeMismatch) ||
		errors.Is(err, ErrPortAlreadyConnected) ||
		errors.Is(err, ErrPortDirection) ||
		errors.Is(err, ErrSelfConnection) ||
		errors.Is(err, ErrCyclicDependency) ||
		errors.Is(err, ErrDuplicateProcessor)
}

// IsExecution reports whether err is a per-processor execution-time failure
func IsExecution(err error) bool {
	return errors.Is(err, ErrMissingConnection) ||
		errors.Is(err, ErrUpstreamInvalid) ||
		errors.Is(err, ErrProcessingFailed)
}

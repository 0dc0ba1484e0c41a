package errors

import (
	"context"
	"errors"
)

// Error code constants
const (
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeTypeMismatch       = "TYPE_MISMATCH"
	CodeOutOfRange         = "OUT_OF_RANGE"
	CodePortTypeMismatch   = "PORT_TYPE_MISMATCH"
	CodePortAlreadyConnect = "PORT_ALREADY_CONNECTED"
	CodeInvalidConnection  = "INVALID_CONNECTION"
	CodeMissingConnection  = "MISSING_CONNECTION"
	CodeUpstreamInvalid    = "UPSTREAM_INVALID"
	CodeCyclicDependency   = "CYCLIC_DEPENDENCY"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicate          = "DUPLICATE"
	CodeInvalidHandle      = "INVALID_HANDLE"
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeFrameInProgress    = "FRAME_IN_PROGRESS"
	CodeProcessing         = "PROCESSING_ERROR"
	CodeInvalidDocument    = "INVALID_DOCUMENT"
	CodeCancelled          = "CANCELLED"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
)

var codeTable = []struct {
	target error
	code   string
}{
	{ErrTypeMismatch, CodeTypeMismatch},
	{ErrOutOfRange, CodeOutOfRange},
	{ErrPortTypeMismatch, CodePortTypeMismatch},
	{ErrPortAlreadyConnected, CodePortAlreadyConnect},
	{ErrPortDirection, CodeInvalidConnection},
	{ErrSelfConnection, CodeInvalidConnection},
	{ErrMissingConnection, CodeMissingConnection},
	{ErrUpstreamInvalid, CodeUpstreamInvalid},
	{ErrCyclicDependency, CodeCyclicDependency},
	{ErrUnknownProcessor, CodeNotFound},
	{ErrUnknownProcessorType, CodeNotFound},
	{ErrUnknownPort, CodeNotFound},
	{ErrUnknownProperty, CodeNotFound},
	{ErrDuplicateProcessor, CodeDuplicate},
	{ErrDuplicateProperty, CodeDuplicate},
	{ErrAlreadyOwned, CodeDuplicate},
	{ErrInvalidHandle, CodeInvalidHandle},
	{ErrNoFreeUnit, CodeResourceExhausted},
	{ErrFrameInProgress, CodeFrameInProgress},
	{ErrInvalidDocument, CodeInvalidDocument},
	{ErrProcessingFailed, CodeProcessing},
}

// Categorize maps an error to a standardized error code
func Categorize(err error) string {
	if err == nil {
		return ""
	}

	var structured *Error
	if errors.As(err, &structured) && structured.Code != "" {
		return structured.Code
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}

	for _, entry := range codeTable {
		if errors.Is(err, entry.target) {
			return entry.code
		}
	}

	return CodeUnknown
}

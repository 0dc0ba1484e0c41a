package executor

import (
	"time"

	"github.com/google/uuid"

	"github.com/wehubfusion/Prism/pkg/identifier"
)

// Status is the outcome of one processor in one frame.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result is the outcome of one processor in a frame.
type Result struct {
	Processor identifier.Identifier `json:"processor"`
	Type      string                `json:"type"`
	Status    Status                `json:"status"`
	Error     string                `json:"error,omitempty"`
	Duration  time.Duration         `json:"duration"`

	// Err is the underlying error, if any
	Err error `json:"-"`
}

// SuccessResult creates a successful Result.
func SuccessResult(id identifier.Identifier, typeName string, d time.Duration) Result {
	return Result{Processor: id, Type: typeName, Status: StatusSuccess, Duration: d}
}

// SkippedResult creates a Result for a processor whose inputs were missing or invalid.
func SkippedResult(id identifier.Identifier, typeName string, err error) Result {
	return Result{Processor: id, Type: typeName, Status: StatusSkipped, Error: err.Error(), Err: err}
}

// ErrorResult creates a Result for a processor that failed.
func ErrorResult(id identifier.Identifier, typeName string, d time.Duration, err error) Result {
	return Result{Processor: id, Type: typeName, Status: StatusFailed, Error: err.Error(), Err: err, Duration: d}
}

// FrameReport describes one rendered frame.
type FrameReport struct {
	ID       uuid.UUID               `json:"id"`
	Frame    uint64                  `json:"frame"`
	Started  time.Time               `json:"started"`
	Duration time.Duration           `json:"duration"`
	Order    []identifier.Identifier `json:"order"`
	Results  []Result                `json:"results"`
}

// Result returns the result of a processor.
func (r *FrameReport) Result(id identifier.Identifier) (Result, bool) {
	for _, res := range r.Results {
		if res.Processor == id {
			return res, true
		}
	}
	return Result{}, false
}

// Count returns how many processors ended with status s.
func (r *FrameReport) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// OK reports whether every processor succeeded.
func (r *FrameReport) OK() bool {
	return r.Count(StatusSuccess) == len(r.Results)
}

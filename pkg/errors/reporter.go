package errors

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// Reporter forwards errors that indicate bugs to an external error tracker.
type Reporter interface {
	Report(err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopReporter drops every report.
type NopReporter struct{}

func (NopReporter) Report(err error, tags map[string]string) {}
func (NopReporter) Flush(timeout time.Duration) bool         { return true }

var _ Reporter = NopReporter{}

// SentryReporter reports errors to Sentry through a dedicated hub.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a reporter for the given DSN.
// An empty DSN yields a client that discards events, which keeps local runs quiet.
func NewSentryReporter(dsn, environment, release string) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Report captures err with the given tags plus its category code.
func (r *SentryReporter) Report(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", Categorize(err))
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits until buffered events are sent or the timeout passes.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

var _ Reporter = (*SentryReporter)(nil)

// Violation handles a broken internal invariant. In debug mode it panics so
// the bug surfaces at its origin; otherwise it logs and reports and returns
// the error so the caller can degrade.
func Violation(debug bool, logger *zap.Logger, reporter Reporter, format string, args ...interface{}) error {
	err := NewError(CodeInvariantViolation, fmt.Sprintf(format, args...), nil)
	if debug {
		panic(err)
	}
	if logger != nil {
		logger.Error("Invariant violation", zap.Error(err))
	}
	if reporter != nil {
		reporter.Report(err, map[string]string{"kind": "invariant"})
	}
	return err
}

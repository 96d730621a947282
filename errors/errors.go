// Package errors provides error handling for genefold.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Sentinel errors for the pipeline's error taxonomy.
// Use these with errors.Is() for type-safe error checking and wrap them
// with errors.Wrap() to add context while preserving the class.
var (
	// ErrNotFound indicates a record id no longer resolves upstream.
	ErrNotFound = New("not found")

	// ErrNetwork indicates a transport-level failure. Retryable with backoff
	// at the fetcher layer.
	ErrNetwork = New("network error")

	// ErrParse indicates malformed upstream data. Fatal to that fetch.
	ErrParse = New("parse error")

	// ErrInvalidSequence indicates a sequence containing characters outside
	// the accepted alphabet. Caller-supplied data defect, never retried.
	ErrInvalidSequence = New("invalid sequence")

	// ErrValidation indicates caller-supplied data failed validation.
	// Fatal, never retried.
	ErrValidation = New("validation error")

	// ErrJobFailed indicates the portal itself reported job failure.
	// The portal's reason text is propagated verbatim as the wrap message.
	ErrJobFailed = New("job failed")

	// ErrDownload indicates a corrupt or incomplete result artifact.
	// Retried once, then fatal.
	ErrDownload = New("download error")

	// ErrCancelled indicates a job was cancelled by explicit user request.
	ErrCancelled = New("cancelled")
)

// AutomationKind classifies browser automation failures.
type AutomationKind string

const (
	AutomationTimeout              AutomationKind = "timeout"
	AutomationElementNotFound      AutomationKind = "element_not_found"
	AutomationUnrecognizedResponse AutomationKind = "unrecognized_response"
	AutomationRateLimited          AutomationKind = "rate_limited"
)

// AutomationError is a browser-automation failure with a sub-kind.
// Timeout and element-not-found are transient (bounded retry of the same
// step); rate-limited gets a bounded backoff retry; an unrecognized portal
// response is fatal.
type AutomationError struct {
	Kind AutomationKind
	Msg  string
}

func (e *AutomationError) Error() string {
	return "automation error (" + string(e.Kind) + "): " + e.Msg
}

// NewAutomation creates an AutomationError of the given kind.
func NewAutomation(kind AutomationKind, format string, args ...interface{}) error {
	return WithStack(&AutomationError{Kind: kind, Msg: Newf(format, args...).Error()})
}

// AutomationKindOf returns the automation sub-kind of err, or "" if err is
// not an AutomationError.
func AutomationKindOf(err error) AutomationKind {
	var ae *AutomationError
	if As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsRetryable reports whether an error class permits a bounded automatic
// retry. Validation and parse defects are never retryable; an unrecognized
// portal response is fatal because retrying a step the portal rejected for
// an unknown reason risks duplicate submissions.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsAny(err, ErrValidation, ErrParse, ErrInvalidSequence, ErrNotFound, ErrCancelled, ErrJobFailed) {
		return false
	}
	if Is(err, ErrNetwork) || Is(err, ErrDownload) {
		return true
	}
	switch AutomationKindOf(err) {
	case AutomationTimeout, AutomationElementNotFound, AutomationRateLimited:
		return true
	case AutomationUnrecognizedResponse:
		return false
	}
	return false
}

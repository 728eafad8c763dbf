// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Stage error kinds. Every analyzer failure is classified as one of these
// before the coordinator decides whether to retry.
var (
	// ErrInvalidInput indicates the stage was handed input it cannot analyze.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable indicates an external collaborator could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStageTimeout indicates a stage exceeded its time box.
	ErrStageTimeout = errors.New("stage timeout")
	// ErrMalformedOutput indicates a stage returned findings that failed validation.
	ErrMalformedOutput = errors.New("malformed output")

	// ErrUnknownAccount indicates the account number is not known to the bank.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrInvalidDateRange indicates a malformed or inverted review period.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrCaseActive indicates a review for the same case is already running.
	ErrCaseActive = errors.New("case review already in progress")

	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// FatalCaseError aborts the whole case. It is surfaced to the caller
// immediately and never retried.
type FatalCaseError struct {
	Err error
}

func (e *FatalCaseError) Error() string {
	return fmt.Sprintf("fatal case error: %v", e.Err)
}

func (e *FatalCaseError) Unwrap() error {
	return e.Err
}

// NewFatalCaseError wraps an intake failure that must abort the case.
func NewFatalCaseError(err error) error {
	return &FatalCaseError{Err: err}
}

// IsFatalCaseError reports whether the error aborts the whole case.
func IsFatalCaseError(err error) bool {
	var fatal *FatalCaseError
	return errors.As(err, &fatal)
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps an error with an explicit retry decision.
func NewRetryableError(err error, retryable bool) error {
	return &RetryableError{Err: err, Retryable: retryable}
}

// IsTransient reports whether a stage error should be retried. Timeouts and
// unreachable collaborators are transient; bad input and malformed output
// are not.
func IsTransient(err error) bool {
	if errors.Is(err, ErrStageTimeout) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable
	}

	return false
}

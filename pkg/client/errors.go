package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMissingEvents is returned when a 2xx body has no events list.
	ErrMissingEvents = errors.New("result envelope has no events list")

	// ErrTrailingData is returned when a 2xx body continues after the envelope.
	ErrTrailingData = errors.New("unexpected data after result envelope")
)

// QueryError is the failure of one partition query.
type QueryError struct {
	Partition  string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connpass %s error (partition %s, status %d): %s: %v",
			e.ErrorClass, e.Partition, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("connpass %s error (partition %s, status %d): %s",
		e.ErrorClass, e.Partition, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// ClassOf returns the error class carried by err, or "" when err is not a QueryError.
func ClassOf(err error) ErrorClass {
	var qerr *QueryError
	if errors.As(err, &qerr) {
		return qerr.ErrorClass
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var qerr *QueryError
	if errors.As(err, &qerr) {
		return qerr.StatusCode
	}
	return 0
}

// IsGatewayTimeout reports whether err is a directory 504.
func IsGatewayTimeout(err error) bool {
	return ClassOf(err) == ErrorClassTimeout
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	case ErrorClassTimeout:
		// Surfaced to the caller as a distinct condition instead.
		return false
	case ErrorClassClient, ErrorClassDecode:
		return false
	default:
		return false
	}
}

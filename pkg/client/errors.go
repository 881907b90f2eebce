package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrBatchTooLarge is returned when a load batch exceeds the upstream
	// limit of 100 records. No request is sent in that case.
	ErrBatchTooLarge = errors.New("batch exceeds 100 records")
)

// ErrorClass represents a classification of API call failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses, malformed response bodies,
	// and other failures that retrying cannot fix.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents retryable 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport-level failures (connect,
	// timeout), which are retryable.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassValidation represents local pre-flight rejections such as
	// an oversized batch.
	ErrorClassValidation ErrorClass = "validation"
)

// retryableStatuses is the set of response codes that trigger a retry.
var retryableStatuses = map[int]bool{
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// APIError is a classified failure of one API call.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error is eligible for backoff-and-retry.
func (e *APIError) Retryable() bool {
	switch e.Class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps a non-200 response code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case retryableStatuses[status]:
		return ErrorClassServer
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		// Unexpected codes (3xx, odd 5xx) are not retried.
		return ErrorClassClient
	}
}

package client

import (
	"errors"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected ErrorClass
	}{
		{name: "500 is retryable server error", status: 500, expected: ErrorClassServer},
		{name: "502 is retryable server error", status: 502, expected: ErrorClassServer},
		{name: "503 is retryable server error", status: 503, expected: ErrorClassServer},
		{name: "504 is retryable server error", status: 504, expected: ErrorClassServer},
		{name: "400 is client error", status: 400, expected: ErrorClassClient},
		{name: "404 is client error", status: 404, expected: ErrorClassClient},
		{name: "429 is client error", status: 429, expected: ErrorClassClient},
		{name: "501 is outside the retryable set", status: 501, expected: ErrorClassClient},
		{name: "redirect is not retryable", status: 302, expected: ErrorClassClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyStatus(tt.status)
			if result != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Retryable(t *testing.T) {
	tests := []struct {
		name     string
		class    ErrorClass
		expected bool
	}{
		{name: "client error should not retry", class: ErrorClassClient, expected: false},
		{name: "server error should retry", class: ErrorClassServer, expected: true},
		{name: "network error should retry", class: ErrorClassNetwork, expected: true},
		{name: "validation error should not retry", class: ErrorClassValidation, expected: false},
		{name: "empty error class should not retry", class: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Class: tt.class}
			if result := err.Retryable(); result != tt.expected {
				t.Errorf("Retryable() with class %q = %v, want %v", tt.class, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				Class:      ErrorClassServer,
				Message:    "internal server error",
				Err:        errors.New("connection refused"),
			},
			expected: "api server error (status 500): internal server error: connection refused",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				Class:      ErrorClassClient,
				Message:    "not found",
			},
			expected: "api client error (status 404): not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.apiError.Error(); result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &APIError{Class: ErrorClassValidation, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Error("errors.As should extract *APIError")
	}
}

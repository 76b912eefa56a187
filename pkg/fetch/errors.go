package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrEmptyBody is reported when a 2xx response carries no bytes.
	ErrEmptyBody = errors.New("empty response body")

	// ErrNilRequest is reported when Fetch is called without a request.
	ErrNilRequest = errors.New("request cannot be nil")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures before a response.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassOther represents 1xx/3xx responses and empty bodies.
	ErrorClassOther ErrorClass = "other"
)

// FetchError describes why a fetch produced no data.
type FetchError struct {
	Kind       Kind
	StatusCode int
	ErrorClass ErrorClass
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPError:
		return fmt.Sprintf("fetch %s: %s error (status %d)", e.URL, e.ErrorClass, e.StatusCode)
	case KindEmptyBody:
		return fmt.Sprintf("fetch %s: %v", e.URL, ErrEmptyBody)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s error", e.URL, e.ErrorClass)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	if e.Kind == KindEmptyBody && e.Err == nil {
		return ErrEmptyBody
	}
	return e.Err
}

// classifyStatus maps a status code outside the success range to a class.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassOther
	}
}

// shouldRetry determines if a failure should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// 4xx, redirects and empty bodies repeat identically
		return false
	}
}

package scrape

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

	// ErrRequestBlocked is returned when the credit tracker refuses a request.
	ErrRequestBlocked = errors.New("request blocked: api credit critical")
)

// ErrorClass represents a classification of scrape failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx backend errors (bad key, bad params).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx backend errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses from the backend.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTarget represents a backend success wrapping a failed target
	// page (anti-bot block, selector timeout, target 5xx).
	ErrorClassTarget ErrorClass = "target"
)

// ScrapeError represents a failed scrape with additional context.
type ScrapeError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s error (status %d) for %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("scrape %s error (status %d) for %s: %s",
		e.ErrorClass, e.StatusCode, e.URL, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// ClassOf returns the error class of err, or "" if it is not a ScrapeError.
func ClassOf(err error) ErrorClass {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// a bad key or bad parameters will not fix themselves
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	case ErrorClassTarget:
		// anti-bot blocks are often transient with a fresh proxy
		return true
	default:
		return false
	}
}

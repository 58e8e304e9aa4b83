package hh

import (
	"fmt"
	"time"
)

// HTTPError is a non-2xx response from the API. RetryAfter carries the
// server's Retry-After hint when present, zero otherwise.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("hh api request failed with status %d", e.Status)
}

// IsNotFound reports whether the error is a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.Status == 404
}

// CircuitOpenError is returned without any I/O while the circuit breaker is
// open after repeated rate-limit failures.
type CircuitOpenError struct {
	ReopenIn time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("hh circuit breaker is open for %s", e.ReopenIn)
}

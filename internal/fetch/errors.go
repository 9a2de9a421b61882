package fetch

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned at once for a 404; it is never retried.
var ErrNotFound = errors.New("upstream: not found")

// ErrTooLarge means the body exceeded Config.MaxBody. It is not retried.
var ErrTooLarge = errors.New("upstream: response too large")

// StatusError is a non-2xx upstream answer other than 404.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// NetworkError means every attempt failed. Err is the last cause.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned before any network call when the session
// carries no bearer token
var ErrUnauthenticated = errors.New("gateway: unauthenticated: no bearer token in session")

// HTTPError is a non-2xx response from the backend. Body holds the raw
// response text, which is the only signal the backend gives about the cause.
//
//	var httpErr *HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound { ... }
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: %s %s failed with status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// DecodeError means a 2xx response did not match the expected shape
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gateway: malformed response from %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsStatus checks whether err is an *HTTPError with the given status code
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// Message reduces an error to the text shown to dashboard users
func Message(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has expired. Please sign in again."
	case errors.As(err, &httpErr):
		if httpErr.Body != "" {
			return "Fetch failed: " + httpErr.Body
		}
		return fmt.Sprintf("Fetch failed with status %d", httpErr.StatusCode)
	default:
		return err.Error()
	}
}

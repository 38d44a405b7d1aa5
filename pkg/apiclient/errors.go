package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPError is a non-2xx response. Message is the server's error message when
// the body carried one.
type HTTPError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, http.StatusText(e.Status))
}

// NetworkTimeoutError means a single attempt ran past its timeout.
type NetworkTimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out after %s", e.Method, e.URL, e.Timeout)
}

func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && (he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden)
}

// IsTimeout reports whether err is a NetworkTimeoutError.
func IsTimeout(err error) bool {
	var te *NetworkTimeoutError
	return errors.As(err, &te)
}

// retryable reports whether another attempt may succeed. Client errors are
// final except 408 and 429.
func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Status == http.StatusRequestTimeout, he.Status == http.StatusTooManyRequests:
			return true
		case he.Status >= 400 && he.Status < 500:
			return false
		}
	}
	return true
}

package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedEngine = errors.New("unsupported browser engine")
	ErrSessionClosed     = errors.New("browser session closed")
	ErrDriverUnavailable = errors.New("browser driver unavailable")
)

// NavigationError reports a navigation that timed out, failed at the network
// level, or returned an HTTP error status.
type NavigationError struct {
	URL    string
	Status int // non-zero for HTTP >= 400
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Status >= 400 {
		return fmt.Sprintf("navigate %s: HTTP %d", e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigate %s: failed", e.URL)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsHTTPError reports whether err is a navigation that reached the server
// and got an error status.
func IsHTTPError(err error) bool {
	var nav *NavigationError
	return errors.As(err, &nav) && nav.Status >= 400
}

// IsTimeout reports whether err is a navigation deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRetryableError returns true if the error might succeed on retry. HTTP
// error statuses, unsupported engines and cancellation are final.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case IsHTTPError(err),
		errors.Is(err, ErrUnsupportedEngine),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

package resilience

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// retryableError marks an error as safe to try again.
type retryableError struct {
	err    error
	status int
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// MarkRetryable flags err as retryable, carrying the HTTP status that
// produced it (0 when the request never got a response). Returns nil for a
// nil err.
func MarkRetryable(err error, status int) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err, status: status}
}

// Retryable reports whether err was marked retryable, or looks like a
// transport-level failure a fresh attempt could get past.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var re *retryableError
	if errors.As(err, &re) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection torn down mid-flight.
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

// RetryableStatus reports whether an HTTP status is worth retrying.
// Throttling and timeouts are; other client errors are permanent.
func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

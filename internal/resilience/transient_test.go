package resilience

import (
	"fmt"
	"io"
	"net/http"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestMarkRetryable_NilStaysNil(t *testing.T) {
	assert.NoError(t, MarkRetryable(nil, 503))
}

func TestRetryable_MarkedError(t *testing.T) {
	base := eris.New("status 503")
	err := MarkRetryable(base, 503)

	assert.True(t, Retryable(err))
	assert.EqualError(t, err, "status 503")
	// Marking must not hide the underlying error from the chain.
	assert.ErrorIs(t, err, base)
}

func TestRetryable_WrappedMark(t *testing.T) {
	err := fmt.Errorf("embed batch 3: %w", MarkRetryable(eris.New("throttled"), 429))
	assert.True(t, Retryable(err))
}

func TestRetryable_TransportFailures(t *testing.T) {
	assert.True(t, Retryable(timeoutErr{}))
	assert.True(t, Retryable(fmt.Errorf("read body: %w", io.ErrUnexpectedEOF)))
	assert.True(t, Retryable(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, Retryable(fmt.Errorf("write: %w", syscall.ECONNRESET)))
}

func TestRetryable_PermanentErrors(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(eris.New("status 400: bad input")))
	assert.False(t, Retryable(ErrCircuitOpen))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 204, 301, 400, 401, 403, 404, 422} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}

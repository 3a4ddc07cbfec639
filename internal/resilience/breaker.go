package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// Breaker trips after a run of consecutive failures and rejects calls until
// a cooldown passes, then lets a single probe through. A successful probe
// closes it again; a failed probe restarts the cooldown.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Guard runs fn unless br is open, recording the outcome either way.
func Guard[T any](ctx context.Context, br *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !br.allow() {
		return zero, ErrCircuitOpen
	}
	out, err := fn(ctx)
	br.record(err)
	return out, err
}

// Open reports whether the breaker is currently rejecting calls.
func (br *Breaker) Open() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.failures >= br.threshold && br.now().Sub(br.openedAt) < br.cooldown
}

func (br *Breaker) allow() bool {
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.failures < br.threshold {
		return true
	}
	// Open. After the cooldown, exactly one caller gets to probe.
	if !br.probing && br.now().Sub(br.openedAt) >= br.cooldown {
		br.probing = true
		return true
	}
	return false
}

func (br *Breaker) record(err error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if err == nil {
		if br.failures >= br.threshold {
			zap.L().Info("circuit closed after successful probe")
		}
		br.failures = 0
		br.probing = false
		return
	}

	br.failures++
	br.openedAt = br.now()
	br.probing = false
	if br.failures == br.threshold {
		zap.L().Warn("circuit opened",
			zap.Int("consecutive_failures", br.failures),
			zap.Duration("cooldown", br.cooldown),
		)
	}
}

package socksession

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// BackoffCalculator computes exponential backoff delays: delay(n) =
// min(base * 2^(n-1), max), delay(0) = 0 (§8 property 7).
type BackoffCalculator struct {
	Base time.Duration
	Max  time.Duration
}

// GenericBackoff is used for non-socket-specific retries (base 5s, max 10m).
var GenericBackoff = BackoffCalculator{Base: 5 * time.Second, Max: 10 * time.Minute}

// SocketBackoff is used for socket reconnection specifically (base 5s, max 1m).
var SocketBackoff = BackoffCalculator{Base: 5 * time.Second, Max: 1 * time.Minute}

// Delay returns the backoff duration for the nth attempt (1-indexed).
// attempt 0 means "no attempts yet" and returns zero delay.
func (c BackoffCalculator) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := c.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.Max {
			return c.Max
		}
	}

	if d > c.Max {
		return c.Max
	}

	return d
}

// CanRetry reports whether enough time has elapsed since lastAttempt to
// make another attempt numbered attempt.
func (c BackoffCalculator) CanRetry(attempt int, lastAttempt, now time.Time) bool {
	return now.Sub(lastAttempt) >= c.Delay(attempt)
}

// retryBackoff adapts a BackoffCalculator to go-retry's Backoff interface,
// so the reconnect loop drives its waits through sethvargo/go-retry rather
// than a hand-rolled sleep loop.
type retryBackoff struct {
	calc    BackoffCalculator
	attempt int
}

func newRetryBackoff(calc BackoffCalculator) *retryBackoff {
	return &retryBackoff{calc: calc}
}

func (b *retryBackoff) Next() (time.Duration, bool) {
	b.attempt++
	return b.calc.Delay(b.attempt), false
}

var _ retry.Backoff = (*retryBackoff)(nil)

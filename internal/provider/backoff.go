package provider

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// BackoffWindow is how long the metered path stays disabled after a
// quota-exceeded signal. The daily quota resets once per day, so
// retrying earlier only burns log lines.
const BackoffWindow = 24 * time.Hour

// QuotaBackoff is process-wide state gating the metered path. It holds
// either Normal or Exceeded(until); the transition to Exceeded is
// one-way until the deadline passes, after which reads revert to Normal
// on their own.
type QuotaBackoff struct {
	clock clockwork.Clock

	mu    sync.Mutex
	until time.Time
}

func NewQuotaBackoff(clock clockwork.Clock) *QuotaBackoff {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &QuotaBackoff{clock: clock}
}

// Trip records quota exhaustion and reports whether this call performed
// the Normal -> Exceeded transition (false when already tripped, so
// callers can log the warning exactly once).
func (b *QuotaBackoff) Trip() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	if now.Before(b.until) {
		return false
	}
	b.until = now.Add(BackoffWindow)
	return true
}

// Exceeded reports whether the metered path is currently disabled.
func (b *QuotaBackoff) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock.Now().Before(b.until)
}

// Until returns the expiry deadline, zero when state is Normal.
func (b *QuotaBackoff) Until() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.clock.Now().Before(b.until) {
		return time.Time{}
	}
	return b.until
}

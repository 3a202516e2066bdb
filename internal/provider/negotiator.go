package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

// Options control the connection preference order.
type Options struct {
	// PreferZeroQuota tries the scraping provider before the metered one.
	PreferZeroQuota bool
	// AllowMeteredFallback permits metered attempts when the zero-quota
	// path fails (or is not preferred), subject to quota backoff.
	AllowMeteredFallback bool
}

// Negotiator picks a provider at connect time and presents a uniform
// polling facade over whichever one is active. It never switches
// providers mid-session: the continuation cursor belongs to the backend
// that issued it, so a degraded metered session stays degraded until
// the detector tears it down.
type Negotiator struct {
	zero    ChatProvider
	metered ChatProvider
	backoff *QuotaBackoff
	opts    Options
	log     *slog.Logger

	mu     sync.Mutex
	active ChatProvider
}

func NewNegotiator(zero, metered ChatProvider, backoff *QuotaBackoff, opts Options, log *slog.Logger) *Negotiator {
	if log == nil {
		log = slog.Default()
	}
	return &Negotiator{zero: zero, metered: metered, backoff: backoff, opts: opts, log: log}
}

// Connect attempts providers in the configured order. On total failure
// both providers are left disconnected and the joined errors returned.
func (n *Negotiator) Connect(ctx context.Context, videoID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var attempts []error

	if n.opts.PreferZeroQuota && n.zero != nil {
		if err := n.zero.Connect(ctx, videoID); err == nil {
			n.active = n.zero
			n.log.Info("connected", "provider", n.zero.Name(), "video", videoID)
			return nil
		} else {
			n.log.Warn("zero-quota connect failed", "video", videoID, "err", err)
			attempts = append(attempts, err)
		}
	}

	if n.metered != nil && (n.opts.AllowMeteredFallback || !n.opts.PreferZeroQuota) {
		if n.backoff != nil && n.backoff.Exceeded() {
			n.log.Warn("metered connect skipped, quota backoff active", "until", n.backoff.Until())
		} else if err := n.metered.Connect(ctx, videoID); err == nil {
			n.active = n.metered
			n.log.Info("connected", "provider", n.metered.Name(), "video", videoID)
			return nil
		} else {
			if errors.Is(err, ErrQuotaExceeded) {
				n.tripBackoff()
			}
			attempts = append(attempts, err)
		}
	}

	n.disconnectAllLocked()
	if len(attempts) == 0 {
		return errors.New("negotiator: no provider available")
	}
	return errors.Join(attempts...)
}

// Poll delegates to the active provider. A quota-exceeded signal from
// the metered backend trips the shared backoff; the session is left
// degraded rather than re-negotiated.
func (n *Negotiator) Poll(ctx context.Context) ([]core.ChatMessage, error) {
	n.mu.Lock()
	active := n.active
	n.mu.Unlock()
	if active == nil {
		return nil, ErrNotConnected
	}
	msgs, err := active.Poll(ctx)
	if err != nil && errors.Is(err, ErrQuotaExceeded) {
		n.tripBackoff()
	}
	return msgs, err
}

// Disconnect tears down whichever provider is active.
func (n *Negotiator) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnectAllLocked()
}

// Active returns the currently selected provider, nil when disconnected.
func (n *Negotiator) Active() ChatProvider {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Connected reports whether a provider is active and connected.
func (n *Negotiator) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active != nil && n.active.Connected()
}

// IntervalHint returns the active provider's current polling hint.
func (n *Negotiator) IntervalHint() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active == nil {
		return 0
	}
	return n.active.IntervalHint()
}

func (n *Negotiator) tripBackoff() {
	if n.backoff == nil {
		return
	}
	if n.backoff.Trip() {
		n.log.Warn("api quota exhausted, metered path disabled", "until", n.backoff.Until())
	}
}

func (n *Negotiator) disconnectAllLocked() {
	if n.zero != nil {
		n.zero.Disconnect()
	}
	if n.metered != nil {
		n.metered.Disconnect()
	}
	n.active = nil
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Arkyalys/YouTubeEvent/internal/provider"
)

// liveLookup is the zero-quota detection surface.
type liveLookup interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	ResolveChannelLive(ctx context.Context, channelID string) (string, error)
}

// meteredSearcher is the paid detection fallback.
type meteredSearcher interface {
	FindActiveLive(ctx context.Context, channelID string) (string, error)
}

// sessionControl is the manager surface the detector drives.
type sessionControl interface {
	StartDetected(ctx context.Context, videoID string) error
	StopDetected()
	ActiveVideoID() string
}

// DetectorConfig configures the detection loop.
type DetectorConfig struct {
	ChannelID string
	// Handle is the optional @handle used as the first lookup key.
	Handle string
	// Interval between detection checks.
	Interval time.Duration
	// AllowMetered permits the search fallback, subject to quota backoff.
	AllowMetered bool
}

// Detector periodically checks whether the channel broadcasts and
// drives the manager through live/offline/changeover transitions. It
// keeps checking while a session is active so the end of a broadcast
// (or a new one replacing it) is noticed.
type Detector struct {
	lookup  liveLookup
	search  meteredSearcher
	backoff *provider.QuotaBackoff
	control sessionControl
	clock   clockwork.Clock
	log     *slog.Logger
	metrics *Metrics
	cfg     DetectorConfig
}

func NewDetector(lookup liveLookup, search meteredSearcher, backoff *provider.QuotaBackoff, control sessionControl, clock clockwork.Clock, log *slog.Logger, metrics *Metrics, cfg DetectorConfig) *Detector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Detector{
		lookup:  lookup,
		search:  search,
		backoff: backoff,
		control: control,
		clock:   clock,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Run blocks until ctx is cancelled, checking on every tick.
func (d *Detector) Run(ctx context.Context) {
	ticker := d.clock.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			d.check(ctx)
		}
	}
}

func (d *Detector) check(ctx context.Context) {
	videoID := d.detect(ctx)
	current := d.control.ActiveVideoID()

	switch {
	case videoID == "" && current == "":
		d.metrics.IncDetect("not_live")
	case videoID == "" && current != "":
		d.metrics.IncDetect("ended")
		d.log.Info("broadcast ended", "video", current)
		d.control.StopDetected()
	case videoID == current:
		d.metrics.IncDetect("live")
	case current == "":
		d.metrics.IncDetect("started")
		d.log.Info("broadcast detected", "video", videoID)
		if err := d.control.StartDetected(ctx, videoID); err != nil {
			d.log.Warn("session start failed", "video", videoID, "err", err)
		}
	default:
		d.metrics.IncDetect("changed")
		d.log.Info("broadcast changed", "old", current, "new", videoID)
		if err := d.control.StartDetected(ctx, videoID); err != nil {
			d.log.Warn("session restart failed", "video", videoID, "err", err)
		}
	}
}

// detect runs the lookup precedence: handle scrape, channel live
// redirect, then the metered search when allowed and not backed off.
// Every error means "not live" for this tick; the next tick retries.
func (d *Detector) detect(ctx context.Context) string {
	if d.cfg.Handle != "" {
		id, err := d.lookup.ResolveHandle(ctx, d.cfg.Handle)
		if err == nil {
			return id
		}
		if !errors.Is(err, provider.ErrNoActiveChat) {
			d.log.Warn("handle detection failed", "handle", d.cfg.Handle, "err", err)
		}
	}

	if d.cfg.ChannelID != "" {
		id, err := d.lookup.ResolveChannelLive(ctx, d.cfg.ChannelID)
		if err == nil {
			return id
		}
		if !errors.Is(err, provider.ErrNoActiveChat) {
			d.log.Warn("channel detection failed", "channel", d.cfg.ChannelID, "err", err)
		}
	}

	if d.cfg.AllowMetered && d.search != nil && d.cfg.ChannelID != "" {
		if d.backoff != nil && d.backoff.Exceeded() {
			return ""
		}
		id, err := d.search.FindActiveLive(ctx, d.cfg.ChannelID)
		if err == nil {
			return id
		}
		if errors.Is(err, provider.ErrQuotaExceeded) {
			if d.backoff != nil && d.backoff.Trip() {
				d.log.Warn("detection quota exhausted, search fallback disabled", "until", d.backoff.Until())
			}
		} else if !errors.Is(err, provider.ErrNoActiveChat) {
			d.log.Warn("search detection failed", "channel", d.cfg.ChannelID, "err", err)
		}
	}

	return ""
}

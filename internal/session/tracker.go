package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/innertube"
	"github.com/Arkyalys/YouTubeEvent/internal/sink"
)

// StatsSource fetches raw like and view counts for a video. Only the
// page-scrape path backs this; the official statistics call is not
// worth its quota cost for counters read every few seconds.
type StatsSource interface {
	FetchStats(ctx context.Context, videoID string) (innertube.Stats, error)
}

// Tracker watches engagement counters for the active video and emits
// like-delta and view-milestone events. Raw counts can drop when a
// viewer withdraws a like; the high-water marks only move up, so a
// toggled like never produces a second reward.
type Tracker struct {
	stats     StatsSource
	events    sink.Sink
	clock     clockwork.Clock
	log       *slog.Logger
	metrics   *Metrics
	interval  time.Duration
	milestone int64

	mu         sync.Mutex
	videoID    string
	seeded     bool
	lastLikes  int64
	lastViews  int64
	maxLikes   int64
	maxViews   int64
	totalLikes int64
	totalViews int64
	cancel     context.CancelFunc

	wg sync.WaitGroup
}

// TrackerSnapshot is the read-only counter view.
type TrackerSnapshot struct {
	Seeded          bool  `json:"seeded"`
	LastLikeCount   int64 `json:"last_like_count"`
	LastViewCount   int64 `json:"last_view_count"`
	MaxLikeCount    int64 `json:"max_like_count"`
	MaxViewCount    int64 `json:"max_view_count"`
	CumulativeLikes int64 `json:"cumulative_new_likes"`
	CumulativeViews int64 `json:"cumulative_new_views"`
	MilestoneEvery  int64 `json:"milestone_every"`
}

func NewTracker(stats StatsSource, events sink.Sink, clock clockwork.Clock, log *slog.Logger, metrics *Metrics, interval time.Duration, milestone int64) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Tracker{
		stats:     stats,
		events:    events,
		clock:     clock,
		log:       log,
		metrics:   metrics,
		interval:  interval,
		milestone: milestone,
	}
}

// SetEvents wires the outbound sink. Call before Start.
func (t *Tracker) SetEvents(events sink.Sink) {
	t.mu.Lock()
	t.events = events
	t.mu.Unlock()
}

// Start resets the snapshot for a new session and begins ticking. The
// tick loop lives until Stop, not until the caller's context ends.
func (t *Tracker) Start(videoID string) {
	t.Stop()

	loopCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.videoID = videoID
	t.seeded = false
	t.lastLikes, t.lastViews = 0, 0
	t.maxLikes, t.maxViews = 0, 0
	t.totalLikes, t.totalViews = 0, 0
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop(loopCtx, videoID)
}

// Stop cancels the tick loop. An in-flight fetch is discarded rather
// than applied to the retired snapshot.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()

	t.mu.Lock()
	t.videoID = ""
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackerSnapshot{
		Seeded:          t.seeded,
		LastLikeCount:   t.lastLikes,
		LastViewCount:   t.lastViews,
		MaxLikeCount:    t.maxLikes,
		MaxViewCount:    t.maxViews,
		CumulativeLikes: t.totalLikes,
		CumulativeViews: t.totalViews,
		MilestoneEvery:  t.milestone,
	}
}

func (t *Tracker) loop(ctx context.Context, videoID string) {
	defer t.wg.Done()

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		st, err := t.stats.FetchStats(ctx, videoID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.log.Warn("stats fetch failed", "video", videoID, "err", err)
			continue
		}
		t.apply(videoID, t.clock.Now(), st)
	}
}

// apply folds one observation into the snapshot and emits events for
// accepted deltas. The first observation of a session only seeds the
// baselines.
func (t *Tracker) apply(videoID string, now time.Time, st innertube.Stats) {
	t.mu.Lock()

	if !t.seeded {
		t.seeded = true
		t.lastLikes, t.maxLikes = st.Likes, st.Likes
		t.lastViews, t.maxViews = st.Views, st.Views
		t.mu.Unlock()
		t.log.Info("initial stats", "video", videoID, "likes", st.Likes, "views", st.Views)
		return
	}

	var (
		newLikes     int64
		milestoneHit bool
	)

	if st.Likes > t.maxLikes {
		newLikes = st.Likes - t.maxLikes
		t.totalLikes += newLikes
		t.maxLikes = st.Likes
	}

	if st.Views > t.maxViews {
		t.totalViews += st.Views - t.maxViews
		if t.milestone > 0 && st.Views/t.milestone > t.maxViews/t.milestone {
			milestoneHit = true
		}
		t.maxViews = st.Views
	}

	t.lastLikes = st.Likes
	t.lastViews = st.Views
	events := t.events
	t.mu.Unlock()

	if events == nil {
		return
	}
	if newLikes > 0 {
		t.metrics.AddLikes(newLikes)
		if err := events.Publish(core.LikeEvent(videoID, now, newLikes, st.Likes)); err != nil {
			t.log.Warn("event publish failed", "err", err)
		}
	}
	if milestoneHit {
		t.metrics.IncMilestone()
		if err := events.Publish(core.MilestoneEvent(videoID, now, st.Views, t.milestone)); err != nil {
			t.log.Warn("event publish failed", "err", err)
		}
	}
}

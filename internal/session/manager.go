package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

// ErrSessionActive is returned by Start when a session already exists.
// The detector path uses StartDetected instead, which force-stops the
// prior session on a broadcast changeover.
var ErrSessionActive = errors.New("session: session already active")

// ErrNoSession is returned by Stop when nothing is running.
var ErrNoSession = errors.New("session: no active session")

// Manager owns the single live session handle. Explicit admin starts
// refuse to displace a running session; detector-driven starts replace
// it, because a changed video id means the old broadcast is gone.
type Manager struct {
	poller  *Poller
	tracker *Tracker
	clock   clockwork.Clock
	log     *slog.Logger

	mu        sync.Mutex
	videoID   string
	startedAt time.Time
}

// Status aggregates the session handle, poller and tracker views.
type Status struct {
	Active    bool            `json:"active"`
	VideoID   string          `json:"video_id,omitempty"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	Uptime    string          `json:"uptime,omitempty"`
	Chat      PollerStatus    `json:"chat"`
	Tracker   TrackerSnapshot `json:"engagement"`
}

func NewManager(poller *Poller, tracker *Tracker, clock clockwork.Clock, log *slog.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{poller: poller, tracker: tracker, clock: clock, log: log}
}

// Start begins a session for videoID. Fails with ErrSessionActive when
// one is already running.
func (m *Manager) Start(ctx context.Context, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoID != "" {
		return ErrSessionActive
	}
	return m.startLocked(ctx, videoID)
}

// StartDetected begins a session on behalf of the live detector,
// stopping any prior session first.
func (m *Manager) StartDetected(ctx context.Context, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoID != "" {
		m.stopLocked()
	}
	return m.startLocked(ctx, videoID)
}

// Stop tears down the active session. ErrNoSession when idle.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoID == "" {
		return ErrNoSession
	}
	m.stopLocked()
	return nil
}

// StopDetected tears down the session after the detector saw the
// broadcast end. Idle is not an error on this path.
func (m *Manager) StopDetected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoID == "" {
		return
	}
	m.stopLocked()
}

// ActiveVideoID returns the running session's video id, empty when idle.
func (m *Manager) ActiveVideoID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoID
}

// Status returns the aggregated read-only view.
func (m *Manager) Status() Status {
	m.mu.Lock()
	videoID := m.videoID
	startedAt := m.startedAt
	m.mu.Unlock()

	st := Status{
		Active:  videoID != "",
		VideoID: videoID,
		Chat:    m.poller.Status(),
		Tracker: m.tracker.Snapshot(),
	}
	if st.Active {
		started := startedAt
		st.StartedAt = &started
		st.Uptime = m.clock.Since(startedAt).Round(time.Second).String()
	}
	return st
}

func (m *Manager) startLocked(ctx context.Context, videoID string) error {
	if err := m.poller.Start(ctx, videoID); err != nil {
		return err
	}
	m.tracker.Start(videoID)
	m.videoID = videoID
	m.startedAt = m.clock.Now()
	return nil
}

func (m *Manager) stopLocked() {
	m.poller.Stop()
	m.tracker.Stop()
	m.videoID = ""
	m.startedAt = time.Time{}
}

// Package session orchestrates one live broadcast at a time: the chat
// poller that drives the negotiated provider, the engagement tracker
// watching like and view counters, the detector that notices when the
// channel goes live or offline, and the manager that owns the single
// active session handle.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/provider"
	"github.com/Arkyalys/YouTubeEvent/internal/sink"
)

const defaultPollInterval = 3 * time.Second

// ErrAlreadyConnected is returned by Poller.Start while a session is up.
var ErrAlreadyConnected = errors.New("session: already connected")

// pollSource is the negotiator surface the poller drives.
type pollSource interface {
	Connect(ctx context.Context, videoID string) error
	Poll(ctx context.Context) ([]core.ChatMessage, error)
	Disconnect()
	IntervalHint() time.Duration
	Active() provider.ChatProvider
}

// Poller runs the recurring chat poll for one session. It never
// reconnects on its own; a dead session stays dead until the detector
// tears it down and starts a new one. One poll is in flight at a time
// and the interval hint is re-read after every tick.
type Poller struct {
	src      pollSource
	events   sink.Sink
	clock    clockwork.Clock
	log      *slog.Logger
	metrics  *Metrics
	fallback time.Duration

	mu         sync.Mutex
	state      core.ConnState
	videoID    string
	startedAt  time.Time
	messages   int64
	polls      int64
	pollErrors int64
	cancel     context.CancelFunc

	wg sync.WaitGroup
}

// PollerStatus is a read-only snapshot for the status surface.
type PollerStatus struct {
	State      core.ConnState `json:"state"`
	VideoID    string         `json:"video_id,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Metered    bool           `json:"metered"`
	Uptime     time.Duration  `json:"-"`
	Messages   int64          `json:"messages"`
	Polls      int64          `json:"polls"`
	PollErrors int64          `json:"poll_errors"`
}

func NewPoller(src pollSource, events sink.Sink, clock clockwork.Clock, log *slog.Logger, metrics *Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		src:      src,
		events:   events,
		clock:    clock,
		log:      log,
		metrics:  metrics,
		fallback: defaultPollInterval,
		state:    core.StateDisconnected,
	}
}

// SetFallbackInterval overrides the tick interval used when the
// provider gives no hint.
func (p *Poller) SetFallbackInterval(d time.Duration) {
	if d > 0 {
		p.fallback = d
	}
}

// SetEvents wires the outbound sink. Call before Start; the HTTP
// stream sink is constructed after the poller, hence the late binding.
func (p *Poller) SetEvents(events sink.Sink) {
	p.mu.Lock()
	p.events = events
	p.mu.Unlock()
}

// Start connects and begins ticking. Fails without side effects when a
// session is already up. ctx bounds the connect call only; the tick
// loop lives until Stop, so a canceled request context cannot kill a
// session it started.
func (p *Poller) Start(ctx context.Context, videoID string) error {
	p.mu.Lock()
	if p.state != core.StateDisconnected {
		p.mu.Unlock()
		return ErrAlreadyConnected
	}
	p.state = core.StateConnecting
	p.mu.Unlock()

	p.publishState(videoID, core.StateConnecting, "")

	if err := p.src.Connect(ctx, videoID); err != nil {
		p.mu.Lock()
		p.state = core.StateDisconnected
		p.mu.Unlock()
		p.publishState(videoID, core.StateDisconnected, "")
		return errors.Wrap(err, "start session")
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.state = core.StateConnected
	p.videoID = videoID
	p.startedAt = p.clock.Now()
	p.messages = 0
	p.polls = 0
	p.pollErrors = 0
	p.cancel = cancel
	p.mu.Unlock()

	p.metrics.SessionStarted()
	p.publishState(videoID, core.StateConnected, p.providerName())
	p.log.Info("chat session started", "video", videoID, "provider", p.providerName())

	p.wg.Add(1)
	go p.loop(loopCtx, videoID)
	return nil
}

// Stop cancels the tick loop, waits for any in-flight poll to be
// discarded and disconnects the provider. Safe to call when stopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == core.StateDisconnected {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.cancel = nil
	videoID := p.videoID
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.src.Disconnect()

	p.mu.Lock()
	p.state = core.StateDisconnected
	p.videoID = ""
	p.mu.Unlock()

	p.metrics.SessionStopped()
	p.publishState(videoID, core.StateDisconnected, "")
	p.log.Info("chat session stopped", "video", videoID)
}

// Status returns a point-in-time snapshot.
func (p *Poller) Status() PollerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := PollerStatus{
		State:      p.state,
		VideoID:    p.videoID,
		Messages:   p.messages,
		Polls:      p.polls,
		PollErrors: p.pollErrors,
	}
	if p.state == core.StateConnected {
		st.Uptime = p.clock.Since(p.startedAt)
	}
	if active := p.src.Active(); active != nil {
		st.Provider = active.Name()
		st.Metered = active.MeteredQuota()
	}
	return st
}

func (p *Poller) loop(ctx context.Context, videoID string) {
	defer p.wg.Done()

	for {
		hint := p.src.IntervalHint()
		if hint <= 0 {
			hint = p.fallback
		}
		timer := p.clock.NewTimer(hint)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		msgs, err := p.src.Poll(ctx)
		if ctx.Err() != nil {
			// Stopped while the call was in flight, discard the result.
			return
		}

		name := p.providerName()
		p.metrics.IncPoll(name, err != nil)
		p.mu.Lock()
		p.polls++
		if err != nil {
			p.pollErrors++
		} else {
			p.messages += int64(len(msgs))
		}
		events := p.events
		p.mu.Unlock()

		if err != nil {
			p.log.Warn("poll failed", "video", videoID, "provider", name, "err", err)
			continue
		}

		if events == nil {
			continue
		}
		now := p.clock.Now()
		for _, msg := range msgs {
			p.metrics.IncMessage(string(msg.Kind))
			if err := events.Publish(core.MessageEvent(videoID, now, msg)); err != nil {
				p.log.Warn("event publish failed", "err", err)
			}
		}
	}
}

func (p *Poller) providerName() string {
	if active := p.src.Active(); active != nil {
		return active.Name()
	}
	return ""
}

func (p *Poller) publishState(videoID string, state core.ConnState, providerName string) {
	p.mu.Lock()
	events := p.events
	p.mu.Unlock()
	if events == nil {
		return
	}
	ev := core.ConnectionEvent(videoID, p.clock.Now(), state, providerName)
	if err := events.Publish(ev); err != nil {
		p.log.Warn("event publish failed", "err", err)
	}
}

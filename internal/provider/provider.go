package provider

import (
	"context"
	"errors"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

// Sentinel errors forming the provider error taxonomy. Callers classify
// with errors.Is; anything else is treated as a transient network or
// parse failure and absorbed by the owning tick loop.
var (
	// ErrQuotaExceeded signals the metered backend reported daily quota
	// exhaustion. Triggers the 24h backoff window.
	ErrQuotaExceeded = errors.New("provider: api quota exceeded")

	// ErrAuthFailed signals an invalid or missing API key on a metered
	// call. Logged once; the metered path stays unusable until the
	// credentials change.
	ErrAuthFailed = errors.New("provider: api authentication failed")

	// ErrNotConnected is returned by Poll before a successful Connect.
	ErrNotConnected = errors.New("provider: not connected")

	// ErrNoActiveChat means the video has no joinable live chat
	// (broadcast ended, chat disabled, or wrong video id).
	ErrNoActiveChat = errors.New("provider: no active live chat")
)

// ChatProvider is the capability contract shared by the zero-quota and
// metered chat backends. Implementations own a per-session continuation
// cursor and seen-id set; neither leaks across Connect/Disconnect.
//
// Poll performs exactly one network round trip and never retries
// internally: the caller's timer governs cadence.
type ChatProvider interface {
	// Connect establishes session state for videoID. Safe to call again
	// after Disconnect.
	Connect(ctx context.Context, videoID string) error

	// Poll fetches the next batch of messages, already deduplicated
	// against this session's seen ids, and advances the cursor.
	Poll(ctx context.Context) ([]core.ChatMessage, error)

	// Disconnect clears all session state. Safe when not connected.
	Disconnect()

	Connected() bool

	// IntervalHint is the backend's recommended delay before the next
	// Poll. Backends revise it per response; read it after every poll.
	IntervalHint() time.Duration

	// MeteredQuota reports whether calls consume the daily API budget.
	MeteredQuota() bool

	Name() string
}

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

type fakeProvider struct {
	name       string
	metered    bool
	connectErr error
	pollErr    error
	pollMsgs   []core.ChatMessage
	connected  bool
	connects   int
	polls      int
}

func (f *fakeProvider) Connect(_ context.Context, _ string) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeProvider) Poll(_ context.Context) ([]core.ChatMessage, error) {
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return f.pollMsgs, nil
}

func (f *fakeProvider) Disconnect()                 { f.connected = false }
func (f *fakeProvider) Connected() bool             { return f.connected }
func (f *fakeProvider) IntervalHint() time.Duration { return 3 * time.Second }
func (f *fakeProvider) MeteredQuota() bool          { return f.metered }
func (f *fakeProvider) Name() string                { return f.name }

func newTestNegotiator(zero, metered ChatProvider, opts Options) (*Negotiator, *QuotaBackoff, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	backoff := NewQuotaBackoff(clock)
	return NewNegotiator(zero, metered, backoff, opts, nil), backoff, clock
}

func TestNegotiatorPrefersZeroQuota(t *testing.T) {
	zero := &fakeProvider{name: "innertube"}
	metered := &fakeProvider{name: "dataapi", metered: true}
	n, _, _ := newTestNegotiator(zero, metered, Options{PreferZeroQuota: true, AllowMeteredFallback: true})

	require.NoError(t, n.Connect(context.Background(), "abc12345678"))
	assert.Same(t, zero, n.Active())
	assert.Zero(t, metered.connects, "metered provider must not be touched")
}

func TestNegotiatorFallsBackToMetered(t *testing.T) {
	zero := &fakeProvider{name: "innertube", connectErr: errors.New("no continuation")}
	metered := &fakeProvider{name: "dataapi", metered: true}
	n, _, _ := newTestNegotiator(zero, metered, Options{PreferZeroQuota: true, AllowMeteredFallback: true})

	require.NoError(t, n.Connect(context.Background(), "abc12345678"))
	assert.Same(t, metered, n.Active())
}

func TestNegotiatorBothFailLeavesNoState(t *testing.T) {
	zero := &fakeProvider{name: "innertube", connectErr: errors.New("boom")}
	metered := &fakeProvider{name: "dataapi", metered: true, connectErr: errors.New("bust")}
	n, _, _ := newTestNegotiator(zero, metered, Options{PreferZeroQuota: true, AllowMeteredFallback: true})

	err := n.Connect(context.Background(), "abc12345678")
	require.Error(t, err)
	assert.Nil(t, n.Active())
	assert.False(t, zero.Connected())
	assert.False(t, metered.Connected())
}

func TestNegotiatorSkipsMeteredDuringBackoff(t *testing.T) {
	zero := &fakeProvider{name: "innertube", connectErr: errors.New("page changed")}
	metered := &fakeProvider{name: "dataapi", metered: true}
	n, backoff, clock := newTestNegotiator(zero, metered, Options{PreferZeroQuota: true, AllowMeteredFallback: true})

	backoff.Trip()
	require.Error(t, n.Connect(context.Background(), "abc12345678"))
	assert.Zero(t, metered.connects, "metered attempt during backoff")

	clock.Advance(BackoffWindow + time.Minute)
	require.NoError(t, n.Connect(context.Background(), "abc12345678"))
	assert.Equal(t, 1, metered.connects)
}

func TestNegotiatorPollQuotaErrorTripsBackoff(t *testing.T) {
	metered := &fakeProvider{name: "dataapi", metered: true, pollErr: ErrQuotaExceeded}
	n, backoff, _ := newTestNegotiator(nil, metered, Options{AllowMeteredFallback: true})

	require.NoError(t, n.Connect(context.Background(), "abc12345678"))
	_, err := n.Poll(context.Background())
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.True(t, backoff.Exceeded())
	// Degraded, not re-negotiated: the metered provider stays active.
	assert.Same(t, metered, n.Active())
}

func TestNegotiatorPollWithoutConnect(t *testing.T) {
	n, _, _ := newTestNegotiator(&fakeProvider{name: "innertube"}, nil, Options{PreferZeroQuota: true})
	_, err := n.Poll(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestNegotiatorMeteredOnlyWhenNotPreferred(t *testing.T) {
	zero := &fakeProvider{name: "innertube"}
	metered := &fakeProvider{name: "dataapi", metered: true}
	n, _, _ := newTestNegotiator(zero, metered, Options{PreferZeroQuota: false, AllowMeteredFallback: false})

	require.NoError(t, n.Connect(context.Background(), "abc12345678"))
	assert.Same(t, metered, n.Active())
	assert.Zero(t, zero.connects)
}

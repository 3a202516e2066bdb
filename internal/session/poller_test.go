package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/provider"
)

// fakeSource doubles as the negotiator facade and the active provider.
type fakeSource struct {
	mu         sync.Mutex
	connectErr error
	connects   []string
	batches    [][]core.ChatMessage
	pollErr    error
	polls      int
	hint       time.Duration
	connected  bool
	blockPoll  bool
}

func (f *fakeSource) Connect(ctx context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, videoID)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSource) Poll(ctx context.Context) ([]core.ChatMessage, error) {
	if f.blockPoll {
		<-ctx.Done()
		return []core.ChatMessage{{ID: "late"}}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeSource) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeSource) IntervalHint() time.Duration {
	if f.hint > 0 {
		return f.hint
	}
	return time.Millisecond
}

func (f *fakeSource) Active() provider.ChatProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	return f
}

func (f *fakeSource) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) MeteredQuota() bool { return false }
func (f *fakeSource) Name() string       { return "fake" }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPollerForwardsInOrder(t *testing.T) {
	events := &collectSink{}
	src := &fakeSource{batches: [][]core.ChatMessage{
		{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}},
		{{ID: "m4"}},
	}}
	p := NewPoller(src, events, nil, nil, nil)

	require.NoError(t, p.Start(context.Background(), "abc12345678"))
	defer p.Stop()

	waitFor(t, func() bool { return len(events.byKind(core.EventChatMessage)) == 4 })

	msgs := events.byKind(core.EventChatMessage)
	for i, want := range []string{"m1", "m2", "m3", "m4"} {
		require.Equal(t, want, msgs[i].Message.ID)
		require.Equal(t, "abc12345678", msgs[i].VideoID)
	}

	st := p.Status()
	require.Equal(t, core.StateConnected, st.State)
	require.Equal(t, int64(4), st.Messages)
	require.Equal(t, "fake", st.Provider)
	require.False(t, st.Metered)
}

func TestPollerStartWhileConnected(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, &collectSink{}, nil, nil, nil)

	require.NoError(t, p.Start(context.Background(), "abc12345678"))
	defer p.Stop()

	err := p.Start(context.Background(), "other0000000")
	require.ErrorIs(t, err, ErrAlreadyConnected)
	require.Equal(t, []string{"abc12345678"}, src.connects)
}

func TestPollerConnectFailure(t *testing.T) {
	events := &collectSink{}
	src := &fakeSource{connectErr: errors.New("no chat")}
	p := NewPoller(src, events, nil, nil, nil)

	err := p.Start(context.Background(), "abc12345678")
	require.Error(t, err)
	require.Equal(t, core.StateDisconnected, p.Status().State)

	conns := events.byKind(core.EventConnectionState)
	require.Len(t, conns, 2)
	require.Equal(t, core.StateConnecting, conns[0].Connection.State)
	require.Equal(t, core.StateDisconnected, conns[1].Connection.State)
}

func TestPollerSurvivesPollErrors(t *testing.T) {
	src := &fakeSource{pollErr: errors.New("transient")}
	p := NewPoller(src, &collectSink{}, nil, nil, nil)

	require.NoError(t, p.Start(context.Background(), "abc12345678"))
	defer p.Stop()

	waitFor(t, func() bool { return p.Status().PollErrors >= 3 })
	require.Equal(t, core.StateConnected, p.Status().State)
}

func TestPollerOutlivesStartContext(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, &collectSink{}, nil, nil, nil)

	// An admin start hands over a request-scoped context that dies as
	// soon as the handler returns. Only Stop may end the loop.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx, "abc12345678"))
	cancel()

	before := p.Status().Polls
	waitFor(t, func() bool { return p.Status().Polls > before+2 })
	require.Equal(t, core.StateConnected, p.Status().State)

	p.Stop()
	require.Equal(t, core.StateDisconnected, p.Status().State)
}

func TestPollerStopIsTerminal(t *testing.T) {
	events := &collectSink{}
	src := &fakeSource{blockPoll: true}
	p := NewPoller(src, events, nil, nil, nil)

	require.NoError(t, p.Start(context.Background(), "abc12345678"))
	p.Stop()

	// The blocked poll returned a message after cancellation; it must
	// not have been forwarded or counted.
	require.Empty(t, events.byKind(core.EventChatMessage))
	st := p.Status()
	require.Equal(t, core.StateDisconnected, st.State)
	require.Equal(t, int64(0), st.Messages)
	require.False(t, src.Connected())
}

package sink

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

type recordingSink struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (r *recordingSink) Publish(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func likeAt(total int64) core.Event {
	return core.LikeEvent("vid01234567", time.Now(), 1, total)
}

func TestBufferedFlushesAtBatchSize(t *testing.T) {
	base := &recordingSink{}
	b := NewBufferedSink(base, BufferedOptions{BatchSize: 3})

	for i := int64(1); i <= 2; i++ {
		if err := b.Publish(likeAt(i)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if base.count() != 0 {
		t.Fatalf("flushed early: %d events", base.count())
	}
	if err := b.Publish(likeAt(3)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if base.count() != 3 {
		t.Fatalf("after batch = %d events, want 3", base.count())
	}
}

func TestBufferedCloseFlushesRemainder(t *testing.T) {
	base := &recordingSink{}
	b := NewBufferedSink(base, BufferedOptions{BatchSize: 10})

	if err := b.Publish(likeAt(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if base.count() != 1 {
		t.Fatalf("after close = %d events, want 1", base.count())
	}
	if err := b.Publish(likeAt(2)); err == nil {
		t.Fatal("Publish after Close should fail")
	}
}

func TestBufferedTimerErrorSurfacesOnNextPublish(t *testing.T) {
	boom := errors.New("disk full")
	base := &recordingSink{err: boom}
	b := NewBufferedSink(base, BufferedOptions{BatchSize: 10, FlushInterval: 10 * time.Millisecond})

	if err := b.Publish(likeAt(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := b.Publish(likeAt(2))
		if errors.Is(err, boom) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timer flush error never surfaced")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("bad sink")}
	c := &recordingSink{}
	f := NewFanout(a, b, c)

	err := f.Publish(likeAt(1))
	if err == nil {
		t.Fatal("expected the failing sink's error")
	}
	if a.count() != 1 || c.count() != 1 {
		t.Fatalf("healthy sinks got %d and %d events, want 1 each", a.count(), c.count())
	}
}

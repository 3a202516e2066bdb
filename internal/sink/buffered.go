package sink

import (
	"errors"
	"sync"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

// BufferedSink batches events before handing them to the base sink, so
// bursty polls do not turn into one journal transaction per event. A
// flush error is reported on the next Publish rather than lost.
type BufferedSink struct {
	base          Sink
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	buffer  []core.Event
	timer   *time.Timer
	closed  bool
	lastErr error
}

type BufferedOptions struct {
	BatchSize     int
	FlushInterval time.Duration
}

func NewBufferedSink(base Sink, opts BufferedOptions) *BufferedSink {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &BufferedSink{
		base:          base,
		batchSize:     batch,
		flushInterval: opts.FlushInterval,
	}
}

func (b *BufferedSink) Publish(ev core.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("buffered sink closed")
	}

	pendingErr := b.lastErr
	b.lastErr = nil

	b.buffer = append(b.buffer, ev)
	if len(b.buffer) == 1 && b.flushInterval > 0 {
		b.startTimerLocked()
	}

	if len(b.buffer) < b.batchSize {
		b.mu.Unlock()
		return pendingErr
	}

	batch := append([]core.Event(nil), b.buffer...)
	b.buffer = b.buffer[:0]
	b.stopTimerLocked()
	b.mu.Unlock()

	if err := b.publishAll(batch); err != nil {
		return err
	}
	return pendingErr
}

func (b *BufferedSink) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.stopTimerLocked()
	batch := append([]core.Event(nil), b.buffer...)
	b.buffer = nil
	pendingErr := b.lastErr
	b.lastErr = nil
	b.mu.Unlock()

	if len(batch) > 0 {
		if err := b.publishAll(batch); err != nil {
			return err
		}
	}
	if pendingErr != nil {
		return pendingErr
	}
	return b.base.Close()
}

func (b *BufferedSink) onTimer() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.buffer) == 0 {
		b.timer = nil
		b.mu.Unlock()
		return
	}
	batch := append([]core.Event(nil), b.buffer...)
	b.buffer = b.buffer[:0]
	b.timer = nil
	b.mu.Unlock()

	if err := b.publishAll(batch); err != nil {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
	}
}

func (b *BufferedSink) startTimerLocked() {
	if b.flushInterval <= 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.flushInterval, b.onTimer)
}

func (b *BufferedSink) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *BufferedSink) publishAll(batch []core.Event) error {
	for _, ev := range batch {
		if err := b.base.Publish(ev); err != nil {
			return err
		}
	}
	return nil
}

// Package sink delivers session events to consumers: the in-process
// fanout feeding the HTTP stream, and the sqlite journal keeping a
// durable record of engagement and connection activity.
package sink

import (
	"errors"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

type Sink interface {
	Publish(core.Event) error
	Close() error
}

// Fanout publishes each event to every registered sink. A failing sink
// does not stop delivery to the others.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(ev core.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to the Sink interface, mostly for tests and
// the event stream bridge.
type Func func(core.Event) error

func (fn Func) Publish(ev core.Event) error { return fn(ev) }
func (fn Func) Close() error                { return nil }

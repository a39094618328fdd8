// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"

	"listener/internal/event"
	applog "listener/internal/log"
)

// Transport delivers pipeline events to an observer. Send is called from
// the capture goroutine once per event and must not block on the network;
// implementations queue or drop instead.
type Transport interface {
	Send(ev event.Event) error
	Close() error
}

// Multi fans every event out to several transports. A failing transport
// does not stop delivery to the others.
type Multi struct {
	transports []Transport
}

// NewMulti returns a fan-out over ts. Nil entries are skipped.
func NewMulti(ts ...Transport) *Multi {
	m := &Multi{}
	for _, t := range ts {
		if t != nil {
			m.transports = append(m.transports, t)
		}
	}
	return m
}

// Send delivers ev to every transport and joins their errors.
func (m *Multi) Send(ev event.Event) error {
	var errs []error
	for _, t := range m.transports {
		if err := t.Send(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport in reverse order.
func (m *Multi) Close() error {
	var errs []error
	for i := len(m.transports) - 1; i >= 0; i-- {
		if err := m.transports[i].Close(); err != nil {
			applog.Warnf("Transport: close failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped transports.
func (m *Multi) Len() int {
	return len(m.transports)
}

// Recorder keeps every event in memory. The offline analyze command uses
// it to build its report; tests use it to inspect pipeline output.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
	closed bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send appends ev.
func (r *Recorder) Send(ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder is closed")
	}
	r.events = append(r.events, ev)
	return nil
}

// Close stops recording. Events already recorded stay readable.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events named name were recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name() == name {
			n++
		}
	}
	return n
}

var (
	_ Transport = (*Multi)(nil)
	_ Transport = (*Recorder)(nil)
)

// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"testing"

	"listener/internal/event"
	"listener/internal/phrase"
)

type failingTransport struct {
	sent   int
	closed bool
}

func (f *failingTransport) Send(event.Event) error {
	f.sent++
	return errors.New("unreachable")
}

func (f *failingTransport) Close() error {
	f.closed = true
	return errors.New("close failed")
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	bad := &failingTransport{}
	m := NewMulti(a, nil, bad, b)

	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (nil skipped)", m.Len())
	}

	err := m.Send(event.Onset{BeatID: 1})
	if err == nil {
		t.Error("expected the failing transport's error")
	}
	for name, r := range map[string]*Recorder{"a": a, "b": b} {
		if r.Count(event.NameOnset) != 1 {
			t.Errorf("recorder %s missed the event despite a failing sibling", name)
		}
	}
	if bad.sent != 1 {
		t.Errorf("failing transport sent %d, want 1", bad.sent)
	}

	if err := m.Close(); err == nil {
		t.Error("expected close error to propagate")
	}
	if !bad.closed {
		t.Error("failing transport not closed")
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_ = r.Send(event.Onset{BeatID: 1})
	_ = r.Send(event.PhraseChange{From: phrase.Silence, To: phrase.Groove})
	_ = r.Send(event.Onset{BeatID: 2})

	if got := r.Count(event.NameOnset); got != 2 {
		t.Errorf("Count(onset) = %d, want 2", got)
	}
	evs := r.Events()
	if len(evs) != 3 {
		t.Fatalf("len(Events()) = %d, want 3", len(evs))
	}
	if pc, ok := evs[1].(event.PhraseChange); !ok || pc.To != phrase.Groove {
		t.Errorf("Events()[1] = %#v, want phrase change to GROOVE", evs[1])
	}

	_ = r.Close()
	if err := r.Send(event.Onset{}); err == nil {
		t.Error("Send after Close should fail")
	}
	if len(r.Events()) != 3 {
		t.Error("Close dropped recorded events")
	}
}

func TestLoggingTransportAcceptsEverything(t *testing.T) {
	lt := NewLoggingTransport()
	evs := []event.Event{
		event.TempoState{BPM: 124},
		event.Onset{BeatID: 3},
		event.FeatureFrame{},
		event.PhraseChange{From: phrase.Build, To: phrase.Drop, Beat: 32},
	}
	for _, ev := range evs {
		if err := lt.Send(ev); err != nil {
			t.Errorf("Send(%s) = %v", ev.Name(), err)
		}
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

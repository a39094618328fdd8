// SPDX-License-Identifier: MIT
//
// Package osc sends pipeline events as Open Sound Control messages over
// UDP, one message per value, to a lighting or visual host.
//
// Address map:
//
//	/clock/bpm          float32  smoothed tempo
//	/clock/conf         float32  smoothed confidence
//	/clock/beat_id      int32    beat counter
//	/clock/time         float64  emission time, seconds since the epoch
//	/clock/beat         int32    beat counter, on confirmed onsets only
//	/audio/standardized string   all features as one JSON object
//	/audio/<feature>    float32  one message per feature, booleans as int32 0/1
//	/phrase/current     string   new phrase label
package osc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"listener/internal/analysis"
	"listener/internal/event"
	applog "listener/internal/log"
	"listener/internal/transport"
)

const queueSize = 64

// Transport writes OSC messages to a single UDP target over one connected
// socket. Send only queues; a writer goroutine does the network I/O.
type Transport struct {
	conn   io.WriteCloser
	target string

	queue     chan []*osc.Message
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped atomic.Uint64
	errors  uint64 // writer goroutine only
}

// New resolves address ("host:port"), dials it and starts the writer.
func New(address string) (*Transport, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("osc transport: invalid address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("osc transport: invalid port in %q", address)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	target := net.JoinHostPort(host, portStr)

	udpAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("osc transport: resolve %s: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("osc transport: dial %s: %w", target, err)
	}

	applog.Infof("OSC: Sending to %s", conn.RemoteAddr())
	return newTransport(conn, target), nil
}

func newTransport(conn io.WriteCloser, target string) *Transport {
	t := &Transport{
		conn:   conn,
		target: target,
		queue:  make(chan []*osc.Message, queueSize),
		done:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Send queues the messages for ev. It never blocks: while the writer is
// behind, events are dropped and counted.
func (t *Transport) Send(ev event.Event) error {
	msgs := Messages(ev)
	if len(msgs) == 0 {
		return nil
	}
	select {
	case <-t.done:
		return errClosed
	default:
	}
	select {
	case t.queue <- msgs:
	default:
		if n := t.dropped.Add(1); n%1000 == 1 {
			applog.Warnf("OSC: Queue to %s full, %d events dropped so far", t.target, n)
		}
	}
	return nil
}

var errClosed = errors.New("osc transport is closed")

// Dropped returns the number of events discarded on a full queue.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

func (t *Transport) run() {
	defer t.wg.Done()
	for {
		select {
		case msgs := <-t.queue:
			t.write(msgs)
		case <-t.done:
			return
		}
	}
}

// write sends one datagram per message. Delivery of an event stops at the
// first failure; failures are logged sparingly since a missing listener is
// normal during setup.
func (t *Transport) write(msgs []*osc.Message) {
	for _, msg := range msgs {
		data, err := msg.MarshalBinary()
		if err == nil {
			_, err = t.conn.Write(data)
		}
		if err != nil {
			t.errors++
			if t.errors%500 == 1 {
				applog.Warnf("OSC: Send %s to %s failed (%d failures): %v", msg.Address, t.target, t.errors, err)
			}
			return
		}
	}
}

// Close stops the writer and closes the socket. Queued messages are
// discarded.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		// Closing the socket unblocks a stalled write.
		err = t.conn.Close()
		t.wg.Wait()
		applog.Debugf("OSC: Transport to %s closed (%d dropped)", t.target, t.dropped.Load())
	})
	return err
}

// Messages builds the OSC messages for ev.
func Messages(ev event.Event) []*osc.Message {
	switch e := ev.(type) {
	case event.TempoState:
		return []*osc.Message{
			osc.NewMessage("/clock/bpm", float32(e.BPM)),
			osc.NewMessage("/clock/conf", float32(e.Confidence)),
			osc.NewMessage("/clock/beat_id", int32(e.BeatID)),
			osc.NewMessage("/clock/time", epochSeconds(e.Timestamp)),
		}
	case event.Onset:
		return []*osc.Message{osc.NewMessage("/clock/beat", int32(e.BeatID))}
	case event.FeatureFrame:
		return featureMessages(e.Features)
	case event.PhraseChange:
		return []*osc.Message{osc.NewMessage("/phrase/current", e.To.String())}
	default:
		return nil
	}
}

func featureMessages(f analysis.Features) []*osc.Message {
	msgs := make([]*osc.Message, 0, analysis.FieldCount+1)

	standardized, err := json.Marshal(f)
	if err == nil {
		msgs = append(msgs, osc.NewMessage("/audio/standardized", string(standardized)))
	}

	values := f.Values()
	for i, name := range analysis.FieldNames {
		msg := osc.NewMessage("/audio/" + name)
		switch name {
		case "beat", "pulse":
			msg.Append(int32(values[i]))
		default:
			msg.Append(float32(values[i]))
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

var _ transport.Transport = (*Transport)(nil)

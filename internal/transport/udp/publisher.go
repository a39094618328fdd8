// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"listener/internal/analysis"
	"listener/internal/event"
	applog "listener/internal/log"
	"listener/internal/phrase"
	"listener/internal/transport"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 16 * time.Millisecond

// datagram is the subset of *Sender the publisher needs.
type datagram interface {
	Send(data []byte) error
	Close() error
}

// Publisher keeps the latest feature frame, phrase and beat id and sends
// them as one binary frame per tick. Send only stores a snapshot, so a
// slow network never reaches the capture goroutine.
type Publisher struct {
	sender   datagram
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	values [analysis.FieldCount]float64
	label  phrase.Label
	beatID uint64
	fresh  bool

	sequenceNum  uint32
	f32Buffer    [analysis.FieldCount]float32
	packetBuffer *bytes.Buffer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPublisher returns a publisher that ticks every interval once started.
func NewPublisher(interval time.Duration, sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	return newPublisher(interval, sender), nil
}

func newPublisher(interval time.Duration, sender datagram) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Fields: %d)", interval, analysis.FieldCount)
	return &Publisher{
		sender:       sender,
		interval:     interval,
		now:          time.Now,
		packetBuffer: new(bytes.Buffer),
		done:         make(chan struct{}),
	}
}

// Start launches the ticker goroutine.
func (p *Publisher) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-p.done:
				return
			}
		}
	}()
}

// Send records the parts of ev the frame carries.
func (p *Publisher) Send(ev event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e := ev.(type) {
	case event.FeatureFrame:
		p.values = e.Values()
		p.fresh = true
	case event.PhraseChange:
		p.label = e.To
	case event.Onset:
		p.beatID = e.BeatID
	case event.TempoState:
		p.beatID = e.BeatID
	}
	return nil
}

// Close stops the ticker goroutine and closes the sender.
func (p *Publisher) Close() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		err = p.sender.Close()
	})
	return err
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Phrase            | uint8          | 1            | Current phrase label    |
| Beat ID           | uint32         | 4            | Latest beat counter     |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Values            | []float32      | N * 4        | Features, field order   |
+-----------------------------------------------------------------------------+

Visual Layout:

|<- 4 Bytes ->|<--- 8 Bytes --->|<- 1 ->|<- 4 Bytes ->|<- 2 ->|<-- N * 4 Bytes -->|
+-------------+-----------------+-------+-------------+-------+-------------------+
|  Sequence   |    Timestamp    |Phrase |   Beat ID   | Count |      Values       |
|  (uint32)   |     (int64)     |(uint8)|  (uint32)   |(u16)  |  (N * float32)    |
+-------------+-----------------+-------+-------------+-------+-------------------+

Values follow analysis.FieldNames; booleans are 0 or 1.
*/

// HeaderSize is the number of bytes before the values.
const HeaderSize = 4 + 8 + 1 + 4 + 2

// publish sends one frame if a feature frame has arrived since startup.
func (p *Publisher) publish() {
	p.mu.Lock()
	if !p.fresh {
		p.mu.Unlock()
		return
	}
	for i, v := range p.values {
		p.f32Buffer[i] = float32(v)
	}
	label, beatID := p.label, p.beatID
	p.mu.Unlock()

	p.sequenceNum++
	packet := p.buildPacket(p.sequenceNum, p.now().UnixNano(), label, beatID)
	if err := p.sender.Send(packet); err != nil {
		if p.sequenceNum%500 == 1 {
			applog.Warnf("UDPPublisher: Error sending packet %d: %v", p.sequenceNum, err)
		}
		return
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
}

func (p *Publisher) buildPacket(seq uint32, timestamp int64, label phrase.Label, beatID uint64) []byte {
	p.packetBuffer.Reset()
	_ = binary.Write(p.packetBuffer, binary.BigEndian, seq)
	_ = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	_ = p.packetBuffer.WriteByte(byte(label))
	_ = binary.Write(p.packetBuffer, binary.BigEndian, uint32(beatID))
	_ = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.f32Buffer)))
	_ = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer[:])
	return p.packetBuffer.Bytes()
}

var _ transport.Transport = (*Publisher)(nil)

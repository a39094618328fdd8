// SPDX-License-Identifier: MIT
package audio

import (
	"testing"

	"github.com/gordonklaus/portaudio"

	"listener/internal/config"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

// collector copies every block it receives.
type collector struct {
	blocks [][]float32
}

func (c *collector) Process(block []float32) {
	c.blocks = append(c.blocks, append([]float32(nil), block...))
}

type discard struct{ n int }

func (d *discard) Process(block []float32) { d.n += len(block) }

func newTestEngine(channels int, proc BlockProcessor) *Engine {
	return newEngine(config.AudioConfig{
		SampleRate:    testSampleRate,
		BlockSize:     testFrameSize,
		InputChannels: channels,
	}, proc)
}

func TestMixdown(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		channels int
		want     []float32
	}{
		{"mono passthrough", []float32{0.1, -0.2, 0.3}, 1, []float32{0.1, -0.2, 0.3}},
		{"stereo average", []float32{1, 0, 0.5, 0.5, -1, 1}, 2, []float32{0.5, 0.5, 0}},
		{"quad average", []float32{1, 1, 1, 1, 0, 0, 0, 0.4}, 4, []float32{1, 0.1}},
		{"partial frame dropped", []float32{1, 1, 1}, 2, []float32{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float32, 8)
			got := Mixdown(dst, tt.in, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if d := got[i] - tt.want[i]; d > 1e-6 || d < -1e-6 {
					t.Errorf("frame %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestProcessBufferForwardsMono(t *testing.T) {
	c := &collector{}
	e := newTestEngine(2, c)

	in := make([]float32, testFrameSize*2)
	for i := range testFrameSize {
		in[2*i] = 0.5
		in[2*i+1] = -0.1
	}
	e.processBuffer(in, 0)

	if len(c.blocks) != 1 || len(c.blocks[0]) != testFrameSize {
		t.Fatalf("got %d blocks, first of %d samples", len(c.blocks), len(c.blocks[0]))
	}
	if v := c.blocks[0][10]; v < 0.1999 || v > 0.2001 {
		t.Errorf("mixed sample = %v, want 0.2", v)
	}
}

func TestProcessBufferCaptureFault(t *testing.T) {
	for _, flag := range []portaudio.StreamCallbackFlags{portaudio.InputOverflow, portaudio.InputUnderflow} {
		c := &collector{}
		e := newTestEngine(1, c)

		e.processBuffer(make([]float32, testFrameSize), flag)
		e.processBuffer(make([]float32, testFrameSize), 0)

		if len(c.blocks) != 2 {
			t.Fatalf("blocks = %d, want 2", len(c.blocks))
		}
		if len(c.blocks[0]) != 0 {
			t.Errorf("faulted block forwarded %d samples, want empty", len(c.blocks[0]))
		}
		if len(c.blocks[1]) != testFrameSize {
			t.Errorf("clean block has %d samples", len(c.blocks[1]))
		}
		if e.Faults() != 1 || e.Blocks() != 2 {
			t.Errorf("faults/blocks = %d/%d, want 1/2", e.Faults(), e.Blocks())
		}
	}
}

func TestProcessBufferZeroAlloc(t *testing.T) {
	e := newTestEngine(2, &discard{})
	in := make([]float32, testFrameSize*2)

	allocs := testing.AllocsPerRun(100, func() {
		e.processBuffer(in, 0)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in capture hot path, got %.1f", allocs)
	}
}

func TestNewEngineRequiresProcessor(t *testing.T) {
	cfg := config.Default()
	if _, err := NewEngine(&cfg, nil); err == nil {
		t.Error("expected error for nil processor")
	}
}

func BenchmarkProcessBufferStereo(b *testing.B) {
	e := newTestEngine(2, &discard{})
	in := make([]float32, testFrameSize*2)
	for i := range in {
		in[i] = float32(i%100) / 100
	}

	for b.Loop() {
		e.processBuffer(in, 0)
	}
}

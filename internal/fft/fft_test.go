// SPDX-License-Identifier: MIT
package fft

import (
	"math"
	"testing"

	"listener/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func newTestProcessor(t testing.TB) *Processor {
	t.Helper()
	p, err := NewProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func TestNewProcessorRejectsBadInput(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Not power of two", 1000, testSampleRate},
		{"Zero size", 0, testSampleRate},
		{"Zero sample rate", testFFTSize, 0},
		{"Negative sample rate", testFFTSize, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProcessor(tt.size, tt.sampleRate, Hann); err == nil {
				t.Errorf("expected error for size=%d rate=%f", tt.size, tt.sampleRate)
			}
		})
	}
}

func TestMagnitudesPeakAtToneBin(t *testing.T) {
	p := newTestProcessor(t)
	const freq = 1000.0
	mags := p.Magnitudes(utils.SineWave(testFFTSize, testSampleRate, freq, 0.8))

	if len(mags) != testFFTSize/2+1 {
		t.Fatalf("len(mags) = %d, want %d", len(mags), testFFTSize/2+1)
	}
	peak := utils.FindPeakBin(mags, 0, len(mags)-1)
	if got := p.BinFrequency(peak); math.Abs(got-freq) > testSampleRate/testFFTSize {
		t.Errorf("peak at %.1f Hz, want ~%.1f Hz", got, freq)
	}
}

func TestMagnitudesSilenceIsZero(t *testing.T) {
	p := newTestProcessor(t)
	for i, m := range p.Magnitudes(make([]float32, testFFTSize)) {
		if m != 0 {
			t.Fatalf("bin %d = %g, want 0", i, m)
		}
	}
}

func TestBinFrequency(t *testing.T) {
	p := newTestProcessor(t)
	tests := []struct {
		bin  int
		want float64
	}{
		{-1, 0},
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 2, testSampleRate / 2},
		{testFFTSize/2 + 1, 0},
	}
	for _, tt := range tests {
		if got := p.BinFrequency(tt.bin); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BinFrequency(%d) = %f, want %f", tt.bin, got, tt.want)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"nuttall", Nuttall, false},
		{"triangle", Hann, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = (%v, %v), want (%v, err=%v)", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
	for w := range windowCount {
		if got, err := ParseWindowFunc(w.String()); got != w || err != nil {
			t.Errorf("ParseWindowFunc(%q) = (%v, %v), want %v", w.String(), got, err, w)
		}
	}
}

func TestFFTHotPath(t *testing.T) {
	p := newTestProcessor(t)
	input := utils.ComplexWave(testFFTSize, testSampleRate)

	// Warm-up call so lazy initialisation is not counted.
	p.Magnitudes(input)
	allocs := testing.AllocsPerRun(100, func() {
		p.Magnitudes(input)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in FFT hot path, got %.1f", allocs)
	}
}

func BenchmarkMagnitudes(b *testing.B) {
	p := newTestProcessor(b)
	input := utils.ComplexWave(testFFTSize, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		p.Magnitudes(input)
	}
}

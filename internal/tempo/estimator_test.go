// SPDX-License-Identifier: MIT
package tempo

import (
	"math"
	"testing"

	"listener/pkg/utils"
)

const (
	testSampleRate = 44100
	testBlockSize  = 512
)

func newTestEstimator(t testing.TB) *FluxEstimator {
	t.Helper()
	cfg := DefaultConfig()
	e, err := NewFluxEstimator(testSampleRate, cfg.MinBPM, cfg.MaxBPM, cfg.Estimator)
	if err != nil {
		t.Fatalf("NewFluxEstimator: %v", err)
	}
	return e
}

func TestFluxEstimatorKickTrack(t *testing.T) {
	tests := []struct {
		name string
		bpm  float64
	}{
		{"House", 124},
		{"Techno", 135},
		{"Slow groove", 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEstimator(t)
			signal := utils.KickTrack(10, testSampleRate, tt.bpm, 60, 0.9)

			var last Estimate
			onsets := 0
			for _, block := range utils.Blocks(signal, testBlockSize) {
				last = e.Estimate(block)
				if last.Onset {
					onsets++
				}
			}

			wantOnsets := int(10 * tt.bpm / 60)
			if onsets < wantOnsets-1 || onsets > wantOnsets+1 {
				t.Errorf("onsets = %d, want ~%d", onsets, wantOnsets)
			}
			// Block quantisation limits precision to about one block per beat.
			if math.Abs(last.BPM-tt.bpm) > 3 {
				t.Errorf("bpm = %.2f, want ~%.0f", last.BPM, tt.bpm)
			}
			if last.Confidence < 0.8 {
				t.Errorf("confidence = %.2f, want >= 0.8 on a steady kick", last.Confidence)
			}
		})
	}
}

func TestFluxEstimatorSilence(t *testing.T) {
	e := newTestEstimator(t)
	silence := make([]float32, testBlockSize)
	for i := range 500 {
		if est := e.Estimate(silence); est != (Estimate{}) {
			t.Fatalf("block %d: silence produced %+v", i, est)
		}
	}
	if est := e.Estimate(nil); est != (Estimate{}) {
		t.Errorf("empty block produced %+v", est)
	}
}

func TestFluxEstimatorFoldsIntervals(t *testing.T) {
	e := newTestEstimator(t)
	tests := []struct {
		period float64
		want   float64
	}{
		{0.5, 0.5},
		{0.25, 0.5},
		{1.2, 0.6},
		{2.0, 0.5},
	}
	for _, tt := range tests {
		e.intervals = e.intervals[:0]
		e.addInterval(tt.period)
		if len(e.intervals) != 1 || math.Abs(e.intervals[0]-tt.want) > 1e-12 {
			t.Errorf("addInterval(%f) stored %v, want %f", tt.period, e.intervals, tt.want)
		}
	}
}

func TestFluxEstimatorZeroAlloc(t *testing.T) {
	e := newTestEstimator(t)
	blocks := utils.Blocks(utils.KickTrack(4, testSampleRate, 124, 60, 0.9), testBlockSize)
	for _, b := range blocks {
		e.Estimate(b)
	}

	i := 0
	allocs := testing.AllocsPerRun(100, func() {
		e.Estimate(blocks[i%len(blocks)])
		i++
	})
	if allocs != 0 {
		t.Errorf("Estimate allocated %.1f times per block, want 0", allocs)
	}
}

// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

const testSampleRate = 44100

func TestSineWaveAmplitude(t *testing.T) {
	wave := SineWave(testSampleRate, testSampleRate, 440, 0.5)
	var peak float64
	for _, s := range wave {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if math.Abs(peak-0.5) > 0.001 {
		t.Errorf("peak = %f, want 0.5", peak)
	}
}

func TestNoiseIsDeterministicAndBounded(t *testing.T) {
	a := Noise(1024, 0.2, 7)
	b := Noise(1024, 0.2, 7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs", i)
		}
		if math.Abs(float64(a[i])) > 0.2 {
			t.Fatalf("sample %d = %f exceeds amplitude", i, a[i])
		}
	}
}

func TestBlocks(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		blockSize int
		want      int
	}{
		{"Exact", 1024, 256, 4},
		{"Partial dropped", 1000, 256, 3},
		{"Too short", 100, 256, 0},
		{"Invalid size", 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Blocks(make([]float32, tt.n), tt.blockSize)); got != tt.want {
				t.Errorf("len(Blocks) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKickTrackDecaysBetweenBeats(t *testing.T) {
	track := KickTrack(1, testSampleRate, 120, 60, 0.9)
	early := rms(track[100:1100])
	late := rms(track[18000:19000]) // ~0.41s, just before the second beat
	if early <= late*10 {
		t.Errorf("expected strong decay: early=%f late=%f", early, late)
	}
}

func TestFindPeakBin(t *testing.T) {
	magnitudes := make([]float64, 512)
	for i := range magnitudes {
		magnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-128), 2))
	}
	tests := []struct {
		name       string
		start, end int
		want       int
	}{
		{"Full range", 0, 511, 128},
		{"Clamped range", -5, 900, 128},
		{"Before peak", 0, 100, 100},
		{"After peak", 200, 511, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(magnitudes, tt.start, tt.end); got != tt.want {
				t.Errorf("FindPeakBin = %d, want %d", got, tt.want)
			}
		})
	}
	if got := FindPeakBin(nil, 0, 10); got != 0 {
		t.Errorf("FindPeakBin(nil) = %d, want 0", got)
	}
}

func rms(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

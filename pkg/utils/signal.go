// SPDX-License-Identifier: MIT
//
// Package utils generates deterministic synthetic signals for tests and
// benchmarks across the analysis packages.
package utils

import "math"

// SineWave returns n samples of a sine at frequency Hz with the given peak
// amplitude.
func SineWave(n int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// ComplexWave returns a 440Hz fundamental with two harmonics.
func ComplexWave(n int, sampleRate float64) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Noise returns white noise in [-amplitude, amplitude] from a fixed-seed LCG
// so repeated runs produce identical buffers.
func Noise(n int, amplitude float64, seed uint32) []float32 {
	buffer := make([]float32, n)
	state := seed
	for i := range buffer {
		state = state*1664525 + 1013904223
		buffer[i] = float32((float64(state)/float64(math.MaxUint32)*2 - 1) * amplitude)
	}
	return buffer
}

// KickTrack returns durationSecs of a four-on-the-floor pattern: at every
// beat a low sine burst with an exponential decay.
func KickTrack(durationSecs, sampleRate, bpm, frequency, amplitude float64) []float32 {
	total := int(durationSecs * sampleRate)
	buffer := make([]float32, total)
	period := 60.0 / bpm
	for i := range buffer {
		t := float64(i) / sampleRate
		sinceBeat := math.Mod(t, period)
		env := math.Exp(-sinceBeat * 18)
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*sinceBeat) * amplitude * env)
	}
	return buffer
}

// Mix adds b into a sample by sample and returns a. The shorter length wins.
func Mix(a, b []float32) []float32 {
	for i := range min(len(a), len(b)) {
		a[i] += b[i]
	}
	return a
}

// Blocks slices signal into consecutive blocks of blockSize. A trailing
// partial block is dropped.
func Blocks(signal []float32, blockSize int) [][]float32 {
	if blockSize <= 0 {
		return nil
	}
	blocks := make([][]float32, 0, len(signal)/blockSize)
	for start := 0; start+blockSize <= len(signal); start += blockSize {
		blocks = append(blocks, signal[start:start+blockSize])
	}
	return blocks
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}

// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math/cmplx"

	"listener/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Workspace holds pre-allocated buffers for FFT calculations.
type Workspace struct {
	input     []float64    // ...for real input samples (windowed)
	fftOutput []complex128 // ...for FFT complex output
	magnitude []float64    // ...for raw magnitude output
	window    []float64    // ...for window function coefficients
}

// Processor computes the magnitude spectrum of a fixed-size real buffer.
// It is not safe for concurrent use; the analysis pipeline owns one
// instance and calls it from the audio callback only.
type Processor struct {
	size       int
	sampleRate float64
	workspace  Workspace
	fftObj     *fourier.FFT
}

// NewProcessor creates a new FFT processor and pre-allocates all buffers
// used by Magnitudes. size must be a power of two.
func NewProcessor(size int, sampleRate float64, windowType WindowFunc) (*Processor, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	coeffs := make([]float64, size)
	windowCoefficients(coeffs, windowType)

	// Real input of N points yields N/2 + 1 complex coefficients.
	outputSize := size/2 + 1

	return &Processor{
		size:       size,
		sampleRate: sampleRate,
		fftObj:     fourier.NewFFT(size),
		workspace: Workspace{
			input:     make([]float64, size),
			fftOutput: make([]complex128, outputSize),
			magnitude: make([]float64, outputSize),
			window:    coeffs,
		},
	}, nil
}

// Magnitudes windows samples, transforms them and returns |X[k]| for
// k = 0..N/2. Shorter input is zero padded, longer input is truncated.
// The returned slice is owned by the processor and is overwritten by the
// next call.
func (p *Processor) Magnitudes(samples []float32) []float64 {
	n := len(samples)
	for i := range p.size {
		if i < n {
			p.workspace.input[i] = float64(samples[i]) * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0
		}
	}

	p.fftObj.Coefficients(p.workspace.fftOutput, p.workspace.input)
	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c)
	}
	return p.workspace.magnitude
}

// BinFrequency returns the frequency in Hz for a given FFT bin index, or 0
// when the index is out of range.
func (p *Processor) BinFrequency(i int) float64 {
	if i < 0 || i >= len(p.workspace.fftOutput) {
		return 0
	}
	return p.fftObj.Freq(i) * p.sampleRate
}

// Bins returns the number of magnitude bins (N/2 + 1).
func (p *Processor) Bins() int {
	return len(p.workspace.magnitude)
}

// SampleRate returns the sample rate the bin frequencies are based on.
func (p *Processor) SampleRate() float64 {
	return p.sampleRate
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"listener/internal/fft"
	applog "listener/internal/log"
)

// FrequencyBand is a half-open [LowHz, HighHz) range resolved to the FFT
// bins [lo, hi) it covers.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
	lo, hi int
}

// Bins returns the number of FFT bins the band sums. Zero means the band
// mask is empty and the band always reads zero.
func (b FrequencyBand) Bins() int {
	return b.hi - b.lo
}

func (b FrequencyBand) energy(magnitudes []float64) float64 {
	var sum float64
	for i := b.lo; i < b.hi; i++ {
		sum += magnitudes[i]
	}
	return sum
}

// BandEnergyExtractor keeps the analysis window, transforms it once per
// block and sums magnitudes into bass, mid and treble energies.
type BandEnergyExtractor struct {
	window *Window
	fft    *fft.Processor
	bands  [3]FrequencyBand
}

// NewBandEnergyExtractor resolves the configured band edges to bin ranges
// for a windowSize-point transform.
func NewBandEnergyExtractor(sampleRate float64, windowSize int, windowType fft.WindowFunc, cfg FeatureConfig) (*BandEnergyExtractor, error) {
	proc, err := fft.NewProcessor(windowSize, sampleRate, windowType)
	if err != nil {
		return nil, fmt.Errorf("band energy extractor: %w", err)
	}

	bands := [3]FrequencyBand{
		{Name: "bass", LowHz: cfg.BassLowHz, HighHz: cfg.BassHighHz},
		{Name: "mid", LowHz: cfg.MidLowHz, HighHz: cfg.MidHighHz},
		{Name: "treble", LowHz: cfg.TrebleLowHz, HighHz: cfg.TrebleHighHz},
	}
	for i := range bands {
		bands[i].lo, bands[i].hi = binRange(proc, bands[i].LowHz, bands[i].HighHz)
		if bands[i].Bins() == 0 {
			applog.Warnf("Analysis: band %q [%.0f, %.0f) Hz selects no FFT bins and will read zero",
				bands[i].Name, bands[i].LowHz, bands[i].HighHz)
		}
	}

	applog.Infof("Analysis: BandEnergyExtractor (Window: %d, Bins: bass=%d mid=%d treble=%d, %s)",
		windowSize, bands[0].Bins(), bands[1].Bins(), bands[2].Bins(), windowType)

	return &BandEnergyExtractor{
		window: NewWindow(windowSize),
		fft:    proc,
		bands:  bands,
	}, nil
}

// binRange returns the contiguous bins whose frequency lies in [lowHz, highHz).
func binRange(proc *fft.Processor, lowHz, highHz float64) (lo, hi int) {
	n := proc.Bins()
	lo, hi = n, n
	for i := range n {
		f := proc.BinFrequency(i)
		if lo == n && f >= lowHz {
			lo = i
		}
		if f >= highHz {
			hi = i
			break
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Process pushes block into the window and returns the raw band energies.
func (b *BandEnergyExtractor) Process(block []float32) (bass, mid, treble float64) {
	b.window.Push(block)
	magnitudes := b.fft.Magnitudes(b.window.Samples())
	return b.bands[0].energy(magnitudes), b.bands[1].energy(magnitudes), b.bands[2].energy(magnitudes)
}

// Bands returns the resolved bands in bass, mid, treble order.
func (b *BandEnergyExtractor) Bands() [3]FrequencyBand {
	return b.bands
}

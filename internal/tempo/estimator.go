// SPDX-License-Identifier: MIT
package tempo

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// FluxEstimator is the built-in Estimator. It detects energy onsets against
// a running average of recent blocks and derives tempo from the median of
// the recent inter-onset intervals, folded into the plausible BPM range.
// Confidence is the share of intervals that agree with the median.
type FluxEstimator struct {
	cfg        EstimatorConfig
	sampleRate float64
	minPeriod  float64 // seconds, at MaxBPM
	maxPeriod  float64 // seconds, at MinBPM

	energies []float64
	next     int
	filled   int

	intervals []float64
	scratch   []float64

	above       bool
	elapsed     int64 // samples since the previous onset
	seenOnset   bool
	minInterval int64
}

var _ Estimator = (*FluxEstimator)(nil)

// NewFluxEstimator builds an estimator for blocks at sampleRate. Tempos are
// folded into [minBPM, maxBPM].
func NewFluxEstimator(sampleRate, minBPM, maxBPM float64, cfg EstimatorConfig) (*FluxEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("flux estimator: sample rate must be positive, got %f", sampleRate)
	}
	if minBPM <= 0 || maxBPM <= minBPM {
		return nil, fmt.Errorf("flux estimator: invalid bpm range %f..%f", minBPM, maxBPM)
	}
	return &FluxEstimator{
		cfg:         cfg,
		sampleRate:  sampleRate,
		minPeriod:   60 / maxBPM,
		maxPeriod:   60 / minBPM,
		energies:    make([]float64, cfg.HistoryBlocks),
		intervals:   make([]float64, 0, cfg.IntervalHistory),
		scratch:     make([]float64, 0, cfg.IntervalHistory),
		minInterval: int64(cfg.MinInterval.Seconds() * sampleRate),
	}, nil
}

// Estimate consumes one block.
func (e *FluxEstimator) Estimate(block []float32) Estimate {
	if len(block) == 0 {
		return e.current(false)
	}

	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	energy := sum / float64(len(block))

	avg := e.average()
	e.push(energy)

	isAbove := energy > 1e-9 && energy > e.cfg.OnsetRatio*avg
	rising := isAbove && !e.above
	e.above = isAbove

	onset := false
	if rising && (!e.seenOnset || e.elapsed >= e.minInterval) {
		onset = true
		if e.seenOnset {
			e.addInterval(float64(e.elapsed) / e.sampleRate)
		}
		e.seenOnset = true
		e.elapsed = 0
	}
	e.elapsed += int64(len(block))

	return e.current(onset)
}

func (e *FluxEstimator) average() float64 {
	if e.filled == 0 {
		return 0
	}
	var sum float64
	for _, v := range e.energies[:e.filled] {
		sum += v
	}
	return sum / float64(e.filled)
}

func (e *FluxEstimator) push(energy float64) {
	e.energies[e.next] = energy
	e.next = (e.next + 1) % len(e.energies)
	if e.filled < len(e.energies) {
		e.filled++
	}
}

// addInterval folds period by octaves into the plausible range and keeps the
// most recent IntervalHistory values.
func (e *FluxEstimator) addInterval(period float64) {
	for period < e.minPeriod && period > 0 {
		period *= 2
	}
	for period > e.maxPeriod {
		period /= 2
	}
	if period < e.minPeriod {
		return
	}
	if len(e.intervals) == cap(e.intervals) {
		copy(e.intervals, e.intervals[1:])
		e.intervals = e.intervals[:len(e.intervals)-1]
	}
	e.intervals = append(e.intervals, period)
}

func (e *FluxEstimator) current(onset bool) Estimate {
	if len(e.intervals) < 2 {
		return Estimate{Onset: onset}
	}
	e.scratch = append(e.scratch[:0], e.intervals...)
	slices.Sort(e.scratch)
	median := stat.Quantile(0.5, stat.Empirical, e.scratch, nil)
	if median <= 0 {
		return Estimate{Onset: onset}
	}

	agree := 0
	for _, p := range e.intervals {
		if math.Abs(p-median) <= e.cfg.Tolerance*median {
			agree++
		}
	}
	return Estimate{
		Onset:      onset,
		BPM:        60 / median,
		Confidence: float64(agree) / float64(len(e.intervals)),
	}
}

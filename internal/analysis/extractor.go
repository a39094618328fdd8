// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"time"

	"listener/internal/fft"
	applog "listener/internal/log"
)

// Normalizer tracks long-run loudness and turns it into a gain that pulls
// the raw band energies towards the target level.
type Normalizer struct {
	cfg      FeatureConfig
	loudness float64
	gain     float64
}

// NormalizationGain returns the gain for a given loudness EMA: zero at or
// below the silence gate, otherwise target/loudness clamped to
// [MinNorm, MaxNorm]. With auto normalisation off the gain is 1.
func NormalizationGain(loudness float64, cfg FeatureConfig) float64 {
	if !cfg.AutoNormalize {
		return 1.0
	}
	if loudness <= cfg.SilenceGate {
		return 0
	}
	return Clamp(cfg.TargetLevel/max(loudness, Epsilon), cfg.MinNorm, cfg.MaxNorm)
}

// Step folds the raw total energy of one block into the loudness EMA and
// returns the updated gain.
func (n *Normalizer) Step(rawTotal float64) float64 {
	n.loudness = Lerp(n.loudness, rawTotal, n.cfg.LoudnessSmoothing)
	n.gain = NormalizationGain(n.loudness, n.cfg)
	return n.gain
}

// Floor is the adaptive noise floor below which a normalised band is
// treated as silence.
func (n *Normalizer) Floor() float64 {
	return max(n.cfg.NoiseFloor, n.cfg.TargetLevel*n.cfg.NoiseFloorRatio)
}

// Gain returns the gain applied to the most recent block.
func (n *Normalizer) Gain() float64 {
	return n.gain
}

// smoothedState is everything the extractor carries from one block to the
// next apart from the window and the onset detectors.
type smoothedState struct {
	bass, mid, treble float64
	energySlow        float64
	movement          float64
	variance          float64
}

// Extractor turns audio blocks into Features. It owns the analysis window
// and all smoothing state and must be driven from a single goroutine.
type Extractor struct {
	cfg        FeatureConfig
	sampleRate float64
	bands      *BandEnergyExtractor
	norm       Normalizer
	beat       *OnsetDetector
	pulse      *OnsetDetector
	state      smoothedState
}

// NewExtractor validates cfg and allocates the window and FFT workspace.
func NewExtractor(sampleRate float64, windowSize int, windowType fft.WindowFunc, cfg FeatureConfig) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bands, err := NewBandEnergyExtractor(sampleRate, windowSize, windowType, cfg)
	if err != nil {
		return nil, err
	}

	applog.Infof("Analysis: Extractor ready (auto_normalize=%v target=%.3f beat=%.3f/%s pulse=%.3f/%s)",
		cfg.AutoNormalize, cfg.TargetLevel,
		cfg.BeatFluxThreshold, cfg.BeatRefractory, cfg.PulseFluxThreshold, cfg.PulseRefractory)

	return &Extractor{
		cfg:        cfg,
		sampleRate: sampleRate,
		bands:      bands,
		norm:       Normalizer{cfg: cfg},
		beat:       NewOnsetDetector(cfg.BeatFluxThreshold, cfg.BeatRefractory),
		pulse:      NewOnsetDetector(cfg.PulseFluxThreshold, cfg.PulseRefractory),
	}, nil
}

// BlockDuration converts a sample count to real time at sampleRate.
func BlockDuration(samples int, sampleRate float64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / sampleRate * float64(time.Second))
}

// Process analyses one block. An empty block yields no features.
func (e *Extractor) Process(block []float32) (Features, bool) {
	if len(block) == 0 {
		return Features{}, false
	}
	dt := BlockDuration(len(block), e.sampleRate)

	bRaw, mRaw, tRaw := e.bands.Process(block)

	gain := e.norm.Step(bRaw+mRaw+tRaw) * e.cfg.Gain
	floor := e.norm.Floor()
	b := gate(bRaw*gain, floor)
	m := gate(mRaw*gain, floor)
	t := gate(tRaw*gain, floor)

	s := &e.state
	s.bass = Lerp(s.bass, b, e.cfg.Smoothing)
	s.mid = Lerp(s.mid, m, e.cfg.Smoothing)
	s.treble = Lerp(s.treble, t, e.cfg.Smoothing)

	beat, _ := e.beat.Step(s.bass, dt)
	pulse, _ := e.pulse.Step(s.treble, dt)

	total := s.bass + s.mid + s.treble
	prevSlow := s.energySlow
	s.energySlow = Lerp(s.energySlow, total, e.cfg.MovementSmoothing)
	s.movement = Lerp(s.movement, s.energySlow-prevSlow, e.cfg.MovementTrendSmoothing)
	dev := total - s.energySlow
	s.variance = Lerp(s.variance, dev*dev, e.cfg.VarianceSmoothing)

	f := Features{
		Bass:           s.bass,
		Mid:            s.mid,
		Treble:         s.treble,
		TotalEnergy:    total,
		EnergyDelta:    total - prevSlow,
		Movement:       s.movement,
		EnergyVariance: s.variance,
		BandBalance:    bandBalance(s.bass, s.mid, s.treble, total),
		Beat:           beat,
		Pulse:          pulse,
	}
	if total > 0 {
		f.BassRatio = s.bass / total
		f.MidRatio = s.mid / total
		f.TrebleRatio = s.treble / total
	}
	return f, true
}

func gate(v, floor float64) float64 {
	if v < floor {
		return 0
	}
	return v
}

// bandBalance is 1 for three equal bands and falls towards 0 as one band
// dominates.
func bandBalance(b, m, t, total float64) float64 {
	mean := total / 3.0
	variance := ((b-mean)*(b-mean) + (m-mean)*(m-mean) + (t-mean)*(t-mean)) / 3.0
	return 1.0 - Clamp(variance/max(total*total, Epsilon), 0, 1)
}

// Gain returns the normalisation gain applied to the last block, without
// the makeup multiplier.
func (e *Extractor) Gain() float64 {
	return e.norm.Gain()
}

// Bands exposes the resolved band bin ranges.
func (e *Extractor) Bands() [3]FrequencyBand {
	return e.bands.Bands()
}

// String summarises the extractor for startup logs.
func (e *Extractor) String() string {
	return fmt.Sprintf("Extractor(rate=%.0f window=%d)", e.sampleRate, e.bands.window.Len())
}

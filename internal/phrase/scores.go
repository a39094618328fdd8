// SPDX-License-Identifier: MIT
package phrase

import (
	"fmt"
	"math"
	"strings"

	"listener/internal/analysis"
)

// Scores holds one score in [0, 1] per label. SILENCE is never scored; it
// is decided on energy alone.
type Scores [labelCount]float64

// Get returns the score for l.
func (s Scores) Get(l Label) float64 {
	if l >= labelCount {
		return 0
	}
	return s[l]
}

func (s Scores) String() string {
	var b strings.Builder
	for l := Build; l < labelCount; l++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%.2f", l, s[l])
	}
	return b.String()
}

// best returns the highest scoring contender, or FILL with 0 when every
// contender scores zero.
func (s Scores) best() (Label, float64) {
	label, score := Fill, 0.0
	for _, l := range contenders {
		if s[l] > score {
			label, score = l, s[l]
		}
	}
	return label, score
}

// trends is the classifier's own smoothing of the feature stream.
type trends struct {
	energy   float64
	movement float64
	variance float64
	beat     float64
	pulse    float64

	bassRatio, midRatio, trebleRatio             float64
	bassRatioLong, midRatioLong, trebleRatioLong float64

	lastBassEnergy float64
	centroid       float64
}

// signals are the per-block inputs to the score formulas.
type signals struct {
	varianceNorm    float64
	spectralShift   float64
	transientSpike  float64
	bassEnergyDelta float64
	centroidDelta   float64
}

func (t *trends) update(f analysis.Features, cfg *Config) signals {
	lerp := analysis.Lerp

	rolling := t.energy
	t.energy = lerp(t.energy, f.TotalEnergy, cfg.EnergySmoothing)
	t.movement = lerp(t.movement, f.Movement, cfg.TrendSmoothing)
	t.variance = lerp(t.variance, f.EnergyVariance, cfg.TrendSmoothing)
	t.beat = lerp(t.beat, b2f(f.Beat), cfg.BeatSmoothing)
	t.pulse = lerp(t.pulse, b2f(f.Pulse), cfg.BeatSmoothing)

	t.bassRatio = lerp(t.bassRatio, f.BassRatio, cfg.EnergySmoothing)
	t.midRatio = lerp(t.midRatio, f.MidRatio, cfg.EnergySmoothing)
	t.trebleRatio = lerp(t.trebleRatio, f.TrebleRatio, cfg.EnergySmoothing)

	t.bassRatioLong = lerp(t.bassRatioLong, f.BassRatio, cfg.RatioLongSmoothing)
	t.midRatioLong = lerp(t.midRatioLong, f.MidRatio, cfg.RatioLongSmoothing)
	t.trebleRatioLong = lerp(t.trebleRatioLong, f.TrebleRatio, cfg.RatioLongSmoothing)

	bassEnergy := f.TotalEnergy * f.BassRatio
	bassDelta := bassEnergy - t.lastBassEnergy
	t.lastBassEnergy = bassEnergy

	prevCentroid := t.centroid
	t.centroid = t.trebleRatio - t.bassRatio

	return signals{
		varianceNorm: t.variance / max(t.energy*t.energy, analysis.Epsilon),
		spectralShift: math.Abs(t.bassRatio-t.bassRatioLong) +
			math.Abs(t.midRatio-t.midRatioLong) +
			math.Abs(t.trebleRatio-t.trebleRatioLong),
		transientSpike:  f.TotalEnergy - rolling,
		bassEnergyDelta: bassDelta,
		centroidDelta:   t.centroid - prevCentroid,
	}
}

// silent reports whether the slow energy average has fallen to the silence
// threshold.
func (t *trends) silent(cfg *Config) bool {
	return t.energy <= cfg.SilenceThreshold
}

// computeScores blends the signals into per-label scores. confidence is
// the beat confidence in [0, 1].
func computeScores(t *trends, sig signals, confidence float64, cfg *Config) Scores {
	var s Scores
	if t.silent(cfg) {
		return s
	}
	clamp := analysis.Clamp

	energyNorm := clamp((t.energy-cfg.LowEnergyThreshold)/
		max(cfg.HighEnergyThreshold-cfg.LowEnergyThreshold, 1e-4), 0, 1)
	beatScore := clamp((confidence-cfg.GrooveConfidence)/(1-cfg.GrooveConfidence), 0, 1)
	pulseScore := clamp((t.pulse-cfg.PulseSparseThreshold)/(1-cfg.PulseSparseThreshold), 0, 1)
	trebleDominance := clamp((t.trebleRatio-cfg.TrebleRatioHigh)/(1-cfg.TrebleRatioHigh), 0, 1)
	movementSize := clamp(math.Abs(t.movement)/(cfg.BuildSlopeThreshold*4), 0, 1)
	varianceExcess := clamp((sig.varianceNorm-cfg.VarianceLowThreshold)/cfg.VarianceHighThreshold, 0, 1)

	s[Impact] = clamp(sig.transientSpike/cfg.ImpactEnergyDeltaThreshold, 0, 1)

	s[Drop] = clamp((confidence-cfg.DropConfidence)/(1-cfg.DropConfidence), 0, 1)*0.3 +
		clamp(sig.bassEnergyDelta/cfg.DropEnergyDeltaThreshold, 0, 1)*0.35 +
		clamp(-sig.centroidDelta/cfg.CentroidDropThreshold, 0, 1)*0.2 +
		pulseScore*0.15

	s[Build] = clamp((t.movement-cfg.BuildSlopeThreshold)/(cfg.BuildSlopeThreshold*3), 0, 1)*0.4 +
		trebleDominance*0.2 +
		pulseScore*0.2 +
		energyNorm*0.2

	ratioStable := 1 - clamp(sig.spectralShift/cfg.BridgeShiftThreshold, 0, 1)
	s[Groove] = beatScore*0.4 + ratioStable*0.3 + (1-movementSize)*0.2 + (1-varianceExcess)*0.1

	bassDrop := clamp((cfg.BassRatioLow-t.bassRatio)/cfg.BassRatioLow, 0, 1)
	beatLow := clamp((cfg.BreakdownConfidence-confidence)/cfg.BreakdownConfidence, 0, 1)
	energyLow := clamp((cfg.LowEnergyThreshold-t.energy)/cfg.LowEnergyThreshold, 0, 1)
	s[Breakdown] = bassDrop*0.4 + beatLow*0.25 + trebleDominance*0.2 + energyLow*0.15

	s[Switchup] = clamp((sig.spectralShift-cfg.BridgeShiftThreshold)/cfg.BridgeShiftThreshold, 0, 1)*0.6 +
		varianceExcess*0.2 +
		movementSize*0.2

	_, maxOther := s.best()
	s[Fill] = clamp(1-maxOther, 0, 1)
	return s
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

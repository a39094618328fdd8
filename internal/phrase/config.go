// SPDX-License-Identifier: MIT
package phrase

import "fmt"

// Config holds every smoothing factor, threshold and beat count used by the
// Classifier.
type Config struct {
	EnergySmoothing    float64 `yaml:"energy_smooth"`
	TrendSmoothing     float64 `yaml:"trend_smooth"`
	BeatSmoothing      float64 `yaml:"beat_smooth"`
	RatioLongSmoothing float64 `yaml:"ratio_long_smooth"`

	SilenceThreshold    float64 `yaml:"silence_threshold"`
	LowEnergyThreshold  float64 `yaml:"low_energy_threshold"`
	HighEnergyThreshold float64 `yaml:"high_energy_threshold"`

	BuildSlopeThreshold        float64 `yaml:"build_slope_threshold"`
	ImpactEnergyDeltaThreshold float64 `yaml:"impact_energy_delta_threshold"`
	DropEnergyDeltaThreshold   float64 `yaml:"drop_energy_delta_threshold"`
	CentroidDropThreshold      float64 `yaml:"centroid_drop_threshold"`

	// Confidence pivots: scores start rising (or falling, for breakdown)
	// once beat confidence crosses these.
	GrooveConfidence    float64 `yaml:"groove_confidence"`
	DropConfidence      float64 `yaml:"drop_confidence"`
	BreakdownConfidence float64 `yaml:"breakdown_confidence"`

	PulseSparseThreshold  float64 `yaml:"pulse_sparse_threshold"`
	BassRatioLow          float64 `yaml:"bass_ratio_low"`
	TrebleRatioHigh       float64 `yaml:"treble_ratio_high"`
	VarianceHighThreshold float64 `yaml:"variance_high_threshold"`
	VarianceLowThreshold  float64 `yaml:"variance_low_threshold"`
	BridgeShiftThreshold  float64 `yaml:"bridge_shift_threshold"`

	EnterThreshold         float64 `yaml:"enter_threshold"`
	WeakScoreThreshold     float64 `yaml:"weak_score_threshold"`
	DropOverrideThreshold  float64 `yaml:"drop_override_threshold"`
	ImpactTriggerThreshold float64 `yaml:"impact_trigger_threshold"`

	FallbackWeakBeats    int `yaml:"fallback_weak_beats"`
	DropConfirmBeats     int `yaml:"drop_confirm_beats"`
	BuildConfirmBeats    int `yaml:"build_confirm_beats"`
	SwitchupConfirmBeats int `yaml:"switchup_confirm_beats"`

	Dwell DwellBeats `yaml:"dwell"`
}

// DwellBeats is the minimum number of beats each label is held before a
// regular transition out of it is allowed.
type DwellBeats struct {
	Silence   int `yaml:"silence"`
	Impact    int `yaml:"impact"`
	Drop      int `yaml:"drop"`
	Fill      int `yaml:"fill"`
	Build     int `yaml:"build"`
	Breakdown int `yaml:"breakdown"`
	Switchup  int `yaml:"switchup"`
	Groove    int `yaml:"groove"`
}

// DefaultConfig returns the classifier tuning.
func DefaultConfig() Config {
	return Config{
		EnergySmoothing:    0.12,
		TrendSmoothing:     0.18,
		BeatSmoothing:      0.2,
		RatioLongSmoothing: 0.02,

		SilenceThreshold:    0.01,
		LowEnergyThreshold:  0.04,
		HighEnergyThreshold: 0.14,

		BuildSlopeThreshold:        0.002,
		ImpactEnergyDeltaThreshold: 0.04,
		DropEnergyDeltaThreshold:   0.02,
		CentroidDropThreshold:      0.035,

		GrooveConfidence:    0.65,
		DropConfidence:      0.7,
		BreakdownConfidence: 0.55,

		PulseSparseThreshold:  0.2,
		BassRatioLow:          0.2,
		TrebleRatioHigh:       0.45,
		VarianceHighThreshold: 0.35,
		VarianceLowThreshold:  0.12,
		BridgeShiftThreshold:  0.22,

		EnterThreshold:         0.55,
		WeakScoreThreshold:     0.35,
		DropOverrideThreshold:  0.9,
		ImpactTriggerThreshold: 0.7,

		FallbackWeakBeats:    3,
		DropConfirmBeats:     4,
		BuildConfirmBeats:    4,
		SwitchupConfirmBeats: 8,

		Dwell: DwellBeats{
			Silence:   0,
			Impact:    2,
			Drop:      4,
			Fill:      4,
			Build:     8,
			Breakdown: 8,
			Switchup:  8,
			Groove:    16,
		},
	}
}

// MinBeats returns the dwell for l.
func (d DwellBeats) MinBeats(l Label) int {
	switch l {
	case Silence:
		return d.Silence
	case Impact:
		return d.Impact
	case Drop:
		return d.Drop
	case Fill:
		return d.Fill
	case Build:
		return d.Build
	case Breakdown:
		return d.Breakdown
	case Switchup:
		return d.Switchup
	case Groove:
		return d.Groove
	default:
		return d.Fill
	}
}

// Validate rejects settings that would divide by zero or leave an EMA
// frozen.
func (c Config) Validate() error {
	factors := map[string]float64{
		"energy_smooth":     c.EnergySmoothing,
		"trend_smooth":      c.TrendSmoothing,
		"beat_smooth":       c.BeatSmoothing,
		"ratio_long_smooth": c.RatioLongSmoothing,
	}
	for name, alpha := range factors {
		if alpha <= 0 || alpha > 1 {
			return fmt.Errorf("phrase.%s must be in (0, 1], got %f", name, alpha)
		}
	}

	divisors := map[string]float64{
		"low_energy_threshold":          c.LowEnergyThreshold,
		"build_slope_threshold":         c.BuildSlopeThreshold,
		"impact_energy_delta_threshold": c.ImpactEnergyDeltaThreshold,
		"drop_energy_delta_threshold":   c.DropEnergyDeltaThreshold,
		"centroid_drop_threshold":       c.CentroidDropThreshold,
		"bass_ratio_low":                c.BassRatioLow,
		"variance_high_threshold":       c.VarianceHighThreshold,
		"bridge_shift_threshold":        c.BridgeShiftThreshold,
	}
	for name, v := range divisors {
		if v <= 0 {
			return fmt.Errorf("phrase.%s must be positive, got %f", name, v)
		}
	}

	unit := map[string]float64{
		"groove_confidence":      c.GrooveConfidence,
		"drop_confidence":        c.DropConfidence,
		"breakdown_confidence":   c.BreakdownConfidence,
		"pulse_sparse_threshold": c.PulseSparseThreshold,
		"treble_ratio_high":      c.TrebleRatioHigh,
	}
	for name, v := range unit {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("phrase.%s must be in (0, 1), got %f", name, v)
		}
	}

	if c.SilenceThreshold < 0 {
		return fmt.Errorf("phrase.silence_threshold must not be negative, got %f", c.SilenceThreshold)
	}
	if c.HighEnergyThreshold <= c.LowEnergyThreshold {
		return fmt.Errorf("phrase.high_energy_threshold must exceed low_energy_threshold, got %f <= %f",
			c.HighEnergyThreshold, c.LowEnergyThreshold)
	}
	if c.FallbackWeakBeats < 0 || c.DropConfirmBeats < 0 || c.BuildConfirmBeats < 0 || c.SwitchupConfirmBeats < 0 {
		return fmt.Errorf("phrase beat counts must not be negative")
	}
	d := c.Dwell
	if d.Silence < 0 || d.Impact < 0 || d.Drop < 0 || d.Fill < 0 || d.Build < 0 ||
		d.Breakdown < 0 || d.Switchup < 0 || d.Groove < 0 {
		return fmt.Errorf("phrase.dwell values must not be negative")
	}
	return nil
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"time"
)

// FeatureConfig holds every option of the band extractor, loudness
// normaliser, band smoother and onset detectors.
type FeatureConfig struct {
	BassLowHz    float64 `yaml:"bass_lo"`
	BassHighHz   float64 `yaml:"bass_hi"`
	MidLowHz     float64 `yaml:"mid_lo"`
	MidHighHz    float64 `yaml:"mid_hi"`
	TrebleLowHz  float64 `yaml:"treble_lo"`
	TrebleHighHz float64 `yaml:"treble_hi"`

	Gain      float64 `yaml:"gain"`   // Makeup multiplier applied after normalisation.
	Smoothing float64 `yaml:"smooth"` // Fast EMA factor for the three bands.

	AutoNormalize     bool    `yaml:"auto_normalize"`
	LoudnessSmoothing float64 `yaml:"loudness_smooth"`
	TargetLevel       float64 `yaml:"target_level"`
	MinNorm           float64 `yaml:"min_norm"`
	MaxNorm           float64 `yaml:"max_norm"`
	SilenceGate       float64 `yaml:"silence_gate"`
	NoiseFloor        float64 `yaml:"noise_floor"`
	NoiseFloorRatio   float64 `yaml:"noise_floor_ratio_of_target"`

	BeatFluxThreshold  float64       `yaml:"beat_flux_thresh"`
	BeatRefractory     time.Duration `yaml:"beat_refractory"`
	PulseFluxThreshold float64       `yaml:"pulse_flux_thresh"`
	PulseRefractory    time.Duration `yaml:"pulse_refractory"`

	MovementSmoothing      float64 `yaml:"movement_smooth"`
	MovementTrendSmoothing float64 `yaml:"movement_trend_smooth"`
	VarianceSmoothing      float64 `yaml:"variance_smooth"`
}

// DefaultFeatureConfig returns the tuning used for club material at
// 44.1kHz with a 1024-point window.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		BassLowHz:    40,
		BassHighHz:   160,
		MidLowHz:     160,
		MidHighHz:    1200,
		TrebleLowHz:  1200,
		TrebleHighHz: 8000,

		Gain:      1.5,
		Smoothing: 0.25,

		AutoNormalize:     true,
		LoudnessSmoothing: 0.08,
		TargetLevel:       0.08,
		MinNorm:           0.25,
		MaxNorm:           8.0,
		SilenceGate:       0.0006,
		NoiseFloor:        0.002,
		NoiseFloorRatio:   0.04,

		BeatFluxThreshold:  0.010,
		BeatRefractory:     220 * time.Millisecond,
		PulseFluxThreshold: 0.016,
		PulseRefractory:    80 * time.Millisecond,

		MovementSmoothing:      0.10,
		MovementTrendSmoothing: 0.35,
		VarianceSmoothing:      0.15,
	}
}

// Validate rejects values that would make the extractor meaningless. Band
// edges that select no bins are allowed; such a band reads zero.
func (c FeatureConfig) Validate() error {
	edges := map[string]float64{
		"bass_lo": c.BassLowHz, "bass_hi": c.BassHighHz,
		"mid_lo": c.MidLowHz, "mid_hi": c.MidHighHz,
		"treble_lo": c.TrebleLowHz, "treble_hi": c.TrebleHighHz,
	}
	for name, hz := range edges {
		if hz < 0 {
			return fmt.Errorf("features.%s must not be negative, got %f", name, hz)
		}
	}

	factors := map[string]float64{
		"smooth":                c.Smoothing,
		"loudness_smooth":       c.LoudnessSmoothing,
		"movement_smooth":       c.MovementSmoothing,
		"movement_trend_smooth": c.MovementTrendSmoothing,
		"variance_smooth":       c.VarianceSmoothing,
	}
	for name, alpha := range factors {
		if alpha <= 0 || alpha > 1 {
			return fmt.Errorf("features.%s must be in (0, 1], got %f", name, alpha)
		}
	}

	if c.Gain < 0 {
		return fmt.Errorf("features.gain must not be negative, got %f", c.Gain)
	}
	if c.MinNorm < 0 || c.MaxNorm < c.MinNorm {
		return fmt.Errorf("features.min_norm/max_norm must satisfy 0 <= min <= max, got %f/%f", c.MinNorm, c.MaxNorm)
	}
	if c.TargetLevel <= 0 {
		return fmt.Errorf("features.target_level must be positive, got %f", c.TargetLevel)
	}
	if c.SilenceGate < 0 || c.NoiseFloor < 0 || c.NoiseFloorRatio < 0 {
		return fmt.Errorf("features silence_gate, noise_floor and noise_floor_ratio_of_target must not be negative")
	}
	if c.BeatFluxThreshold < 0 || c.PulseFluxThreshold < 0 {
		return fmt.Errorf("features flux thresholds must not be negative")
	}
	if c.BeatRefractory < 0 || c.PulseRefractory < 0 {
		return fmt.Errorf("features refractory durations must not be negative")
	}
	return nil
}

// FieldCount is the number of values in a serialised feature frame.
const FieldCount = 13

// FieldNames lists the feature keys in frame order.
var FieldNames = [FieldCount]string{
	"bass", "mid", "treble",
	"beat", "pulse",
	"movement", "total_energy", "energy_delta", "energy_variance",
	"bass_ratio", "mid_ratio", "treble_ratio", "band_balance",
}

// Features is the descriptor record produced once per non-empty block.
type Features struct {
	Bass           float64 `json:"bass"`
	Mid            float64 `json:"mid"`
	Treble         float64 `json:"treble"`
	TotalEnergy    float64 `json:"total_energy"`
	EnergyDelta    float64 `json:"energy_delta"`
	Movement       float64 `json:"movement"`
	EnergyVariance float64 `json:"energy_variance"`
	BassRatio      float64 `json:"bass_ratio"`
	MidRatio       float64 `json:"mid_ratio"`
	TrebleRatio    float64 `json:"treble_ratio"`
	BandBalance    float64 `json:"band_balance"`
	Beat           bool    `json:"beat"`
	Pulse          bool    `json:"pulse"`
}

// Values returns the features in FieldNames order with booleans as 0 or 1.
func (f Features) Values() [FieldCount]float64 {
	return [FieldCount]float64{
		f.Bass, f.Mid, f.Treble,
		boolToFloat(f.Beat), boolToFloat(f.Pulse),
		f.Movement, f.TotalEnergy, f.EnergyDelta, f.EnergyVariance,
		f.BassRatio, f.MidRatio, f.TrebleRatio, f.BandBalance,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SPDX-License-Identifier: MIT
package tempo

import (
	"fmt"
	"time"
)

// Config shapes the Tracker: which raw estimates are trusted, how fast
// they are smoothed and how often state is refreshed without an onset.
type Config struct {
	MinBPM              float64 `yaml:"min_bpm"`
	MaxBPM              float64 `yaml:"max_bpm"`
	MinConfidence       float64 `yaml:"min_confidence"`
	BPMSmoothing        float64 `yaml:"bpm_smoothing"`
	ConfidenceSmoothing float64 `yaml:"confidence_smoothing"`
	ResendRate          float64 `yaml:"resend_rate"` // Hz
	InitialBPM          float64 `yaml:"initial_bpm"`

	Estimator EstimatorConfig `yaml:"estimator"`
}

// EstimatorConfig tunes the built-in FluxEstimator.
type EstimatorConfig struct {
	HistoryBlocks   int           `yaml:"history_blocks"`
	OnsetRatio      float64       `yaml:"onset_ratio"`
	MinInterval     time.Duration `yaml:"min_interval"`
	IntervalHistory int           `yaml:"interval_history"`
	Tolerance       float64       `yaml:"tolerance"`
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		MinBPM:              70,
		MaxBPM:              180,
		MinConfidence:       0.25,
		BPMSmoothing:        0.08,
		ConfidenceSmoothing: 0.15,
		ResendRate:          10,
		InitialBPM:          120,
		Estimator: EstimatorConfig{
			HistoryBlocks:   43,
			OnsetRatio:      1.5,
			MinInterval:     250 * time.Millisecond,
			IntervalHistory: 16,
			Tolerance:       0.08,
		},
	}
}

// ResendInterval is the longest gap allowed between two state emissions.
func (c Config) ResendInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.ResendRate)
}

// Validate checks ranges and smoothing factors.
func (c Config) Validate() error {
	if c.MinBPM <= 0 || c.MaxBPM <= c.MinBPM {
		return fmt.Errorf("tempo bpm range must satisfy 0 < min_bpm < max_bpm, got %f..%f", c.MinBPM, c.MaxBPM)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("tempo.min_confidence must be in [0, 1], got %f", c.MinConfidence)
	}
	if c.BPMSmoothing <= 0 || c.BPMSmoothing > 1 {
		return fmt.Errorf("tempo.bpm_smoothing must be in (0, 1], got %f", c.BPMSmoothing)
	}
	if c.ConfidenceSmoothing <= 0 || c.ConfidenceSmoothing > 1 {
		return fmt.Errorf("tempo.confidence_smoothing must be in (0, 1], got %f", c.ConfidenceSmoothing)
	}
	if c.ResendRate <= 0 {
		return fmt.Errorf("tempo.resend_rate must be positive, got %f", c.ResendRate)
	}
	if c.InitialBPM <= 0 {
		return fmt.Errorf("tempo.initial_bpm must be positive, got %f", c.InitialBPM)
	}
	return c.Estimator.Validate()
}

// Validate checks the estimator settings.
func (c EstimatorConfig) Validate() error {
	if c.HistoryBlocks < 1 {
		return fmt.Errorf("tempo.estimator.history_blocks must be at least 1, got %d", c.HistoryBlocks)
	}
	if c.OnsetRatio <= 1 {
		return fmt.Errorf("tempo.estimator.onset_ratio must be greater than 1, got %f", c.OnsetRatio)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("tempo.estimator.min_interval must not be negative, got %s", c.MinInterval)
	}
	if c.IntervalHistory < 2 {
		return fmt.Errorf("tempo.estimator.interval_history must be at least 2, got %d", c.IntervalHistory)
	}
	if c.Tolerance <= 0 || c.Tolerance >= 1 {
		return fmt.Errorf("tempo.estimator.tolerance must be in (0, 1), got %f", c.Tolerance)
	}
	return nil
}

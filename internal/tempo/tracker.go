// SPDX-License-Identifier: MIT
package tempo

import (
	"math"
	"time"

	"listener/internal/analysis"
	applog "listener/internal/log"
)

// Estimate is one raw reading from a tempo estimator for a single block.
type Estimate struct {
	Onset      bool
	BPM        float64
	Confidence float64
}

// Estimator turns an audio block into a raw tempo reading. Implementations
// are driven from the capture goroutine and keep their own history.
type Estimator interface {
	Estimate(block []float32) Estimate
}

// State is the smoothed tempo published to observers.
type State struct {
	BPM        float64
	Confidence float64
	BeatID     uint64
	Timestamp  time.Time
}

// Update is the result of one Tracker step. Emit reports whether State
// should be handed to transports; Onset whether the beat counter advanced.
type Update struct {
	State State
	Onset bool
	Emit  bool
}

// Tracker gates and smooths raw estimates and decides when to publish.
type Tracker struct {
	cfg       Config
	interval  time.Duration
	state     State
	lastEmit  time.Time
	started   bool
	loggedBPM float64
}

// NewTracker returns a tracker at InitialBPM with zero confidence.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applog.Infof("Tempo: Tracker (range %.0f-%.0f BPM, min confidence %.2f, resend %.1f Hz)",
		cfg.MinBPM, cfg.MaxBPM, cfg.MinConfidence, cfg.ResendRate)
	return &Tracker{
		cfg:       cfg,
		interval:  cfg.ResendInterval(),
		state:     State{BPM: cfg.InitialBPM},
		loggedBPM: cfg.InitialBPM,
	}, nil
}

// Step folds one estimate taken at now into the tracker. At most one
// emission is requested per step. The resend clock starts at the first
// step, which only emits if it carries an onset.
func (t *Tracker) Step(now time.Time, est Estimate) Update {
	conf := est.Confidence
	if math.IsNaN(conf) {
		conf = 0
	}
	t.state.Confidence = analysis.Lerp(t.state.Confidence, analysis.Clamp(conf, 0, 1), t.cfg.ConfidenceSmoothing)

	if est.BPM >= t.cfg.MinBPM && est.BPM <= t.cfg.MaxBPM && conf >= t.cfg.MinConfidence {
		t.state.BPM = analysis.Lerp(t.state.BPM, est.BPM, t.cfg.BPMSmoothing)
		if math.Abs(t.state.BPM-t.loggedBPM) > 0.5 {
			applog.Infof("Tempo: BPM %.1f -> %.1f (confidence %.2f)", t.loggedBPM, t.state.BPM, t.state.Confidence)
			t.loggedBPM = t.state.BPM
		}
	}

	if !t.started {
		t.started = true
		t.lastEmit = now
	}

	var u Update
	switch {
	case est.Onset:
		t.state.BeatID++
		u.Onset = true
		u.Emit = true
		applog.Debugf("Tempo: beat %d at %.1f BPM", t.state.BeatID, t.state.BPM)
	case now.Sub(t.lastEmit) >= t.interval:
		u.Emit = true
	}

	if u.Emit {
		t.lastEmit = now
		t.state.Timestamp = now
	}
	u.State = t.state
	return u
}

// State returns the current smoothed state.
func (t *Tracker) State() State {
	return t.state
}

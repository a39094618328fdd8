// SPDX-License-Identifier: MIT
package phrase

import (
	"listener/internal/analysis"
	applog "listener/internal/log"
)

// Transition reports a change of the active label. Beat is the beat index
// at which the new label was entered.
type Transition struct {
	From Label
	To   Label
	Beat int
}

// state is the classifier's hysteresis bookkeeping.
type state struct {
	current   Label
	enteredAt int
	beat      int

	// Label an IMPACT interrupt returns to.
	returnTo Label

	dropRun     int
	buildRun    int
	switchupRun int
	weakRun     int

	externalSeen bool
}

// Classifier is the phrase state machine. It starts in SILENCE and must be
// driven from a single goroutine.
type Classifier struct {
	cfg    Config
	trends trends
	state  state
	scores Scores
}

// NewClassifier validates cfg and returns a classifier in SILENCE.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applog.Infof("Phrase: Classifier (enter %.2f, impact %.2f, drop override %.2f, dwell groove=%d build=%d drop=%d)",
		cfg.EnterThreshold, cfg.ImpactTriggerThreshold, cfg.DropOverrideThreshold,
		cfg.Dwell.Groove, cfg.Dwell.Build, cfg.Dwell.Drop)
	return &Classifier{cfg: cfg}, nil
}

// Update consumes one feature frame. confidence is the tracker's smoothed
// tempo confidence and onset whether the tempo estimator confirmed a beat
// on this block. Until the first such onset the frame's own Beat flag
// stands in for it.
func (c *Classifier) Update(f analysis.Features, confidence float64, onset bool) (Transition, bool) {
	sig := c.trends.update(f, &c.cfg)

	beatConf := confidence
	if beatConf <= 0 {
		beatConf = c.trends.beat
	}
	c.scores = computeScores(&c.trends, sig, beatConf, &c.cfg)

	switch {
	case onset:
		c.state.externalSeen = true
		c.registerBeat()
	case !c.state.externalSeen && f.Beat:
		c.registerBeat()
	}

	from := c.state.current
	c.apply(c.selectCandidate())
	if c.state.current == from {
		return Transition{}, false
	}

	t := Transition{From: from, To: c.state.current, Beat: c.state.beat}
	applog.Debugf("Phrase: %s -> %s at beat %d (scores %s)", t.From, t.To, t.Beat, c.scores)
	return t, true
}

// registerBeat advances the beat index and the streak counters.
func (c *Classifier) registerBeat() {
	s := &c.state
	s.beat++

	s.dropRun = streak(s.dropRun, c.scores[Drop] >= c.cfg.EnterThreshold)
	s.buildRun = streak(s.buildRun, c.scores[Build] >= c.cfg.EnterThreshold)
	s.switchupRun = streak(s.switchupRun, c.scores[Switchup] >= c.cfg.EnterThreshold)

	_, top := c.scores.best()
	s.weakRun = streak(s.weakRun, top < c.cfg.WeakScoreThreshold)
}

func streak(n int, hit bool) int {
	if hit {
		return n + 1
	}
	return 0
}

// selectCandidate picks the label the machine would like to move to.
// Returning the current label means hold.
func (c *Classifier) selectCandidate() Label {
	if c.trends.silent(&c.cfg) {
		return Silence
	}

	s := &c.state
	label, score := c.scores.best()
	if score >= c.cfg.EnterThreshold {
		switch {
		case label == Drop && s.dropRun < c.cfg.DropConfirmBeats,
			label == Build && s.buildRun < c.cfg.BuildConfirmBeats,
			label == Switchup && s.switchupRun < c.cfg.SwitchupConfirmBeats:
			return s.current
		}
		return label
	}

	if s.weakRun >= c.cfg.FallbackWeakBeats {
		return Fill
	}
	return s.current
}

// apply runs the transition policy for candidate.
func (c *Classifier) apply(candidate Label) {
	s := &c.state
	held := s.beat - s.enteredAt

	if candidate == Silence || s.current == Silence {
		if candidate != s.current {
			c.enter(candidate)
		}
		return
	}

	if s.current == Impact {
		switch {
		case c.scores[Drop] >= c.cfg.DropOverrideThreshold:
			c.enter(Drop)
		case held >= c.cfg.Dwell.MinBeats(Impact):
			c.resume()
		}
		return
	}

	if c.scores[Impact] >= c.cfg.ImpactTriggerThreshold {
		s.returnTo = s.current
		c.enter(Impact)
		return
	}

	if held < c.cfg.Dwell.MinBeats(s.current) && c.scores[Drop] < c.cfg.DropOverrideThreshold {
		return
	}
	if candidate == s.current {
		return
	}
	if candidate == Fill && s.weakRun < c.cfg.FallbackWeakBeats {
		return
	}
	c.enter(candidate)
}

func (c *Classifier) enter(l Label) {
	c.state.current = l
	c.state.enteredAt = c.state.beat
}

// resume leaves IMPACT for the label it interrupted. The resumed label
// starts a fresh dwell.
func (c *Classifier) resume() {
	c.enter(c.state.returnTo)
}

// Current returns the active label.
func (c *Classifier) Current() Label {
	return c.state.current
}

// Beat returns the number of beats registered so far.
func (c *Classifier) Beat() int {
	return c.state.beat
}

// Scores returns the scores computed for the most recent frame.
func (c *Classifier) Scores() Scores {
	return c.scores
}

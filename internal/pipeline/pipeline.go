// SPDX-License-Identifier: MIT
//
// Package pipeline wires the tempo tracker, feature extractor and phrase
// classifier behind a single per-block entry point and hands their output
// to a transport.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"listener/internal/analysis"
	"listener/internal/config"
	"listener/internal/event"
	applog "listener/internal/log"
	"listener/internal/phrase"
	"listener/internal/tempo"
	"listener/internal/transport"
)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithClock sets the wall clock used to timestamp tempo state. Live
// capture uses time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithSampleClock derives time from the number of samples processed since
// start, so offline runs are deterministic and independent of CPU speed.
func WithSampleClock(start time.Time) Option {
	return func(p *Pipeline) {
		p.now = func() time.Time {
			return start.Add(analysis.BlockDuration(int(p.samples), p.sampleRate))
		}
	}
}

// WithSession sets the session identifier. It defaults to a random UUID.
func WithSession(id string) Option {
	return func(p *Pipeline) { p.session = id }
}

// Stats is a snapshot of pipeline progress.
type Stats struct {
	Session     string
	Processed   uint64 // non-empty blocks
	Empty       uint64 // empty blocks, including capture faults
	SendErrors  uint64
	Phrase      phrase.Label
	Tempo       tempo.State
	Features    analysis.Features
	Scores      phrase.Scores
	Transitions uint64
	PhraseTime  []time.Duration // audio time spent in each label, indexed by Label
	Elapsed     time.Duration
}

// Pipeline owns every piece of per-stream analysis state. Process must be
// called from one goroutine; Stats may be called from any.
type Pipeline struct {
	session    string
	sampleRate float64
	now        func() time.Time
	samples    uint64

	estimator  tempo.Estimator
	tracker    *tempo.Tracker
	extractor  *analysis.Extractor
	classifier *phrase.Classifier
	out        transport.Transport

	mu    sync.Mutex
	stats Stats
}

// New builds a pipeline from cfg. est supplies raw tempo readings and out
// receives every event.
func New(cfg *config.Config, est tempo.Estimator, out transport.Transport, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config cannot be nil")
	}
	if est == nil {
		return nil, fmt.Errorf("pipeline: tempo estimator cannot be nil")
	}
	if out == nil {
		return nil, fmt.Errorf("pipeline: transport cannot be nil")
	}

	tracker, err := tempo.NewTracker(cfg.Tempo)
	if err != nil {
		return nil, fmt.Errorf("pipeline: tempo tracker: %w", err)
	}
	extractor, err := analysis.NewExtractor(cfg.Audio.SampleRate, cfg.Audio.WindowSize, cfg.WindowFunc(), cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("pipeline: feature extractor: %w", err)
	}
	classifier, err := phrase.NewClassifier(cfg.Phrase)
	if err != nil {
		return nil, fmt.Errorf("pipeline: phrase classifier: %w", err)
	}

	p := &Pipeline{
		session:    uuid.NewString(),
		sampleRate: cfg.Audio.SampleRate,
		now:        time.Now,
		estimator:  est,
		tracker:    tracker,
		extractor:  extractor,
		classifier: classifier,
		out:        out,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stats = Stats{
		Session:    p.session,
		Phrase:     classifier.Current(),
		Tempo:      tracker.State(),
		PhraseTime: make([]time.Duration, len(phrase.Labels())),
	}

	applog.Infof("Pipeline: Session %s (%.0f Hz, window %d)", p.session, p.sampleRate, cfg.Audio.WindowSize)
	return p, nil
}

// Session returns the session identifier stamped on this run.
func (p *Pipeline) Session() string {
	return p.session
}

// Process runs one block through the tempo tracker, the feature extractor
// and the phrase classifier, in that order, and sends what each decided to
// publish. Empty blocks are counted and otherwise ignored.
func (p *Pipeline) Process(block []float32) {
	if len(block) == 0 {
		p.mu.Lock()
		p.stats.Empty++
		p.mu.Unlock()
		return
	}
	p.samples += uint64(len(block))
	now := p.now()

	upd := p.tracker.Step(now, p.estimator.Estimate(block))
	if upd.Onset {
		p.send(event.Onset{BeatID: upd.State.BeatID})
	}
	if upd.Emit {
		p.send(event.TempoState{
			BPM:        upd.State.BPM,
			Confidence: upd.State.Confidence,
			BeatID:     upd.State.BeatID,
			Timestamp:  upd.State.Timestamp,
		})
	}

	features, ok := p.extractor.Process(block)
	if !ok {
		return
	}
	p.send(event.FeatureFrame{Features: features})

	tr, changed := p.classifier.Update(features, upd.State.Confidence, upd.Onset)
	if changed {
		applog.Infof("Pipeline: Phrase %s -> %s at beat %d", tr.From, tr.To, tr.Beat)
		p.send(event.PhraseChange{From: tr.From, To: tr.To, Beat: tr.Beat})
	}

	p.mu.Lock()
	s := &p.stats
	s.Processed++
	s.Tempo = upd.State
	s.Features = features
	s.Scores = p.classifier.Scores()
	s.Phrase = p.classifier.Current()
	s.PhraseTime[s.Phrase] += analysis.BlockDuration(len(block), p.sampleRate)
	if changed {
		s.Transitions++
	}
	s.Elapsed = analysis.BlockDuration(int(p.samples), p.sampleRate)
	p.mu.Unlock()
}

func (p *Pipeline) send(ev event.Event) {
	if err := p.out.Send(ev); err != nil {
		p.mu.Lock()
		p.stats.SendErrors++
		n := p.stats.SendErrors
		p.mu.Unlock()
		if n%500 == 1 {
			applog.Warnf("Pipeline: Send %s failed (%d failures): %v", ev.Name(), n, err)
		}
	}
}

// Stats returns a copy of the current progress counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.PhraseTime = append([]time.Duration(nil), p.stats.PhraseTime...)
	return s
}

// TimeIn returns the audio time spent in label l.
func (s Stats) TimeIn(l phrase.Label) time.Duration {
	if int(l) >= len(s.PhraseTime) {
		return 0
	}
	return s.PhraseTime[l]
}

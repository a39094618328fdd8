// SPDX-License-Identifier: MIT
//
// Package event defines the records the pipeline hands to transports.
// Each block produces at most one of each kind.
package event

import (
	"time"

	"listener/internal/analysis"
	"listener/internal/phrase"
)

// Event is anything a Transport can send.
type Event interface {
	// Name is the stable identifier used as the WebSocket message type.
	Name() string
}

// Event names.
const (
	NameTempo   = "tempo"
	NameOnset   = "onset"
	NameFeature = "features"
	NamePhrase  = "phrase"
)

// TempoState is the smoothed tempo, emitted on every confirmed onset and at
// the resend rate.
type TempoState struct {
	BPM        float64   `json:"bpm"`
	Confidence float64   `json:"confidence"`
	BeatID     uint64    `json:"beat_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Onset marks a beat confirmed by the tempo estimator.
type Onset struct {
	BeatID uint64 `json:"beat_id"`
}

// FeatureFrame carries the descriptors of one non-empty block.
type FeatureFrame struct {
	analysis.Features
}

// PhraseChange is emitted only when the active phrase label changes.
type PhraseChange struct {
	From phrase.Label `json:"from"`
	To   phrase.Label `json:"to"`
	Beat int          `json:"beat"`
}

func (TempoState) Name() string   { return NameTempo }
func (Onset) Name() string        { return NameOnset }
func (FeatureFrame) Name() string { return NameFeature }
func (PhraseChange) Name() string { return NamePhrase }

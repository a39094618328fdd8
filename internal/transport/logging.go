// SPDX-License-Identifier: MIT
package transport

import (
	"listener/internal/event"
	applog "listener/internal/log"
)

// LoggingTransport writes events to the application log. Phrase changes
// go out at info level, everything else at debug.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs ev.
func (lt *LoggingTransport) Send(ev event.Event) error {
	switch e := ev.(type) {
	case event.PhraseChange:
		applog.Infof("Phrase: %s -> %s (beat %d)", e.From, e.To, e.Beat)
	case event.TempoState:
		applog.Debugf("Tempo: %.1f BPM (confidence %.2f, beat %d)", e.BPM, e.Confidence, e.BeatID)
	case event.Onset:
		applog.Debugf("Onset: beat %d", e.BeatID)
	case event.FeatureFrame:
		if applog.Enabled(applog.LevelDebug) {
			applog.Debugf("Features: bass=%.3f mid=%.3f treble=%.3f total=%.3f beat=%v pulse=%v",
				e.Bass, e.Mid, e.Treble, e.TotalEnergy, e.Beat, e.Pulse)
		}
	default:
		applog.Debugf("Event: %s %+v", ev.Name(), ev)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)

// SPDX-License-Identifier: MIT
package analysis

import "time"

// OnsetDetector fires when a smoothed band rises by at least threshold
// between consecutive blocks, then stays quiet for the refractory period.
type OnsetDetector struct {
	threshold  float64
	refractory time.Duration
	countdown  time.Duration
	prev       float64
}

// NewOnsetDetector returns a detector with its cooldown already expired.
func NewOnsetDetector(threshold float64, refractory time.Duration) *OnsetDetector {
	return &OnsetDetector{
		threshold:  threshold,
		refractory: refractory,
	}
}

// Step consumes the band value for one block lasting dt and reports whether
// an onset fired along with the positive flux that was measured.
func (d *OnsetDetector) Step(value float64, dt time.Duration) (bool, float64) {
	flux := max(value-d.prev, 0)
	d.prev = value

	d.countdown = max(d.countdown-dt, 0)
	if d.countdown > 0 || flux < d.threshold {
		return false, flux
	}
	d.countdown = d.refractory
	return true, flux
}

// Cooldown returns the time left before the detector may fire again.
func (d *OnsetDetector) Cooldown() time.Duration {
	return d.countdown
}

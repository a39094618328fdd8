// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"listener/internal/analysis"
	"listener/internal/fft"
	applog "listener/internal/log"
)

// WindowFunc returns the parsed FFT window. Validate has already rejected
// unknown names, so the fallback is never reached for a loaded Config.
func (c *Config) WindowFunc() fft.WindowFunc {
	w, err := fft.ParseWindowFunc(c.Audio.FFTWindow)
	if err != nil {
		return fft.Hann
	}
	return w
}

// BlockDuration returns the wall time covered by one capture block.
func (c *Config) BlockDuration() time.Duration {
	return analysis.BlockDuration(c.Audio.BlockSize, c.Audio.SampleRate)
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() applog.LogLevel {
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the window applied to the analysis buffer before the
// transform.
type WindowFunc int

// Available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall

	windowCount
)

// windows maps each WindowFunc to its config name and gonum implementation.
// The gonum functions scale their argument in place.
var windows = [windowCount]struct {
	name  string
	apply func([]float64) []float64
}{
	BartlettHann:    {"BartlettHann", window.BartlettHann},
	Blackman:        {"Blackman", window.Blackman},
	BlackmanNuttall: {"BlackmanNuttall", window.BlackmanNuttall},
	Hann:            {"Hann", window.Hann},
	Hamming:         {"Hamming", window.Hamming},
	Lanczos:         {"Lanczos", window.Lanczos},
	Nuttall:         {"Nuttall", window.Nuttall},
}

func (w WindowFunc) String() string {
	if w < 0 || w >= windowCount {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windows[w].name
}

// ParseWindowFunc looks a window up by name, ignoring case. An empty name
// and "Hanning" select Hann. Unknown names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "hanning") {
		return Hann, nil
	}
	for w := range windowCount {
		if strings.EqualFold(name, windows[w].name) {
			return w, nil
		}
	}
	return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
}

// windowCoefficients fills coeffs with the selected window, falling back to
// Hann for out of range values.
func windowCoefficients(coeffs []float64, w WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1
	}
	if w < 0 || w >= windowCount {
		w = Hann
	}
	windows[w].apply(coeffs)
}

// SPDX-License-Identifier: MIT
package analysis

// Epsilon floors every division by a quantity that can reach zero.
const Epsilon = 1e-6

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp is one exponential moving average step: (1-alpha)*old + alpha*sample.
func Lerp(old, sample, alpha float64) float64 {
	return (1.0-alpha)*old + alpha*sample
}

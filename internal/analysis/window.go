// SPDX-License-Identifier: MIT
package analysis

// Window is the fixed-length ring of the most recent samples that feeds the
// spectral transform. Its length never changes after construction.
type Window struct {
	samples []float32
}

// NewWindow returns a zero-filled window of size samples.
func NewWindow(size int) *Window {
	return &Window{samples: make([]float32, size)}
}

// Push shifts out the oldest len(block) samples and appends block at the
// tail. Blocks longer than the window are truncated to their newest samples.
func (w *Window) Push(block []float32) {
	size := len(w.samples)
	if len(block) > size {
		block = block[len(block)-size:]
	}
	shift := len(block)
	copy(w.samples, w.samples[shift:])
	copy(w.samples[size-shift:], block)
}

// Samples returns the window contents, oldest first. The slice is owned by
// the window.
func (w *Window) Samples() []float32 {
	return w.samples
}

// Len returns the window length in samples.
func (w *Window) Len() int {
	return len(w.samples)
}

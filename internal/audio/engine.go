// SPDX-License-Identifier: MIT
/*
Package audio captures sample blocks and hands them, mixed down to mono,
to a BlockProcessor:
- Live capture from a PortAudio input stream (Engine)
- Offline replay of WAV files (FileSource)

Thread Safety:
- The PortAudio callback owns all buffers; counters are atomic
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"listener/internal/config"
	applog "listener/internal/log"
)

// BlockProcessor consumes one mono block per capture period. An empty
// block signals a capture fault or silence upstream.
type BlockProcessor interface {
	Process(block []float32)
}

// faultFlags are the callback status bits after which a block's samples
// cannot be trusted.
const faultFlags = portaudio.InputUnderflow | portaudio.InputOverflow

type Engine struct {
	cfg  config.AudioConfig
	proc BlockProcessor

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Mono mixdown buffer, one block long.
	mono []float32

	blocks atomic.Uint64
	faults atomic.Uint64
}

// NewEngine resolves the configured input device. PortAudio must be
// initialised.
func NewEngine(cfg *config.Config, proc BlockProcessor) (*Engine, error) {
	if proc == nil {
		return nil, fmt.Errorf("audio engine: block processor cannot be nil")
	}
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg.Audio, proc)
	engine.inputDevice = inputDevice
	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Engine: Input %q (%d ch @ %.0f Hz, block %d, latency %s)",
		inputDevice.Name, cfg.Audio.InputChannels, cfg.Audio.SampleRate, cfg.Audio.BlockSize, engine.inputLatency)
	return engine, nil
}

func newEngine(cfg config.AudioConfig, proc BlockProcessor) *Engine {
	return &Engine{
		cfg:  cfg,
		proc: proc,
		mono: make([]float32, cfg.BlockSize),
	}
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.BlockSize,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.processBuffer(in, flags)
}

// processBuffer mixes in down to mono and forwards it. A block flagged
// with a capture fault is forwarded as empty.
func (e *Engine) processBuffer(in []float32, flags portaudio.StreamCallbackFlags) {
	e.blocks.Add(1)
	if flags&faultFlags != 0 {
		e.faults.Add(1)
		e.proc.Process(nil)
		return
	}
	e.proc.Process(Mixdown(e.mono, in, e.cfg.InputChannels))
}

// Mixdown averages interleaved frames of channels samples into dst and
// returns the filled prefix. A mono input is returned as is.
func Mixdown(dst, in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := min(len(in)/channels, len(dst))
	scale := 1 / float32(channels)
	for i := range frames {
		var sum float32
		for _, s := range in[i*channels : (i+1)*channels] {
			sum += s
		}
		dst[i] = sum * scale
	}
	return dst[:frames]
}

// Blocks returns the number of callbacks received.
func (e *Engine) Blocks() uint64 {
	return e.blocks.Load()
}

// Faults returns the number of blocks dropped for a capture fault.
func (e *Engine) Faults() uint64 {
	return e.faults.Load()
}

// Close stops capture and reports the fault count.
func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		return err
	}
	if n := e.Faults(); n > 0 {
		applog.Warnf("Engine: %d of %d blocks had capture faults", n, e.Blocks())
	}
	return nil
}

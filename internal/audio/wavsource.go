// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "listener/internal/log"
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// FileSource replays a PCM WAV file as capture blocks.
type FileSource struct {
	path      string
	file      *os.File
	decoder   *wav.Decoder
	blockSize int
	channels  int
	bitDepth  int
	scale     float32

	pcm  *audio.IntBuffer
	buf  []float32
	mono []float32
}

// OpenFile opens path and checks that it holds integer PCM.
func OpenFile(path string, blockSize int) (*FileSource, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("wav source: block size must be positive, got %d", blockSize)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav source: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("wav source: %s is not a valid WAV file", path)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		file.Close()
		return nil, fmt.Errorf("wav source: %s uses format %d, only integer PCM is supported", path, decoder.WavAudioFormat)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	s := &FileSource{
		path:      path,
		file:      file,
		decoder:   decoder,
		blockSize: blockSize,
		channels:  channels,
		bitDepth:  bitDepth,
		scale:     1 / float32(int(1)<<(bitDepth-1)),
		pcm: &audio.IntBuffer{
			Format:         decoder.Format(),
			Data:           make([]int, blockSize*channels),
			SourceBitDepth: bitDepth,
		},
		buf:  make([]float32, blockSize*channels),
		mono: make([]float32, blockSize),
	}

	applog.Infof("WAV: %s (%d ch, %d bit, %d Hz)", path, channels, bitDepth, decoder.SampleRate)
	return s, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *FileSource) SampleRate() float64 {
	return float64(s.decoder.SampleRate)
}

// Channels returns the number of interleaved channels in the file.
func (s *FileSource) Channels() int {
	return s.channels
}

// Run feeds the whole file to proc one block at a time, mixed down to
// mono, and returns the number of blocks delivered. A trailing partial
// block is delivered as is. Run stops early when ctx is cancelled.
func (s *FileSource) Run(ctx context.Context, proc BlockProcessor) (int, error) {
	blocks := 0
	for {
		if err := ctx.Err(); err != nil {
			return blocks, err
		}

		n, err := s.decoder.PCMBuffer(s.pcm)
		if err != nil {
			return blocks, fmt.Errorf("wav source: reading %s: %w", s.path, err)
		}
		frames := n / s.channels
		if frames == 0 {
			return blocks, nil
		}

		samples := s.buf[:frames*s.channels]
		s.convert(samples, s.pcm.Data[:len(samples)])
		proc.Process(Mixdown(s.mono, samples, s.channels))
		blocks++
	}
}

// convert maps integer PCM to [-1, 1). 8-bit WAV is unsigned.
func (s *FileSource) convert(dst []float32, src []int) {
	offset := 0
	if s.bitDepth == 8 {
		offset = 128
	}
	for i, v := range src {
		dst[i] = float32(v-offset) * s.scale
	}
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and hardware limits for the capture and transport settings.
// Analysis, tempo and phrase defaults live with their packages.
const (
	DefaultInputChannels = 1
	DefaultDeviceID      = MinDeviceID
	DefaultSampleRate    = 44100
	DefaultBlockSize     = 512
	DefaultWindowSize    = 1024
	DefaultLowLatency    = false
	DefaultFFTWindow     = "Hann"
	DefaultLogLevel      = "info"

	DefaultOSCAddress       = "127.0.0.1:9000"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond
	DefaultWebSocketAddress = "127.0.0.1:8080"

	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per block
	MaxWindowSize   = 65536  // Maximum analysis window (power of 2)
	MaxChannels     = 32
)

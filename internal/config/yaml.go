// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"listener/internal/analysis"
	"listener/internal/fft"
	applog "listener/internal/log"
	"listener/internal/phrase"
	"listener/internal/tempo"
	"listener/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string                 `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig            `yaml:"audio"`
	Features  analysis.FeatureConfig `yaml:"features"`
	Tempo     tempo.Config           `yaml:"tempo"`
	Phrase    phrase.Config          `yaml:"phrase"`
	Transport TransportConfig        `yaml:"transport"`
}

// AudioConfig holds the structural capture settings. Changing any of them
// changes the meaning of the time constants elsewhere.
type AudioConfig struct {
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index for audio input (-1 for default).
	SampleRate    float64 `yaml:"sample_rate"`    // Sample rate in Hz (e.g., 44100, 48000).
	BlockSize     int     `yaml:"block_size"`     // Frames per capture callback.
	WindowSize    int     `yaml:"window_size"`    // Analysis window length, a power of two >= block_size.
	InputChannels int     `yaml:"input_channels"` // Captured channels, mixed down to mono.
	LowLatency    bool    `yaml:"low_latency"`    // Request low latency settings from PortAudio device.
	FFTWindow     string  `yaml:"fft_window"`     // Window function name (e.g., "Hann", "Hamming").
}

// TransportConfig selects the observers events are delivered to.
type TransportConfig struct {
	Log       bool            `yaml:"log"` // Log every event through the levelled logger.
	OSC       OSCConfig       `yaml:"osc"`
	UDP       UDPConfig       `yaml:"udp"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// OSCConfig targets an OSC host.
type OSCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // host:port
}

// UDPConfig controls the binary feature frame publisher.
type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"` // e.g. "127.0.0.1:9090"
	SendInterval  time.Duration `yaml:"send_interval"`
}

// WebSocketConfig controls the JSON broadcast server.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // listen address, host:port
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:   DefaultDeviceID,
			SampleRate:    DefaultSampleRate,
			BlockSize:     DefaultBlockSize,
			WindowSize:    DefaultWindowSize,
			InputChannels: DefaultInputChannels,
			LowLatency:    DefaultLowLatency,
			FFTWindow:     DefaultFFTWindow,
		},
		Features: analysis.DefaultFeatureConfig(),
		Tempo:    tempo.DefaultConfig(),
		Phrase:   phrase.DefaultConfig(),
		Transport: TransportConfig{
			OSC: OSCConfig{
				Enabled: true,
				Address: DefaultOSCAddress,
			},
			UDP: UDPConfig{
				Enabled:       false,
				TargetAddress: DefaultUDPTargetAddress,
				SendInterval:  DefaultUDPSendInterval,
			},
			WebSocket: WebSocketConfig{
				Enabled: false,
				Address: DefaultWebSocketAddress,
			},
		},
	}
}

// candidates are searched in order when LoadConfig gets an empty path.
var candidates = []string{
	"config.yaml",
	"config.yml",
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the default locations. If no file is found, it uses built-in
// defaults. Keys missing from the file keep their defaults. Environment
// variable overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level '%s' is not recognised", c.LogLevel)
	}
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if err := c.Tempo.Validate(); err != nil {
		return err
	}
	if err := c.Phrase.Validate(); err != nil {
		return err
	}
	return c.Transport.Validate()
}

// Validate checks the structural capture settings.
func (a AudioConfig) Validate() error {
	if a.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be in [%d, %d], got %.0f", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.BlockSize <= 0 || a.BlockSize > MaxBufferFrames {
		return fmt.Errorf("audio.block_size must be in [1, %d], got %d", MaxBufferFrames, a.BlockSize)
	}
	if !bitint.IsPowerOfTwo(a.WindowSize) {
		return fmt.Errorf("audio.window_size must be a power of two, got %d (try %d)", a.WindowSize, bitint.NextPowerOfTwo(a.WindowSize))
	}
	if a.WindowSize > MaxWindowSize {
		return fmt.Errorf("audio.window_size must be <= %d, got %d", MaxWindowSize, a.WindowSize)
	}
	if a.WindowSize < a.BlockSize {
		return fmt.Errorf("audio.window_size (%d) must not be shorter than audio.block_size (%d)", a.WindowSize, a.BlockSize)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels must be in [1, %d], got %d", MaxChannels, a.InputChannels)
	}
	if _, err := fft.ParseWindowFunc(a.FFTWindow); err != nil {
		return fmt.Errorf("audio.fft_window: %w", err)
	}
	return nil
}

// Validate checks the address of every enabled transport.
func (t TransportConfig) Validate() error {
	var errs []error
	if t.OSC.Enabled {
		if err := validateHostPort(t.OSC.Address); err != nil {
			errs = append(errs, fmt.Errorf("transport.osc.address: %w", err))
		}
	}
	if t.UDP.Enabled {
		if err := validateHostPort(t.UDP.TargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.udp.target_address: %w", err))
		}
		if t.UDP.SendInterval <= 0 {
			errs = append(errs, fmt.Errorf("transport.udp.send_interval must be positive when UDP is enabled"))
		}
	}
	if t.WebSocket.Enabled {
		if err := validateHostPort(t.WebSocket.Address); err != nil {
			errs = append(errs, fmt.Errorf("transport.websocket.address: %w", err))
		}
	}
	return errors.Join(errs...)
}

func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port '%s'", port)
	}
	return nil
}

// applyEnvOverrides lets deployments change the device, log level and
// transports without editing the file. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("Config: Overriding log_level from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = id
			applog.Debugf("Config: Overriding audio.input_device from env: %d", id)
		}
	}

	// ENV_{OSC,UDP,WEBSOCKET}_{...}
	// These are specific to the transport layer.

	overrideBool("ENV_OSC_ENABLED", "transport.osc.enabled", &c.Transport.OSC.Enabled)
	overrideString("ENV_OSC_ADDRESS", "transport.osc.address", &c.Transport.OSC.Address)

	overrideBool("ENV_UDP_ENABLED", "transport.udp.enabled", &c.Transport.UDP.Enabled)
	overrideString("ENV_UDP_TARGET_ADDRESS", "transport.udp.target_address", &c.Transport.UDP.TargetAddress)
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDP.SendInterval = dur
			applog.Debugf("Config: Overriding transport.udp.send_interval from env: %s", dur)
		}
	}

	overrideBool("ENV_WEBSOCKET_ENABLED", "transport.websocket.enabled", &c.Transport.WebSocket.Enabled)
	overrideString("ENV_WEBSOCKET_ADDRESS", "transport.websocket.address", &c.Transport.WebSocket.Address)
}

func overrideBool(env, key string, dst *bool) {
	if val, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
			applog.Debugf("Config: Overriding %s from env: %v", key, b)
		}
	}
}

func overrideString(env, key string, dst *string) {
	if val, ok := os.LookupEnv(env); ok {
		*dst = val
		applog.Debugf("Config: Overriding %s from env: %s", key, val)
	}
}

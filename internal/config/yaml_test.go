// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"listener/internal/fft"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate || cfg.Tempo.MinBPM != 70 {
		t.Errorf("expected defaults, got %+v", cfg.Audio)
	}
}

func TestLoadConfig_SampleFileMatchesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig(filepath.Join("..", "..", "config.yaml"))
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(*cfg, want) {
		t.Errorf("config.yaml drifted from Default():\n got %+v\nwant %+v", *cfg, want)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  sample_rate: 48000
  fft_window: hamming
features:
  beat_refractory: 300ms
  bass_hi: 150
tempo:
  min_bpm: 90
  estimator:
    min_interval: 200ms
phrase:
  dwell:
    groove: 32
transport:
  udp:
    enabled: true
    send_interval: 20ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample_rate = %v", cfg.Audio.SampleRate)
	}
	if cfg.Audio.BlockSize != DefaultBlockSize {
		t.Errorf("block_size = %d, want default %d", cfg.Audio.BlockSize, DefaultBlockSize)
	}
	if cfg.WindowFunc() != fft.Hamming {
		t.Errorf("WindowFunc() = %v, want Hamming", cfg.WindowFunc())
	}
	if cfg.Features.BeatRefractory != 300*time.Millisecond {
		t.Errorf("beat_refractory = %v", cfg.Features.BeatRefractory)
	}
	if cfg.Features.BassHighHz != 150 || cfg.Features.MidLowHz != 160 {
		t.Errorf("bands = %v/%v", cfg.Features.BassHighHz, cfg.Features.MidLowHz)
	}
	if cfg.Tempo.MinBPM != 90 || cfg.Tempo.MaxBPM != 180 {
		t.Errorf("tempo range = %v..%v", cfg.Tempo.MinBPM, cfg.Tempo.MaxBPM)
	}
	if cfg.Tempo.Estimator.MinInterval != 200*time.Millisecond || cfg.Tempo.Estimator.IntervalHistory != 16 {
		t.Errorf("estimator = %+v", cfg.Tempo.Estimator)
	}
	if cfg.Phrase.Dwell.Groove != 32 || cfg.Phrase.Dwell.Build != 8 {
		t.Errorf("dwell = %+v", cfg.Phrase.Dwell)
	}
	if !cfg.Transport.UDP.Enabled || cfg.Transport.UDP.SendInterval != 20*time.Millisecond {
		t.Errorf("udp = %+v", cfg.Transport.UDP)
	}
	if cfg.Transport.UDP.TargetAddress != DefaultUDPTargetAddress {
		t.Errorf("udp target = %q", cfg.Transport.UDP.TargetAddress)
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad log level", "log_level: loud\n", "log_level"},
		{"sample rate", "audio:\n  sample_rate: 100\n", "audio.sample_rate"},
		{"window not pow2", "audio:\n  window_size: 1000\n", "(try 1024)"},
		{"window shorter than block", "audio:\n  block_size: 2048\n  window_size: 1024\n", "must not be shorter"},
		{"channels", "audio:\n  input_channels: 0\n", "audio.input_channels"},
		{"unknown window", "audio:\n  fft_window: triangle\n", "audio.fft_window"},
		{"smoothing", "features:\n  smooth: 0\n", "features.smooth"},
		{"bpm range", "tempo:\n  min_bpm: 200\n", "bpm range"},
		{"osc address", "transport:\n  osc:\n    enabled: true\n    address: nowhere\n", "transport.osc.address"},
		{"udp interval", "transport:\n  udp:\n    enabled: true\n    send_interval: 0s\n", "send_interval"},
		{"websocket port", "transport:\n  websocket:\n    enabled: true\n    address: \"127.0.0.1:http2\"\n", "transport.websocket.address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_INPUT_DEVICE", "3")
	t.Setenv("ENV_OSC_ENABLED", "false")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "not-a-duration")
	t.Setenv("ENV_WEBSOCKET_ENABLED", "1")
	t.Setenv("ENV_WEBSOCKET_ADDRESS", ":9999")

	cfg, err := LoadConfig(writeTempConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, env should win over file", cfg.LogLevel)
	}
	if cfg.Audio.InputDevice != 3 {
		t.Errorf("input_device = %d", cfg.Audio.InputDevice)
	}
	if cfg.Transport.OSC.Enabled {
		t.Error("osc should be disabled by env")
	}
	if !cfg.Transport.UDP.Enabled || cfg.Transport.UDP.TargetAddress != "10.0.0.2:7000" {
		t.Errorf("udp = %+v", cfg.Transport.UDP)
	}
	if cfg.Transport.UDP.SendInterval != DefaultUDPSendInterval {
		t.Errorf("unparseable interval should be ignored, got %v", cfg.Transport.UDP.SendInterval)
	}
	if !cfg.Transport.WebSocket.Enabled || cfg.Transport.WebSocket.Address != ":9999" {
		t.Errorf("websocket = %+v", cfg.Transport.WebSocket)
	}
}

func TestConfigDerivedValues(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Audio.BlockSize = 441
	if got := cfg.BlockDuration(); got != 10*time.Millisecond {
		t.Errorf("BlockDuration() = %v, want 10ms", got)
	}
	cfg.LogLevel = "error"
	if got := cfg.Level().String(); got != "ERROR" {
		t.Errorf("Level() = %s", got)
	}
}

// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// fakeHost replaces the PortAudio device queries for the duration of t.
func fakeHost(t *testing.T, infos []*portaudio.DeviceInfo, defaultInput int, err error) {
	t.Helper()
	origDevices, origDefault := paDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})

	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, err }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if defaultInput < 0 || defaultInput >= len(infos) {
			return nil, errors.New("no default")
		}
		return infos[defaultInput], nil
	}
}

func hostInfos() []*portaudio.DeviceInfo {
	coreAudio := &portaudio.HostApiInfo{Name: "Core Audio"}
	return []*portaudio.DeviceInfo{
		{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100, HostApi: coreAudio},
		{
			Name:                    "Built-in Mic",
			MaxInputChannels:        1,
			DefaultSampleRate:       48000,
			DefaultLowInputLatency:  3 * time.Millisecond,
			DefaultHighInputLatency: 12 * time.Millisecond,
			HostApi:                 coreAudio,
		},
		{Name: "Loopback", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000},
	}
}

func TestHostDevicesMapsInfo(t *testing.T) {
	fakeHost(t, hostInfos(), 1, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices: %v", err)
	}
	want := []Device{
		{ID: 0, Name: "Speakers", HostAPI: "Core Audio", MaxOutputChannels: 2, DefaultSampleRate: 44100},
		{ID: 1, Name: "Built-in Mic", HostAPI: "Core Audio", MaxInputChannels: 1, DefaultSampleRate: 48000},
		{ID: 2, Name: "Loopback", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000},
	}
	if len(devices) != len(want) {
		t.Fatalf("devices = %d, want %d", len(devices), len(want))
	}
	for i := range want {
		if devices[i] != want[i] {
			t.Errorf("device %d = %+v, want %+v", i, devices[i], want[i])
		}
	}
}

func TestInputDevice(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		defIndex int
		listErr  error
		wantName string
		wantErr  string
	}{
		{"default", -1, 1, nil, "Built-in Mic", ""},
		{"explicit input", 2, 1, nil, "Loopback", ""},
		{"output only", 0, 1, nil, "", "does not support input"},
		{"below range", -2, 1, nil, "", "invalid device ID"},
		{"above range", 3, 1, nil, "", "invalid device ID"},
		{"no default", -1, -1, nil, "", "no default input device"},
		{"host error", 1, 1, errors.New("host gone"), "", "host gone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeHost(t, hostInfos(), tt.defIndex, tt.listErr)

			dev, err := InputDevice(tt.id)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("InputDevice(%d) error = %v, want %q", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InputDevice(%d): %v", tt.id, err)
			}
			if dev.Name != tt.wantName {
				t.Errorf("InputDevice(%d) = %q, want %q", tt.id, dev.Name, tt.wantName)
			}
		})
	}
}

func TestLifecycleErrorsAreWrapped(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })

	cause := errors.New("device busy")
	paLibInitialize = func() error { return cause }
	paLibTerminate = func() error { return cause }

	if err := Initialize(); !errors.Is(err, cause) {
		t.Errorf("Initialize() = %v, want wrapped cause", err)
	}
	if err := Terminate(); !errors.Is(err, cause) {
		t.Errorf("Terminate() = %v, want wrapped cause", err)
	}

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("Initialize() = %v", err)
	}
	if err := Terminate(); err != nil {
		t.Errorf("Terminate() = %v", err)
	}
}

func TestPaDevicesNeverNil(t *testing.T) {
	orig := paLibDevicesFunc
	t.Cleanup(func() { paLibDevicesFunc = orig })

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, nil }
	devices, err := paDevices()
	if err != nil || devices == nil || len(devices) != 0 {
		t.Errorf("paDevices() = %v, %v; want empty non-nil slice", devices, err)
	}

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, errors.New("PortAudio not initialized")
	}
	if devices, err := paDevices(); err == nil || devices != nil {
		t.Errorf("paDevices() = %v, %v; want nil and an error", devices, err)
	}
}

func TestListDevices(t *testing.T) {
	fakeHost(t, hostInfos(), 1, nil)

	var sb strings.Builder
	if err := ListDevices(&sb); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := sb.String()
	for _, want := range []string{
		"[0] Speakers (Output)",
		"[1] Built-in Mic (Input)",
		"[2] Loopback (Input/Output)",
		"Default sample rate: 48000 Hz",
		"Latency: Low=3.00ms, High=12.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDeviceType(t *testing.T) {
	tests := []struct {
		in, out int
		want    string
	}{
		{2, 2, "Input/Output"},
		{1, 0, "Input"},
		{0, 8, "Output"},
		{0, 0, "None"},
	}
	for _, tt := range tests {
		if got := deviceType(tt.in, tt.out); got != tt.want {
			t.Errorf("deviceType(%d, %d) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

// TestHostDevicesOnHardware runs against the real host when PortAudio is
// available.
func TestHostDevicesOnHardware(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() { Terminate() })

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices: %v", err)
	}
	for i, d := range devices {
		if d.ID != i || d.Name == "" {
			t.Errorf("device %d = %+v", i, d)
		}
	}
}

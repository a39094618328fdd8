// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"listener/internal/analysis"
	"listener/internal/audio"
	"listener/internal/event"
	"listener/internal/phrase"
	"listener/internal/pipeline"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestMonitorDropsWhenFull(t *testing.T) {
	mon := NewMonitor()
	for range monitorQueueSize + 10 {
		if err := mon.Send(event.Onset{}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if mon.Dropped() != 10 {
		t.Errorf("Dropped() = %d, want 10", mon.Dropped())
	}
}

func TestMonitorCloseEndsStream(t *testing.T) {
	mon := NewMonitor()
	if err := mon.Send(event.Onset{BeatID: 3}); err != nil {
		t.Fatal(err)
	}
	msg := waitForEvent(mon)()
	if got, ok := msg.(eventMsg); !ok || got.ev != (event.Onset{BeatID: 3}) {
		t.Fatalf("first message = %#v", msg)
	}

	mon.Close()
	mon.Close()
	if _, ok := waitForEvent(mon)().(closedMsg); !ok {
		t.Error("expected closedMsg after Close")
	}
	if err := mon.Send(event.Onset{}); err != nil {
		t.Errorf("Send after Close: %v", err)
	}
	if len(mon.events) != 0 {
		t.Error("Send after Close should not queue")
	}

	m := NewMonitorModel(mon, nil)
	if _, cmd := m.Update(closedMsg{}); !isQuit(cmd) {
		t.Error("closed stream should quit the UI")
	}
}

func TestMonitorModelAppliesEvents(t *testing.T) {
	mon := NewMonitor()
	var m tea.Model = NewMonitorModel(mon, nil)

	events := []event.Event{
		event.TempoState{BPM: 124, Confidence: 0.87, BeatID: 42},
		event.Onset{BeatID: 42},
		event.FeatureFrame{Features: analysis.Features{Bass: 0.5, Mid: 0.25, Treble: 2, TotalEnergy: 0.6}},
		event.PhraseChange{From: phrase.Silence, To: phrase.Groove, Beat: 4},
		event.PhraseChange{From: phrase.Groove, To: phrase.Drop, Beat: 36},
	}
	for _, ev := range events {
		var cmd tea.Cmd
		m, cmd = m.Update(eventMsg{ev})
		if cmd == nil {
			t.Fatal("event handling must re-arm the event wait")
		}
	}

	got := m.(MonitorModel)
	if got.phrase != phrase.Drop || got.beat != 36 || len(got.history) != 2 {
		t.Errorf("phrase = %v at %d, history %d", got.phrase, got.beat, len(got.history))
	}
	if got.flash == 0 {
		t.Error("onset should light the beat marker")
	}

	view := got.View()
	for _, want := range []string{"124.0 BPM", "confidence 0.87", "beat 42", "DROP", "GROOVE → DROP at beat 36", "1.000"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMonitorModelHistoryIsBounded(t *testing.T) {
	m := NewMonitorModel(NewMonitor(), nil)
	for i := range historySize * 3 {
		m.apply(event.PhraseChange{From: phrase.Groove, To: phrase.Build, Beat: i})
	}
	if len(m.history) != historySize {
		t.Fatalf("history = %d, want %d", len(m.history), historySize)
	}
	if m.history[historySize-1].Beat != historySize*3-1 {
		t.Errorf("newest entry = %d", m.history[historySize-1].Beat)
	}
}

func TestMonitorModelStatsAndQuit(t *testing.T) {
	mon := NewMonitor()
	stats := func() pipeline.Stats { return pipeline.Stats{Session: "abc", Processed: 7} }
	m := NewMonitorModel(mon, stats)
	if m.Init() == nil {
		t.Fatal("Init should start the event wait")
	}

	next, cmd := m.Update(statsMsg(stats()))
	if cmd == nil {
		t.Error("stats handling must schedule the next poll")
	}
	view := next.View()
	if !strings.Contains(view, "session abc") || !strings.Contains(view, "7 blocks") {
		t.Errorf("view missing stats:\n%s", view)
	}

	for _, k := range []string{"q", "esc"} {
		if _, cmd := next.Update(keyMsg(k)); !isQuit(cmd) {
			t.Errorf("%q should quit", k)
		}
	}
}

func testDevices() []audio.Device {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "Built-in Mic", HostAPI: "Core Audio", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 2, Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
	}
}

func loadedDeviceList(t *testing.T) tea.Model {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices(), nil })
	msg := m.Init()()
	dm, ok := msg.(devicesMsg)
	if !ok {
		t.Fatalf("Init produced %#v", msg)
	}
	if len(dm.devices) != 2 {
		t.Fatalf("input devices = %d, want 2", len(dm.devices))
	}
	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	model, _ = model.Update(dm)
	return model
}

func TestDeviceListSelection(t *testing.T) {
	m := loadedDeviceList(t)
	if view := m.View(); !strings.Contains(view, "Built-in Mic") || strings.Contains(view, "Speakers") {
		t.Errorf("list view:\n%s", view)
	}

	m, _ = m.Update(keyMsg("down"))
	m, _ = m.Update(keyMsg("enter"))
	if got := m.(DeviceListModel).activeScreen; got != ConfigScreen {
		t.Fatalf("screen = %v, want config", got)
	}
	// Starts at the device default of 96 kHz; step back to 88.2 kHz.
	m, _ = m.Update(keyMsg("up"))
	m, cmd := m.Update(keyMsg("enter"))
	if !isQuit(cmd) {
		t.Error("confirming the configuration should quit")
	}

	sel := m.(DeviceListModel).Selection()
	if sel == nil || sel.Device.ID != 2 || sel.SampleRate != 88200 {
		t.Fatalf("selection = %+v", sel)
	}
	yaml := sel.YAML()
	for _, want := range []string{"input_device: 2", "sample_rate: 88200", "input_channels: 2"} {
		if !strings.Contains(yaml, want) {
			t.Errorf("YAML missing %q:\n%s", want, yaml)
		}
	}
}

func TestDeviceListBackAndQuit(t *testing.T) {
	m := loadedDeviceList(t)
	m, _ = m.Update(keyMsg("enter"))
	m, _ = m.Update(keyMsg("esc"))
	if got := m.(DeviceListModel).activeScreen; got != ListScreen {
		t.Fatalf("screen = %v, want list", got)
	}
	m, cmd := m.Update(keyMsg("q"))
	if !isQuit(cmd) || m.(DeviceListModel).Selection() != nil {
		t.Error("q should quit without a selection")
	}
}

func TestDeviceListFetchError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	next, _ := m.Update(m.Init()())
	if view := next.View(); !strings.Contains(view, "no host") {
		t.Errorf("view = %q", view)
	}
}

func TestNearestRate(t *testing.T) {
	tests := []struct {
		rate float64
		want float64
	}{
		{44100, 44100},
		{48000, 48000},
		{32000, 44100},
		{192000, 96000},
		{90000, 88200},
	}
	for _, tt := range tests {
		if got := sampleRates[nearestRate(tt.rate)]; got != tt.want {
			t.Errorf("nearestRate(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

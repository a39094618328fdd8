// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"listener/internal/analysis"
	"listener/internal/event"
	"listener/internal/phrase"
	"listener/internal/pipeline"
	"listener/internal/transport"
)

const (
	monitorQueueSize = 256
	historySize      = 6
	barWidth         = 32
	statsInterval    = 250 * time.Millisecond
	// onsetFlash is how many screen updates the beat marker stays lit.
	onsetFlash = 4
)

// Monitor is a transport that feeds events to the terminal monitor. Send
// never blocks; events are dropped while the UI is behind.
type Monitor struct {
	events    chan event.Event
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewMonitor creates a monitor transport with a bounded queue.
func NewMonitor() *Monitor {
	return &Monitor{
		events: make(chan event.Event, monitorQueueSize),
		done:   make(chan struct{}),
	}
}

func (m *Monitor) Send(ev event.Event) error {
	select {
	case <-m.done:
		return nil
	default:
	}
	select {
	case m.events <- ev:
	default:
		m.dropped.Add(1)
	}
	return nil
}

// Close ends the monitor's event stream. The UI quits once it notices.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// Dropped returns the number of events discarded on a full queue.
func (m *Monitor) Dropped() uint64 {
	return m.dropped.Load()
}

var _ transport.Transport = (*Monitor)(nil)

type eventMsg struct {
	ev event.Event
}

type closedMsg struct{}

type statsMsg pipeline.Stats

func waitForEvent(m *Monitor) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg{ev}
		case <-m.done:
			return closedMsg{}
		}
	}
}

func pollStats(stats func() pipeline.Stats) tea.Cmd {
	return tea.Tick(statsInterval, func(time.Time) tea.Msg {
		return statsMsg(stats())
	})
}

// MonitorModel renders the live tempo, band energies and phrase.
type MonitorModel struct {
	monitor *Monitor
	stats   func() pipeline.Stats
	quit    key.Binding

	tempo    event.TempoState
	features analysis.Features
	phrase   phrase.Label
	beat     int
	history  []event.PhraseChange
	flash    int
	snapshot pipeline.Stats
}

// NewMonitorModel reads events from mon. stats, if not nil, is polled for
// the counters in the footer.
func NewMonitorModel(mon *Monitor, stats func() pipeline.Stats) MonitorModel {
	return MonitorModel{
		monitor: mon,
		stats:   stats,
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
		phrase:  phrase.Silence,
	}
}

func (m MonitorModel) Init() tea.Cmd {
	if m.stats == nil {
		return waitForEvent(m.monitor)
	}
	return tea.Batch(waitForEvent(m.monitor), pollStats(m.stats))
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.quit) {
			return m, tea.Quit
		}

	case closedMsg:
		return m, tea.Quit

	case statsMsg:
		m.snapshot = pipeline.Stats(msg)
		return m, pollStats(m.stats)

	case eventMsg:
		m.apply(msg.ev)
		return m, waitForEvent(m.monitor)
	}
	return m, nil
}

func (m *MonitorModel) apply(ev event.Event) {
	if m.flash > 0 {
		m.flash--
	}
	switch ev := ev.(type) {
	case event.TempoState:
		m.tempo = ev
	case event.Onset:
		m.flash = onsetFlash
	case event.FeatureFrame:
		m.features = ev.Features
	case event.PhraseChange:
		m.phrase = ev.To
		m.beat = ev.Beat
		m.history = append(m.history, ev)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
	}
}

func (m MonitorModel) View() string {
	var sb strings.Builder

	title := titleStyle.Render("listener")
	if m.snapshot.Session != "" {
		title += infoStyle.Render("  session " + m.snapshot.Session)
	}
	sb.WriteString(title + "\n\n")

	marker := " "
	if m.flash > 0 {
		marker = beatStyle.Render("●")
	}
	fmt.Fprintf(&sb, "%s %s %.1f BPM  confidence %.2f  beat %d\n",
		labelStyle.Render("Tempo"), marker, m.tempo.BPM, m.tempo.Confidence, m.tempo.BeatID)
	fmt.Fprintf(&sb, "%s   %s entered at beat %d\n\n",
		labelStyle.Render("Phrase"), phraseStyle(m.phrase).Render(m.phrase.String()), m.beat)

	sb.WriteString(bar("Bass", m.features.Bass, bassColor))
	sb.WriteString(bar("Mid", m.features.Mid, midColor))
	sb.WriteString(bar("Treble", m.features.Treble, trebleColor))
	sb.WriteString(bar("Total", m.features.TotalEnergy, totalColor))
	fmt.Fprintf(&sb, "%s   delta %+.3f  movement %.3f  variance %.4f  balance %+.2f\n\n",
		labelStyle.Render("Shape"), m.features.EnergyDelta, m.features.Movement,
		m.features.EnergyVariance, m.features.BandBalance)

	if m.stats != nil {
		fmt.Fprintf(&sb, "%s  %s\n\n", labelStyle.Render("Scores"), infoStyle.Render(m.snapshot.Scores.String()))
	}

	sb.WriteString(labelStyle.Render("Recent") + "\n")
	if len(m.history) == 0 {
		sb.WriteString(infoStyle.Render("  no phrase changes yet") + "\n")
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		c := m.history[i]
		fmt.Fprintf(&sb, "  %s → %s at beat %d\n", c.From, c.To, c.Beat)
	}

	footer := fmt.Sprintf("%d blocks, %d empty, %d send errors, %d dropped",
		m.snapshot.Processed, m.snapshot.Empty, m.snapshot.SendErrors, m.monitor.Dropped())
	sb.WriteString("\n" + infoStyle.Render(footer) + "\n")
	sb.WriteString(helpLine(m.quit))
	return sb.String()
}

// bar renders a level in [0, 1] as a horizontal meter.
func bar(name string, v float64, color lipgloss.Color) string {
	v = analysis.Clamp(v, 0, 1)
	filled := int(v*barWidth + 0.5)
	meter := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		infoStyle.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%s %s %.3f\n", labelStyle.Render(fmt.Sprintf("%-6s", name)), meter, v)
}

func phraseStyle(l phrase.Label) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch l {
	case phrase.Drop, phrase.Impact:
		return s.Background(lipgloss.Color("#D7263D")).Foreground(lipgloss.Color("#FFFDF5"))
	case phrase.Build, phrase.Fill, phrase.Switchup:
		return s.Background(lipgloss.Color("#F49D37")).Foreground(lipgloss.Color("#1B1B1B"))
	case phrase.Silence:
		return s.Background(lipgloss.Color("#3C3C3C")).Foreground(lipgloss.Color("#A0A0A0"))
	default:
		return s.Background(lipgloss.Color("#25A065")).Foreground(lipgloss.Color("#FFFDF5"))
	}
}

// RunMonitor shows the monitor until the user quits or mon is closed.
func RunMonitor(mon *Monitor, stats func() pipeline.Stats) error {
	_, err := tea.NewProgram(NewMonitorModel(mon, stats), tea.WithAltScreen()).Run()
	return err
}

var _ tea.Model = MonitorModel{}

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	beatStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7263D")).Bold(true)

	bassColor   = lipgloss.Color("#D7263D")
	midColor    = lipgloss.Color("#F49D37")
	trebleColor = lipgloss.Color("#3F88C5")
	totalColor  = lipgloss.Color("#25A065")
)

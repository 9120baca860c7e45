// ABOUTME: Bubbletea model for the soundboard TUI
// ABOUTME: Renders the sample board and turns key presses into engine commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SampleStatus is one board row, derived from an engine snapshot
type SampleStatus struct {
	ID       string
	Name     string
	Duration time.Duration
	Position time.Duration
	Playing  bool
	Loading  bool

	// Blocked distinguishes "output device refused" from other errors so
	// the row can say how to fix it instead of showing a generic failure.
	Blocked   bool
	ErrorText string
}

// StatusMsg carries a full engine snapshot into the model
type StatusMsg struct {
	Samples      []SampleStatus
	GlobalVolume float64
	Muted        bool
}

// Model represents the TUI state
type Model struct {
	samples []SampleStatus
	cursor  int

	globalVolume float64
	muted        bool

	width  int
	height int

	controls *Controls
}

// NewModel creates the board model
func NewModel(controls *Controls) Model {
	return Model{
		globalVolume: 0.7,
		controls:     controls,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// handleKey maps key presses to commands
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.requestQuit()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.samples)-1 {
			m.cursor++
		}

	case "enter", " ":
		m.sendCursorCommand(ActionToggle)

	case "s":
		m.sendCursorCommand(ActionStop)

	case "S":
		m.send(Command{Action: ActionStopAll})

	case "+", "=":
		m.send(Command{Action: ActionVolumeUp})

	case "-", "_":
		m.send(Command{Action: ActionVolumeDown})

	case "m":
		m.send(Command{Action: ActionMute})
	}

	return m, nil
}

// applyStatus replaces the board contents with a fresh snapshot
func (m *Model) applyStatus(msg StatusMsg) {
	m.samples = msg.Samples
	m.globalVolume = msg.GlobalVolume
	m.muted = msg.Muted

	if m.cursor >= len(m.samples) {
		m.cursor = len(m.samples) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// sendCursorCommand sends an action targeting the selected sample
func (m Model) sendCursorCommand(action Action) {
	if m.cursor >= len(m.samples) {
		return
	}
	m.send(Command{Action: action, SampleID: m.samples[m.cursor].ID})
}

// send delivers a command without ever blocking the UI loop
func (m Model) send(cmd Command) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Commands <- cmd:
	default:
	}
}

// requestQuit signals the main loop
func (m Model) requestQuit() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Quit <- struct{}{}:
	default:
	}
}

// View renders the board
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())

	if len(m.samples) == 0 {
		b.WriteString("│ No samples in the library.                           │\n")
	}
	for i, s := range m.samples {
		b.WriteString(m.renderRow(i, s))
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader renders the title and volume line
func (m Model) renderHeader() string {
	vol := fmt.Sprintf("Volume: %3.0f%%", m.globalVolume*100)
	if m.muted {
		vol = "Volume: MUTED"
	}

	return fmt.Sprintf(`┌─ Wavedeck Soundboard ────────────────────────────────┐
│ %-52s │
├──────────────────────────────────────────────────────┤
`, vol)
}

// renderRow renders one sample line
func (m Model) renderRow(i int, s SampleStatus) string {
	marker := " "
	if i == m.cursor {
		marker = ">"
	}

	icon := " "
	detail := fmtTime(s.Position) + "/" + fmtTime(s.Duration)
	switch {
	case s.Loading:
		icon = "~"
		detail = "loading"
	case s.Blocked:
		icon = "!"
		detail = "press Enter to enable sound"
	case s.ErrorText != "":
		icon = "x"
		detail = s.ErrorText
	case s.Playing:
		icon = "▶"
	}

	name := s.Name
	if len(name) > 24 {
		name = name[:23] + "…"
	}

	return fmt.Sprintf("│ %s %s %-24s %-23s │\n", marker, icon, name, detail)
}

// renderFooter renders the key help
func (m Model) renderFooter() string {
	return `├──────────────────────────────────────────────────────┤
│ enter play/pause · s stop · S stop all               │
│ +/- volume · m mute · q quit                         │
└──────────────────────────────────────────────────────┘
`
}

// fmtTime formats a duration as m:ss
func fmtTime(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

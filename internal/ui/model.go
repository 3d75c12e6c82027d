// ABOUTME: Bubbletea model for the bridge TUI
// ABOUTME: Renders both pipeline states, formats, and transfer stats
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// pipelineView is the displayed state of one pipeline direction.
type pipelineView struct {
	state      string
	detail     string
	sampleRate int
	channels   int
	bytesMoved int64
	reconnects int64
	stalls     int64
}

// Model represents the TUI state.
type Model struct {
	peerAddr  string
	pipelines map[string]*pipelineView

	volume int
	muted  bool

	showDebug  bool
	goroutines int
	memAlloc   uint64

	width  int
	height int

	ctrl *Control
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case FormatMsg:
		m.applyFormat(msg)
	case StatsMsg:
		m.applyStats(msg)
	case PeerMsg:
		m.peerAddr = msg.Addr
	case DebugMsg:
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderPipeline("playback", "Desktop audio")
	s += m.renderPipeline("capture", "Microphone")
	s += m.renderControls()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the peer line.
func (m Model) renderHeader() string {
	peer := m.peerAddr
	if peer == "" {
		peer = "(searching...)"
	}

	return fmt.Sprintf(`┌─ AudioLink Bridge ───────────────────────────────────┐
│ Peer: %-47s │
├──────────────────────────────────────────────────────┤
`, truncate(peer, 47))
}

// renderPipeline renders one direction's status block.
func (m Model) renderPipeline(name, label string) string {
	pv := m.pipelines[name]
	if pv == nil {
		return ""
	}

	format := "-"
	if pv.sampleRate > 0 {
		format = fmt.Sprintf("%dHz %s 16-bit", pv.sampleRate, channelName(pv.channels))
	}

	state := pv.state
	if pv.detail != "" && (pv.state == "error" || pv.state == "stalled") {
		state = fmt.Sprintf("%s (%s)", pv.state, truncate(pv.detail, 30))
	}

	return fmt.Sprintf("│ %-14s %-38s │\n"+
		"│   Format: %-28s MB: %-8.1f │\n"+
		"│   Reconnects: %-6d Stalls: %-6d%-16s │\n",
		label+":", truncate(state, 38),
		format, float64(pv.bytesMoved)/(1024*1024),
		pv.reconnects, pv.stalls, "")
}

// renderControls renders the volume line.
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("├──────────────────────────────────────────────────────┤\n"+
		"│ Volume: [%s] %d%%%s%-24s │\n",
		volumeBar, m.volume, muteIcon, "")
}

// renderHelp renders keyboard shortcuts.
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  1:Audio  2:Mic  d:Debug  q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders runtime statistics.
func (m Model) renderDebug() string {
	return fmt.Sprintf("│ DEBUG: goroutines=%-4d alloc=%-8d KiB%-12s │\n",
		m.goroutines, m.memAlloc/1024, "")
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.sendQuit()
		return m, tea.Quit
	case "up":
		m.volume += 5
		if m.volume > 100 {
			m.volume = 100
		}
		m.sendVolume()
	case "down":
		m.volume -= 5
		if m.volume < 0 {
			m.volume = 0
		}
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "1":
		m.sendToggle("playback")
	case "2":
		m.sendToggle("capture")
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendVolume() {
	if m.ctrl == nil {
		return
	}
	select {
	case m.ctrl.Volume <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m Model) sendToggle(pipeline string) {
	if m.ctrl == nil {
		return
	}
	select {
	case m.ctrl.Toggles <- ToggleMsg{Pipeline: pipeline}:
	default:
	}
}

func (m Model) sendQuit() {
	if m.ctrl == nil {
		return
	}
	select {
	case m.ctrl.Quit <- QuitMsg{}:
	default:
	}
}

// applyStatus updates one pipeline's displayed state.
func (m *Model) applyStatus(msg StatusMsg) {
	pv := m.pipelines[msg.Pipeline]
	if pv == nil {
		return
	}
	pv.state = msg.State
	pv.detail = msg.Detail
}

// applyFormat records a pipeline's negotiated stream format.
func (m *Model) applyFormat(msg FormatMsg) {
	pv := m.pipelines[msg.Pipeline]
	if pv == nil {
		return
	}
	pv.sampleRate = msg.SampleRate
	pv.channels = msg.Channels
}

// applyStats updates a pipeline's transfer counters.
func (m *Model) applyStats(msg StatsMsg) {
	pv := m.pipelines[msg.Pipeline]
	if pv == nil {
		return
	}
	pv.bytesMoved = msg.BytesMoved
	pv.reconnects = msg.Reconnects
	pv.stalls = msg.Stalls
}

// StatusMsg updates one pipeline's connection state.
type StatusMsg struct {
	Pipeline string
	State    string
	Detail   string
}

// FormatMsg reports a pipeline's stream format.
type FormatMsg struct {
	Pipeline   string
	SampleRate int
	Channels   int
}

// StatsMsg reports a pipeline's transfer counters.
type StatsMsg struct {
	Pipeline   string
	BytesMoved int64
	Reconnects int64
	Stalls     int64
}

// PeerMsg reports the resolved desktop peer address.
type PeerMsg struct {
	Addr string
}

// DebugMsg carries runtime statistics for the debug panel.
type DebugMsg struct {
	Goroutines int
	MemAlloc   uint64
}

// VolumeChangeMsg is sent when the user adjusts playback volume.
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// ToggleMsg is sent when the user toggles a pipeline on or off.
type ToggleMsg struct {
	Pipeline string
}

// QuitMsg is sent when the user quits.
type QuitMsg struct{}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

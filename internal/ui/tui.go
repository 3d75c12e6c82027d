// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the bridge status display
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Control holds channels for UI-initiated actions.
type Control struct {
	Volume  chan VolumeChangeMsg
	Toggles chan ToggleMsg
	Quit    chan QuitMsg
}

// NewControl creates a new control handler.
func NewControl() *Control {
	return &Control{
		Volume:  make(chan VolumeChangeMsg, 10),
		Toggles: make(chan ToggleMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model.
func NewModel(ctrl *Control) Model {
	return Model{
		volume: 100,
		pipelines: map[string]*pipelineView{
			"playback": {state: "idle"},
			"capture":  {state: "idle"},
		},
		ctrl: ctrl,
	}
}

// Run starts the TUI.
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}

// ABOUTME: TUI initialization and control channels
// ABOUTME: Wraps the bubbletea program for the soundboard
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action identifies a board command
type Action int

const (
	// ActionToggle plays the selected sample, or pauses it if playing
	ActionToggle Action = iota
	// ActionStop stops the selected sample
	ActionStop
	// ActionStopAll stops every sample
	ActionStopAll
	// ActionVolumeUp raises the global volume one step
	ActionVolumeUp
	// ActionVolumeDown lowers the global volume one step
	ActionVolumeDown
	// ActionMute toggles mute
	ActionMute
)

// Command is one user intent from the board
type Command struct {
	Action   Action
	SampleID string
}

// Controls holds the channels the board talks to the player over
type Controls struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// Run starts the TUI
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}

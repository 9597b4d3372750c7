// ABOUTME: Bubbletea model for the reference player's status TUI
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sendspin/sendspin-go/internal/state"
)

// statusMsg carries a state.Session snapshot into the TUI's Update loop.
type statusMsg state.Session

// syncStatusMsg reports Time Filter health, which lives outside the
// State Store.
type syncStatusMsg struct {
	synchronized bool
	errorUs      float64
	resyncCount  int
}

type model struct {
	serverName string

	connected    bool
	synchronized bool
	syncErrorUs  float64
	resyncCount  int

	playerState string
	volume      int
	muted       bool
	isPlaying   bool
	codec       string
	sampleRate  int
	channels    int

	width int
}

func newModel(serverName string) model {
	return model{serverName: serverName, playerState: "error"}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case statusMsg:
		m.connected = true
		m.playerState = string(msg.PlayerState)
		m.volume = msg.Volume
		m.muted = msg.Muted
		m.isPlaying = msg.IsPlaying
		if msg.CurrentFormat != nil {
			m.codec = msg.CurrentFormat.Codec
			m.sampleRate = msg.CurrentFormat.SampleRate
			m.channels = msg.CurrentFormat.Channels
		} else {
			m.codec = ""
		}
	case syncStatusMsg:
		m.synchronized = msg.synchronized
		m.syncErrorUs = msg.errorUs
		m.resyncCount = msg.resyncCount
	}
	return m, nil
}

func (m model) View() string {
	connLine := "Disconnected"
	if m.connected {
		connLine = fmt.Sprintf("Connected to %s", m.serverName)
	}

	syncLine := "Sync: not yet synchronized"
	if m.synchronized {
		syncLine = fmt.Sprintf("Sync: locked (error %.1fms, resyncs %d)", m.syncErrorUs/1000.0, m.resyncCount)
	}

	streamLine := "Stream: idle"
	if m.codec != "" {
		streamLine = fmt.Sprintf("Stream: %s %dHz %dch, playing=%v", m.codec, m.sampleRate, m.channels, m.isPlaying)
	}

	muteFlag := ""
	if m.muted {
		muteFlag = " (muted)"
	}

	return fmt.Sprintf(
		"Sendspin Player\n\n%s\n%s\n%s\nState: %s  Volume: %d%%%s\n\npress q to quit\n",
		connLine, syncLine, streamLine, m.playerState, m.volume, muteFlag,
	)
}

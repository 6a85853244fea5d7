package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Travis-Britz/ircterm/client"
	"github.com/Travis-Britz/ircterm/registry"
)

// Sink delivers client output to a running program.
// Send waits until the program accepts the message, or returns at once after it exited.
type Sink struct {
	Program *tea.Program
}

var _ client.Sink = Sink{}

func (s Sink) Render(l client.Line) {
	s.Program.Send(lineMsg(l))
}

func (s Sink) Refresh(snap registry.Snapshot) {
	s.Program.Send(snapshotMsg(snap))
}

// Package ui is the terminal front end: a Bubble Tea program showing the selected buffer,
// its topic, a bar of open buffers, and the input line.
//
// The program never touches client state. It receives lines and registry snapshots as
// messages through Sink, and hands input lines back through the submit function.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Travis-Britz/ircterm/client"
	"github.com/Travis-Britz/ircterm/registry"
)

const timeFormat = "15:04"

// lines taken by everything except the viewport: topic, buffer bar, input.
const chromeHeight = 3

type (
	lineMsg     client.Line
	snapshotMsg registry.Snapshot
)

// Model is the Bubble Tea model of the client UI.
type Model struct {
	width, height int

	view  viewport.Model
	input textinput.Model

	buffers map[registry.BufferID]*scrollback
	snap    registry.Snapshot

	submit func(string)
}

// New returns a model which passes every entered line to submit.
// submit must not block.
func New(submit func(string)) Model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "type /help for commands"
	in.CharLimit = 400
	in.Focus()

	return Model{
		width:   80,
		height:  24,
		view:    viewport.New(80, 24-chromeHeight),
		input:   in,
		buffers: map[registry.BufferID]*scrollback{registry.StatusBuffer: {}},
		snap: registry.Snapshot{
			Buffers: []registry.BufferInfo{{ID: registry.StatusBuffer, Name: "status"}},
		},
		submit: submit,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = msg.Width
		m.view.Height = max(1, msg.Height-chromeHeight)
		m.input.Width = max(1, msg.Width-len(m.input.Prompt)-1)
		m.rebuild()
		return m, nil

	case lineMsg:
		m.addLine(client.Line(msg))
		return m, nil

	case snapshotMsg:
		m.setSnapshot(registry.Snapshot(msg))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.submit("/quit")
			return m, tea.Quit
		case "enter":
			if line := m.input.Value(); line != "" {
				m.submit(line)
			}
			m.input.Reset()
			return m, nil
		case "ctrl+n":
			m.submit("/buffer_next")
			return m, nil
		case "ctrl+p":
			m.submit("/buffer_prev")
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) addLine(l client.Line) {
	sb, ok := m.buffers[l.Buffer]
	if !ok {
		sb = new(scrollback)
		m.buffers[l.Buffer] = sb
	}
	sb.add(timeStyle.Render(l.Time.Format(timeFormat)) + " " + formatIRC(l.Text))
	if l.Buffer == m.snap.Selected {
		follow := m.view.AtBottom()
		m.rebuild()
		if follow {
			m.view.GotoBottom()
		}
	}
}

func (m *Model) setSnapshot(snap registry.Snapshot) {
	changed := snap.Selected != m.snap.Selected
	m.snap = snap
	for id := range m.buffers {
		if _, ok := snap.Find(id); !ok {
			delete(m.buffers, id)
		}
	}
	if changed {
		m.rebuild()
		m.view.GotoBottom()
	}
}

// rebuild replaces the viewport content with the selected buffer's lines, wrapped to the width.
func (m *Model) rebuild() {
	sb, ok := m.buffers[m.snap.Selected]
	if !ok {
		m.view.SetContent("")
		return
	}
	wrap := lipgloss.NewStyle().Width(max(1, m.width))
	lines := sb.all()
	for i, l := range lines {
		lines[i] = wrap.Render(l)
	}
	m.view.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	b, _ := m.snap.Find(m.snap.Selected)
	topic := b.Name
	if b.Topic != "" {
		topic += ": " + formatIRC(b.Topic)
	}
	if len(b.Nicks) > 0 {
		topic += fmt.Sprintf(" [%d nicks]", len(b.Nicks))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		topicStyle.Width(m.width).Render(truncate(topic, m.width)),
		m.view.View(),
		statusBarStyle.Width(m.width).Render(bufferBar(m.snap, m.width)),
		m.input.View(),
	)
}

// Package command turns lines typed into the input field into IRC commands
// and client actions.
//
// A line starting with "/" names a command, e.g. "/join #go-nuts".
// "//text" sends "/text" literally, and anything else is said to the selected buffer.
package command

import (
	"encoding"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Travis-Britz/ircterm/registry"
	"github.com/Travis-Britz/ircterm/session"
)

const bold = "\x02"

var (
	// ErrNoSession means the selected buffer has no server to send to.
	ErrNoSession = errors.New("no server selected")

	// ErrNotChannel means the command needs a channel and the selected buffer isn't one.
	ErrNotChannel = errors.New("not a channel")

	// ErrNotConnected means the server to send to is disconnected.
	ErrNotConnected = errors.New("not connected")

	errUsage = errors.New("usage")
)

// Session is the view of a server connection commands need.
// *session.Session implements it.
type Session interface {
	ID() int
	Name() string
	Nick() string
	State() session.State
	Send(encoding.TextMarshaler) error
}

// App is the client the commands act on.
type App interface {
	Registry() *registry.Registry

	// Print renders text in a buffer.
	Print(id registry.BufferID, text string)

	// Session returns the session with id.
	Session(id int) (Session, bool)

	// SessionByName returns the session with name (case-insensitive).
	SessionByName(name string) (Session, bool)

	// Current returns the server used when the status buffer is selected.
	Current() (Session, bool)
	SetCurrent(Session)

	Sessions() []Session

	// AddServer creates a session for a server that isn't in the configuration.
	AddServer(cfg session.Config) Session

	Connect(Session) error
	Disconnect(s Session, reason string)

	// Backlog replays up to n stored lines into buffer id.
	Backlog(id registry.BufferID, n int) error

	Quit(reason string)
}

// Context is the state a command runs against.
type Context struct {
	App App

	// Buffer is the selected buffer.
	Buffer registry.BufferID

	// Target is the selected buffer's name, or "" for the status buffer.
	Target string

	// Session is the server the selected buffer belongs to. It may be nil.
	Session Session
}

// Print renders text in the selected buffer.
func (c *Context) Print(format string, args ...any) {
	c.App.Print(c.Buffer, fmt.Sprintf(format, args...))
}

// send queues m on the context's session.
func (c *Context) send(m encoding.TextMarshaler) error {
	s, err := c.connected()
	if err != nil {
		return err
	}
	if err := s.Send(m); err != nil {
		if errors.Is(err, session.ErrOutputFull) {
			c.App.Disconnect(s, "")
		}
		return err
	}
	return nil
}

func (c *Context) connected() (Session, error) {
	if c.Session == nil {
		return nil, ErrNoSession
	}
	if c.Session.State() == session.StateDisconnected {
		return nil, fmt.Errorf("%s: %w", c.Session.Name(), ErrNotConnected)
	}
	return c.Session, nil
}

// channel returns the selected buffer's name if it is a channel.
func (c *Context) channel() (string, error) {
	b, ok := c.App.Registry().Get(c.Buffer)
	if !ok || !b.IsChannel() {
		return "", ErrNotChannel
	}
	return b.Name, nil
}

// A Command is one entry of the table.
type Command struct {
	Name string

	// Usage is the argument synopsis, e.g. "<channel> [key]".
	Usage string

	Help string

	// Run executes the command. args is the rest of the input line after the name,
	// with surrounding spaces trimmed.
	Run func(c *Context, args string) error
}

// Table maps command names to commands.
type Table struct {
	commands map[string]*Command
}

// New returns a table holding the builtin commands.
func New() *Table {
	t := &Table{commands: make(map[string]*Command)}
	for _, c := range builtins() {
		t.Register(c)
	}
	t.registerHelp()
	return t
}

// Register adds c, replacing any command with the same name.
func (t *Table) Register(c *Command) {
	t.commands[strings.ToLower(c.Name)] = c
}

// Lookup returns the command named name.
func (t *Table) Lookup(name string) (*Command, bool) {
	c, ok := t.commands[strings.ToLower(name)]
	return c, ok
}

// Names returns the sorted command names.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.commands))
	for n := range t.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs one line of input against app.
// Failures are reported in the selected buffer.
func (t *Table) Execute(app App, line string) {
	c := newContext(app)
	if err := t.execute(c, line); err != nil {
		c.Print("%s*** %s%s", bold, err, bold)
	}
}

func (t *Table) execute(c *Context, line string) error {
	if line == "" {
		return nil
	}
	switch {
	case strings.HasPrefix(line, "//"):
		return say(c, line[1:])
	case line[0] != '/':
		return say(c, line)
	}

	name, args, _ := strings.Cut(line[1:], " ")
	cmd, ok := t.Lookup(name)
	if !ok {
		c.Print("Unknown command: /%s", name)
		return nil
	}
	err := cmd.Run(c, strings.TrimSpace(args))
	if errors.Is(err, errUsage) {
		c.Print("Usage: /%s %s", cmd.Name, cmd.Usage)
		return nil
	}
	return err
}

func newContext(app App) *Context {
	reg := app.Registry()
	c := &Context{App: app, Buffer: reg.Selected()}
	b, ok := reg.Get(c.Buffer)
	if ok && c.Buffer != registry.StatusBuffer {
		c.Target = b.Name
		if s, ok := app.Session(b.Session); ok {
			c.Session = s
		}
	}
	if c.Session == nil {
		if s, ok := app.Current(); ok {
			c.Session = s
		}
	}
	return c
}

// fields splits s on spaces into at most n fields.
// The last field holds the remainder of s, spaces included.
func fields(s string, n int) []string {
	var out []string
	for len(out) < n-1 {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return out
		}
		f, rest, found := strings.Cut(s, " ")
		out = append(out, f)
		if !found {
			return out
		}
		s = rest
	}
	if s = strings.TrimLeft(s, " "); s != "" {
		out = append(out, s)
	}
	return out
}

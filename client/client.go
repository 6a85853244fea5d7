//go:build unix

// Package client owns everything the protocol engine needs for one run:
// the sessions, the buffer registry, the event dispatcher, the command table, and the event loop.
//
// All of it is driven from the goroutine running Client.Run. The UI talks to the client
// through Input, and receives rendered lines and registry snapshots through a Sink.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Travis-Britz/ircterm/command"
	"github.com/Travis-Britz/ircterm/event"
	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/ircdebug"
	"github.com/Travis-Britz/ircterm/logstore"
	"github.com/Travis-Britz/ircterm/mux"
	"github.com/Travis-Britz/ircterm/registry"
	"github.com/Travis-Britz/ircterm/session"
	"go.uber.org/zap"
)

// QuitMessage is sent when /quit or /disconnect is given no reason.
const QuitMessage = "Leaving"

// tickInterval is how often connect attempts and idle connections are checked.
const tickInterval = time.Second

const (
	// pingInterval is how long a connection may stay silent before the client sends a PING.
	pingInterval = 2 * time.Minute

	// pingTimeout is how long a connection may stay silent before it is dropped.
	pingTimeout = 4 * time.Minute
)

var (
	errConnectTimeout = errors.New("connection timed out")
	errPingTimeout    = errors.New("ping timeout")
)

// Line is one rendered line of text.
type Line struct {
	Buffer     registry.BufferID
	BufferName string
	Server     string // empty for lines in the status buffer not tied to a server
	Time       time.Time
	Text       string
}

// Sink displays the client's output. Its methods are called on the event loop goroutine
// and must not block.
type Sink interface {
	Render(Line)
	Refresh(registry.Snapshot)
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStore persists every rendered line and enables /backlog.
func WithStore(s *logstore.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithWireLog copies all IRC traffic to w.
func WithWireLog(w io.Writer) Option {
	return func(c *Client) { c.wireLog = w }
}

// WithVersion sets the version reported to CTCP VERSION queries.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// Client is the application context. Create it with New.
type Client struct {
	sessions []*session.Session
	current  *session.Session
	started  map[int]time.Time // connect attempts in progress
	seen     map[int]time.Time // last time each connection received data
	pinged   map[int]bool      // a keepalive PING is outstanding

	reg      *registry.Registry
	disp     *event.Dispatcher
	commands *command.Table
	loop     *mux.Loop

	sink    Sink
	store   *logstore.Store
	wireLog io.Writer
	logger  *zap.Logger
	version string
	now     func() time.Time

	ctx context.Context
}

// New creates a client with one session per server. Nothing connects until Run.
func New(sink Sink, servers []session.Config, opts ...Option) *Client {
	c := &Client{
		started:  make(map[int]time.Time),
		seen:     make(map[int]time.Time),
		pinged:   make(map[int]bool),
		reg:      registry.New(),
		commands: command.New(),
		sink:     sink,
		logger:   zap.NewNop(),
		version:  "dev",
		now:      time.Now,
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	c.disp = event.New(c.reg, renderFunc(c.render),
		event.WithLogger(c.logger),
		event.WithVersion(c.version),
		event.OnSendError(c.onSendError),
	)
	c.loop = &mux.Loop{
		Conns:        c.conns,
		Tick:         c.tick,
		TickInterval: tickInterval,
		Logger:       c.logger,
	}
	for _, cfg := range servers {
		c.addSession(cfg)
	}
	return c
}

// Run connects every session and runs the event loop until ctx is done or /quit.
func (c *Client) Run(ctx context.Context) error {
	c.ctx = ctx
	c.loop.Post(func() {
		for _, s := range c.sessions {
			c.connect(s)
		}
		c.refresh()
	})

	err := c.loop.Run(ctx)
	for _, s := range c.sessions {
		s.Disconnect()
	}
	if errors.Is(err, mux.ErrStopped) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Input runs a line typed by the user. It is safe to call from any goroutine.
func (c *Client) Input(line string) {
	c.loop.Post(func() {
		c.commands.Execute(c, line)
		c.refresh()
	})
}

// AddServers creates and connects sessions for the servers not already known by name,
// such as servers added to a reloaded configuration. It is safe to call from any goroutine.
func (c *Client) AddServers(servers []session.Config) {
	c.loop.Post(func() {
		for _, cfg := range servers {
			if _, ok := c.SessionByName(cfg.Name); ok {
				continue
			}
			s := c.addSession(cfg)
			c.status("Added server %s%s%s", bold, s.Name(), bold)
			c.connect(s)
		}
		c.refresh()
	})
}

func (c *Client) addSession(cfg session.Config) *session.Session {
	s := session.New(len(c.sessions)+1, cfg, c.logger)
	if c.wireLog != nil {
		dial := s.DialFn
		name := s.Name()
		s.DialFn = func(ctx context.Context, addr string) (session.Socket, error) {
			sock, err := dial(ctx, addr)
			if err != nil {
				return nil, err
			}
			return ircdebug.WriteTo(c.wireLog, sock, "["+name+"] -> ", "["+name+"] <- "), nil
		}
	}
	c.sessions = append(c.sessions, s)
	if c.current == nil {
		c.current = s
	}
	return s
}

func (c *Client) session(id int) *session.Session {
	if id < 1 || id > len(c.sessions) {
		return nil
	}
	return c.sessions[id-1]
}

func (c *Client) connect(s *session.Session) error {
	c.status("Connecting to %s%s%s (%s)", bold, s.Name(), bold, s.Addr())
	if err := s.Connect(c.ctx); err != nil {
		c.logger.Warn("connect", zap.String("server", s.Name()), zap.Error(err))
		c.status("Can't connect to %s%s%s: %v", bold, s.Name(), bold, err)
		return err
	}
	c.started[s.ID()] = c.now()
	c.heard(s)
	return nil
}

// heard records that s received data, which resets its keepalive.
func (c *Client) heard(s *session.Session) {
	c.seen[s.ID()] = c.now()
	delete(c.pinged, s.ID())
}

func (c *Client) forget(s *session.Session) {
	delete(c.started, s.ID())
	delete(c.seen, s.ID())
	delete(c.pinged, s.ID())
}

// fail drops a session after a fatal error.
func (c *Client) fail(s *session.Session, err error) {
	c.logger.Warn("session failed", zap.String("server", s.Name()), zap.Error(err))
	c.forget(s)
	s.Disconnect()
	c.status("Disconnected from %s%s%s: %v", bold, s.Name(), bold, err)
}

// quit sends QUIT, tries to flush it, and closes the connection.
func (c *Client) quit(s *session.Session, reason string) {
	if s.State() == session.StateDisconnected {
		return
	}
	if reason == "" {
		reason = QuitMessage
	}
	if err := s.Send(irc.Quit(reason)); err == nil {
		// best effort; the socket is closed regardless
		_, _ = s.Writable()
	}
	c.forget(s)
	s.Disconnect()
	c.status("Disconnected from %s%s%s", bold, s.Name(), bold)
}

func (c *Client) onSendError(es event.Session, err error) {
	if !errors.Is(err, session.ErrOutputFull) {
		return
	}
	if s := c.session(es.ID()); s != nil {
		c.fail(s, err)
	}
}

// tick abandons connect attempts that took longer than the session's connect timeout,
// and keeps idle connections alive.
func (c *Client) tick(now time.Time) {
	c.checkConnects(now)
	c.keepalive(now)
}

func (c *Client) checkConnects(now time.Time) {
	for id, at := range c.started {
		s := c.session(id)
		if s == nil || s.State() != session.StateConnecting {
			delete(c.started, id)
			continue
		}
		if now.Sub(at) >= s.Config().ConnectTimeout {
			c.fail(s, errConnectTimeout)
			c.refresh()
		}
	}
}

// keepalive pings connections that have been silent for pingInterval
// and drops the ones that stayed silent for pingTimeout.
func (c *Client) keepalive(now time.Time) {
	for _, s := range c.sessions {
		at, ok := c.seen[s.ID()]
		if !ok || s.State() != session.StateConnected {
			continue
		}
		idle := now.Sub(at)
		switch {
		case idle >= pingTimeout:
			c.fail(s, errPingTimeout)
			c.refresh()
		case idle >= pingInterval && !c.pinged[s.ID()]:
			if err := s.Send(irc.Ping(s.Name())); err != nil {
				c.fail(s, err)
				c.refresh()
				continue
			}
			c.pinged[s.ID()] = true
		}
	}
}

const bold = "\x02"

// renderFunc adapts a function to event.Sink.
type renderFunc func(registry.BufferID, string)

func (f renderFunc) Render(id registry.BufferID, text string) {
	f(id, text)
}

func (c *Client) render(id registry.BufferID, text string) {
	line := Line{Buffer: id, Time: c.now(), Text: text}
	if b, ok := c.reg.Get(id); ok {
		line.BufferName = b.Name
		if s := c.session(b.Session); s != nil {
			line.Server = s.Name()
		}
	}
	if c.store != nil {
		err := c.store.Append(c.ctx, logstore.Entry{
			Server: line.Server,
			Buffer: line.BufferName,
			Time:   line.Time,
			Text:   line.Text,
		})
		if err != nil {
			c.logger.Error("store line", zap.Error(err))
		}
	}
	c.sink.Render(line)
}

// status renders a client message in the status buffer.
func (c *Client) status(format string, args ...any) {
	c.render(registry.StatusBuffer, "*** "+fmt.Sprintf(format, args...))
}

func (c *Client) refresh() {
	c.sink.Refresh(c.reg.Snapshot())
}

// replay renders stored lines without storing them again.
func (c *Client) replay(id registry.BufferID, entries []logstore.Entry) {
	var name string
	if b, ok := c.reg.Get(id); ok {
		name = b.Name
	}
	for _, e := range entries {
		c.sink.Render(Line{
			Buffer:     id,
			BufferName: name,
			Server:     e.Server,
			Time:       e.Time,
			Text:       e.Text,
		})
	}
}

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

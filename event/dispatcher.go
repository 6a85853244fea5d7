// Package event turns decoded IRC messages into registry changes and rendered lines.
//
// Every message passes through a short middleware chain (PING, session state, MOTD)
// before the router classifies it by command, or by numeric family, and runs the
// matching behavior. Anything the router doesn't know is dumped to the status buffer.
package event

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/registry"
	"go.uber.org/zap"
)

// bold toggles bold text in rendered lines.
const bold = "\x02"

// Session is the view of a server connection the dispatcher needs.
// *session.Session implements it.
type Session interface {
	ID() int
	Name() string
	Nick() string
	SetNick(string)
	IsMe(name string) bool
	SetMode(string)
	Mode() string
	MarkMOTD() bool
	RetryNick() (string, bool)
	AllowCTCPReply() bool
	Autojoin() []string
	Send(encoding.TextMarshaler) error
}

// Sink receives rendered lines.
type Sink interface {
	Render(id registry.BufferID, text string)
}

// Dispatcher routes messages for every session. It is not safe for concurrent use.
type Dispatcher struct {
	reg     *registry.Registry
	sink    Sink
	logger  *zap.Logger
	version string
	onSend  func(Session, error)
	handler Handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for dropped lines and send failures.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithVersion sets the version reported in CTCP VERSION replies.
func WithVersion(v string) Option {
	return func(d *Dispatcher) { d.version = v }
}

// OnSendError sets a callback for commands the dispatcher failed to queue,
// such as a PONG refused because the output buffer is full.
func OnSendError(fn func(Session, error)) Option {
	return func(d *Dispatcher) { d.onSend = fn }
}

func New(reg *registry.Registry, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:     reg,
		sink:    sink,
		logger:  zap.NewNop(),
		version: "dev",
	}
	for _, o := range opts {
		o(d)
	}
	d.handler = wrap(HandlerFunc(d.route), d.pingMiddleware, stateMiddleware, d.motdMiddleware)
	return d
}

// Dispatch handles one message received on s.
func (d *Dispatcher) Dispatch(s Session, m *irc.Message) {
	d.handler.SpeakIRC(s, m)
}

// DispatchLine decodes a raw line (without CR-LF) and dispatches it.
// Lines that cannot be decoded are reported to the status buffer and dropped.
func (d *Dispatcher) DispatchLine(s Session, line []byte) {
	m, err := irc.Decode(line)
	if err != nil {
		d.logger.Warn("dropped line", zap.String("server", s.Name()), zap.Error(err))
		d.status(s, "Malformed line dropped: %q", line)
		return
	}
	// rfc1459: If the prefix is missing from the message, it
	// is assumed to have originated from the connection from which it was
	// received.
	if m.Source == (irc.Prefix{}) {
		m.Source = irc.Prefix{Host: s.Name()}
	}
	d.Dispatch(s, m)
}

func (d *Dispatcher) route(s Session, m *irc.Message) {
	switch kindOf(m) {
	case kindQuit:
		d.onQuit(s, m)
	case kindJoin:
		d.onJoin(s, m)
	case kindPart:
		d.onPart(s, m)
	case kindInvite:
		d.onInvite(s, m)
	case kindTopic:
		d.onTopic(s, m)
	case kindKick:
		d.onKick(s, m)
	case kindNick:
		d.onNick(s, m)
	case kindMode:
		d.onMode(s, m)
	case kindPrivmsg:
		d.onPrivmsg(s, m)
	case kindNotice:
		d.onNotice(s, m)
	case kindNumeric:
		d.onNumeric(s, m)
	default:
		d.dump(s, m)
	}
}

// dump shows a message nothing else handled: "[srv] *** (VERB): p1|p2".
func (d *Dispatcher) dump(s Session, m *irc.Message) {
	d.status(s, "(%s): %s", m.Verb(), strings.Join(m.Params, "|"))
}

func (d *Dispatcher) render(id registry.BufferID, format string, args ...any) {
	d.sink.Render(id, fmt.Sprintf(format, args...))
}

// status renders a server-tagged line in the status buffer.
func (d *Dispatcher) status(s Session, format string, args ...any) {
	d.serverLine(s, registry.StatusBuffer, format, args...)
}

// serverLine renders a server-tagged line, "[srv] *** text", in buffer id.
func (d *Dispatcher) serverLine(s Session, id registry.BufferID, format string, args ...any) {
	d.sink.Render(id, "["+s.Name()+"] *** "+fmt.Sprintf(format, args...))
}

func (d *Dispatcher) send(s Session, m encoding.TextMarshaler) {
	if err := s.Send(m); err != nil {
		d.logger.Error("send", zap.String("server", s.Name()), zap.Error(err))
		if d.onSend != nil {
			d.onSend(s, err)
		}
	}
}

// postConnect rejoins the session's channel buffers and then its autojoin channels, once each.
func (d *Dispatcher) postConnect(s Session) {
	var channels []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if !irc.IsChannel(name) || seen[key] {
			return
		}
		seen[key] = true
		channels = append(channels, name)
	}
	for _, id := range d.reg.SessionBuffers(s.ID()) {
		if b, ok := d.reg.Get(id); ok {
			add(b.Name)
		}
	}
	for _, name := range s.Autojoin() {
		add(name)
	}
	d.status(s, "Connected")
	d.logger.Info("registered", zap.String("server", s.Name()), zap.Strings("join", channels))
	for _, ch := range channels {
		d.send(s, irc.Join(ch))
	}
}

package event

import (
	"github.com/Travis-Britz/ircterm/irc"
)

// A Handler responds to an IRC message received on a session.
//
// Handlers should avoid modifying the provided Message.
type Handler interface {
	SpeakIRC(Session, *irc.Message)
}

// The HandlerFunc type is an adapter to allow the usage of ordinary functions
// as handlers, following the same pattern as http.HandlerFunc.
type HandlerFunc func(Session, *irc.Message)

// SpeakIRC calls f(s, m).
func (f HandlerFunc) SpeakIRC(s Session, m *irc.Message) {
	f(s, m)
}

type middleware func(Handler) Handler

func wrap(h Handler, mw ...middleware) Handler {
	if len(mw) < 1 {
		return h
	}

	wrapped := h
	// loop in reverse to preserve middleware order
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}

	return wrapped
}

// pingMiddleware intercepts server PING messages and replies with the appropriate PONG.
// PING never reaches the router.
func (d *Dispatcher) pingMiddleware(next Handler) Handler {
	return HandlerFunc(func(s Session, m *irc.Message) {
		if m.Command != irc.CmdPing {
			next.SpeakIRC(s, m)
			return
		}
		d.send(s, irc.Pong(m.Params.Get(1)))
	})
}

// stateMiddleware keeps the session's idea of its own nickname in sync with the server.
func stateMiddleware(next Handler) Handler {
	return HandlerFunc(func(s Session, m *irc.Message) {
		switch {

		// "<nick> :Welcome to the Internet Relay Network <nick>!<user>@<host>"
		// The first param is authoritative; servers may have truncated or changed the nick we asked for.
		case m.Numeric == irc.RplWelcome:
			if nick := m.Params.Get(1); nick != "" {
				s.SetNick(nick)
			}
			next.SpeakIRC(s, m)

		// the router needs to see the old nick to recognise our own rename,
		// so the state is only updated afterwards
		case m.Command == irc.CmdNick && s.IsMe(m.Source.Nick.String()):
			next.SpeakIRC(s, m)
			s.SetNick(m.Params.Get(1))

		default:
			next.SpeakIRC(s, m)
		}
	})
}

// motdMiddleware runs the post-connect action the first time the end of the MOTD
// (or the missing MOTD error) arrives on a connection.
func (d *Dispatcher) motdMiddleware(next Handler) Handler {
	return HandlerFunc(func(s Session, m *irc.Message) {
		next.SpeakIRC(s, m)
		if m.Numeric != irc.RplEndOfMOTD && m.Numeric != irc.ErrNoMOTD {
			return
		}
		if s.MarkMOTD() {
			d.postConnect(s)
		}
	})
}

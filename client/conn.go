//go:build unix

package client

import (
	"github.com/Travis-Britz/ircterm/mux"
	"github.com/Travis-Britz/ircterm/session"
)

// sessionConn lets the event loop poll a session.
type sessionConn struct {
	c *Client
	s *session.Session
}

func (sc sessionConn) Fd() int {
	return sc.s.Fd()
}

func (sc sessionConn) Interest() mux.Interest {
	var in mux.Interest
	read, write := sc.s.Interest()
	if read {
		in |= mux.Read
	}
	if write {
		in |= mux.Write
	}
	return in
}

// Ready reads and dispatches whatever arrived, then flushes queued output.
// Any error is fatal for the session.
func (sc sessionConn) Ready(in mux.Interest) {
	c, s := sc.c, sc.s
	defer c.refresh()

	if in&mux.Read != 0 {
		err := s.Readable(func(line []byte) {
			c.disp.DispatchLine(s, line)
		})
		if err != nil {
			c.fail(s, err)
			return
		}
		if s.State() == session.StateDisconnected {
			return
		}
		c.heard(s)
		if s.State() == session.StateConnected {
			delete(c.started, s.ID())
		}
	}
	if in&mux.Write != 0 && s.State() != session.StateDisconnected {
		if _, err := s.Writable(); err != nil {
			c.fail(s, err)
			return
		}
		if s.State() == session.StateConnected {
			delete(c.started, s.ID())
		}
	}
}

func (c *Client) conns() []mux.Conn {
	conns := make([]mux.Conn, 0, len(c.sessions))
	for _, s := range c.sessions {
		conns = append(conns, sessionConn{c: c, s: s})
	}
	return conns
}

//go:build unix

package client

import (
	"errors"

	"github.com/Travis-Britz/ircterm/command"
	"github.com/Travis-Britz/ircterm/event"
	"github.com/Travis-Britz/ircterm/registry"
	"github.com/Travis-Britz/ircterm/session"
)

// The client is what commands act on, and its sessions are what they send to.
var (
	_ command.App     = (*Client)(nil)
	_ command.Session = (*session.Session)(nil)
	_ event.Session   = (*session.Session)(nil)
)

var errNoStore = errors.New("scrollback is disabled; set a database in the configuration")

func (c *Client) Registry() *registry.Registry {
	return c.reg
}

// Print renders text in buffer id. It must be called on the event loop goroutine.
func (c *Client) Print(id registry.BufferID, text string) {
	c.render(id, text)
}

func (c *Client) Session(id int) (command.Session, bool) {
	if s := c.session(id); s != nil {
		return s, true
	}
	return nil, false
}

func (c *Client) SessionByName(name string) (command.Session, bool) {
	for _, s := range c.sessions {
		if sameName(s.Name(), name) {
			return s, true
		}
	}
	return nil, false
}

func (c *Client) Current() (command.Session, bool) {
	if c.current == nil {
		return nil, false
	}
	return c.current, true
}

func (c *Client) SetCurrent(s command.Session) {
	if cs := c.session(s.ID()); cs != nil {
		c.current = cs
	}
}

func (c *Client) Sessions() []command.Session {
	out := make([]command.Session, len(c.sessions))
	for i, s := range c.sessions {
		out[i] = s
	}
	return out
}

func (c *Client) AddServer(cfg session.Config) command.Session {
	return c.addSession(cfg)
}

func (c *Client) Connect(s command.Session) error {
	cs := c.session(s.ID())
	if cs == nil {
		return errors.New("unknown server")
	}
	return c.connect(cs)
}

func (c *Client) Disconnect(s command.Session, reason string) {
	if cs := c.session(s.ID()); cs != nil {
		c.quit(cs, reason)
	}
}

// Backlog replays up to n stored lines of buffer id.
func (c *Client) Backlog(id registry.BufferID, n int) error {
	if c.store == nil {
		return errNoStore
	}
	b, ok := c.reg.Get(id)
	if !ok {
		return registry.ErrNoSuchBuffer
	}
	server := ""
	if s := c.session(b.Session); s != nil {
		server = s.Name()
	}
	entries, err := c.store.Recent(c.ctx, server, b.Name, n)
	if err != nil {
		return err
	}
	c.replay(id, entries)
	return nil
}

// Quit disconnects every session and stops the event loop.
func (c *Client) Quit(reason string) {
	for _, s := range c.sessions {
		c.quit(s, reason)
	}
	c.loop.Stop()
}

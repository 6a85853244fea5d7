// Package irctest provides a fake IRC server on the loopback interface
// for testing clients end to end.
package irctest

import (
	"bufio"
	"context"
	"encoding"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/Travis-Britz/ircterm/irc"
)

// Handler responds to messages a client sent to the server.
type Handler interface {
	SpeakIRC(*Conn, *irc.Message)
}

// HandlerFunc is an adapter to use functions as handlers.
type HandlerFunc func(*Conn, *irc.Message)

func (f HandlerFunc) SpeakIRC(c *Conn, m *irc.Message) {
	f(c, m)
}

// NewServer starts a fake server on a random loopback port.
// Don't forget to close.
func NewServer(h Handler) (*Server, error) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		Handler:  h,
		ln:       ln,
		accepted: make(chan *Conn, 8),
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

type Server struct {
	// Handler is called for every message received, before it is queued for Expect.
	// It may be nil.
	Handler Handler

	ln       net.Listener
	wg       sync.WaitGroup
	accepted chan *Conn

	mu    sync.Mutex
	conns []*Conn
}

// Addr is the "host:port" the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// HostPort splits Addr.
func (s *Server) HostPort() (string, int) {
	host, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return host, p
}

// Accept waits for the next client connection.
func (s *Server) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c, ok := <-s.accepted:
		if !ok {
			return nil, net.ErrClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops listening, closes every connection, and waits for their goroutines.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) accept() {
	defer s.wg.Done()
	defer close(s.accepted)
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		c := &Conn{
			conn:     nc,
			handler:  s.Handler,
			received: make(chan *irc.Message, 256),
		}
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.read()
		}()
		select {
		case s.accepted <- c:
		default:
			log.Println("irctest: accept queue full; connection not reported")
		}
	}
}

// Conn is one client connection to the fake server.
type Conn struct {
	conn     net.Conn
	handler  Handler
	received chan *irc.Message

	wmu sync.Mutex

	mu   sync.Mutex
	nick string
}

// Nick is the last nickname the client asked for.
func (c *Conn) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// WriteString sends a line to the client. The CR-LF is added if missing.
func (c *Conn) WriteString(str string) {
	if !strings.HasSuffix(str, "\r\n") {
		str += "\r\n"
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write([]byte(str)); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Println("irctest: write error:", err)
	}
}

// WriteMessage sends m to the client.
func (c *Conn) WriteMessage(m encoding.TextMarshaler) {
	b, err := m.MarshalText()
	if err != nil {
		log.Println("irctest: marshaler:", err)
		return
	}
	c.WriteString(string(b))
}

// Printf formats and sends a line to the client.
func (c *Conn) Printf(format string, args ...any) {
	c.WriteString(fmt.Sprintf(format, args...))
}

// Expect waits for the next message with the given verb, discarding others.
func (c *Conn) Expect(ctx context.Context, verb string) (*irc.Message, error) {
	for {
		select {
		case m, ok := <-c.received:
			if !ok {
				return nil, fmt.Errorf("expecting %s: %w", verb, net.ErrClosed)
			}
			if strings.EqualFold(m.Verb(), verb) {
				return m, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("expecting %s: %w", verb, ctx.Err())
		}
	}
}

func (c *Conn) read() {
	defer close(c.received)
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		m, err := irc.Decode(scanner.Bytes())
		if err != nil {
			log.Println("irctest: unmarshaling error:", err)
			continue
		}
		if m.Command == irc.CmdNick {
			c.mu.Lock()
			c.nick = m.Params.Get(1)
			c.mu.Unlock()
		}
		if c.handler != nil {
			c.handler.SpeakIRC(c, m)
		}
		select {
		case c.received <- m:
		default:
			log.Println("irctest: receive queue full; dropped", m.Verb())
		}
	}
}

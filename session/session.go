// Package session manages one connection to an IRC server:
// its non-blocking socket, fixed-capacity line buffers, and the
// identity the client holds on that server.
//
// A Session is not safe for concurrent use. It is driven by the event loop,
// which calls Readable and Writable when the socket is ready.
package session

import (
	"bytes"
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/Travis-Britz/ircterm/irc"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"
)

const (
	// InputCapacity is the size of the receive buffer.
	// A single line longer than this is fatal for the session.
	InputCapacity = 8192

	// OutputCapacity is the size of the send buffer.
	OutputCapacity = 8192

	// MaxNickRetries bounds how many times an underscore is appended
	// to the nickname after the server reports it in use.
	MaxNickRetries = 5

	DefaultPort           = 6667
	DefaultConnectTimeout = 10 * time.Second
)

var (
	// ErrInputOverflow means the server sent more than InputCapacity bytes without a line break.
	ErrInputOverflow = errors.New("input buffer overflow")

	// ErrOutputFull means a command did not fit in the send buffer. The buffer is left unchanged.
	ErrOutputFull = errors.New("output buffer full")

	ErrNotConnected = errors.New("not connected")

	// ErrPeerClosed is returned by Readable when the server closed the connection.
	ErrPeerClosed = errors.New("connection closed by peer")

	// ErrWouldBlock is returned by a Socket when the operation would block.
	ErrWouldBlock = errors.New("operation would block")
)

// Socket is a non-blocking byte stream with a pollable file descriptor.
// Read and Write return ErrWouldBlock instead of blocking, and Read returns io.EOF
// when the peer closed the stream.
type Socket interface {
	io.ReadWriteCloser
	Fd() int
}

// Config describes the server a session connects to and the identity it registers with.
type Config struct {
	Name     string // display name; defaults to Host
	Host     string
	Port     int
	Password string // sent as PASS when not empty
	Nick     string
	Username string
	Realname string
	Autojoin []string

	// ConnectTimeout bounds address resolution.
	ConnectTimeout time.Duration
}

// State is the connection state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// A Session is one configured server connection.
type Session struct {
	id  int
	cfg Config

	// DialFn opens the socket for Connect.
	// The default resolves the host and opens a non-blocking TCP socket.
	// Tests replace it to hand the session one end of a socketpair.
	DialFn func(ctx context.Context, addr string) (Socket, error)

	logger *zap.Logger

	sock  Socket
	state State
	in    *lineBuffer
	out   *lineBuffer

	nick        string
	mode        string
	motd        bool
	nickRetries int

	ctcp   *rate.Limiter
	latin1 *charmap.Charmap
}

// New creates a disconnected session. id is the stable handle other components use to refer to it.
func New(id int, cfg Config, logger *zap.Logger) *Session {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Host
	}
	if cfg.Username == "" {
		cfg.Username = "guest"
	}
	if cfg.Realname == "" {
		// realname is required by the protocol but nobody cares what it is
		cfg.Realname = "..."
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:     id,
		cfg:    cfg,
		DialFn: dialTCP,
		logger: logger.With(zap.Int("session", id), zap.String("server", cfg.Name)),
		in:     newLineBuffer(InputCapacity),
		out:    newLineBuffer(OutputCapacity),
		nick:   cfg.Nick,
		ctcp:   rate.NewLimiter(rate.Every(3*time.Second), 3),
		latin1: charmap.ISO8859_1,
	}
}

func (s *Session) ID() int        { return s.id }
func (s *Session) Name() string   { return s.cfg.Name }
func (s *Session) Config() Config { return s.cfg }
func (s *Session) State() State   { return s.state }

// Addr returns the "host:port" the session connects to.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Fd returns the socket descriptor, or -1 while disconnected.
func (s *Session) Fd() int {
	if s.sock == nil {
		return -1
	}
	return s.sock.Fd()
}

// Connect opens a new connection, closing any existing one first,
// and queues the registration commands.
//
// On failure the session stays disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if s.cfg.Host == "" {
		return errors.New("connect: no server address")
	}
	if s.cfg.Nick == "" {
		return errors.New("connect: no nickname")
	}
	s.Disconnect()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	sock, err := s.DialFn(ctx, s.Addr())
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.Addr(), err)
	}

	s.sock = sock
	s.state = StateConnecting
	s.in.Reset()
	s.out.Reset()
	s.nick = s.cfg.Nick
	s.mode = ""
	s.motd = false
	s.nickRetries = 0

	if s.cfg.Password != "" {
		s.mustQueue(irc.Pass(s.cfg.Password))
	}
	s.mustQueue(irc.Nick(s.cfg.Nick))
	s.mustQueue(irc.User(s.cfg.Username, s.cfg.Realname))

	s.logger.Info("connecting", zap.String("addr", s.Addr()))
	return nil
}

// mustQueue is only used for registration, which always fits in an empty buffer.
func (s *Session) mustQueue(m encoding.TextMarshaler) {
	if err := s.Send(m); err != nil {
		s.logger.Error("queue registration", zap.Error(err))
	}
}

// Disconnect closes the socket and clears both buffers. It is safe to call at any time.
func (s *Session) Disconnect() {
	if s.sock == nil {
		return
	}
	if err := s.sock.Close(); err != nil {
		s.logger.Warn("close socket", zap.Error(err))
	}
	s.sock = nil
	s.state = StateDisconnected
	s.in.Reset()
	s.out.Reset()
	s.logger.Info("disconnected")
}

// Feed appends received bytes to the input buffer and calls fn once for every complete line,
// without its CR-LF terminator. Incomplete data stays buffered until the rest arrives.
//
// Lines that are not valid UTF-8 are converted from ISO-8859-1.
// fn must not retain line.
func (s *Session) Feed(p []byte, fn func(line []byte)) error {
	if !s.in.Append(p) {
		return ErrInputOverflow
	}
	s.drain(fn)
	return nil
}

// Readable reads whatever the socket has into the input buffer and processes it as Feed does.
func (s *Session) Readable(fn func(line []byte)) error {
	if s.sock == nil {
		return ErrNotConnected
	}
	n, err := s.sock.Read(s.in.tail())
	switch {
	case errors.Is(err, ErrWouldBlock):
		return nil
	case errors.Is(err, io.EOF):
		return ErrPeerClosed
	case err != nil:
		return fmt.Errorf("read: %w", err)
	}
	if s.state == StateConnecting {
		s.state = StateConnected
	}
	s.in.commit(n)
	s.drain(fn)
	if s.sock != nil && s.in.Free() == 0 {
		return ErrInputOverflow
	}
	return nil
}

func (s *Session) drain(fn func(line []byte)) {
	s.in.eachLine(func(line []byte) bool {
		if !utf8.Valid(line) {
			if b, err := s.latin1.NewDecoder().Bytes(line); err == nil {
				line = b
			}
		}
		fn(line)
		// a handler may have closed the session
		return s.sock != nil
	})
}

// Send encodes m and appends it to the output buffer.
// It returns ErrOutputFull without modifying the buffer when the line doesn't fit.
func (s *Session) Send(m encoding.TextMarshaler) error {
	if s.state == StateDisconnected {
		return ErrNotConnected
	}
	b, err := m.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal text: %w", err)
	}
	if !bytes.HasSuffix(b, crlf) {
		b = append(b, crlf...)
	}
	if !s.out.Append(b) {
		return fmt.Errorf("%w: %d bytes pending, %d bytes to send", ErrOutputFull, s.out.Len(), len(b))
	}
	s.logger.Debug("queued", zap.ByteString("line", bytes.TrimSuffix(b, crlf)))
	return nil
}

// Writable completes a connect in progress, then writes as much of the output buffer as the
// socket accepts. Unsent bytes stay at the front of the buffer for the next call.
func (s *Session) Writable() (int, error) {
	if s.sock == nil {
		return 0, ErrNotConnected
	}
	if s.state == StateConnecting {
		if err := connectResult(s.sock.Fd()); err != nil {
			return 0, fmt.Errorf("connect %s: %w", s.Addr(), err)
		}
		s.state = StateConnected
		s.logger.Info("connected")
	}
	if s.out.Len() == 0 {
		return 0, nil
	}
	n, err := s.sock.Write(s.out.Bytes())
	if errors.Is(err, ErrWouldBlock) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	s.out.Consume(n)
	return n, nil
}

// Interest reports which readiness events the session is waiting for.
func (s *Session) Interest() (read, write bool) {
	if s.sock == nil {
		return false, false
	}
	read = s.in.Free() > 0
	write = s.state == StateConnecting || s.out.Len() > 0
	return read, write
}

// Pending returns a copy of the unsent output.
func (s *Session) Pending() []byte {
	return bytes.Clone(s.out.Bytes())
}

// Nick is the nickname the session currently holds (or is trying to register).
func (s *Session) Nick() string        { return s.nick }
func (s *Session) SetNick(nick string) { s.nick = nick }

// BaseNick is the configured nickname, before any collision suffixes.
func (s *Session) BaseNick() string { return s.cfg.Nick }

// IsMe reports whether name is the session's current nickname.
func (s *Session) IsMe(name string) bool {
	return irc.Nickname(s.nick).Is(name)
}

func (s *Session) Mode() string        { return s.mode }
func (s *Session) SetMode(mode string) { s.mode = mode }

// MOTDReceived reports whether the end of the MOTD was seen on this connection.
func (s *Session) MOTDReceived() bool { return s.motd }

// MarkMOTD records the end of the MOTD and reports whether this was the first time
// on the current connection.
func (s *Session) MarkMOTD() bool {
	first := !s.motd
	s.motd = true
	return first
}

// RetryNick appends an underscore to the current nickname and returns it.
// ok is false once MaxNickRetries attempts were made on this connection.
func (s *Session) RetryNick() (nick string, ok bool) {
	if s.nickRetries >= MaxNickRetries {
		return s.nick, false
	}
	s.nickRetries++
	s.nick += "_"
	return s.nick, true
}

// AllowCTCPReply reports whether a CTCP reply may be sent now.
// Replies are limited so that a flood of queries can't fill the output buffer.
func (s *Session) AllowCTCPReply() bool {
	return s.ctcp.Allow()
}

// Autojoin returns the channels configured to be joined after connecting.
func (s *Session) Autojoin() []string {
	return s.cfg.Autojoin
}

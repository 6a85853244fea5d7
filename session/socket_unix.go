//go:build unix

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// fdSocket is a raw non-blocking stream socket.
type fdSocket struct {
	fd int
}

// NewSocket wraps an already open file descriptor, which must be in non-blocking mode.
// It is used for socketpair ends in tests and for descriptors inherited from elsewhere.
func NewSocket(fd int) Socket {
	return &fdSocket{fd: fd}
}

// dialTCP opens a non-blocking IPv4 stream socket and starts connecting it to addr ("host:port").
// The connection is usually still in progress when dialTCP returns;
// completion is observed through Session.Writable.
func dialTCP(ctx context.Context, addr string) (Socket, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve %s: no IPv4 address", host)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ips[0].To4())

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	if err := unix.Connect(fd, sa); err != nil && !errors.Is(err, unix.EINPROGRESS) {
		unix.Close(fd)
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &fdSocket{fd: fd}, nil
}

func (s *fdSocket) Fd() int { return s.fd }

func (s *fdSocket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (s *fdSocket) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		}
		return n, nil
	}
}

func (s *fdSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// connectResult reports the outcome of a non-blocking connect once the socket became writable.
// Descriptors that aren't sockets have nothing to report.
func connectResult(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if errors.Is(err, unix.ENOTSOCK) {
		return nil
	}
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

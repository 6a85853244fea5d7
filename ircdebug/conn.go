/*
Package ircdebug contains helpers that are useful while developing an IRC client.
*/
package ircdebug

import (
	"bytes"
	"io"
	"sync"

	"github.com/Travis-Britz/ircterm/session"
)

// WriteTo returns a socket that copies all traffic of sock to w, one line at a time.
// Lines read are prefixed with inPrefix and lines written with outPrefix.
// The file descriptor is passed through, so the tapped socket can still be polled.
//
// This is mainly useful for writing a wire log to a file.
func WriteTo(w io.Writer, sock session.Socket, outPrefix string, inPrefix string) session.Socket {
	mu := new(sync.Mutex)
	return &debugSocket{
		Socket: sock,
		in:     &linePrefixer{mu: mu, w: w, prefix: inPrefix},
		out:    &linePrefixer{mu: mu, w: w, prefix: outPrefix},
	}
}

type debugSocket struct {
	session.Socket
	in  *linePrefixer
	out *linePrefixer
}

func (ds *debugSocket) Read(p []byte) (int, error) {
	n, err := ds.Socket.Read(p)
	if n > 0 {
		ds.in.Write(p[:n])
	}
	return n, err
}

func (ds *debugSocket) Write(p []byte) (int, error) {
	n, err := ds.Socket.Write(p)
	if n > 0 {
		ds.out.Write(p[:n])
	}
	return n, err
}

// Close flushes any partial lines before closing the socket.
func (ds *debugSocket) Close() error {
	ds.in.flush()
	ds.out.flush()
	return ds.Socket.Close()
}

// linePrefixer writes each complete line of its input to w with a prefix.
// Both directions share one mutex so that records never interleave.
type linePrefixer struct {
	mu      *sync.Mutex
	w       io.Writer
	prefix  string
	partial []byte
}

func (lp *linePrefixer) Write(p []byte) (int, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.partial = append(lp.partial, p...)
	for {
		i := bytes.IndexByte(lp.partial, '\n')
		if i < 0 {
			break
		}
		lp.emit(lp.partial[:i+1])
		lp.partial = lp.partial[i+1:]
	}
	if len(lp.partial) == 0 {
		lp.partial = nil
	}
	return len(p), nil
}

func (lp *linePrefixer) flush() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if len(lp.partial) > 0 {
		lp.emit(append(lp.partial, '\n'))
		lp.partial = nil
	}
}

// emit ignores write errors; the wire log must never break the connection.
func (lp *linePrefixer) emit(line []byte) {
	_, _ = lp.w.Write(append([]byte(lp.prefix), line...))
}

//go:build unix

// Package mux runs the single-threaded event loop which waits on every session socket at once.
//
// All protocol work happens on the goroutine calling Loop.Run. Other goroutines
// hand work to it with Post.
package mux

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrStopped is returned by Run after Stop was called.
var ErrStopped = errors.New("event loop stopped")

// Interest is a set of readiness events.
type Interest uint8

const (
	Read Interest = 1 << iota
	Write
)

func (i Interest) String() string {
	switch i {
	case 0:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	case Read | Write:
		return "read|write"
	default:
		return fmt.Sprintf("Interest(%d)", uint8(i))
	}
}

// Conn is anything with a pollable descriptor.
type Conn interface {
	// Fd returns the descriptor to wait on, or a negative number to skip the conn.
	Fd() int

	// Interest reports what the conn currently waits for. Zero skips the conn.
	Interest() Interest

	// Ready is called on the loop goroutine with the events that occurred.
	// Hang-ups and errors are reported as Read so the read path sees them.
	Ready(Interest)
}

// Loop waits for readiness on a changing set of conns.
type Loop struct {
	// Conns returns the conns to wait on. It is called once per iteration.
	Conns func() []Conn

	// Tick is called on the loop goroutine every TickInterval, if both are set.
	Tick         func(time.Time)
	TickInterval time.Duration

	Logger *zap.Logger

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	queue  []func()
	wakeR  int
	wakeW  int
	closed bool

	stopped atomic.Bool
}

func (l *Loop) init() error {
	l.initOnce.Do(func() {
		var p [2]int
		if err := unix.Pipe(p[:]); err != nil {
			l.initErr = fmt.Errorf("wake pipe: %w", err)
			return
		}
		for _, fd := range p {
			unix.CloseOnExec(fd)
			if err := unix.SetNonblock(fd, true); err != nil {
				l.initErr = fmt.Errorf("wake pipe: %w", err)
			}
		}
		l.wakeR, l.wakeW = p[0], p[1]
		if l.Logger == nil {
			l.Logger = zap.NewNop()
		}
	})
	return l.initErr
}

// Post queues fn to run on the loop goroutine. It is safe to call from any goroutine,
// before or during Run. Functions posted after Run returned never run.
func (l *Loop) Post(fn func()) {
	if err := l.init(); err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, fn)
	l.wakeLocked()
}

// Stop makes Run return ErrStopped.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.wake()
}

func (l *Loop) wake() {
	if l.init() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wakeLocked()
}

func (l *Loop) wakeLocked() {
	if l.closed {
		return
	}
	// a full pipe already guarantees a wakeup
	_, _ = unix.Write(l.wakeW, []byte{0})
}

func (l *Loop) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(l.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (l *Loop) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.queue = nil
	unix.Close(l.wakeR)
	unix.Close(l.wakeW)
}

// Run waits for and dispatches events until ctx is done or Stop is called.
// A Loop can only be run once.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.init(); err != nil {
		return err
	}
	defer l.close()

	stopWatch := context.AfterFunc(ctx, l.wake)
	defer stopWatch()

	var (
		fds      []unix.PollFd
		active   []Conn
		nextTick time.Time
	)
	ticking := l.Tick != nil && l.TickInterval > 0
	if ticking {
		nextTick = time.Now().Add(l.TickInterval)
	}

	for {
		if l.stopped.Load() {
			return ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fds = append(fds[:0], unix.PollFd{Fd: int32(l.wakeR), Events: unix.POLLIN})
		active = active[:0]
		if l.Conns != nil {
			for _, c := range l.Conns() {
				fd, in := c.Fd(), c.Interest()
				if fd < 0 || in == 0 {
					continue
				}
				var events int16
				if in&Read != 0 {
					events |= unix.POLLIN
				}
				if in&Write != 0 {
					events |= unix.POLLOUT
				}
				fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
				active = append(active, c)
			}
		}

		timeout := -1
		if ticking {
			timeout = max(0, int(time.Until(nextTick).Milliseconds())+1)
		}

		if _, err := unix.Poll(fds, timeout); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}

		if fds[0].Revents != 0 {
			l.drainWake()
		}

		for i, c := range active {
			rev := fds[i+1].Revents
			if rev&unix.POLLNVAL != 0 {
				l.Logger.Warn("poll on closed descriptor", zap.Int32("fd", fds[i+1].Fd))
				continue
			}
			var ready Interest
			if rev&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				ready |= Read
			}
			if rev&unix.POLLOUT != 0 {
				ready |= Write
			}
			if ready != 0 {
				c.Ready(ready)
			}
		}

		l.runQueue()

		if ticking {
			if now := time.Now(); !now.Before(nextTick) {
				l.Tick(now)
				nextTick = now.Add(l.TickInterval)
			}
		}
	}
}

func (l *Loop) runQueue() {
	l.mu.Lock()
	queue := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range queue {
		fn()
	}
}

//go:build unix

package client

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Travis-Britz/ircterm/irctest"
	"github.com/Travis-Britz/ircterm/logstore"
	"github.com/Travis-Britz/ircterm/registry"
	"github.com/Travis-Britz/ircterm/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Sink that keeps everything it was given.
type recorder struct {
	mu       sync.Mutex
	lines    []Line
	snapshot registry.Snapshot
}

func (r *recorder) Render(l Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, l)
}

func (r *recorder) Refresh(s registry.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = s
}

func (r *recorder) find(substr string) (Line, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l.Text, substr) {
			return l, true
		}
	}
	return Line{}, false
}

func (r *recorder) has(substr string) bool {
	_, ok := r.find(substr)
	return ok
}

func (r *recorder) selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, _ := r.snapshot.Find(r.snapshot.Selected)
	return b.Name
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	server *irctest.Server
	sink   *recorder
	client *Client
	done   chan error
}

func start(t *testing.T, opts ...Option) *harness {
	t.Helper()
	srv, err := irctest.NewServer(irctest.Network)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	host, port := srv.HostPort()
	cfg := session.Config{
		Name:     "test",
		Host:     host,
		Port:     port,
		Nick:     "bob",
		Autojoin: []string{"#go"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		t:      t,
		ctx:    ctx,
		server: srv,
		sink:   new(recorder),
		done:   make(chan error, 1),
	}
	h.client = New(h.sink, []session.Config{cfg}, opts...)
	go func() { h.done <- h.client.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) waitFor(substr string) Line {
	h.t.Helper()
	var line Line
	require.Eventually(h.t, func() bool {
		var ok bool
		line, ok = h.sink.find(substr)
		return ok
	}, 5*time.Second, 10*time.Millisecond, "waiting for %q", substr)
	return line
}

func TestClient_registersJoinsAndChats(t *testing.T) {
	h := start(t)
	conn, err := h.server.Accept(h.ctx)
	require.NoError(t, err)

	m, err := conn.Expect(h.ctx, "USER")
	require.NoError(t, err)
	assert.Equal(t, "guest", m.Params.Get(1))

	joined := h.waitFor("has joined")
	assert.Equal(t, "#go", joined.BufferName)
	assert.Equal(t, "test", joined.Server)

	users := h.waitFor("Users of")
	assert.Contains(t, users.Text, "1 nick(s)")
	require.Eventually(t, func() bool { return h.sink.selected() == "#go" }, 5*time.Second, 10*time.Millisecond)

	h.client.Input("hello, world")
	m, err = conn.Expect(h.ctx, "PRIVMSG")
	require.NoError(t, err)
	assert.Equal(t, []string{"#go", "hello, world"}, []string(m.Params))
	h.waitFor("<bob> hello, world")

	conn.Printf(":alice!a@b PRIVMSG #go :hi bob")
	line := h.waitFor("<alice> hi bob")
	assert.Equal(t, "#go", line.BufferName)

	h.client.Input("/quit see you")
	m, err = conn.Expect(h.ctx, "QUIT")
	require.NoError(t, err)
	assert.Equal(t, "see you", m.Params.Get(1))

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop after /quit")
	}
}

func TestClient_peerClose(t *testing.T) {
	h := start(t)
	conn, err := h.server.Accept(h.ctx)
	require.NoError(t, err)
	h.waitFor("has joined")

	require.NoError(t, conn.Close())
	line := h.waitFor("Disconnected from")
	assert.Equal(t, registry.StatusBuffer, line.Buffer)
	assert.Contains(t, line.Text, session.ErrPeerClosed.Error())
}

func TestClient_reconnectRejoins(t *testing.T) {
	h := start(t)
	first, err := h.server.Accept(h.ctx)
	require.NoError(t, err)
	_, err = first.Expect(h.ctx, "JOIN")
	require.NoError(t, err)
	h.waitFor("has joined")

	h.client.Input("/reconnect")
	second, err := h.server.Accept(h.ctx)
	require.NoError(t, err)
	m, err := second.Expect(h.ctx, "JOIN")
	require.NoError(t, err)
	assert.Equal(t, "#go", m.Params.Get(1))
}

func TestClient_wireLog(t *testing.T) {
	var mu sync.Mutex
	var wire bytes.Buffer
	h := start(t, WithWireLog(lockedWriter{&mu, &wire}))
	_, err := h.server.Accept(h.ctx)
	require.NoError(t, err)
	h.waitFor("has joined")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, wire.String(), "[test] -> NICK bob\r\n")
	assert.Contains(t, wire.String(), "[test] <- :irc.test 001 bob")
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func TestClient_connectFailure(t *testing.T) {
	sink := new(recorder)
	c := New(sink, []session.Config{{Name: "nowhere", Host: "127.0.0.1", Port: 1, Nick: "bob"}})
	s := c.session(1)
	s.DialFn = func(ctx context.Context, addr string) (session.Socket, error) {
		return nil, assert.AnError
	}

	require.Error(t, c.connect(s))
	assert.True(t, sink.has("Can't connect to \x02nowhere\x02"))
	assert.Equal(t, session.StateDisconnected, s.State())
}

func TestClient_connectTimeout(t *testing.T) {
	sink := new(recorder)
	c := New(sink, []session.Config{{Name: "slow", Host: "127.0.0.1", Nick: "bob", ConnectTimeout: time.Second}})
	s := c.session(1)
	a := socketPair(t)
	s.DialFn = func(ctx context.Context, addr string) (session.Socket, error) {
		return a, nil
	}

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return t0 }
	require.NoError(t, c.connect(s))
	require.Equal(t, session.StateConnecting, s.State())

	c.tick(t0.Add(500 * time.Millisecond))
	assert.Equal(t, session.StateConnecting, s.State())

	c.tick(t0.Add(time.Second))
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.True(t, sink.has(errConnectTimeout.Error()))
}

func TestClient_keepalive(t *testing.T) {
	sink := new(recorder)
	c := New(sink, []session.Config{{Name: "quiet", Host: "127.0.0.1", Nick: "bob"}})
	s := c.session(1)
	a := socketPair(t)
	s.DialFn = func(ctx context.Context, addr string) (session.Socket, error) {
		return a, nil
	}

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return t0 }
	require.NoError(t, c.connect(s))
	_, err := s.Writable()
	require.NoError(t, err)
	require.Equal(t, session.StateConnected, s.State())
	require.Empty(t, s.Pending())

	c.tick(t0.Add(time.Minute))
	assert.Empty(t, s.Pending(), "no ping before the connection goes quiet")

	c.tick(t0.Add(pingInterval))
	assert.Equal(t, "PING quiet\r\n", string(s.Pending()))

	c.tick(t0.Add(pingInterval + time.Second))
	assert.Equal(t, "PING quiet\r\n", string(s.Pending()), "one ping per silence")

	c.tick(t0.Add(pingTimeout))
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.True(t, sink.has(errPingTimeout.Error()))
}

func TestClient_backlog(t *testing.T) {
	store, err := logstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	sink := new(recorder)
	c := New(sink, []session.Config{{Name: "libera", Host: "irc.libera.chat", Nick: "bob"}}, WithStore(store))
	id := c.reg.Create(1, "#go")
	c.Print(id, "first")
	c.Print(id, "second")
	c.Print(id, "third")

	sink.lines = nil
	require.NoError(t, c.Backlog(id, 2))
	require.Len(t, sink.lines, 2)
	assert.Equal(t, "second", sink.lines[0].Text)
	assert.Equal(t, "third", sink.lines[1].Text)
	assert.Equal(t, "libera", sink.lines[0].Server)
	assert.Equal(t, "#go", sink.lines[0].BufferName)

	c2 := New(new(recorder), nil)
	assert.ErrorIs(t, c2.Backlog(registry.StatusBuffer, 10), errNoStore)
}

func TestClient_sessionsHaveStableIDs(t *testing.T) {
	c := New(new(recorder), []session.Config{
		{Name: "a", Host: "a.example", Nick: "bob"},
		{Name: "b", Host: "b.example", Nick: "bob"},
	})
	s, ok := c.SessionByName("B")
	require.True(t, ok)
	assert.Equal(t, 2, s.ID())

	added := c.AddServer(session.Config{Host: "c.example", Nick: "bob"})
	assert.Equal(t, 3, added.ID())
	assert.Len(t, c.Sessions(), 3)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Name())
	c.SetCurrent(added)
	cur, _ = c.Current()
	assert.Equal(t, "c.example", cur.Name())

	_, ok = c.Session(4)
	assert.False(t, ok)
}

// socketPair returns one end of a connected socketpair as a session socket.
// The other end is closed when the test ends.
func socketPair(t *testing.T) session.Socket {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() { unix.Close(fds[1]) })
	return session.NewSocket(fds[0])
}

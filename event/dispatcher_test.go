package event

import (
	"encoding"
	"errors"
	"strings"
	"testing"

	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id       int
	name     string
	nick     string
	mode     string
	motd     bool
	retries  int
	noCTCP   bool
	autojoin []string
	sendErr  error
	sent     []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{id: 1, name: "testnet", nick: "me"}
}

func (s *fakeSession) ID() int               { return s.id }
func (s *fakeSession) Name() string          { return s.name }
func (s *fakeSession) Nick() string          { return s.nick }
func (s *fakeSession) SetNick(n string)      { s.nick = n }
func (s *fakeSession) IsMe(name string) bool { return strings.EqualFold(s.nick, name) }
func (s *fakeSession) SetMode(m string)      { s.mode = m }
func (s *fakeSession) Mode() string          { return s.mode }
func (s *fakeSession) AllowCTCPReply() bool  { return !s.noCTCP }
func (s *fakeSession) Autojoin() []string    { return s.autojoin }

func (s *fakeSession) MarkMOTD() bool {
	first := !s.motd
	s.motd = true
	return first
}

func (s *fakeSession) RetryNick() (string, bool) {
	if s.retries >= 5 {
		return s.nick, false
	}
	s.retries++
	s.nick += "_"
	return s.nick, true
}

func (s *fakeSession) Send(m encoding.TextMarshaler) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	b, err := m.MarshalText()
	if err != nil {
		return err
	}
	s.sent = append(s.sent, strings.TrimSuffix(string(b), "\r\n"))
	return nil
}

type recorder struct {
	lines map[registry.BufferID][]string
}

func (r *recorder) Render(id registry.BufferID, text string) {
	if r.lines == nil {
		r.lines = make(map[registry.BufferID][]string)
	}
	r.lines[id] = append(r.lines[id], text)
}

type harness struct {
	t    *testing.T
	reg  *registry.Registry
	sink *recorder
	d    *Dispatcher
	s    *fakeSession
}

func newHarness(t *testing.T, opts ...Option) *harness {
	h := &harness{
		t:    t,
		reg:  registry.New(),
		sink: &recorder{},
		s:    newFakeSession(),
	}
	h.d = New(h.reg, h.sink, append([]Option{WithVersion("test")}, opts...)...)
	return h
}

// feed dispatches raw lines as they would arrive from the server.
func (h *harness) feed(lines ...string) {
	h.t.Helper()
	for _, l := range lines {
		h.d.DispatchLine(h.s, []byte(l))
	}
}

func (h *harness) buffer(name string) registry.BufferID {
	h.t.Helper()
	b, ok := h.reg.Lookup(h.s.id, name)
	require.True(h.t, ok, "no buffer %q", name)
	return b.ID
}

func (h *harness) nicks(id registry.BufferID) []string {
	var s []string
	for _, n := range h.reg.Nicks(id) {
		s = append(s, n.String())
	}
	return s
}

func (h *harness) status() []string {
	return h.sink.lines[registry.StatusBuffer]
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	h.feed("PING :irc.example.com", "PING")
	assert.Equal(t, []string{"PONG irc.example.com", "PONG :"}, h.s.sent)
	assert.Empty(t, h.sink.lines, "PING never reaches the router")
}

func TestJoinAndNames(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #test")

	id := h.buffer("#test")
	assert.Equal(t, id, h.reg.Selected())
	assert.Equal(t, []string{"  ->>>> \x02me\x02 (u@h) has joined \x02#test\x02"}, h.sink.lines[id])

	h.feed(
		":srv 353 me = #test :carl @alice",
		":srv 353 me = #test :+Bob",
		":srv 366 me #test :End of /NAMES list.",
	)
	assert.Equal(t, []string{"@alice", "+Bob", "carl"}, h.nicks(id), "NAMES replaces the list and sorts it")

	var summaries []string
	for _, l := range h.sink.lines[id] {
		if strings.Contains(l, "nick(s)") {
			summaries = append(summaries, l)
		}
	}
	assert.Equal(t, []string{"  *** Users of \x02#test\x02: 3 nick(s)"}, summaries)
	assert.Contains(t, h.sink.lines[id], "  \x02@\x02alice \x02+\x02Bob carl")
}

func TestJoinPart_noDuplicates(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a")
	id := h.buffer("#a")

	h.feed(
		":bob!u@h JOIN #a",
		":bob!u@h JOIN #a",
		":BOB!u@h PART #a :bye",
		":bob!u@h JOIN #a",
	)
	assert.Equal(t, []string{"me", "bob"}, h.nicks(id))

	h.feed(":bob!u@h PART #a")
	assert.Equal(t, []string{"me"}, h.nicks(id))
	assert.Contains(t, h.sink.lines[id], "  <<<<- bob (u@h) has left \x02#a\x02 []")
}

func TestOwnPart_closesBuffer(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":me!u@h PART #a :later")

	_, ok := h.reg.Lookup(h.s.id, "#a")
	assert.False(t, ok)
	assert.Equal(t, registry.StatusBuffer, h.reg.Selected())
	assert.Contains(t, h.status(), "[testnet] *** You have left \x02#a\x02 [later]")
}

func TestQuit_allBuffers(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":me!u@h JOIN #b", ":me!u@h JOIN #c")
	h.feed(":bob!u@h JOIN #a", ":bob!u@h JOIN #b")
	h.feed(":bob!u@h PRIVMSG me :psst")
	h.feed(":bob!u@h QUIT :gone")

	quit := "  <<<<- bob (u@h) has quit [gone]"
	for _, name := range []string{"#a", "#b", "bob"} {
		id := h.buffer(name)
		assert.Contains(t, h.sink.lines[id], quit, name)
		assert.NotContains(t, h.nicks(id), "bob", name)
	}
	assert.NotContains(t, h.sink.lines[h.buffer("#c")], quit)
}

func TestKick(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":bob!u@h JOIN #a", ":carl!u@h JOIN #a")
	id := h.buffer("#a")

	h.feed(":op!u@h KICK #a bob :spam")
	assert.Equal(t, []string{"me", "carl"}, h.nicks(id))
	assert.Contains(t, h.sink.lines[id], "  *** \x02bob\x02 kicked by op from \x02#a\x02 [spam]")

	h.feed(":op!u@h KICK #a me :you too")
	assert.Empty(t, h.nicks(id), "kicked from the channel")
	_, ok := h.reg.Get(id)
	assert.True(t, ok, "the buffer stays open")
}

func TestNick(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":me!u@h JOIN #b")
	h.feed(":srv 353 me = #a :@bob me", ":srv 366 me #a :End")
	h.feed(":bob!u@h JOIN #b", ":bob!u@h PRIVMSG me :hi")

	h.feed(":bob!u@h NICK robert")

	assert.Equal(t, []string{"@robert", "me"}, h.nicks(h.buffer("#a")), "rank and position survive")
	assert.Contains(t, h.nicks(h.buffer("#b")), "robert")
	private := h.buffer("robert")
	assert.Contains(t, h.sink.lines[private], "  *** bob is now \x02robert\x02")

	h.feed(":me!u@h NICK me2")
	assert.Equal(t, "me2", h.s.nick)
	assert.Contains(t, h.nicks(h.buffer("#a")), "me2")
}

func (h *harness) count(name string) int {
	n := 0
	for _, b := range h.reg.Buffers() {
		if b.Session == h.s.id && strings.EqualFold(b.Name, name) {
			n++
		}
	}
	return n
}

func TestNick_queryMergesIntoExisting(t *testing.T) {
	h := newHarness(t)
	h.feed(":bob!u@h PRIVMSG me :hi", ":bobby!u@h PRIVMSG me :hello")
	bob, bobby := h.buffer("bob"), h.buffer("bobby")
	require.NoError(t, h.reg.Select(bob))

	h.feed(":bob!u@h NICK bobby")

	assert.Equal(t, 1, h.count("bobby"))
	assert.Equal(t, 0, h.count("bob"))
	assert.Equal(t, bobby, h.buffer("bobby"), "the existing buffer is kept")
	assert.Equal(t, bobby, h.reg.Selected())
	assert.Contains(t, h.sink.lines[bobby], "  *** bob is now \x02bobby\x02")

	h.feed(":bobby!u@h NICK Bobby")
	assert.Equal(t, bobby, h.buffer("Bobby"), "a case change renames in place")
}

func TestLinked_existingBuffer(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #old", ":me!u@h JOIN #new")
	existing := h.buffer("#new")

	h.feed(":srv 470 me #old #new :Forwarding to another channel")

	assert.Equal(t, 1, h.count("#new"))
	assert.Equal(t, 0, h.count("#old"))
	assert.Equal(t, existing, h.buffer("#new"))
}

func TestMode_ranks(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":srv 353 me = #a :alice bob carl me", ":srv 366 me #a :End")
	id := h.buffer("#a")

	h.feed(":op!u@h MODE #a +ovb-h alice bob *!*@spam carl")
	assert.Equal(t, []string{"@alice", "+bob", "carl", "me"}, h.nicks(id))
	assert.Contains(t, h.sink.lines[id], "  *** Mode \x02#a\x02 [+ovb-h alice bob *!*@spam carl] set by \x02op\x02")

	h.feed(":op!u@h MODE #a -v alice")
	assert.Equal(t, "@alice", h.nicks(id)[0], "removing voice leaves an op alone")

	h.feed(":op!u@h MODE #a +l-o 10 alice", ":op!u@h MODE #a +k-v key bob")
	assert.Equal(t, []string{"alice", "bob", "carl", "me"}, h.nicks(id))

	h.feed(":op!u@h MODE #a +h carl")
	r, _ := h.reg.Rank(id, "carl")
	assert.Equal(t, registry.RankHalfOp, r)

	h.feed(":op!u@h MODE #a +qa alice bob")
	assert.Equal(t, []string{"alice", "bob", "%carl", "me"}, h.nicks(id), "owner and admin modes don't change rank")

	h.feed(":op!u@h MODE #a +o alice", ":op!u@h MODE #a -q+v alice bob")
	assert.Equal(t, []string{"@alice", "+bob", "%carl", "me"}, h.nicks(id), "-q consumes its nick and leaves an op alone")
}

func TestMode_user(t *testing.T) {
	h := newHarness(t)
	h.feed(":me MODE me :+iw", ":me MODE me :-w+x")
	assert.Equal(t, "+ix", h.s.mode)
	assert.Contains(t, h.status(), "[testnet] *** User mode of \x02me\x02 : [+iw]")
}

func TestNickInUse(t *testing.T) {
	h := newHarness(t)
	h.s.nick = "bob"

	for i := 1; i <= 5; i++ {
		h.feed(":srv 433 * " + h.s.nick + " :Nickname is already in use")
		require.Len(t, h.s.sent, i)
		assert.Equal(t, "NICK bob"+strings.Repeat("_", i), h.s.sent[i-1])
	}

	h.feed(":srv 433 * bob_____ :Nickname is already in use")
	assert.Len(t, h.s.sent, 5, "retries stop at the cap")
	assert.Contains(t, h.status(), "[testnet] *** Giving up on automatic nickname changes; use /nick to choose another")
}

func TestNickInUse_otherNick(t *testing.T) {
	h := newHarness(t)
	h.feed(":srv 433 me taken :Nickname is already in use")
	assert.Empty(t, h.s.sent, "a rejected /nick change is not retried")
	assert.Equal(t, "me", h.s.nick)
}

func TestWelcomeUpdatesNick(t *testing.T) {
	h := newHarness(t)
	h.feed(":srv 001 me_ :Welcome to the network me_!u@h")
	assert.Equal(t, "me_", h.s.nick)
	assert.Equal(t, []string{"[testnet] *** Welcome to the network me_!u@h"}, h.status())
}

func TestMOTD_postConnectOnce(t *testing.T) {
	h := newHarness(t)
	h.s.autojoin = []string{"#b", "#new", "notachannel"}
	h.reg.Create(h.s.id, "#a")
	h.reg.Create(h.s.id, "#B")
	h.reg.Create(h.s.id, "friend")
	h.reg.Create(2, "#othernet")

	h.feed(":srv 376 me :End of /MOTD command.")
	assert.Equal(t, []string{"JOIN #a", "JOIN #B", "JOIN #new"}, h.s.sent)
	assert.Contains(t, h.status(), "[testnet] *** End of /MOTD command.")
	assert.Contains(t, h.status(), "[testnet] *** Connected")

	h.feed(":srv 422 me :MOTD File is missing")
	assert.Len(t, h.s.sent, 3, "the post-connect action runs once per connection")
}

func TestPrivmsg(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":srv 353 me = #a :@op me", ":srv 366 me #a :End")
	h.reg.Select(registry.StatusBuffer)
	id := h.buffer("#a")

	h.feed(":op!u@h PRIVMSG #a :hello", ":stranger!u@h PRIVMSG #a :hey me")
	assert.Contains(t, h.sink.lines[id], "<\x02@\x02op> hello")
	assert.Contains(t, h.sink.lines[id], "<stranger> hey me")
	assert.True(t, h.reg.HasNick(id, "stranger"), "unseen speakers are added")

	b, _ := h.reg.Get(id)
	assert.Equal(t, registry.ActivityMessage|registry.ActivityHighlight, b.Activity)

	h.feed(":bob!u@h PRIVMSG me :psst")
	private := h.buffer("bob")
	assert.Equal(t, []string{"<bob> psst"}, h.sink.lines[private])
	b, _ = h.reg.Get(private)
	assert.NotZero(t, b.Activity&registry.ActivityHighlight)

	h.feed(":bob!u@h PRIVMSG me :again")
	assert.Len(t, h.reg.SessionBuffers(h.s.id), 2, "no duplicate private buffer")
}

func TestPrivmsg_action(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a", ":bob!u@h PRIVMSG #a :\x01ACTION waves\x01")
	assert.Contains(t, h.sink.lines[h.buffer("#a")], " \x02* bob\x02 waves")
}

func TestCTCPVersion(t *testing.T) {
	h := newHarness(t)
	h.feed(":bob!u@h PRIVMSG me :\x01VERSION\x01")

	require.Len(t, h.s.sent, 1)
	assert.True(t, strings.HasPrefix(h.s.sent[0], "NOTICE bob :\x01VERSION ircterm test - on "), h.s.sent[0])
	assert.Contains(t, h.status(), "[testnet] *** \x02bob\x02 (u@h) CTCP request: \x02VERSION\x02")

	h.s.noCTCP = true
	h.feed(":bob!u@h PRIVMSG me :\x01VERSION\x01")
	assert.Len(t, h.s.sent, 1, "rate limited")

	h.s.noCTCP = false
	h.feed(":bob!u@h PRIVMSG me :\x01PING 123\x01")
	assert.Len(t, h.s.sent, 1, "only VERSION is answered")
}

func TestNotice(t *testing.T) {
	h := newHarness(t)
	h.feed(
		":irc.example.com NOTICE * :*** Looking up your hostname",
		":NickServ!s@services NOTICE me :This nickname is registered",
		":bob!u@h NOTICE me :\x01VERSION irssi\x01",
	)
	assert.Equal(t, []string{
		"[testnet] *** -irc.example.com- *** Looking up your hostname",
		"[testnet] *** -NickServ (s@services)- This nickname is registered",
		"[testnet] *** CTCP reply from \x02bob\x02: VERSION irssi",
	}, h.status())
	assert.Len(t, h.reg.Buffers(), 1, "notices never open buffers")
}

func TestTopic(t *testing.T) {
	h := newHarness(t)
	h.feed(":me!u@h JOIN #a")
	id := h.buffer("#a")

	h.feed(":srv 332 me #a :old topic", ":srv 333 me #a bob!u@h 0")
	b, _ := h.reg.Get(id)
	assert.Equal(t, "old topic", b.Topic)
	assert.Contains(t, h.sink.lines[id], "  *** Set by \x02bob\x02 (1970-01-01 00:00:00 UTC)")

	h.feed(":carl!u@h TOPIC #a :new topic")
	assert.Equal(t, "new topic", b.Topic)
	assert.Contains(t, h.sink.lines[id], "  *** New topic of \x02#a\x02 set by \x02carl\x02: new topic")
}

func TestErrors(t *testing.T) {
	h := newHarness(t)
	h.reg.Create(h.s.id, "#gone")
	h.reg.Create(h.s.id, "#old")
	h.reg.Create(h.s.id, "bob")

	h.feed(":srv 403 me #gone :No such channel")
	_, ok := h.reg.Lookup(h.s.id, "#gone")
	assert.False(t, ok)
	assert.Contains(t, h.status(), "[testnet] *** \x02#gone\x02: No such channel")

	h.feed(":srv 401 me bob :No such nick/channel")
	assert.Equal(t, []string{"[testnet] *** \x02bob\x02: No such nick/channel"}, h.sink.lines[h.buffer("bob")])

	h.feed(":srv 470 me #old #new :Forwarding to another channel")
	h.buffer("#new")

	h.feed(":srv 412 me :No text to send", ":srv 451 * :You have not registered")
	assert.Contains(t, h.status(), "[testnet] *** No text to send")
	assert.Contains(t, h.status(), "[testnet] *** You have not registered")
}

func TestWhois(t *testing.T) {
	h := newHarness(t)
	h.feed(
		":srv 311 me bob bobl host.example * :Bob Loblaw",
		":srv 312 me bob irc.example.com :Example server",
		":srv 317 me bob 42 0 :seconds idle, signon time",
		":srv 330 me bob bobacct :is logged in as",
		":srv 318 me bob :End of /WHOIS list.",
	)
	assert.Equal(t, []string{
		"[testnet] *** \x02bob\x02 (bobl@host.example)",
		"[testnet] *** IRCNAME:  Bob Loblaw",
		"[testnet] *** SERVER:   irc.example.com (Example server)",
		"[testnet] *** IDLE:     seconds idle: 42 signon time: 1970-01-01 00:00:00 UTC",
		"[testnet] ***           bob: is logged in as bobacct",
		"[testnet] *** End of /WHOIS list.",
	}, h.status())
}

func TestDump(t *testing.T) {
	h := newHarness(t)
	h.feed(":srv 999 me a :b c", "ERROR :Closing link", "privmsg #a :lowercase", ":x PRIVMSG #a")
	assert.Equal(t, []string{
		"[testnet] *** (999): me|a|b c",
		"[testnet] *** (ERROR): Closing link",
		"[testnet] *** (privmsg): #a|lowercase",
		"[testnet] *** (PRIVMSG): #a",
	}, h.status())
}

func TestMalformedLine(t *testing.T) {
	h := newHarness(t)
	h.feed(":prefix-only")
	assert.Equal(t, []string{`[testnet] *** Malformed line dropped: ":prefix-only"`}, h.status())
}

func TestSendError(t *testing.T) {
	var got error
	h := newHarness(t, OnSendError(func(s Session, err error) { got = err }))
	h.s.sendErr = errors.New("output buffer full")
	h.feed("PING :x")
	assert.EqualError(t, got, "output buffer full")
}

func TestKindOf(t *testing.T) {
	tt := []struct {
		line string
		want kind
	}{
		{":a QUIT :x", kindQuit},
		{":a JOIN #a", kindJoin},
		{":a PART #a", kindPart},
		{":a INVITE me #a", kindInvite},
		{":a TOPIC #a :t", kindTopic},
		{":a KICK #a b", kindKick},
		{":a NICK b", kindNick},
		{":a MODE #a +o b", kindMode},
		{":a PRIVMSG #a :x", kindPrivmsg},
		{":a NOTICE #a :x", kindNotice},
		{":a 001 me :hi", kindNumeric},
		{":a WALLOPS :x", kindOther},
		{":a join #a", kindOther},
	}
	for _, tc := range tt {
		m, err := irc.Decode([]byte(tc.line))
		require.NoError(t, err)
		assert.Equal(t, tc.want, kindOf(m), tc.line)
	}
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, famInfo, familyOf(irc.RplMOTD))
	assert.Equal(t, famMOTDEnd, familyOf(irc.ErrNoMOTD))
	assert.Equal(t, famWhois, familyOf(irc.RplWhoIsSecure))
	assert.Equal(t, famNames, familyOf(irc.RplEndOfNames))
	assert.Equal(t, famNickInUse, familyOf(irc.ErrNicknameInUse))
	assert.Equal(t, famError, familyOf(irc.ErrBadChanName))
	assert.Equal(t, famUnknown, familyOf(999))
}

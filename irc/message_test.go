package irc

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPrefixEqual(t *testing.T, expected struct{ nick, user, host string }, got Prefix) {
	t.Helper()
	if string(got.Nick) != expected.nick || got.User != expected.user || got.Host != expected.host {
		t.Errorf("prefix didn't match; got %+v wanted %+v", got, expected)
	}
}

func TestParseMessage(t *testing.T) {
	var prefixes = []struct {
		raw      string
		expected struct{ nick, user, host string }
	}{
		{"", struct{ nick, user, host string }{"", "", ""}},
		{":Bob ", struct{ nick, user, host string }{"Bob", "", ""}},
		{":Bob  ", struct{ nick, user, host string }{"Bob", "", ""}},
		{":Bob\\Loblaw!@law.blog ", struct{ nick, user, host string }{"Bob\\Loblaw", "", "law.blog"}},
		{":Bob!BLoblaw@bob.loblaw.law.blog ", struct{ nick, user, host string }{"Bob", "BLoblaw", "bob.loblaw.law.blog"}},
		{":Bob!NoHabla!@bob.loblaw.law.blog ", struct{ nick, user, host string }{"Bob", "NoHabla!", "bob.loblaw.law.blog"}},
		{":irc.bob.loblaw.no.habla.es ", struct{ nick, user, host string }{"", "", "irc.bob.loblaw.no.habla.es"}},
	}

	var verbs = []struct {
		raw     string
		command Command
		numeric Numeric
	}{
		{"001", "", RplWelcome},
		{"433", "", ErrNicknameInUse},
		{"PRIVMSG", CmdPrivmsg, 0},
		{"privmsg", Command("privmsg"), 0},
		{"0012", Command("0012"), 0},
		{"12", Command("12"), 0},
		{"000", Command("000"), 0},
	}

	var params = []struct {
		raw      string
		expected []string
	}{
		{"", nil},
		{" :", []string{""}},
		{" ::", []string{":"}},
		{" ::p1", []string{":p1"}},
		{" :p1", []string{"p1"}},
		{" p1", []string{"p1"}},
		{" p1 p2", []string{"p1", "p2"}},
		{"  p1 p2", []string{"p1", "p2"}},
		{" p1  p2", []string{"p1", "p2"}},
		{" p1  p2 :", []string{"p1", "p2", ""}},
		{" p1  p2 : ", []string{"p1", "p2", " "}},
		{" p1  p2 :p3 :p3 ", []string{"p1", "p2", "p3 :p3 "}},
		{" p1  p2 :p3  :p3 ", []string{"p1", "p2", "p3  :p3 "}},
		{" :" + strings.Repeat("a", 513), []string{strings.Repeat("a", 513)}}, // don't blow up for lines exceeding protocol-defined length
	}

	for _, p := range prefixes {
		for _, v := range verbs {
			for _, pa := range params {
				raw := fmt.Sprintf("%s%s%s", p.raw, v.raw, pa.raw)
				m, err := Decode([]byte(raw))
				if !assert.NoError(t, err, "raw line: %q", raw) {
					continue
				}
				assertPrefixEqual(t, p.expected, m.Source)
				assert.Equal(t, v.command, m.Command, "raw line: %q", raw)
				assert.Equal(t, v.numeric, m.Numeric, "raw line: %q", raw)
				assert.Equal(t, pa.expected, []string(m.Params), "raw line: %q", raw)
			}
		}
	}
}

func TestDecode_trailingKeepsSpaces(t *testing.T) {
	m, err := Decode([]byte(":nick!user@host PRIVMSG #chan :hello world foo"))
	require.NoError(t, err)

	assert.Equal(t, "nick!user@host", m.Source.String())
	assert.Equal(t, Nickname("nick"), m.Source.Nick)
	assert.Equal(t, CmdPrivmsg, m.Command)
	assert.False(t, m.IsNumeric())
	if diff := cmp.Diff(Params{"#chan", "hello world foo"}, m.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_numeric(t *testing.T) {
	m, err := Decode([]byte(":server 001 mynick :Welcome"))
	require.NoError(t, err)

	assert.Equal(t, Numeric(1), m.Numeric)
	assert.Empty(t, m.Command)
	assert.True(t, m.IsNumeric())
	assert.Equal(t, "001", m.Verb())
	assert.True(t, m.Source.IsServer())
	assert.Equal(t, Params{"mynick", "Welcome"}, m.Params)
}

func TestDecode_zeroCodeIsCommand(t *testing.T) {
	m, err := Decode([]byte(":srv 000 x"))
	require.NoError(t, err)
	assert.Equal(t, Command("000"), m.Command)
	assert.Equal(t, Numeric(0), m.Numeric)
	assert.False(t, m.IsNumeric())
}

func TestDecode_paramLimit(t *testing.T) {
	m, err := Decode([]byte("CMD p1 p2 p3 p4 p5 p6 p7 p8 p9 p10 p11 p12 :p13 with spaces"))
	require.NoError(t, err)

	require.Len(t, m.Params, ParamLimit)
	assert.Equal(t, "p10", m.Params.Last())
}

func TestDecode_verbExclusive(t *testing.T) {
	lines := []string{
		"PING :abc",
		":a.b 372 me :- motd line",
		":x!y@z JOIN #chan",
		"005 me FOO=bar :are supported",
		":srv 999",
		"999x",
	}
	for _, l := range lines {
		m, err := Decode([]byte(l))
		require.NoError(t, err, l)
		if (m.Command == "") == (m.Numeric == 0) {
			t.Errorf("exactly one of command and numeric must be set; line %q decoded to %#v", l, m)
		}
	}
}

func TestParseErrors(t *testing.T) {
	var parseErrors = []string{
		"",
		":tmi.twitch.tv",
		":",
		": ",
		" ",
		":. ",
		":!@ ",
	}
	for _, raw := range parseErrors {
		m, err := Decode([]byte(raw))
		if err == nil {
			t.Errorf("expected parse error; got err == nil. raw line: %q, parsed: %#v", raw, m)
			continue
		}
		if !errors.Is(err, ErrMalformedLine) {
			t.Errorf("expected ErrMalformedLine; got %v", err)
		}
	}
}

func TestUnmarshalText_reuseClearsFields(t *testing.T) {
	m := new(Message)
	require.NoError(t, m.UnmarshalText([]byte(":a!b@c PRIVMSG #x :hi")))
	require.NoError(t, m.UnmarshalText([]byte("PING tok")))

	assert.Equal(t, Prefix{}, m.Source)
	assert.Equal(t, CmdPing, m.Command)
	assert.Equal(t, Params{"tok"}, m.Params)
}

func TestEncode_roundTrip(t *testing.T) {
	tt := []struct {
		cmd  Command
		args []string
		want string
	}{
		{CmdPrivmsg, []string{"#chan", "hello world foo"}, "PRIVMSG #chan :hello world foo\r\n"},
		{CmdJoin, []string{"#chan"}, "JOIN #chan\r\n"},
		{CmdPong, []string{"irc.example.com"}, "PONG irc.example.com\r\n"},
		{CmdUser, []string{"guest", "0", "*", "Real Name"}, "USER guest 0 * :Real Name\r\n"},
		{CmdTopic, []string{"#chan", ""}, "TOPIC #chan :\r\n"},
		{CmdPrivmsg, []string{"bob", ":)"}, "PRIVMSG bob ::)\r\n"},
		{CmdQuit, nil, "QUIT\r\n"},
	}
	for _, tc := range tt {
		b, err := Encode(tc.cmd, tc.args...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))

		m, err := Decode([]byte(strings.TrimSuffix(string(b), "\r\n")))
		require.NoError(t, err)
		assert.Equal(t, tc.cmd, m.Command)
		if diff := cmp.Diff(tc.args, []string(m.Params), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("round trip params mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestMarshalText_errors(t *testing.T) {
	tt := []struct {
		name string
		m    *Message
	}{
		{"no verb", &Message{Params: Params{"x"}}},
		{"both verbs", &Message{Command: CmdJoin, Numeric: RplWelcome}},
		{"space in middle param", NewMessage(CmdKick, "#a b", "nick")},
		{"empty middle param", NewMessage(CmdKick, "", "nick")},
		{"line break", Msg("#a", "hello\r\nQUIT")},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.m.MarshalText()
			assert.Error(t, err)
		})
	}
}

func TestMarshalText_withSource(t *testing.T) {
	m := NewReply(RplTopic, "me", "#chan", "the topic")
	m.Source = ParsePrefix("irc.example.com")
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, ":irc.example.com 332 me #chan :the topic\r\n", string(b))
}

func TestParsePrefix(t *testing.T) {
	tt := []struct {
		raw  string
		nick Nickname
		user string
		host string
	}{
		{"nick!user@host", "nick", "user", "host"},
		{"nick", "nick", "", ""},
		{"nick@host", "nick", "", "host"},
		{"irc.example.com", "", "", "irc.example.com"},
		{"a!b", "a", "b", ""},
	}
	for _, tc := range tt {
		p := ParsePrefix(tc.raw)
		assert.Equal(t, tc.nick, p.Nick, tc.raw)
		assert.Equal(t, tc.user, p.User, tc.raw)
		assert.Equal(t, tc.host, p.Host, tc.raw)
		assert.Equal(t, tc.raw, p.String(), tc.raw)
	}
}

func TestParseCTCP(t *testing.T) {
	c, ok := ParseCTCP("\x01ACTION waves hello\x01")
	require.True(t, ok)
	assert.True(t, c.IsAction())
	assert.Equal(t, "ACTION", c.Command)
	assert.Equal(t, "waves hello", c.Text)

	c, ok = ParseCTCP("\x01VERSION\x01")
	require.True(t, ok)
	assert.False(t, c.IsAction())
	assert.Equal(t, "VERSION", c.Command)

	c, ok = ParseCTCP("\x01ACTION\x01")
	require.True(t, ok)
	assert.False(t, c.IsAction())

	for _, s := range []string{"", "\x01", "hello", "\x01VERSION", "VERSION\x01"} {
		_, ok := ParseCTCP(s)
		assert.False(t, ok, "%q", s)
	}
}

func TestIsChannel(t *testing.T) {
	assert.True(t, IsChannel("#go-nuts"))
	assert.True(t, IsChannel("&local"))
	assert.False(t, IsChannel("bob"))
	assert.False(t, IsChannel(""))
}

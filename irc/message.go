package irc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedLine is returned when a line cannot be decoded into a Message,
// which happens when the line has no command or numeric token at all.
// Callers are expected to drop the line and carry on.
var ErrMalformedLine = errors.New("malformed line")

// errInvalidParam is returned by MarshalText when a parameter cannot be represented on the wire.
var errInvalidParam = errors.New("invalid parameter")

// ParamLimit is the maximum number of parameters kept for a decoded message.
// Additional parameters are silently dropped by the decoder.
//
// RFC 1459 allows 15, but the client never needs more than 10
// and keeping the bound small keeps every handler's index math obvious.
const ParamLimit = 10

// NewMessage constructs a new Message to be sent on the connection
// with cmd as the verb and args as the message parameters.
//
// Only the last argument may contain SPACE (ascii 32, %x20).
// This is a limitation defined in the IRC protocol.
// MarshalText reports an error for any other argument containing SPACE.
func NewMessage(cmd Command, args ...string) *Message {
	p := make(Params, len(args))
	copy(p, args)
	cmd.normalize()
	return &Message{
		Command: cmd,
		Params:  p,
	}
}

// NewReply constructs a numeric reply, mainly for servers and tests which need to
// produce the lines a client receives.
func NewReply(n Numeric, args ...string) *Message {
	p := make(Params, len(args))
	copy(p, args)
	return &Message{
		Numeric: n,
		Params:  p,
	}
}

// Message represents any incoming or outgoing IRC line.
//
// A message consists of three parts: an optional prefix (the source),
// a verb, and up to ParamLimit parameters.
// The verb is either a textual Command such as PRIVMSG,
// or a three digit Numeric reply such as 001.
// Exactly one of Command and Numeric is set on a decoded message.
type Message struct {

	// Source is where the message originated from.
	// It's set by the prefix portion of an IRC message.
	//
	// Source should be left empty for messages that will be written to an IRC connection.
	Source Prefix

	// Command is the IRC verb such as PRIVMSG or NOTICE.
	// It is empty for numeric replies.
	Command Command

	// Numeric is the reply code of a numeric message such as 001 or 433.
	// It is zero for command messages.
	Numeric Numeric

	// Params contains all the message parameters.
	// If a message included a trailing component,
	// it will be included without special treatment.
	Params Params
}

// IsNumeric reports whether m is a numeric reply.
func (m *Message) IsNumeric() bool {
	return m.Numeric != 0
}

// Verb returns the command, or the zero-padded numeric code for numeric replies.
func (m *Message) Verb() string {
	if m.IsNumeric() {
		return m.Numeric.String()
	}
	return m.Command.String()
}

// MarshalText implements encoding.TextMarshaler.
// The returned line is terminated with CR-LF.
//
// The last parameter is written as a trailing parameter when it needs to be:
// when it is empty, contains SPACE, or starts with ':'.
// Any other parameter with those properties cannot be encoded and results in an error,
// as does any parameter containing CR, LF, or NUL.
func (m *Message) MarshalText() ([]byte, error) {
	if m.Command == "" && m.Numeric == 0 {
		return nil, fmt.Errorf("marshal text: %w: message has no command", ErrMalformedLine)
	}
	if m.Command != "" && m.Numeric != 0 {
		return nil, fmt.Errorf("marshal text: %w: message has both command %q and numeric %s", ErrMalformedLine, m.Command, m.Numeric)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 512))

	if src := m.Source.String(); src != "" {
		buf.WriteByte(startPrefix)
		buf.WriteString(src)
		buf.WriteByte(delimParam)
	}
	buf.WriteString(m.Verb())

	for i, p := range m.Params {
		if strings.ContainsAny(p, "\r\n\x00") {
			return nil, fmt.Errorf("marshal text: %w: param %d contains a line break or NUL", errInvalidParam, i+1)
		}
		buf.WriteByte(delimParam)
		trailing := p == "" || strings.IndexByte(p, delimParam) >= 0 || p[0] == startTrailing
		if !trailing {
			buf.WriteString(p)
			continue
		}
		if i != len(m.Params)-1 {
			return nil, fmt.Errorf("marshal text: %w: only the last param may be empty, contain spaces, or start with ':' (param %d: %q)", errInvalidParam, i+1, p)
		}
		buf.WriteByte(startTrailing)
		buf.WriteString(p)
	}
	buf.WriteString("\r\n")

	return buf.Bytes(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler,
// accepting a line read from an IRC stream.
// text should not include the trailing CR-LF pair.
//
// Parameters past ParamLimit are dropped.
// Length limitations are enforced by the session buffers, not here.
func (m *Message) UnmarshalText(text []byte) error {

	// re-using a message to unmarshal a new line should clear old fields
	m.Source = Prefix{}
	m.Command = ""
	m.Numeric = 0
	m.Params = nil

	l := lex(string(text))
	for _, i := range l.items {
		switch i.typ {
		case itemError:
			return fmt.Errorf("%w: %s: %q", ErrMalformedLine, i.val, text)
		case itemPrefix:
			m.Source = ParsePrefix(i.val)
		case itemNumeric:
			n, _ := strconv.Atoi(i.val) // the lexer only emits three ascii digits
			m.Numeric = Numeric(n)
		case itemCommand:
			m.Command = Command(i.val)
		case itemParam:
			m.Params = append(m.Params, i.val)
		}
	}
	return nil
}

// Decode decodes a line of IRC text into a Message struct.
// line must not end with the line ending \r\n.
func Decode(line []byte) (*Message, error) {
	m := new(Message)
	if err := m.UnmarshalText(line); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode encodes a command to be sent on an IRC connection, including the CR-LF terminator.
func Encode(cmd Command, args ...string) ([]byte, error) {
	return NewMessage(cmd, args...).MarshalText()
}

// Command is an IRC command such as PRIVMSG, NOTICE, JOIN, etc.
//
// A command may also be known as the "verb" or "event type".
// Numeric replies use the Numeric type instead.
type Command string

// String implements fmt.Stringer
func (c Command) String() string {
	return string(c)
}

// normalize will modify the command to use consistent casing.
func (c *Command) normalize() {
	*c = Command(strings.ToUpper(c.String()))
}

// Numeric is a three digit server reply code such as 001 (RPL_WELCOME) or 433 (ERR_NICKNAMEINUSE).
type Numeric int

// String implements fmt.Stringer, returning the code zero-padded to three digits.
func (n Numeric) String() string {
	return fmt.Sprintf("%03d", int(n))
}

// Prefix is the optional message (line) prefix,
// which indicates the source (user or server) of the message,
// depending on the prefix format.
//
// Example line with no prefix:
// 	PING :86F3E357
//
// Example nickname-only prefix:
// 	:Travis MODE Travis :+ixz
//
// Example "fulladdress" prefix:
// 	:NickServ!services@services.host NOTICE Travis :This nickname is registered...
//
// Example server prefix:
// 	:fiery.ca.us.SwiftIRC.net MODE #foo +nt
//
type Prefix struct {
	Nick Nickname
	User string
	Host string

	// raw is the prefix exactly as it appeared on the wire.
	raw string
}

// ParsePrefix splits a raw prefix (without the leading ':') into its nick, user, and host parts.
// Anything that doesn't look like a user address is treated as a server name.
func ParsePrefix(raw string) Prefix {
	p := Prefix{raw: raw}
	nick, rest, full := strings.Cut(raw, "!")
	switch {
	case full:
		p.Nick = Nickname(nick)
		if i := strings.LastIndexByte(rest, '@'); i >= 0 {
			p.User, p.Host = rest[:i], rest[i+1:]
		} else {
			p.User = rest
		}
	case strings.IndexByte(raw, '@') > 0:
		n, h, _ := strings.Cut(raw, "@")
		p.Nick, p.Host = Nickname(n), h
	case strings.IndexByte(raw, '.') >= 0:
		// '.' is invalid inside a nickname, which means the prefix was in the :host form
		p.Host = raw
	default:
		p.Nick = Nickname(raw)
	}
	return p
}

// IsServer returns true when the message originated from a server (as opposed to a user/client).
// When true, the server name will be contained in the Host field.
func (p Prefix) IsServer() bool {
	return p.Host != "" && p.Nick == ""
}

// Address returns the user@host part of a full address prefix, or "" when either part is unknown.
func (p Prefix) Address() string {
	if p.User == "" && p.Host == "" {
		return ""
	}
	return p.User + "@" + p.Host
}

// String implements fmt.Stringer
func (p Prefix) String() string {
	if p.raw != "" {
		return p.raw
	}
	switch {
	case p.Nick == "" && p.User == "" && p.Host == "":
		return ""
	case p.Nick == "" && p.User == "":
		return p.Host
	case p.User == "" && p.Host == "":
		return p.Nick.String()
	case p.User == "":
		return p.Nick.String() + "@" + p.Host
	default:
		return p.Nick.String() + "!" + p.User + "@" + p.Host
	}
}

// Params contains the slice of arguments for a message.
//
// Prefer the Get method for reading params rather than accessing the slice directly.
//
// If a message included a trailing component as defined in [RFC 1459],
// it will be included as a normal parameter.
//
// [RFC 1459]: https://datatracker.ietf.org/doc/html/rfc1459#section-2.3.1
type Params []string

// Get returns the nth parameter (starting at 1) from the parameters list,
// or "" (empty string) if it did not exist.
//
// Because parameters have meaning based on their position in the argument list,
// Get does not differentiate between missing and empty parameters.
// Handlers never need to bounds-check before reading a parameter.
func (p Params) Get(n int) string {
	if n > len(p) || n < 1 {
		return ""
	}
	return p[n-1]
}

// Last returns the final parameter, which is the free-form text of most replies.
func (p Params) Last() string {
	return p.Get(len(p))
}

// From joins the parameters starting at n (starting at 1) with sep.
func (p Params) From(n int, sep string) string {
	if n < 1 {
		n = 1
	}
	if n > len(p) {
		return ""
	}
	return strings.Join(p[n-1:], sep)
}

// Nickname is an IRC nickname.
type Nickname string

func (n Nickname) String() string {
	return string(n)
}

// Is determines whether a nickname matches a string by using Unicode case folding.
func (n Nickname) Is(other string) bool {
	return strings.EqualFold(n.String(), other)
}

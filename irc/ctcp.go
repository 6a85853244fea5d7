package irc

import "strings"

// CTCPMessage is the payload of a CTCP-encoded PRIVMSG or NOTICE,
// with the delimiters removed.
type CTCPMessage struct {
	// Command is the CTCP subcommand, e.g. VERSION or ACTION.
	Command string

	// Text is everything after the subcommand.
	Text string

	// Raw is the full payload between the delimiters.
	Raw string
}

// IsAction reports whether the payload is a /me style action.
// An action needs the literal "ACTION " token; a bare "ACTION" is just an odd query.
func (c CTCPMessage) IsAction() bool {
	return strings.HasPrefix(c.Raw, "ACTION ")
}

// ParseCTCP recognises a CTCP payload, which is wrapped in a single \x01 byte at both ends.
// ok is false for regular text.
//
//  "\x01VERSION\x01"           -> {Command: "VERSION"}
//  "\x01ACTION waves hello\x01" -> {Command: "ACTION", Text: "waves hello"}
func ParseCTCP(text string) (c CTCPMessage, ok bool) {
	if len(text) < 2 || text[0] != ctcpDelim || text[len(text)-1] != ctcpDelim {
		return c, false
	}
	c.Raw = text[1 : len(text)-1]
	c.Command, c.Text, _ = strings.Cut(c.Raw, " ")
	return c, true
}

func encodeCTCP(command, message string) string {
	if message == "" {
		return string(ctcpDelim) + command + string(ctcpDelim)
	}
	return string(ctcpDelim) + command + " " + message + string(ctcpDelim)
}

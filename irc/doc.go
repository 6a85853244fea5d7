/*
Package irc is the wire codec of the client: it decodes single lines of IRC text into Message
values and encodes outgoing commands.

Decoding

A line consists of an optional prefix, a verb, and up to ParamLimit parameters:

	[":" prefix SPACE] ( command / 3digit ) *( SPACE param ) [SPACE ":" trailing]

The verb is either a textual Command such as PRIVMSG, or a Numeric reply such as 001.
Exactly one of the two is set on every decoded Message.
The trailing parameter may contain spaces and is kept verbatim.
Parameters past ParamLimit are dropped without an error.

	m, err := irc.Decode([]byte(":nick!user@host PRIVMSG #chan :hello world"))
	// m.Source.Nick == "nick", m.Command == irc.CmdPrivmsg
	// m.Params == irc.Params{"#chan", "hello world"}

A line without a verb fails with ErrMalformedLine.
Callers are expected to log the line and move on to the next one.

Encoding

Message implements encoding.TextMarshaler.
The named constructors (irc.Msg, irc.Join, irc.Nick, etc.) should generally be preferred over NewMessage
because they explicitly list the available parameters for each command.

	// prefer this:
	s.Send(irc.Msg("#world", "Hello!"))
	// instead of this:
	s.Send(irc.NewMessage(irc.CmdPrivmsg, "#world", "Hello!"))

The encoded line always ends in CR-LF.
How much can be queued is decided by the session's output buffer, not by the codec.

CTCP

Client-to-client messages travel inside PRIVMSG and NOTICE text, wrapped in \x01 bytes.
ParseCTCP unwraps them; CTCP, CTCPReply, and Describe build them.
*/
package irc

package irc

// Msg constructs a new Message of type PRIVMSG,
// with target being the intended target channel or nickname,
// and message being the text body.
func Msg(target, message string) *Message {
	return NewMessage(CmdPrivmsg, target, message)
}

// Notice constructs a new message of type NOTICE,
// with target being the intended target channel or nickname,
// and message being the text body.
func Notice(target, message string) *Message {
	return NewMessage(CmdNotice, target, message)
}

// Describe constructs a new Message of type CTCP ACTION,
// with target being the intended target channel or nickname,
// and message being the text body.
//
// Describe is equivalent to the "/me" or "/describe" commands that one might enter into the text input field of popular IRC clients.
//
// For example, compare an action message with a regular privmsg:
//
//  Describe("#foo", "slaps Bob around a bit with a large trout")
//  Msg("#foo", "take that!")
//
// might be displayed by a receiving client as
//
//  * Alice slaps Bob around a bit with a large trout
//  <Alice> take that!
//
func Describe(target, action string) *Message {
	return CTCP(target, "ACTION", action)
}

// CTCP constructs a CTCP (Client-to-Client Protocol) encoded
// message to the target. command is the CTCP subcommand.
func CTCP(target, command, message string) *Message {
	return NewMessage(CmdPrivmsg, target, encodeCTCP(command, message))
}

// CTCPReply constructs a message encoded in the CTCP reply format.
// target should be the nickname that sent us a CTCP message,
// command is the subcommand that was sent to us,
// and message depends on the type of query.
func CTCPReply(target, command, message string) *Message {
	return NewMessage(CmdNotice, target, encodeCTCP(command, message))
}

// Nick constructs a nickname change command.
func Nick(name string) *Message {
	return NewMessage(CmdNick, name)
}

// Join constructs a channel join command.
func Join(channel string) *Message {
	return NewMessage(CmdJoin, channel)
}

// JoinWithKey constructs a channel join command for channels that require a key (channel mode +k is set).
func JoinWithKey(channel, key string) *Message {
	return NewMessage(CmdJoin, channel, key)
}

// Part constructs leave (depart) command for channel.
func Part(channel string) *Message {
	return NewMessage(CmdPart, channel)
}

// PartWithReason is the same as Part, but with a message
// that may be shown to other clients
func PartWithReason(channel, reason string) *Message {
	return NewMessage(CmdPart, channel, reason)
}

// Quit constructs a command that will cause the server to terminate the client's connection,
// and may display the quit message to clients that are configured to show quit messages.
func Quit(message string) *Message {
	return NewMessage(CmdQuit, message)
}

// Kick constructs a command to kick another user from a channel.
func Kick(channel, nick string) *Message {
	return NewMessage(CmdKick, channel, nick)
}

// KickWithReason is similar to Kick, but the kick message
// will display reason.
func KickWithReason(channel, nick, reason string) *Message {
	return NewMessage(CmdKick, channel, nick, reason)
}

// Mode constructs a command to change a mode on a channel or on our client connection.
// args are the mode string followed by its parameters, e.g. "+o", "Bob".
func Mode(target string, args ...string) *Message {
	return NewMessage(CmdMode, append([]string{target}, args...)...)
}

// ModeQuery constructs a command to get the current modes of target.
func ModeQuery(target string) *Message {
	return NewMessage(CmdMode, target)
}

// Invite constructs a command to invite nick to channel.
func Invite(nick, channel string) *Message {
	return NewMessage(CmdInvite, nick, channel)
}

// Topic constructs a command to set the topic of channel.
func Topic(channel, topic string) *Message {
	return NewMessage(CmdTopic, channel, topic)
}

// TopicQuery constructs a command asking the server for the topic of channel.
func TopicQuery(channel string) *Message {
	return NewMessage(CmdTopic, channel)
}

// Names constructs a command requesting the member list of channel.
func Names(channel string) *Message {
	return NewMessage(CmdNames, channel)
}

// Whois constructs a command requesting information about nick.
func Whois(nick string) *Message {
	return NewMessage(CmdWhois, nick)
}

// Away marks the client as away with message, or back when message is empty.
func Away(message string) *Message {
	if message == "" {
		return NewMessage(CmdAway)
	}
	return NewMessage(CmdAway, message)
}

// Ping constructs a command to PING the connection.
//
// Ping is not the same as a CTCP ping,
// which is sent to a client or channel via a PRIVMSG command instead.
func Ping(message string) *Message {
	return NewMessage(CmdPing, message)
}

// Pong builds the reply to a PING from the connection.
// The reply message must be the same as the original
// PING message.
func Pong(reply string) *Message {
	return NewMessage(CmdPong, reply)
}

// User is used at the beginning of a connection to specify
// the username and realname of a new user.
//
// realname may contain spaces.
//
// https://tools.ietf.org/html/rfc2812#section-3.1.3
func User(user, realname string) *Message {
	// The second param (mode) is typically not useful.
	// The third param is unused.
	// Sending "0" and "*" is specifically recommended by at least
	// one modern IRC overview, and is what mIRC does.
	return NewMessage(CmdUser, user, "0", "*", realname)
}

// Pass specifies the connection password.
func Pass(password string) *Message {
	return NewMessage(CmdPass, password)
}

// Raw is a line of IRC text which is sent as-is, for the /raw command.
// The CR-LF terminator is added by the session if missing.
type Raw string

// MarshalText implements encoding.TextMarshaler.
func (r Raw) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

package irc

import "strings"

// irc commands which may be sent or received by a client.
const (
	CmdAway    Command = "AWAY"    // Set an automatic reply string for any PRIVMSG commands.
	CmdError   Command = "ERROR"   // Report a serious or fatal error to a peer.
	CmdInvite  Command = "INVITE"  // Invite a user to a channel.
	CmdJoin    Command = "JOIN"    // Join a channel.
	CmdKick    Command = "KICK"    // Request the forced removal of a user from a channel.
	CmdList    Command = "LIST"    // List channels and their topics.
	CmdMode    Command = "MODE"    // User mode.
	CmdMOTD    Command = "MOTD"    // Get the Message of the Day.
	CmdNames   Command = "NAMES"   // List all visible nicknames.
	CmdNick    Command = "NICK"    // ":<newnick>" Define a nickname.
	CmdNotice  Command = "NOTICE"  // Send a notice message to specific users or channels.
	CmdPart    Command = "PART"    // Leave a channel.
	CmdPass    Command = "PASS"    // Set a connection password.
	CmdPing    Command = "PING"    // Test for the presence of an active client or server.
	CmdPong    Command = "PONG"    // Reply to a ping message.
	CmdPrivmsg Command = "PRIVMSG" // Send private messages between users, as well as to send messages to channels.
	CmdQuit    Command = "QUIT"    // Terminate the client session.
	CmdTopic   Command = "TOPIC"   // Change or view the topic of a channel.
	CmdUser    Command = "USER"    // Specify the username, hostname and realname of a new user.
	CmdWhois   Command = "WHOIS"   // Get information about a specific user.
)

// irc connection registration replies.
const (
	RplWelcome  Numeric = 1 // "Welcome to the Internet Relay Network <nick>!<user>@<host>"
	RplYourHost Numeric = 2 // "Your host is <servername>, running version <ver>"
	RplCreated  Numeric = 3 // "This server was created <date>"
	RplMyInfo   Numeric = 4 // "<servername> <version> <available user modes> <available channel modes>"
	RplISupport Numeric = 5 // http://www.irc.org/tech_docs/005.html
)

// irc command reply codes.
const (
	RplStatsConn       Numeric = 250 // ":Highest connection count: <n>"
	RplLUserClient     Numeric = 251 // ":There are <integer> users and <integer> services on<integer> servers"
	RplLUserOp         Numeric = 252 // "<integer> :operator(s) online"
	RplLUserUnknown    Numeric = 253 // "<integer> :unknown connection(s)"
	RplLUserChannels   Numeric = 254 // "<integer> :channels formed"
	RplLUserMe         Numeric = 255 // ":I have <integer> clients and <integer> servers"
	RplTryAgain        Numeric = 263 // "<command> :Please wait a while and try again."
	RplLocalUsers      Numeric = 265 // "[<u> <m>] :Current local users <u>, max <m>"
	RplGlobalUsers     Numeric = 266 // "[<u> <m>] :Current global users <u>, max <m>"
	RplWhoIsCertFP     Numeric = 275 // "<nick> :has client certificate fingerprint <fp>" (varies by network)
	RplAway            Numeric = 301 // "<nick> :<away message>"
	RplUnAway          Numeric = 305 // ":You are no longer marked as being away"
	RplNowAway         Numeric = 306 // ":You have been marked as being away"
	RplWhoIsRegNick    Numeric = 307 // "<nick> :has identified for this nick"
	RplWhoIsUser       Numeric = 311 // "<nick> <user> <host> * :<real name>"
	RplWhoIsServer     Numeric = 312 // "<nick> <server> :<server info>"
	RplWhoIsOperator   Numeric = 313 // "<nick> :is an IRC operator"
	RplWhoIsIdle       Numeric = 317 // "<nick> <integer> <signon> :seconds idle, signon time"
	RplEndOfWhoIs      Numeric = 318 // "<nick> :End of WHOIS list"
	RplWhoIsChannels   Numeric = 319 // "<nick> :*( ( "@" / "+" ) <channel>" " )"
	RplWhoIsSpecial    Numeric = 320 // "<nick> :<text>"
	RplListStart       Numeric = 321 // Obsolete.
	RplList            Numeric = 322 // "<channel> <# visible> :<topic>"
	RplListEnd         Numeric = 323 // ":End of LIST"
	RplChannelModeIs   Numeric = 324 // "<channel> <mode> <mode params>"
	RplChannelURL      Numeric = 328 // "<channel> :<url>"
	RplCreationTime    Numeric = 329 // "<channel> <timestamp>"
	RplWhoIsAccount    Numeric = 330 // "<nick> <account> :is logged in as"
	RplNoTopic         Numeric = 331 // "<channel> :No topic is set"
	RplTopic           Numeric = 332 // "<channel> :<topic>"
	RplTopicWhoTime    Numeric = 333 // "<channel> <nick> <setat>"
	RplNamReply        Numeric = 353 // "( "=" / "*" / "@" ) <channel> :[ "@" / "+" ] <nick> *( " " ["@" / "+" ] <nick> )"
	RplEndOfNames      Numeric = 366 // "<channel> :End of NAMES list"
	RplMOTD            Numeric = 372 // ":- <text>"
	RplMOTDStart       Numeric = 375 // ":- <server> Message of the day - "
	RplEndOfMOTD       Numeric = 376 // ":End of MOTD command"
	RplWhoIsHost       Numeric = 378 // "<nick> :is connecting from *@<host> <ip>"
	RplHostHidden      Numeric = 396 // "<nick> <host> :is now your displayed host"
	RplWhoIsSecure     Numeric = 671 // "<nick> :is using a secure connection"
)

// irc error reply codes.
const (
	ErrNoSuchNick        Numeric = 401 // "<nickname> :No such nick/channel"
	ErrNoSuchServer      Numeric = 402 // "<server name> :No such server"
	ErrNoSuchChannel     Numeric = 403 // "<channel name> :No such channel"
	ErrCannotSendToChan  Numeric = 404 // "<channel name> :Cannot send to channel"
	ErrTooManyChannels   Numeric = 405 // "<channel name> :You have joined too many channels"
	ErrNoTextToSend      Numeric = 412 // ":No text to send"
	ErrUnknownCommand    Numeric = 421 // "<command> :Unknown command"
	ErrNoMOTD            Numeric = 422 // ":MOTD File is missing"
	ErrErroneousNickname Numeric = 432 // "<client> <nick> :Erroneus nickname"
	ErrNicknameInUse     Numeric = 433 // "<client> <nick> :Nickname is already in use"
	ErrUnavailResource   Numeric = 437 // "<nick/channel> :Nick/channel is temporarily unavailable"
	ErrUserNotInChannel  Numeric = 441 // "<nick> <channel> :They aren't on that channel"
	ErrNotOnChannel      Numeric = 442 // "<channel> :You're not on that channel"
	ErrNotRegistered     Numeric = 451 // ":You have not registered"
	ErrNeedMoreParams    Numeric = 461 // "<command> :Not enough parameters"
	ErrLinkChannel       Numeric = 470 // "<channel> <linked channel> :Forwarding to another channel"
	ErrChannelIsFull     Numeric = 471 // "<channel> :Cannot join channel (+l)"
	ErrInviteOnlyChan    Numeric = 473 // "<channel> :Cannot join channel (+i)"
	ErrBannedFromChan    Numeric = 474 // "<channel> :Cannot join channel (+b)"
	ErrBadChannelKey     Numeric = 475 // "<channel> :Cannot join channel (+k)"
	ErrBadChanName       Numeric = 479 // "<channel> :Illegal channel name"
	ErrChanOPrivsNeeded  Numeric = 482 // "<channel> :You're not channel operator"
)

// CTCP delimiter, the control byte which wraps a CTCP payload inside PRIVMSG and NOTICE text.
const ctcpDelim = '\x01'

// ChannelPrefixes are the characters a channel name may start with.
const ChannelPrefixes = "#&+!"

// IsChannel reports whether name looks like a channel name rather than a nickname.
func IsChannel(name string) bool {
	return name != "" && strings.IndexByte(ChannelPrefixes, name[0]) >= 0
}

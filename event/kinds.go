package event

import "github.com/Travis-Britz/ircterm/irc"

// kind is the closed set of message shapes the router knows how to handle.
type kind int

const (
	kindOther kind = iota
	kindQuit
	kindJoin
	kindPart
	kindInvite
	kindTopic
	kindKick
	kindNick
	kindMode
	kindPrivmsg
	kindNotice
	kindNumeric
)

// kindOf classifies m. Command names are matched exactly, so a lowercase "privmsg" is kindOther.
func kindOf(m *irc.Message) kind {
	if m.IsNumeric() {
		return kindNumeric
	}
	switch m.Command {
	case irc.CmdQuit:
		return kindQuit
	case irc.CmdJoin:
		return kindJoin
	case irc.CmdPart:
		return kindPart
	case irc.CmdInvite:
		return kindInvite
	case irc.CmdTopic:
		return kindTopic
	case irc.CmdKick:
		return kindKick
	case irc.CmdNick:
		return kindNick
	case irc.CmdMode:
		return kindMode
	case irc.CmdPrivmsg:
		return kindPrivmsg
	case irc.CmdNotice:
		return kindNotice
	default:
		return kindOther
	}
}

// family groups numeric replies which are rendered the same way.
type family int

const (
	famUnknown family = iota
	famInfo
	famMOTDEnd
	famWhois
	famAway
	famList
	famTopic
	famChannelInfo
	famNames
	famHost
	famError
	famNickInUse
	famNotRegistered
	famNotOperator
	famLinked
)

func familyOf(n irc.Numeric) family {
	switch n {
	case irc.RplWelcome, irc.RplYourHost, irc.RplCreated, irc.RplMyInfo, irc.RplISupport,
		irc.RplStatsConn, irc.RplLUserClient, irc.RplLUserOp, irc.RplLUserUnknown,
		irc.RplLUserChannels, irc.RplLUserMe, irc.RplLocalUsers, irc.RplGlobalUsers,
		irc.RplMOTD, irc.RplMOTDStart:
		return famInfo
	case irc.RplEndOfMOTD, irc.ErrNoMOTD:
		return famMOTDEnd
	case irc.RplWhoIsCertFP, irc.RplAway, irc.RplWhoIsRegNick, irc.RplWhoIsUser,
		irc.RplWhoIsServer, irc.RplWhoIsOperator, irc.RplWhoIsIdle, irc.RplEndOfWhoIs,
		irc.RplWhoIsChannels, irc.RplWhoIsSpecial, irc.RplWhoIsAccount, irc.RplWhoIsHost,
		irc.RplWhoIsSecure:
		return famWhois
	case irc.RplUnAway, irc.RplNowAway:
		return famAway
	case irc.RplListStart, irc.RplList, irc.RplListEnd:
		return famList
	case irc.RplNoTopic, irc.RplTopic, irc.RplTopicWhoTime:
		return famTopic
	case irc.RplChannelModeIs, irc.RplChannelURL, irc.RplCreationTime:
		return famChannelInfo
	case irc.RplNamReply, irc.RplEndOfNames:
		return famNames
	case irc.RplHostHidden:
		return famHost
	case irc.RplTryAgain, irc.ErrNoSuchNick, irc.ErrNoSuchServer, irc.ErrNoSuchChannel,
		irc.ErrCannotSendToChan, irc.ErrTooManyChannels, irc.ErrNoTextToSend,
		irc.ErrUnknownCommand, irc.ErrErroneousNickname, irc.ErrUnavailResource,
		irc.ErrUserNotInChannel, irc.ErrNotOnChannel, irc.ErrNeedMoreParams,
		irc.ErrChannelIsFull, irc.ErrInviteOnlyChan, irc.ErrBannedFromChan,
		irc.ErrBadChannelKey, irc.ErrBadChanName:
		return famError
	case irc.ErrNicknameInUse:
		return famNickInUse
	case irc.ErrNotRegistered:
		return famNotRegistered
	case irc.ErrChanOPrivsNeeded:
		return famNotOperator
	case irc.ErrLinkChannel:
		return famLinked
	default:
		return famUnknown
	}
}
